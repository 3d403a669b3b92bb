package main

import (
	"context"
	"fmt"

	"paper_trading/internal/config"
	"paper_trading/internal/logger"
	"paper_trading/internal/market"
	"paper_trading/internal/market/alpaca"
	"paper_trading/internal/market/yahoo"
	"paper_trading/internal/session"
	"paper_trading/internal/storage"

	"github.com/rs/zerolog"
)

// app wires the configured collaborators into one session.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	session *session.Session
	closers []func() error
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	log, logCloser, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Pretty:     cfg.Logging.Pretty,
		File:       cfg.LogPath(),
		MaxSizeMB:  int64(cfg.Logging.MaxSizeMB),
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		log.Warn().Err(err).Msg("file logging disabled")
	}
	a := &app{cfg: cfg, log: log, closers: []func() error{logCloser.Close}}

	for _, w := range cfg.Warnings {
		log.Warn().Msg(w)
	}
	for _, line := range cfg.Describe() {
		log.Debug().Msg(line)
	}

	store, err := storage.Open(storage.Options{
		Backend:      cfg.Storage.Backend,
		LedgerPath:   cfg.LedgerPath(),
		TradeLogPath: cfg.TradeLogPath(),
		SQLitePath:   cfg.SQLitePath(),
	}, log)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append([]func() error{store.Close}, a.closers...)

	loc, err := cfg.Location()
	if err != nil {
		a.close()
		return nil, err
	}

	gateway := market.NewGateway(newProvider(cfg, log), market.GatewayOptions{
		Timeout:       cfg.Market.LookupTimeout,
		MaxConcurrent: cfg.Market.MaxConcurrent,
	}, log)

	s, err := session.New(ctx, session.Deps{
		Ledger:   store.Ledger,
		Trades:   store.Trades,
		Gateway:  gateway,
		Calendar: market.NewCalendar(loc),
		Log:      log,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.session = s
	return a, nil
}

func newProvider(cfg *config.Config, log zerolog.Logger) market.MarketProvider {
	if cfg.Market.Provider == config.ProviderAlpaca {
		return alpaca.NewProvider(alpaca.Options{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.DataURL,
			Feed:      cfg.Alpaca.Feed,
		})
	}
	return yahoo.NewProvider(log)
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Error().Err(err).Msg("close")
		}
	}
}
