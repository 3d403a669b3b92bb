package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultLookupTimeout = 10 * time.Second
	defaultMaxLookups    = 4
)

// GatewayOptions tunes lookups. Zero values select the defaults.
type GatewayOptions struct {
	Timeout       time.Duration
	MaxConcurrent int
}

// Gateway turns provider bar series into single close prices.
type Gateway struct {
	provider MarketProvider
	timeout  time.Duration
	maxConc  int
	log      zerolog.Logger
}

func NewGateway(provider MarketProvider, opts GatewayOptions, log zerolog.Logger) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLookupTimeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxLookups
	}
	return &Gateway{
		provider: provider,
		timeout:  opts.Timeout,
		maxConc:  opts.MaxConcurrent,
		log:      log.With().Str("component", "market").Logger(),
	}
}

// LatestClose returns the last close in [asOf-1d, asOf+1d].
// Provider failures, timeouts and empty series all come back as an
// unavailable Quote rather than an error.
func (g *Gateway) LatestClose(ctx context.Context, ticker string, asOf time.Time) Quote {
	ticker = models.NormalizeTicker(ticker)
	day := models.DateOf(asOf)
	start := day.AddDate(0, 0, -1)
	end := day.AddDate(0, 0, 1)

	q := Quote{Ticker: ticker}
	bars, err := g.fetch(ctx, ticker, start, end)
	if err != nil {
		q.Err = err
		g.log.Warn().Err(err).Str("ticker", ticker).Str("date", day.Format(models.DateLayout)).Msg("price unavailable")
		return q
	}

	var last *models.Bar
	for i := range bars {
		b := &bars[i]
		d := models.DateOf(b.Time)
		if d.Before(start) || d.After(end) || !b.Close.IsPositive() {
			continue
		}
		if last == nil || b.Time.After(last.Time) {
			last = b
		}
	}
	if last == nil {
		q.Err = fmt.Errorf("%w: no close for %s around %s", ErrPriceUnavailable, ticker, day.Format(models.DateLayout))
		g.log.Warn().Str("ticker", ticker).Str("date", day.Format(models.DateLayout)).Msg("empty price series")
		return q
	}

	q.Price = last.Close
	q.AsOf = models.DateOf(last.Time)
	return q
}

// LatestCloses resolves every ticker concurrently and returns once all of
// them are resolved or marked unavailable.
func (g *Gateway) LatestCloses(ctx context.Context, tickers []string, asOf time.Time) map[string]Quote {
	out := make(map[string]Quote, len(tickers))
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, g.maxConc)

	var unique []string
	for _, t := range tickers {
		t = models.NormalizeTicker(t)
		if _, dup := out[t]; dup {
			continue
		}
		out[t] = Quote{Ticker: t, Err: ErrPriceUnavailable}
		unique = append(unique, t)
	}

	for _, t := range unique {
		wg.Add(1)
		go func(ticker string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			q := g.LatestClose(ctx, ticker, asOf)
			mu.Lock()
			out[ticker] = q
			mu.Unlock()
		}(t)
	}
	wg.Wait()
	return out
}

// fetch runs the provider call under the per-call timeout. The SDKs take no
// context, so a timed-out call is abandoned and its result discarded.
func (g *Gateway) fetch(ctx context.Context, ticker string, start, end time.Time) ([]models.Bar, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type result struct {
		bars []models.Bar
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		bars, err := g.provider.GetBars(ticker, start, end)
		ch <- result{bars, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, ticker, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", ErrPriceUnavailable, ErrProvider, ticker, r.err)
		}
		return r.bars, nil
	}
}

// Price is a convenience for callers that want an error instead of a Quote.
func (g *Gateway) Price(ctx context.Context, ticker string, asOf time.Time) (decimal.Decimal, error) {
	q := g.LatestClose(ctx, ticker, asOf)
	if !q.Available() {
		return decimal.Zero, q.Err
	}
	return q.Price, nil
}
