// Package trading validates and applies BUY/SELL intents against a book and a cash balance.
package trading

import (
	"errors"
	"fmt"
	"time"

	"paper_trading/internal/book"
	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientCash = errors.New("insufficient cash")
	ErrUnknownAction    = errors.New("unknown trade action")
)

// Intent is a requested trade. StopLoss is only used by BUY.
type Intent struct {
	Ticker   string
	Action   models.TradeAction
	Shares   decimal.Decimal
	Price    decimal.Decimal
	StopLoss decimal.Decimal
	Reason   string
}

// Result is the outcome of a successful Execute.
type Result struct {
	Cash     decimal.Decimal
	Entry    models.TradeLogEntry
	Position *models.Position // nil when a sell closed the position
}

// Executor applies intents. It holds no portfolio state itself.
type Executor struct {
	log zerolog.Logger
}

func NewExecutor(log zerolog.Logger) *Executor {
	return &Executor{log: log.With().Str("component", "executor").Logger()}
}

// Execute applies intent to b and returns the new cash balance and the trade
// log entry. Every check runs before any write, so on error b is untouched
// and cash is still the caller's value.
func (e *Executor) Execute(intent Intent, b *book.Book, cash decimal.Decimal, date time.Time) (Result, error) {
	ticker := models.NormalizeTicker(intent.Ticker)

	switch intent.Action {
	case models.Buy:
		if err := b.ValidateBuy(ticker, intent.Shares, intent.Price, intent.StopLoss); err != nil {
			return Result{}, err
		}
		required := intent.Shares.Mul(intent.Price)
		if required.GreaterThan(cash) {
			return Result{}, fmt.Errorf("%w: need $%s, have $%s", ErrInsufficientCash, required.StringFixed(2), cash.StringFixed(2))
		}

		pos, err := b.UpsertBuy(ticker, intent.Shares, intent.Price, intent.StopLoss)
		if err != nil {
			return Result{}, err
		}
		newCash := cash.Sub(required)
		e.log.Info().Str("ticker", ticker).Str("shares", intent.Shares.String()).
			Str("price", intent.Price.String()).Str("cash", newCash.StringFixed(2)).Msg("bought")

		return Result{
			Cash:     newCash,
			Entry:    entry(date, ticker, models.Buy, intent, decimal.Zero),
			Position: &pos,
		}, nil

	case models.Sell:
		pnl, err := b.ReduceSell(ticker, intent.Shares, intent.Price)
		if err != nil {
			return Result{}, err
		}
		newCash := cash.Add(intent.Shares.Mul(intent.Price))
		e.log.Info().Str("ticker", ticker).Str("shares", intent.Shares.String()).
			Str("price", intent.Price.String()).Str("pnl", pnl.StringFixed(2)).Msg("sold")

		res := Result{
			Cash:  newCash,
			Entry: entry(date, ticker, models.Sell, intent, pnl),
		}
		if pos, ok := b.Get(ticker); ok {
			res.Position = &pos
		}
		return res, nil
	}

	return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, intent.Action)
}

func entry(date time.Time, ticker string, action models.TradeAction, intent Intent, pnl decimal.Decimal) models.TradeLogEntry {
	reason := intent.Reason
	if reason == "" {
		reason = "MANUAL " + string(action)
	}
	return models.TradeLogEntry{
		Date:   models.DateOf(date),
		Ticker: ticker,
		Action: action,
		Shares: intent.Shares,
		Price:  intent.Price,
		PnL:    pnl,
		Reason: reason,
	}
}
