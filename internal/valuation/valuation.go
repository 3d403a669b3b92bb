// Package valuation marks open positions to market and builds ledger rows.
package valuation

import (
	"context"
	"time"

	"paper_trading/internal/market"
	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PriceSource resolves closes for many tickers at once. *market.Gateway satisfies it.
type PriceSource interface {
	LatestCloses(ctx context.Context, tickers []string, asOf time.Time) map[string]market.Quote
}

// Valuator runs the daily mark-to-market.
type Valuator struct {
	prices PriceSource
	log    zerolog.Logger
}

func NewValuator(prices PriceSource, log zerolog.Logger) *Valuator {
	return &Valuator{prices: prices, log: log.With().Str("component", "valuation").Logger()}
}

// Valuate returns one row per position, in the given order, followed by a TOTAL row.
// Positions without a price are kept with action NO DATA and add nothing to the total.
func (v *Valuator) Valuate(ctx context.Context, positions []models.Position, cash decimal.Decimal, date time.Time) []models.LedgerRow {
	date = models.DateOf(date)

	tickers := make([]string, len(positions))
	for i, p := range positions {
		tickers[i] = p.Ticker
	}
	var quotes map[string]market.Quote
	if len(tickers) > 0 {
		quotes = v.prices.LatestCloses(ctx, tickers, date)
	}

	rows := make([]models.LedgerRow, 0, len(positions)+1)
	totalValue := decimal.Zero
	totalPnL := decimal.Zero
	stale := 0

	for _, p := range positions {
		row := models.LedgerRow{
			Date:      date,
			Ticker:    p.Ticker,
			Shares:    models.Some(p.Shares),
			BuyPrice:  models.Some(p.BuyPrice),
			CostBasis: models.Some(p.CostBasis),
			StopLoss:  models.Some(p.StopLoss),
			Action:    models.ActionNoData,
		}

		if q, ok := quotes[models.NormalizeTicker(p.Ticker)]; ok && q.Available() {
			m := Mark(p, q.Price)
			row.CurrentPrice = models.Some(m.Price)
			row.TotalValue = models.Some(m.Value)
			row.PnL = models.Some(m.PnL)
			row.Action = models.ActionHold
			totalValue = totalValue.Add(m.Value)
			totalPnL = totalPnL.Add(m.PnL)
		} else {
			stale++
		}
		rows = append(rows, row)
	}

	rows = append(rows, TotalRow(date, totalValue, totalPnL, cash, models.ActionNone))

	v.log.Info().Str("date", date.Format(models.DateLayout)).Int("positions", len(positions)).
		Int("no_data", stale).Str("equity", totalValue.Add(cash).StringFixed(2)).Msg("valuation complete")
	return rows
}

// Marked is a position valued at a price.
type Marked struct {
	Price decimal.Decimal
	Value decimal.Decimal
	PnL   decimal.Decimal
}

// Mark rounds price to cents, then derives value and pnl from the rounded price.
func Mark(p models.Position, price decimal.Decimal) Marked {
	price = price.Round(2)
	return Marked{
		Price: price,
		Value: price.Mul(p.Shares).Round(2),
		PnL:   price.Sub(p.BuyPrice).Mul(p.Shares).Round(2),
	}
}

// TotalRow builds the aggregate row for date. Per-position columns stay blank.
func TotalRow(date time.Time, value, pnl, cash decimal.Decimal, action models.RowAction) models.LedgerRow {
	cash = cash.Round(2)
	value = value.Round(2)
	return models.LedgerRow{
		Date:        models.DateOf(date),
		Ticker:      models.TotalTicker,
		TotalValue:  models.Some(value),
		PnL:         models.Some(pnl.Round(2)),
		Action:      action,
		CashBalance: models.Some(cash),
		TotalEquity: models.Some(value.Add(cash)),
	}
}
