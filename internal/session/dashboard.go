package session

import (
	"context"
	"time"

	"paper_trading/internal/models"
	"paper_trading/internal/valuation"

	"github.com/shopspring/decimal"
)

// DashboardPosition is one live-valued holding.
type DashboardPosition struct {
	models.Position
	Price        decimal.NullDecimal // invalid when the close could not be resolved
	Value        decimal.NullDecimal
	PnL          decimal.NullDecimal
	PnLPct       decimal.NullDecimal
	StopBreached bool
}

// Dashboard is the live view of the portfolio. It is never persisted.
type Dashboard struct {
	Date        time.Time
	Positions   []DashboardPosition
	TotalValue  decimal.Decimal
	TotalPnL    decimal.Decimal
	Cash        decimal.Decimal
	TotalEquity decimal.Decimal
	Breaches    []string // tickers trading at or below their stop loss
	Unavailable []string // tickers without a price
}

// DashboardSnapshot values the current book without writing anything.
// Prices are fetched outside the session lock.
func (s *Session) DashboardSnapshot(ctx context.Context) (Dashboard, error) {
	s.mu.RLock()
	if !s.initialized {
		s.mu.RUnlock()
		return Dashboard{}, ErrNotInitialized
	}
	positions := s.book.Snapshot()
	cash := s.cash
	s.mu.RUnlock()

	date := s.Today()
	tickers := make([]string, len(positions))
	for i, p := range positions {
		tickers[i] = p.Ticker
	}
	quotes := s.gateway.LatestCloses(ctx, tickers, date)

	d := Dashboard{Date: date, Cash: cash}
	for _, p := range positions {
		dp := DashboardPosition{Position: p}
		q, ok := quotes[p.Ticker]
		if !ok || !q.Available() {
			d.Unavailable = append(d.Unavailable, p.Ticker)
			d.Positions = append(d.Positions, dp)
			continue
		}

		m := valuation.Mark(p, q.Price)
		dp.Price = models.Some(m.Price)
		dp.Value = models.Some(m.Value)
		dp.PnL = models.Some(m.PnL)
		if p.CostBasis.IsPositive() {
			dp.PnLPct = models.Some(m.PnL.Div(p.CostBasis).Mul(decimal.NewFromInt(100)).Round(2))
		}
		dp.StopBreached = stopBreached(p, m.Price)
		if dp.StopBreached {
			d.Breaches = append(d.Breaches, p.Ticker)
			s.log.Warn().Str("ticker", p.Ticker).Str("price", m.Price.StringFixed(2)).
				Str("stop_loss", p.StopLoss.StringFixed(2)).Msg("stop loss breached")
		}

		d.TotalValue = d.TotalValue.Add(m.Value)
		d.TotalPnL = d.TotalPnL.Add(m.PnL)
		d.Positions = append(d.Positions, dp)
	}
	d.TotalEquity = d.TotalValue.Add(cash).Round(2)
	return d, nil
}

// stopBreached is advisory: a breach is reported, never acted on.
func stopBreached(p models.Position, price decimal.Decimal) bool {
	return p.StopLoss.IsPositive() && price.LessThanOrEqual(p.StopLoss)
}
