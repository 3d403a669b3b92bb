package valuation

import (
	"context"
	"testing"
	"time"

	"paper_trading/internal/market"
	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices map[string]string

func (f fakePrices) LatestCloses(_ context.Context, tickers []string, asOf time.Time) map[string]market.Quote {
	out := make(map[string]market.Quote, len(tickers))
	for _, t := range tickers {
		if p, ok := f[t]; ok {
			out[t] = market.Quote{Ticker: t, Price: decimal.RequireFromString(p), AsOf: asOf}
			continue
		}
		out[t] = market.Quote{Ticker: t, Err: market.ErrPriceUnavailable}
	}
	return out
}

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func pos(ticker, shares, buy string) models.Position {
	p := models.Position{Ticker: ticker, Shares: d(shares), BuyPrice: d(buy), StopLoss: decimal.Zero}
	p.CostBasis = p.Shares.Mul(p.BuyPrice)
	return p
}

func assertNull(t *testing.T, want string, got decimal.NullDecimal, field string) {
	t.Helper()
	if want == "" {
		assert.False(t, got.Valid, "%s should be blank, got %s", field, got.Decimal)
		return
	}
	require.True(t, got.Valid, "%s should be set", field)
	assert.True(t, got.Decimal.Equal(d(want)), "%s: want %s got %s", field, want, got.Decimal)
}

func TestValuate_EmptyBook(t *testing.T) {
	v := NewValuator(fakePrices{}, zerolog.Nop())

	rows := v.Valuate(context.Background(), nil, d("5000"), day)
	require.Len(t, rows, 1)
	total := rows[0]
	assert.True(t, total.IsTotal())
	assert.Equal(t, day, total.Date)
	assert.Equal(t, models.ActionNone, total.Action)
	assertNull(t, "0", total.TotalValue, "value")
	assertNull(t, "0", total.PnL, "pnl")
	assertNull(t, "5000", total.CashBalance, "cash")
	assertNull(t, "5000", total.TotalEquity, "equity")
	assertNull(t, "", total.Shares, "shares")
	assertNull(t, "", total.CurrentPrice, "price")
}

func TestValuate_NoDataKeepsPosition(t *testing.T) {
	v := NewValuator(fakePrices{"AAPL": "160.004"}, zerolog.Nop())
	positions := []models.Position{pos("AAPL", "5", "150"), pos("ZZZZ", "3", "20")}

	rows := v.Valuate(context.Background(), positions, d("9300"), day)
	require.Len(t, rows, 3)

	aapl := rows[0]
	assert.Equal(t, "AAPL", aapl.Ticker)
	assert.Equal(t, models.ActionHold, aapl.Action)
	assertNull(t, "160", aapl.CurrentPrice, "price")
	assertNull(t, "800", aapl.TotalValue, "value")
	assertNull(t, "50", aapl.PnL, "pnl")
	assertNull(t, "750", aapl.CostBasis, "cost")

	zzzz := rows[1]
	assert.Equal(t, "ZZZZ", zzzz.Ticker)
	assert.Equal(t, models.ActionNoData, zzzz.Action)
	assertNull(t, "", zzzz.CurrentPrice, "price")
	assertNull(t, "", zzzz.TotalValue, "value")
	assertNull(t, "", zzzz.PnL, "pnl")
	assertNull(t, "3", zzzz.Shares, "shares")

	total := rows[2]
	assert.True(t, total.IsTotal())
	assertNull(t, "800", total.TotalValue, "value")
	assertNull(t, "50", total.PnL, "pnl")
	assertNull(t, "9300", total.CashBalance, "cash")
	assertNull(t, "10100", total.TotalEquity, "equity")
}

func TestMark_RoundsPriceFirst(t *testing.T) {
	m := Mark(pos("X", "3", "10"), d("10.005"))
	assert.True(t, m.Price.Equal(d("10.01")), m.Price.String())
	assert.True(t, m.Value.Equal(d("30.03")), m.Value.String())
	assert.True(t, m.PnL.Equal(d("0.03")), m.PnL.String())
}

func TestTotalRow_Reset(t *testing.T) {
	row := TotalRow(day.Add(13*time.Hour), decimal.Zero, decimal.Zero, d("1234.567"), models.ActionReset)
	assert.Equal(t, day, row.Date)
	assert.Equal(t, models.ActionReset, row.Action)
	assertNull(t, "1234.57", row.CashBalance, "cash")
	assertNull(t, "1234.57", row.TotalEquity, "equity")
}
