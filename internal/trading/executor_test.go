package trading

import (
	"testing"
	"time"

	"paper_trading/internal/book"
	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestExecute_BuyThenSellScenario(t *testing.T) {
	e := NewExecutor(zerolog.Nop())
	b := book.New()

	res, err := e.Execute(Intent{Ticker: "aapl", Action: models.Buy, Shares: d("10"), Price: d("150")}, b, d("10000"), day)
	require.NoError(t, err)
	assert.True(t, res.Cash.Equal(d("8500")), "cash %s", res.Cash)
	require.NotNil(t, res.Position)
	assert.True(t, res.Position.CostBasis.Equal(d("1500")))
	assert.Equal(t, models.Buy, res.Entry.Action)
	assert.True(t, res.Entry.PnL.IsZero())
	assert.Equal(t, "MANUAL BUY", res.Entry.Reason)
	assert.Equal(t, "AAPL", res.Entry.Ticker)

	res, err = e.Execute(Intent{Ticker: "AAPL", Action: models.Sell, Shares: d("5"), Price: d("160"), Reason: "trim"}, b, res.Cash, day)
	require.NoError(t, err)
	assert.True(t, res.Cash.Equal(d("9300")), "cash %s", res.Cash)
	assert.True(t, res.Entry.PnL.Equal(d("50")), "pnl %s", res.Entry.PnL)
	assert.Equal(t, "trim", res.Entry.Reason)
	require.NotNil(t, res.Position)
	assert.True(t, res.Position.Shares.Equal(d("5")))
	assert.True(t, res.Position.BuyPrice.Equal(d("150")))
	assert.True(t, res.Position.CostBasis.Equal(d("750")))
}

func TestExecute_SellAllClosesPosition(t *testing.T) {
	e := NewExecutor(zerolog.Nop())
	b := book.New()
	_, err := b.UpsertBuy("QQQ", d("2"), d("400"), decimal.Zero)
	require.NoError(t, err)

	res, err := e.Execute(Intent{Ticker: "QQQ", Action: models.Sell, Shares: d("2"), Price: d("390")}, b, d("0"), day)
	require.NoError(t, err)
	assert.Nil(t, res.Position)
	assert.True(t, res.Cash.Equal(d("780")))
	assert.True(t, res.Entry.PnL.Equal(d("-20")))
	assert.Equal(t, 0, b.Len())
}

func TestExecute_FailuresLeaveStateUntouched(t *testing.T) {
	e := NewExecutor(zerolog.Nop())
	b := book.New()
	_, err := b.UpsertBuy("AAPL", d("10"), d("150"), decimal.Zero)
	require.NoError(t, err)
	before := b.Snapshot()

	tests := []struct {
		name   string
		intent Intent
		want   error
	}{
		{"buy exceeds cash", Intent{Ticker: "MSFT", Action: models.Buy, Shares: d("100"), Price: d("300")}, ErrInsufficientCash},
		{"add exceeds cash", Intent{Ticker: "AAPL", Action: models.Buy, Shares: d("7"), Price: d("150")}, ErrInsufficientCash},
		{"sell too many", Intent{Ticker: "AAPL", Action: models.Sell, Shares: d("11"), Price: d("150")}, book.ErrInsufficientShares},
		{"sell unknown", Intent{Ticker: "TSLA", Action: models.Sell, Shares: d("1"), Price: d("150")}, book.ErrNoPosition},
		{"zero shares", Intent{Ticker: "AAPL", Action: models.Buy, Shares: d("0"), Price: d("150")}, book.ErrInvalidQuantity},
		{"zero price", Intent{Ticker: "AAPL", Action: models.Buy, Shares: d("1"), Price: d("0")}, book.ErrInvalidPrice},
		{"bad action", Intent{Ticker: "AAPL", Action: "HOLD", Shares: d("1"), Price: d("1")}, ErrUnknownAction},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cash := d("1000")
			_, err := e.Execute(tc.intent, b, cash, day)
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, before, b.Snapshot())
			assert.True(t, cash.Equal(d("1000")))
		})
	}
}

func TestExecute_BuyExactCash(t *testing.T) {
	e := NewExecutor(zerolog.Nop())
	b := book.New()

	res, err := e.Execute(Intent{Ticker: "SPY", Action: models.Buy, Shares: d("2"), Price: d("500")}, b, d("1000"), day)
	require.NoError(t, err)
	assert.True(t, res.Cash.IsZero())
}
