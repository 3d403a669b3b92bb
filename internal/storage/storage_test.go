package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(s string) time.Time {
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func positionRow(day, ticker, shares, buy, price string) models.LedgerRow {
	r := models.LedgerRow{
		Date:      date(day),
		Ticker:    ticker,
		Shares:    models.Some(d(shares)),
		BuyPrice:  models.Some(d(buy)),
		CostBasis: models.Some(d(shares).Mul(d(buy))),
		StopLoss:  models.Some(decimal.Zero),
		Action:    models.ActionNoData,
	}
	if price != "" {
		r.CurrentPrice = models.Some(d(price))
		r.TotalValue = models.Some(d(price).Mul(d(shares)))
		r.PnL = models.Some(d(price).Sub(d(buy)).Mul(d(shares)))
		r.Action = models.ActionHold
	}
	return r
}

func totalRow(day, value, cash string) models.LedgerRow {
	return models.LedgerRow{
		Date:        date(day),
		Ticker:      models.TotalTicker,
		TotalValue:  models.Some(d(value)),
		PnL:         models.Some(decimal.Zero),
		CashBalance: models.Some(d(cash)),
		TotalEquity: models.Some(d(value).Add(d(cash))),
	}
}

// backends runs fn against a fresh CSV and SQLite store.
func backends(t *testing.T, fn func(t *testing.T, s *Store)) {
	for _, backend := range []string{BackendCSV, BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			s, err := Open(Options{
				Backend:      backend,
				LedgerPath:   filepath.Join(dir, "ledger", "portfolio.csv"),
				TradeLogPath: filepath.Join(dir, "ledger", "trade_log.csv"),
				SQLitePath:   filepath.Join(dir, "db", "portfolio.db"),
			}, zerolog.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			fn(t, s)
		})
	}
}

func assertRowEqual(t *testing.T, want, got models.LedgerRow) {
	t.Helper()
	assert.Equal(t, want.Date, got.Date)
	assert.Equal(t, want.Ticker, got.Ticker)
	assert.Equal(t, want.Action, got.Action)
	pairs := []struct {
		name string
		w, g decimal.NullDecimal
	}{
		{"shares", want.Shares, got.Shares},
		{"buy", want.BuyPrice, got.BuyPrice},
		{"cost", want.CostBasis, got.CostBasis},
		{"stop", want.StopLoss, got.StopLoss},
		{"price", want.CurrentPrice, got.CurrentPrice},
		{"value", want.TotalValue, got.TotalValue},
		{"pnl", want.PnL, got.PnL},
		{"cash", want.CashBalance, got.CashBalance},
		{"equity", want.TotalEquity, got.TotalEquity},
	}
	for _, p := range pairs {
		assert.Equal(t, p.w.Valid, p.g.Valid, "%s %s validity", want.Ticker, p.name)
		if p.w.Valid {
			assert.True(t, p.w.Decimal.Equal(p.g.Decimal), "%s %s: want %s got %s", want.Ticker, p.name, p.w.Decimal, p.g.Decimal)
		}
	}
}

func TestLedger_RoundTripKeepsBlanks(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		rows := []models.LedgerRow{
			positionRow("2024-03-15", "AAPL", "5", "150", "160"),
			positionRow("2024-03-15", "ZZZZ", "3", "20.125", ""),
			totalRow("2024-03-15", "800", "9300"),
		}
		require.NoError(t, s.Ledger.AppendOrReplaceDay(ctx, date("2024-03-15"), rows))

		got, err := s.Ledger.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, len(rows))
		for i := range rows {
			assertRowEqual(t, rows[i], got[i])
		}
		assert.False(t, got[2].Shares.Valid)
		assert.False(t, got[1].CurrentPrice.Valid)
	})
}

func TestLedger_ReplaceDay(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		require.NoError(t, s.Ledger.AppendOrReplaceDay(ctx, date("2024-03-13"), []models.LedgerRow{
			positionRow("2024-03-13", "SPY", "1", "500", "505"),
			totalRow("2024-03-13", "505", "100"),
		}))
		require.NoError(t, s.Ledger.AppendOrReplaceDay(ctx, date("2024-03-14"), []models.LedgerRow{
			positionRow("2024-03-14", "SPY", "1", "500", "510"),
			positionRow("2024-03-14", "QQQ", "2", "400", "401"),
			totalRow("2024-03-14", "1312", "100"),
		}))
		require.NoError(t, s.Ledger.AppendOrReplaceDay(ctx, date("2024-03-14"), []models.LedgerRow{
			totalRow("2024-03-14", "0", "1400"),
		}))

		got, err := s.Ledger.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "SPY", got[0].Ticker)
		assert.Equal(t, "TOTAL", got[1].Ticker)
		assert.Equal(t, date("2024-03-13"), got[1].Date)
		assert.Equal(t, date("2024-03-14"), got[2].Date)
		assert.True(t, got[2].CashBalance.Decimal.Equal(d("1400")))

		totals, err := s.Ledger.ReadTotals(ctx)
		require.NoError(t, err)
		require.Len(t, totals, 2)
		assert.True(t, totals[0].TotalEquity.Equal(d("605")))
		assert.True(t, totals[1].TotalEquity.Equal(d("1400")))
	})
}

func TestLedger_RowsTakeTheGivenDate(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		row := totalRow("2020-01-01", "0", "10")
		require.NoError(t, s.Ledger.AppendOrReplaceDay(ctx, date("2024-03-15").Add(15*time.Hour), []models.LedgerRow{row}))

		got, err := s.Ledger.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, date("2024-03-15"), got[0].Date)
	})
}

func TestLedger_EmptyHistory(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		rows, err := s.Ledger.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, rows)

		trades, err := s.Trades.ReadAll(context.Background())
		require.NoError(t, err)
		assert.Empty(t, trades)
	})
}

func TestTradeLog_AppendOrder(t *testing.T) {
	backends(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		entries := []models.TradeLogEntry{
			{Date: date("2024-03-15"), Ticker: "AAPL", Action: models.Buy, Shares: d("10"), Price: d("150"), PnL: decimal.Zero, Reason: "MANUAL BUY"},
			{Date: date("2024-03-15"), Ticker: "AAPL", Action: models.Sell, Shares: d("5"), Price: d("160"), PnL: d("50"), Reason: "take profit, partial"},
		}
		for _, e := range entries {
			require.NoError(t, s.Trades.Append(ctx, e))
		}

		got, err := s.Trades.ReadAll(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for i := range entries {
			assert.Equal(t, entries[i].Date, got[i].Date)
			assert.Equal(t, entries[i].Action, got[i].Action)
			assert.Equal(t, entries[i].Reason, got[i].Reason)
			assert.True(t, entries[i].PnL.Equal(got[i].PnL))
			assert.True(t, entries[i].Shares.Equal(got[i].Shares))
		}
	})
}

func TestCSVLedger_FileFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	l := NewCSVLedger(path, zerolog.Nop())
	require.NoError(t, l.AppendOrReplaceDay(context.Background(), date("2024-03-15"), []models.LedgerRow{
		totalRow("2024-03-15", "0", "10000"),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Date,Ticker,Shares,Buy Price,Cost Basis,Stop Loss,Current Price,Total Value,PnL,Action,Cash Balance,Total Equity", lines[0])
	assert.Equal(t, "2024-03-15,TOTAL,,,,,,0,0,,10000,10000", lines[1])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not be left behind")
}

func TestCSVLedger_MalformedRowsSkippedAndPreserved(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	content := strings.Join([]string{
		strings.Join(LedgerHeader, ","),
		"2024-03-13,TOTAL,,,,,,0,0,,500,500",
		"garbage line",
		"2024-03-14,AAPL,abc,150,,,,,,HOLD,,",
		"2024-03-14,TOTAL,,,,,,0,0,,600,600",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l := NewCSVLedger(path, zerolog.Nop())
	ctx := context.Background()

	rows, err := l.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, l.AppendOrReplaceDay(ctx, date("2024-03-15"), []models.LedgerRow{totalRow("2024-03-15", "0", "700")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "garbage line\n")
	assert.Contains(t, string(data), "2024-03-14,AAPL,abc,150")

	// Replacing the 14th drops its malformed row along with the rest of the day.
	require.NoError(t, l.AppendOrReplaceDay(ctx, date("2024-03-14"), []models.LedgerRow{totalRow("2024-03-14", "0", "650")}))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "abc")

	totals, err := l.ReadTotals(ctx)
	require.NoError(t, err)
	require.Len(t, totals, 3)
	assert.True(t, totals[1].CashBalance.Equal(d("650")))
}

func TestReadTotals_LastTotalOfDateWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	content := strings.Join(LedgerHeader, ",") + "\n" +
		"2024-03-14,TOTAL,,,,,,0,0,,600,600\n" +
		"2024-03-14,TOTAL,,,,,,0,0,RESET,650,650\n" +
		"2024-03-13,TOTAL,,,,,,0,0,,500,500\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	totals, err := NewCSVLedger(path, zerolog.Nop()).ReadTotals(context.Background())
	require.NoError(t, err)
	require.Len(t, totals, 2)
	assert.Equal(t, date("2024-03-13"), totals[0].Date)
	assert.True(t, totals[1].TotalEquity.Equal(d("650")))
	assert.Equal(t, models.ActionReset, totals[1].Action)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(Options{Backend: "parquet"}, zerolog.Nop())
	assert.Error(t, err)
}
