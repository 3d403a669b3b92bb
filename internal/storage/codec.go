package storage

import (
	"fmt"
	"strings"
	"time"

	"paper_trading/internal/models"

	"github.com/shopspring/decimal"
)

// LedgerHeader is the column order of the ledger file.
var LedgerHeader = []string{
	"Date", "Ticker", "Shares", "Buy Price", "Cost Basis", "Stop Loss",
	"Current Price", "Total Value", "PnL", "Action", "Cash Balance", "Total Equity",
}

// TradeLogHeader is the column order of the trade log file.
var TradeLogHeader = []string{"Date", "Ticker", "Action", "Shares", "Price", "PnL", "Reason"}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func parseNull(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return models.Some(d), nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(models.DateLayout, strings.TrimSpace(s))
}

func encodeLedgerRow(r models.LedgerRow) []string {
	return []string{
		r.Date.Format(models.DateLayout),
		r.Ticker,
		formatNull(r.Shares),
		formatNull(r.BuyPrice),
		formatNull(r.CostBasis),
		formatNull(r.StopLoss),
		formatNull(r.CurrentPrice),
		formatNull(r.TotalValue),
		formatNull(r.PnL),
		string(r.Action),
		formatNull(r.CashBalance),
		formatNull(r.TotalEquity),
	}
}

func decodeLedgerRow(rec []string) (models.LedgerRow, error) {
	if len(rec) != len(LedgerHeader) {
		return models.LedgerRow{}, fmt.Errorf("expected %d fields, got %d", len(LedgerHeader), len(rec))
	}

	date, err := parseDate(rec[0])
	if err != nil {
		return models.LedgerRow{}, fmt.Errorf("bad date %q", rec[0])
	}
	ticker := models.NormalizeTicker(rec[1])
	if ticker == "" {
		return models.LedgerRow{}, fmt.Errorf("empty ticker")
	}

	row := models.LedgerRow{
		Date:   date,
		Ticker: ticker,
		Action: models.RowAction(strings.TrimSpace(rec[9])),
	}

	fields := []struct {
		dst *decimal.NullDecimal
		col int
	}{
		{&row.Shares, 2}, {&row.BuyPrice, 3}, {&row.CostBasis, 4}, {&row.StopLoss, 5},
		{&row.CurrentPrice, 6}, {&row.TotalValue, 7}, {&row.PnL, 8},
		{&row.CashBalance, 10}, {&row.TotalEquity, 11},
	}
	for _, f := range fields {
		v, err := parseNull(rec[f.col])
		if err != nil {
			return models.LedgerRow{}, fmt.Errorf("bad %s %q", LedgerHeader[f.col], rec[f.col])
		}
		*f.dst = v
	}
	return row, nil
}

func encodeTrade(e models.TradeLogEntry) []string {
	return []string{
		e.Date.Format(models.DateLayout),
		e.Ticker,
		string(e.Action),
		e.Shares.String(),
		e.Price.String(),
		e.PnL.String(),
		e.Reason,
	}
}

func decodeTrade(rec []string) (models.TradeLogEntry, error) {
	if len(rec) != len(TradeLogHeader) {
		return models.TradeLogEntry{}, fmt.Errorf("expected %d fields, got %d", len(TradeLogHeader), len(rec))
	}
	date, err := parseDate(rec[0])
	if err != nil {
		return models.TradeLogEntry{}, fmt.Errorf("bad date %q", rec[0])
	}
	action, ok := models.ParseTradeAction(rec[2])
	if !ok {
		return models.TradeLogEntry{}, fmt.Errorf("bad action %q", rec[2])
	}

	e := models.TradeLogEntry{Date: date, Ticker: models.NormalizeTicker(rec[1]), Action: action, Reason: rec[6]}
	nums := []struct {
		dst *decimal.Decimal
		col int
	}{{&e.Shares, 3}, {&e.Price, 4}, {&e.PnL, 5}}
	for _, n := range nums {
		v, err := parseNull(rec[n.col])
		if err != nil {
			return models.TradeLogEntry{}, fmt.Errorf("bad %s %q", TradeLogHeader[n.col], rec[n.col])
		}
		*n.dst = v.Decimal
	}
	return e, nil
}
