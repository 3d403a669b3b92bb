package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is how dates are written in the ledger and the trade log.
const DateLayout = "2006-01-02"

// TotalTicker is the synthetic ticker of the aggregate row written once per date.
const TotalTicker = "TOTAL"

// TradeAction is the side of a trade.
type TradeAction string

const (
	Buy  TradeAction = "BUY"
	Sell TradeAction = "SELL"
)

// ParseTradeAction accepts "buy"/"BUY"/" Sell " etc.
func ParseTradeAction(s string) (TradeAction, bool) {
	switch TradeAction(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, true
	case Sell:
		return Sell, true
	}
	return "", false
}

// RowAction tags a ledger row.
type RowAction string

const (
	ActionNone   RowAction = ""
	ActionHold   RowAction = "HOLD"
	ActionNoData RowAction = "NO DATA"
	ActionReset  RowAction = "RESET"
)

// Position is a single open holding.
//
// CostBasis is always Shares * BuyPrice; the book reconciles it after every
// mutation instead of tracking it independently.
type Position struct {
	Ticker    string          `json:"ticker"`
	Shares    decimal.Decimal `json:"shares"`
	BuyPrice  decimal.Decimal `json:"buy_price"`  // weighted-average cost per share
	CostBasis decimal.Decimal `json:"cost_basis"` // dollars invested in the current share count
	StopLoss  decimal.Decimal `json:"stop_loss"`  // advisory only
}

// TradeLogEntry is an immutable record of one executed trade.
type TradeLogEntry struct {
	Date   time.Time       `json:"date"`
	Ticker string          `json:"ticker"`
	Action TradeAction     `json:"action"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
	PnL    decimal.Decimal `json:"pnl"` // realized, zero for BUY
	Reason string          `json:"reason"`
}

// LedgerRow is one valuation record for a (date, ticker) pair.
//
// Position rows leave CashBalance and TotalEquity invalid. TOTAL rows leave the
// per-position fields invalid. A position whose price could not be resolved
// keeps its holding fields but leaves CurrentPrice, TotalValue and PnL invalid
// and is tagged ActionNoData.
type LedgerRow struct {
	Date         time.Time
	Ticker       string
	Shares       decimal.NullDecimal
	BuyPrice     decimal.NullDecimal
	CostBasis    decimal.NullDecimal
	StopLoss     decimal.NullDecimal
	CurrentPrice decimal.NullDecimal
	TotalValue   decimal.NullDecimal
	PnL          decimal.NullDecimal
	Action       RowAction
	CashBalance  decimal.NullDecimal
	TotalEquity  decimal.NullDecimal
}

// IsTotal reports whether r is the aggregate row of its date.
func (r LedgerRow) IsTotal() bool {
	return r.Ticker == TotalTicker
}

// Position rebuilds the holding recorded on a position row.
// ok is false for TOTAL rows and for rows without a share count.
func (r LedgerRow) Position() (Position, bool) {
	if r.IsTotal() || !r.Shares.Valid || !r.Shares.Decimal.IsPositive() {
		return Position{}, false
	}
	p := Position{
		Ticker:   r.Ticker,
		Shares:   r.Shares.Decimal,
		BuyPrice: r.BuyPrice.Decimal,
		StopLoss: r.StopLoss.Decimal,
	}
	p.CostBasis = p.Shares.Mul(p.BuyPrice)
	return p, true
}

// TotalPoint is the equity-curve view of one TOTAL row.
type TotalPoint struct {
	Date        time.Time       `json:"date"`
	TotalEquity decimal.Decimal `json:"total_equity"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	TotalValue  decimal.Decimal `json:"total_value"`
	PnL         decimal.Decimal `json:"pnl"`
	Action      RowAction       `json:"action"`
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// DateOf truncates t to its calendar date in t's own location and returns it
// as midnight UTC, so dates compare equal regardless of origin.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Some wraps a decimal as a present optional value.
func Some(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// Point projects a TOTAL row onto the equity curve.
// ok is false for position rows and for TOTAL rows without an equity figure.
func (r LedgerRow) Point() (TotalPoint, bool) {
	if !r.IsTotal() || !r.TotalEquity.Valid {
		return TotalPoint{}, false
	}
	return TotalPoint{
		Date:        r.Date,
		TotalEquity: r.TotalEquity.Decimal,
		CashBalance: r.CashBalance.Decimal,
		TotalValue:  r.TotalValue.Decimal,
		PnL:         r.PnL.Decimal,
		Action:      r.Action,
	}, true
}
