package session

import (
	"fmt"
	"strings"

	"paper_trading/internal/analytics"
	"paper_trading/internal/models"

	"github.com/shopspring/decimal"
)

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return money(d.Decimal)
}

// FormatDashboard renders the live view as a plain-text table.
func FormatDashboard(d Dashboard) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("PORTFOLIO %s\n", d.Date.Format(models.DateLayout)))

	if len(d.Positions) == 0 {
		sb.WriteString("No open positions.\n")
	} else {
		sb.WriteString(fmt.Sprintf("%-8s %10s %10s %10s %12s %12s %8s\n", "Ticker", "Shares", "Avg Cost", "Price", "Value", "PnL", "PnL %"))
		for _, p := range d.Positions {
			pct := "-"
			if p.PnLPct.Valid {
				pct = p.PnLPct.Decimal.StringFixed(2) + "%"
			}
			flag := ""
			if p.StopBreached {
				flag = "  STOP " + money(p.StopLoss)
			} else if !p.Price.Valid {
				flag = "  NO DATA"
			}
			sb.WriteString(fmt.Sprintf("%-8s %10s %10s %10s %12s %12s %8s%s\n",
				p.Ticker, p.Shares.String(), p.BuyPrice.StringFixed(2), nullMoney(p.Price),
				nullMoney(p.Value), nullMoney(p.PnL), pct, flag))
		}
	}

	sb.WriteString(fmt.Sprintf("\nPositions value: %s\nUnrealized PnL:  %s\nCash:            %s\nTotal equity:    %s\n",
		money(d.TotalValue), money(d.TotalPnL), money(d.Cash), money(d.TotalEquity)))
	if len(d.Breaches) > 0 {
		sb.WriteString(fmt.Sprintf("Stop loss breached: %s\n", strings.Join(d.Breaches, ", ")))
	}
	if len(d.Unavailable) > 0 {
		sb.WriteString(fmt.Sprintf("No price data: %s\n", strings.Join(d.Unavailable, ", ")))
	}
	return sb.String()
}

// FormatRows renders ledger rows as written for one day.
func FormatRows(rows []models.LedgerRow) string {
	var sb strings.Builder
	for _, r := range rows {
		if r.IsTotal() {
			sb.WriteString(fmt.Sprintf("%s TOTAL value %s pnl %s cash %s equity %s %s\n",
				r.Date.Format(models.DateLayout), nullMoney(r.TotalValue), nullMoney(r.PnL),
				nullMoney(r.CashBalance), nullMoney(r.TotalEquity), r.Action))
			continue
		}
		sb.WriteString(fmt.Sprintf("%s %-6s %s sh @ %s  price %s value %s pnl %s %s\n",
			r.Date.Format(models.DateLayout), r.Ticker, r.Shares.Decimal.String(), nullMoney(r.BuyPrice),
			nullMoney(r.CurrentPrice), nullMoney(r.TotalValue), nullMoney(r.PnL), r.Action))
	}
	return sb.String()
}

// FormatHistory renders the equity curve.
func FormatHistory(points []models.TotalPoint) string {
	if len(points) == 0 {
		return "No history yet.\n"
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-10s %14s %14s %14s %s\n", "Date", "Equity", "Cash", "Positions", ""))
	for _, p := range points {
		sb.WriteString(fmt.Sprintf("%-10s %14s %14s %14s %s\n",
			p.Date.Format(models.DateLayout), money(p.TotalEquity), money(p.CashBalance), money(p.TotalValue), p.Action))
	}
	return sb.String()
}

// FormatAnalytics renders a Report.
func FormatAnalytics(r analytics.Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("PERFORMANCE %s .. %s (%d days)\n",
		r.Start.Format(models.DateLayout), r.End.Format(models.DateLayout), r.Points))
	sb.WriteString(fmt.Sprintf("Initial equity: $%.2f\n", r.InitialEquity))
	sb.WriteString(fmt.Sprintf("Final equity:   $%.2f\n", r.FinalEquity))
	sb.WriteString(fmt.Sprintf("Total return:   %.2f%%\n", r.TotalReturn*100))
	sb.WriteString(fmt.Sprintf("Max drawdown:   %.2f%%\n", r.MaxDrawdown*100))
	if r.HasRisk {
		sb.WriteString(fmt.Sprintf("Volatility:     %.2f%%\n", r.Volatility*100))
		sb.WriteString(fmt.Sprintf("Sharpe ratio:   %.2f\n", r.SharpeRatio))
	} else {
		sb.WriteString("Volatility and Sharpe need at least 3 days of history.\n")
	}
	return sb.String()
}

// FormatTrades renders the trade log.
func FormatTrades(entries []models.TradeLogEntry) string {
	if len(entries) == 0 {
		return "No trades yet.\n"
	}
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s %-4s %-6s %s @ %s", e.Date.Format(models.DateLayout), e.Action, e.Ticker,
			e.Shares.String(), money(e.Price)))
		if e.Action == models.Sell {
			sb.WriteString(" pnl " + money(e.PnL))
		}
		if e.Reason != "" {
			sb.WriteString("  (" + e.Reason + ")")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
