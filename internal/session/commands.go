package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paper_trading/internal/analytics"
	"paper_trading/internal/book"
	"paper_trading/internal/market"
	"paper_trading/internal/models"
	"paper_trading/internal/trading"

	"github.com/shopspring/decimal"
)

type CommandDoc struct {
	Name        string
	Description string
	Example     string
}

func defaultCommands() []CommandDoc {
	return []CommandDoc{
		{"setup", "Start a portfolio with initial cash", "setup 10000"},
		{"buy", "Buy shares at a price, or at the last close", "buy AAPL 10 [price|market] [stop_loss]"},
		{"sell", "Sell shares at a price, or at the last close", "sell AAPL 5 [price|market]"},
		{"status", "Live dashboard of positions and cash", "status"},
		{"update", "Value the book and write today's ledger rows", "update"},
		{"history", "Equity curve from the ledger", "history"},
		{"analytics", "Return, drawdown, volatility and Sharpe", "analytics"},
		{"price", "Latest close for a ticker", "price SPY"},
		{"trades", "Trade log", "trades"},
		{"reset", "Drop all positions, keep cash", "reset"},
		{"help", "This list", "help"},
	}
}

// HandleCommand runs one text command and returns the reply. A leading slash
// is accepted, so "/buy" and "buy" are the same command.
func (s *Session) HandleCommand(ctx context.Context, line string) string {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return ""
	}

	switch strings.ToLower(strings.TrimPrefix(parts[0], "/")) {
	case "setup":
		return s.handleSetupCommand(ctx, parts)
	case "buy":
		return s.handleTradeCommand(ctx, models.Buy, parts)
	case "sell":
		return s.handleTradeCommand(ctx, models.Sell, parts)
	case "status", "dashboard":
		d, err := s.DashboardSnapshot(ctx)
		if err != nil {
			return describeError(err)
		}
		return FormatDashboard(d)
	case "update":
		rows, err := s.RunDailyUpdate(ctx)
		if err != nil {
			return describeError(err)
		}
		return FormatRows(rows)
	case "history":
		points, err := s.History(ctx)
		if err != nil {
			return describeError(err)
		}
		return FormatHistory(points)
	case "analytics":
		r, err := s.Analytics(ctx)
		if err != nil {
			return describeError(err)
		}
		return FormatAnalytics(r)
	case "price":
		if len(parts) < 2 {
			return "Usage: price <ticker>"
		}
		q, err := s.CurrentPrice(ctx, parts[1])
		if err != nil {
			return describeError(err)
		}
		return fmt.Sprintf("%s: %s (close %s)", q.Ticker, money(q.Price), q.AsOf.Format(models.DateLayout))
	case "trades":
		entries, err := s.Trades(ctx)
		if err != nil {
			return describeError(err)
		}
		return FormatTrades(entries)
	case "reset":
		if len(parts) > 1 {
			return "reset does not accept parameters."
		}
		row, err := s.ResetPortfolio(ctx)
		if err != nil {
			return describeError(err)
		}
		return fmt.Sprintf("Portfolio reset. Cash kept: %s", nullMoney(row.CashBalance))
	case "help":
		return s.getHelp()
	default:
		return "Unknown command. Try help."
	}
}

func (s *Session) getHelp() string {
	var sb strings.Builder
	sb.WriteString("COMMANDS\n\n")
	for _, cmd := range s.commands {
		sb.WriteString(fmt.Sprintf("%-10s %s\n           %s\n", cmd.Name, cmd.Description, cmd.Example))
	}
	return sb.String()
}

func (s *Session) handleSetupCommand(ctx context.Context, parts []string) string {
	if len(parts) < 2 {
		return "Usage: setup <cash>"
	}
	cash, err := decimal.NewFromString(parts[1])
	if err != nil {
		return "Invalid cash amount."
	}
	if err := s.Setup(ctx, cash); err != nil {
		return describeError(err)
	}
	return fmt.Sprintf("Portfolio initialized with %s.", money(cash))
}

// handleTradeCommand parses: <buy|sell> <ticker> <shares> [price|market] [stop_loss]
func (s *Session) handleTradeCommand(ctx context.Context, action models.TradeAction, parts []string) string {
	if len(parts) < 3 {
		if action == models.Buy {
			return "Usage: buy <ticker> <shares> [price|market] [stop_loss]"
		}
		return "Usage: sell <ticker> <shares> [price|market]"
	}

	req := TradeRequest{
		Ticker: parts[1],
		Action: action,
		Reason: "MANUAL " + string(action),
	}

	shares, err := decimal.NewFromString(parts[2])
	if err != nil {
		return "Invalid share quantity."
	}
	req.Shares = shares

	if len(parts) >= 4 && !strings.EqualFold(parts[3], "market") {
		price, err := decimal.NewFromString(strings.TrimPrefix(parts[3], "$"))
		if err != nil {
			return "Invalid price."
		}
		req.Price = models.Some(price)
	}

	if len(parts) >= 5 {
		if action != models.Buy {
			return "Stop loss applies to buy only."
		}
		sl, err := decimal.NewFromString(parts[4])
		if err != nil {
			return "Invalid stop loss."
		}
		req.StopLoss = sl
	}

	res, err := s.Trade(ctx, req)
	if err != nil {
		return describeError(err)
	}

	e := res.Entry
	past := "Bought"
	if action == models.Sell {
		past = "Sold"
	}
	msg := fmt.Sprintf("%s %s %s @ %s. Cash: %s", past, e.Shares.String(), e.Ticker, money(e.Price), money(res.Cash))
	if action == models.Sell {
		msg += fmt.Sprintf(". Realized PnL: %s", money(e.PnL))
	}
	return msg
}

// describeError maps typed failures to user-facing text.
func describeError(err error) string {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return "Portfolio not initialized. Run setup <cash> first."
	case errors.Is(err, ErrAlreadyInitialized):
		return "Portfolio already initialized."
	case errors.Is(err, ErrInvalidCash):
		return "Initial cash must be positive."
	case errors.Is(err, trading.ErrInsufficientCash):
		return "Insufficient cash: " + err.Error()
	case errors.Is(err, book.ErrInsufficientShares):
		return "Insufficient shares: " + err.Error()
	case errors.Is(err, book.ErrNoPosition):
		return "No position: " + err.Error()
	case errors.Is(err, book.ErrInvalidQuantity), errors.Is(err, book.ErrInvalidPrice), errors.Is(err, book.ErrInvalidTicker):
		return "Invalid order: " + err.Error()
	case errors.Is(err, market.ErrPriceUnavailable):
		return "Price unavailable: " + err.Error()
	case errors.Is(err, analytics.ErrInsufficientData):
		return "Not enough history for analytics yet."
	}
	return "Error: " + err.Error()
}
