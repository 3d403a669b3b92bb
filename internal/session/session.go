// Package session is the request surface of one portfolio: it owns the
// position book and the cash balance and serializes every mutation.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paper_trading/internal/analytics"
	"paper_trading/internal/book"
	"paper_trading/internal/market"
	"paper_trading/internal/models"
	"paper_trading/internal/storage"
	"paper_trading/internal/trading"
	"paper_trading/internal/valuation"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	ErrNotInitialized     = errors.New("portfolio not initialized, run setup first")
	ErrAlreadyInitialized = errors.New("portfolio already initialized")
	ErrInvalidCash        = errors.New("initial cash must be positive")
)

// Deps are the collaborators of a Session.
type Deps struct {
	Ledger   storage.Ledger
	Trades   storage.TradeLog
	Gateway  *market.Gateway
	Calendar *market.Calendar
	Log      zerolog.Logger
}

type Session struct {
	ledger   storage.Ledger
	trades   storage.TradeLog
	gateway  *market.Gateway
	calendar *market.Calendar
	valuator *valuation.Valuator
	executor *trading.Executor
	log      zerolog.Logger

	mu          sync.RWMutex
	book        *book.Book
	cash        decimal.Decimal
	initialized bool
	commands    []CommandDoc
}

// New builds a session and restores its book and cash from the latest ledger date.
func New(ctx context.Context, deps Deps) (*Session, error) {
	s := &Session{
		ledger:   deps.Ledger,
		trades:   deps.Trades,
		gateway:  deps.Gateway,
		calendar: deps.Calendar,
		valuator: valuation.NewValuator(deps.Gateway, deps.Log),
		executor: trading.NewExecutor(deps.Log),
		log:      deps.Log.With().Str("component", "session").Logger(),
		book:     book.New(),
		commands: defaultCommands(),
	}
	if err := s.restore(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) restore(ctx context.Context) error {
	rows, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("restore portfolio: %w", err)
	}
	if len(rows) == 0 {
		s.log.Info().Msg("empty ledger, portfolio not initialized")
		return nil
	}

	latest := rows[len(rows)-1].Date
	var positions []models.Position
	cashFound := false
	// Walk backwards: the latest date's holdings, and the newest TOTAL cash.
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if r.Date.Equal(latest) {
			if p, ok := r.Position(); ok {
				positions = append([]models.Position{p}, positions...)
			}
		}
		if !cashFound && r.IsTotal() && r.CashBalance.Valid {
			s.cash = r.CashBalance.Decimal
			cashFound = true
			if !r.Date.Equal(latest) {
				s.log.Warn().Str("date", latest.Format(models.DateLayout)).
					Str("cash_from", r.Date.Format(models.DateLayout)).Msg("latest date has no TOTAL row")
			}
		}
		if cashFound && r.Date.Before(latest) {
			break
		}
	}

	s.book = book.FromPositions(positions)
	s.initialized = true
	s.log.Info().Str("date", latest.Format(models.DateLayout)).Int("positions", s.book.Len()).
		Str("cash", s.cash.StringFixed(2)).Msg("portfolio restored")
	return nil
}

// Initialized reports whether setup has been run.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Cash returns the current cash balance.
func (s *Session) Cash() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cash
}

// Positions returns the open positions ordered by ticker.
func (s *Session) Positions() []models.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book.Snapshot()
}

// Today is the current trading date.
func (s *Session) Today() time.Time {
	return s.calendar.CurrentTradingDate()
}

// Setup starts a new portfolio with initialCash on the current trading date.
func (s *Session) Setup(ctx context.Context, initialCash decimal.Decimal) error {
	if !initialCash.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidCash, initialCash)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return ErrAlreadyInitialized
	}
	history, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return err
	}
	if len(history) > 0 {
		return ErrAlreadyInitialized
	}

	date := s.Today()
	row := valuation.TotalRow(date, decimal.Zero, decimal.Zero, initialCash, models.ActionNone)
	if err := s.ledger.AppendOrReplaceDay(ctx, date, []models.LedgerRow{row}); err != nil {
		return err
	}

	s.book = book.New()
	s.cash = row.CashBalance.Decimal
	s.initialized = true
	s.log.Info().Str("cash", s.cash.StringFixed(2)).Str("date", date.Format(models.DateLayout)).Msg("portfolio initialized")
	return nil
}

// TradeRequest is an order from the caller. An invalid Price asks for the
// latest market close.
type TradeRequest struct {
	Ticker   string
	Action   models.TradeAction
	Shares   decimal.Decimal
	Price    decimal.NullDecimal
	StopLoss decimal.Decimal
	Reason   string
}

// TradeResult is returned after a committed trade.
type TradeResult struct {
	Entry    models.TradeLogEntry
	Cash     decimal.Decimal
	Position *models.Position
	Rows     []models.LedgerRow
}

// Trade executes req against a copy of the book, persists today's valuation
// and the trade log entry, then commits the copy. Any failure leaves the
// session unchanged.
func (s *Session) Trade(ctx context.Context, req TradeRequest) (TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return TradeResult{}, ErrNotInitialized
	}

	date := s.Today()
	ticker := models.NormalizeTicker(req.Ticker)
	if ticker == "" {
		return TradeResult{}, book.ErrInvalidTicker
	}

	if !req.Shares.IsPositive() {
		return TradeResult{}, fmt.Errorf("%w: shares must be positive, got %s", book.ErrInvalidQuantity, req.Shares)
	}

	price := req.Price.Decimal
	if !req.Price.Valid {
		p, err := s.gateway.Price(ctx, ticker, date)
		if err != nil {
			return TradeResult{}, fmt.Errorf("market price for %s: %w", ticker, err)
		}
		price = p.Round(2)
	}

	work := s.book.Clone()
	res, err := s.executor.Execute(trading.Intent{
		Ticker:   ticker,
		Action:   req.Action,
		Shares:   req.Shares,
		Price:    price,
		StopLoss: req.StopLoss,
		Reason:   req.Reason,
	}, work, s.cash, date)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Str("action", string(req.Action)).Msg("trade rejected")
		return TradeResult{}, err
	}

	rows := s.valuator.Valuate(ctx, work.Snapshot(), res.Cash, date)
	if err := s.persistTrade(ctx, date, rows, res.Entry); err != nil {
		return TradeResult{}, err
	}

	// Cash is kept at the precision the TOTAL row records so a restart restores the same value.
	s.book = work
	s.cash = rows[len(rows)-1].CashBalance.Decimal
	return TradeResult{Entry: res.Entry, Cash: s.cash, Position: res.Position, Rows: rows}, nil
}

// persistTrade writes the day then the trade log. If the log append fails the
// day is put back the way it was.
func (s *Session) persistTrade(ctx context.Context, date time.Time, rows []models.LedgerRow, entry models.TradeLogEntry) error {
	previous, err := s.dayRows(ctx, date)
	if err != nil {
		return err
	}
	if err := s.ledger.AppendOrReplaceDay(ctx, date, rows); err != nil {
		return err
	}
	if err := s.trades.Append(ctx, entry); err != nil {
		if rbErr := s.ledger.AppendOrReplaceDay(ctx, date, previous); rbErr != nil {
			s.log.Error().Err(rbErr).Str("date", date.Format(models.DateLayout)).Msg("ledger rollback failed")
		}
		return err
	}
	return nil
}

func (s *Session) dayRows(ctx context.Context, date time.Time) ([]models.LedgerRow, error) {
	all, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	date = models.DateOf(date)
	var out []models.LedgerRow
	for _, r := range all {
		if r.Date.Equal(date) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ResetPortfolio drops every position without selling it. Cash and the trade
// log are kept; today's ledger rows become a single RESET row.
func (s *Session) ResetPortfolio(ctx context.Context) (models.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return models.LedgerRow{}, ErrNotInitialized
	}

	date := s.Today()
	row := valuation.TotalRow(date, decimal.Zero, decimal.Zero, s.cash, models.ActionReset)
	if err := s.ledger.AppendOrReplaceDay(ctx, date, []models.LedgerRow{row}); err != nil {
		return models.LedgerRow{}, err
	}

	dropped := s.book.Len()
	s.book = book.New()
	s.log.Info().Int("dropped", dropped).Str("cash", s.cash.StringFixed(2)).Msg("portfolio reset")
	return row, nil
}

// RunDailyUpdate values the book at the current trading date and replaces that date in the ledger.
func (s *Session) RunDailyUpdate(ctx context.Context) ([]models.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return nil, ErrNotInitialized
	}

	date := s.Today()
	rows := s.valuator.Valuate(ctx, s.book.Snapshot(), s.cash, date)
	if err := s.ledger.AppendOrReplaceDay(ctx, date, rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// History returns the equity curve, one point per date.
func (s *Session) History(ctx context.Context) ([]models.TotalPoint, error) {
	return s.ledger.ReadTotals(ctx)
}

// Analytics computes performance metrics over the equity curve.
func (s *Session) Analytics(ctx context.Context) (analytics.Report, error) {
	points, err := s.ledger.ReadTotals(ctx)
	if err != nil {
		return analytics.Report{}, err
	}
	return analytics.Compute(points)
}

// CurrentPrice returns the latest close of ticker as of the current trading date.
func (s *Session) CurrentPrice(ctx context.Context, ticker string) (market.Quote, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return market.Quote{}, book.ErrInvalidTicker
	}
	q := s.gateway.LatestClose(ctx, ticker, s.Today())
	if !q.Available() {
		return q, q.Err
	}
	return q, nil
}

// Trades returns the trade log in append order.
func (s *Session) Trades(ctx context.Context) ([]models.TradeLogEntry, error) {
	return s.trades.ReadAll(ctx)
}
