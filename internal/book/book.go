// Package book holds the in-memory set of open positions.
package book

import (
	"errors"
	"fmt"
	"sort"

	"paper_trading/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTicker      = errors.New("invalid ticker")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrInvalidPrice       = errors.New("invalid price")
	ErrNoPosition         = errors.New("no position")
	ErrInsufficientShares = errors.New("insufficient shares")
)

// Book maps a normalized ticker to its open position.
// A Book is not safe for concurrent mutation; the owning session serializes access.
type Book struct {
	positions map[string]models.Position
}

// New returns an empty book.
func New() *Book {
	return &Book{positions: make(map[string]models.Position)}
}

// FromPositions builds a book from previously persisted holdings.
// Later duplicates of a ticker replace earlier ones; empty holdings are skipped.
func FromPositions(positions []models.Position) *Book {
	b := New()
	for _, p := range positions {
		p.Ticker = models.NormalizeTicker(p.Ticker)
		if p.Ticker == "" || !p.Shares.IsPositive() {
			continue
		}
		p.CostBasis = p.Shares.Mul(p.BuyPrice)
		b.positions[p.Ticker] = p
	}
	return b
}

// Clone returns a deep copy; decimals are immutable values so copying the map is enough.
func (b *Book) Clone() *Book {
	c := New()
	for k, v := range b.positions {
		c.positions[k] = v
	}
	return c
}

// Len returns the number of open positions.
func (b *Book) Len() int {
	return len(b.positions)
}

// Get returns the position for ticker, if any.
func (b *Book) Get(ticker string) (models.Position, bool) {
	p, ok := b.positions[models.NormalizeTicker(ticker)]
	return p, ok
}

// Clear drops every position without selling it.
func (b *Book) Clear() {
	b.positions = make(map[string]models.Position)
}

// Snapshot returns the positions ordered by ticker.
func (b *Book) Snapshot() []models.Position {
	out := make([]models.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// ValidateBuy checks a buy without touching the book.
func (b *Book) ValidateBuy(ticker string, shares, price, stopLoss decimal.Decimal) error {
	if models.NormalizeTicker(ticker) == "" {
		return ErrInvalidTicker
	}
	if !shares.IsPositive() {
		return fmt.Errorf("%w: shares must be positive, got %s", ErrInvalidQuantity, shares)
	}
	if !price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidPrice, price)
	}
	if stopLoss.IsNegative() {
		return fmt.Errorf("%w: stop loss must not be negative, got %s", ErrInvalidPrice, stopLoss)
	}
	return nil
}

// UpsertBuy opens a position or adds to an existing one at weighted-average cost.
// The stop loss only ever ratchets up.
func (b *Book) UpsertBuy(ticker string, shares, price, stopLoss decimal.Decimal) (models.Position, error) {
	if err := b.ValidateBuy(ticker, shares, price, stopLoss); err != nil {
		return models.Position{}, err
	}
	ticker = models.NormalizeTicker(ticker)

	cost := shares.Mul(price)
	old, ok := b.positions[ticker]
	if !ok {
		p := models.Position{
			Ticker:    ticker,
			Shares:    shares,
			BuyPrice:  price,
			CostBasis: cost,
			StopLoss:  stopLoss,
		}
		b.positions[ticker] = p
		return p, nil
	}

	newShares := old.Shares.Add(shares)
	buyPrice := old.CostBasis.Add(cost).Div(newShares)
	// Cost basis always equals shares times buy price, as it does after a restore.
	p := models.Position{
		Ticker:    ticker,
		Shares:    newShares,
		BuyPrice:  buyPrice,
		CostBasis: newShares.Mul(buyPrice),
		StopLoss:  decimal.Max(old.StopLoss, stopLoss),
	}
	b.positions[ticker] = p
	return p, nil
}

// ValidateSell checks a sell without touching the book.
func (b *Book) ValidateSell(ticker string, shares, price decimal.Decimal) (models.Position, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return models.Position{}, ErrInvalidTicker
	}
	if !shares.IsPositive() {
		return models.Position{}, fmt.Errorf("%w: shares must be positive, got %s", ErrInvalidQuantity, shares)
	}
	if !price.IsPositive() {
		return models.Position{}, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidPrice, price)
	}
	cur, ok := b.positions[ticker]
	if !ok {
		return models.Position{}, fmt.Errorf("%w in %s", ErrNoPosition, ticker)
	}
	if shares.GreaterThan(cur.Shares) {
		return models.Position{}, fmt.Errorf("%w: have %s %s, trying to sell %s", ErrInsufficientShares, cur.Shares, ticker, shares)
	}
	return cur, nil
}

// ReduceSell removes shares from a position and returns the realized pnl.
// Selling the whole holding deletes the position. A partial sell keeps the
// average cost, so the remaining cost basis is remaining shares * buy price.
func (b *Book) ReduceSell(ticker string, shares, price decimal.Decimal) (decimal.Decimal, error) {
	cur, err := b.ValidateSell(ticker, shares, price)
	if err != nil {
		return decimal.Zero, err
	}

	pnl := price.Sub(cur.BuyPrice).Mul(shares)
	if shares.Equal(cur.Shares) {
		delete(b.positions, cur.Ticker)
		return pnl, nil
	}

	cur.Shares = cur.Shares.Sub(shares)
	cur.CostBasis = cur.Shares.Mul(cur.BuyPrice)
	b.positions[cur.Ticker] = cur
	return pnl, nil
}
