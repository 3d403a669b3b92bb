package market

import (
	"errors"
	"time"

	"paper_trading/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrPriceUnavailable means no usable close exists for the requested window.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrProvider wraps a failure reported by the market-data provider.
	ErrProvider = errors.New("market data provider error")
)

// MarketProvider is the external price source.
// Implementations return daily bars for ticker between start and end, in any order.
// Swapping Alpaca for Yahoo, or for a fake in tests, does not touch the callers.
type MarketProvider interface {
	GetBars(ticker string, start, end time.Time) ([]models.Bar, error)
}

// Quote is the outcome of a close lookup. A zero Price with a non-nil Err
// means the ticker is unavailable for that date; this is a normal result.
type Quote struct {
	Ticker string
	Price  decimal.Decimal
	AsOf   time.Time // date of the bar the price came from
	Err    error
}

// Available reports whether the lookup produced a price.
func (q Quote) Available() bool {
	return q.Err == nil
}
