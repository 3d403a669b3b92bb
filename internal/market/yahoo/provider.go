// Package yahoo serves daily bars from Yahoo Finance. It needs no credentials.
package yahoo

import (
	"fmt"
	"time"

	"paper_trading/internal/market"
	"paper_trading/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	yfmodels "github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// Provider implements market.MarketProvider on top of go-yfinance.
type Provider struct {
	log zerolog.Logger
	now func() time.Time
}

var _ market.MarketProvider = (*Provider)(nil)

func NewProvider(log zerolog.Logger) *Provider {
	return &Provider{
		log: log.With().Str("provider", "yahoo").Logger(),
		now: time.Now,
	}
}

// GetBars fetches enough history to cover start and keeps the bars dated in [start, end].
// The history endpoint works in periods, not date ranges, so the window is
// applied client side.
func (p *Provider) GetBars(symbol string, start, end time.Time) ([]models.Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker: %w", err)
	}
	defer t.Close()

	params := yfmodels.HistoryParams{
		Period:     periodFor(p.now().Sub(start)),
		Interval:   "1d",
		AutoAdjust: true,
	}

	bars, err := t.History(params)
	if err != nil {
		return nil, fmt.Errorf("failed to get historical prices: %w", err)
	}

	from := models.DateOf(start)
	to := models.DateOf(end)
	result := make([]models.Bar, 0, len(bars))
	for _, bar := range bars {
		day := models.DateOf(bar.Date)
		if day.Before(from) || day.After(to) {
			continue
		}
		result = append(result, models.Bar{
			Time:   bar.Date,
			Open:   decimal.NewFromFloat(bar.Open),
			High:   decimal.NewFromFloat(bar.High),
			Low:    decimal.NewFromFloat(bar.Low),
			Close:  decimal.NewFromFloat(bar.Close),
			Volume: int64(bar.Volume),
		})
	}

	p.log.Debug().Str("symbol", symbol).Int("fetched", len(bars)).Int("kept", len(result)).Msg("history")
	return result, nil
}

// periodFor picks the smallest Yahoo period covering back.
func periodFor(back time.Duration) string {
	days := int(back.Hours()/24) + 1
	switch {
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 365:
		return "1y"
	case days <= 5*365:
		return "5y"
	}
	return "max"
}
