package alpaca

import (
	"fmt"
	"strings"
	"time"

	"paper_trading/internal/market"
	"paper_trading/internal/models"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
)

// Options configures the market-data client. Empty BaseURL keeps the SDK default.
type Options struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Feed      string // "iex" (free plans) or "sip"
}

// Provider implements market.MarketProvider with Alpaca daily bars.
type Provider struct {
	mdClient *marketdata.Client
	feed     marketdata.Feed
}

// Ensure Provider implements the interface
var _ market.MarketProvider = (*Provider)(nil)

// NewProvider returns a new Alpaca provider.
func NewProvider(opts Options) *Provider {
	clientOpts := marketdata.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.BaseURL != "" {
		clientOpts.BaseURL = opts.BaseURL
	}

	feed := marketdata.IEX
	if strings.EqualFold(opts.Feed, "sip") {
		feed = marketdata.SIP
	}

	return &Provider{
		mdClient: marketdata.NewClient(clientOpts),
		feed:     feed,
	}
}

// GetBars returns daily bars for ticker in [start, end].
func (p *Provider) GetBars(ticker string, start, end time.Time) ([]models.Bar, error) {
	bars, err := p.mdClient.GetBars(ticker, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      start,
		End:        end,
		Feed:       p.feed,
		Adjustment: marketdata.Split,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca bars %s: %w", ticker, err)
	}

	result := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		result = append(result, models.Bar{
			Time:   b.Timestamp,
			Open:   decimal.NewFromFloat(b.Open),
			High:   decimal.NewFromFloat(b.High),
			Low:    decimal.NewFromFloat(b.Low),
			Close:  decimal.NewFromFloat(b.Close),
			Volume: int64(b.Volume),
		})
	}
	return result, nil
}
