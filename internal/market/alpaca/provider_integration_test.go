//go:build integration

package alpaca

import (
	"context"
	"os"
	"testing"
	"time"

	"paper_trading/internal/market"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProvider(t *testing.T) *Provider {
	key := os.Getenv("TEST_APCA_API_KEY_ID")
	secret := os.Getenv("TEST_APCA_API_SECRET_KEY")

	if key == "" || secret == "" {
		t.Skip("Skipping integration test: TEST_APCA credentials not set")
	}

	return NewProvider(Options{
		APIKey:    key,
		APISecret: secret,
		BaseURL:   os.Getenv("TEST_APCA_DATA_URL"),
		Feed:      "iex",
	})
}

func TestIntegration_GetBars(t *testing.T) {
	p := testProvider(t)

	end := time.Now().UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -10)
	bars, err := p.GetBars("AAPL", start, end)
	require.NoError(t, err)
	require.NotEmpty(t, bars, "expected at least one session in a 10 day window")

	for _, b := range bars {
		assert.True(t, b.Close.IsPositive(), "close at %s", b.Time)
		assert.False(t, b.Time.Before(start.Truncate(24*time.Hour)))
	}
}

func TestIntegration_GatewayLatestClose(t *testing.T) {
	p := testProvider(t)
	g := market.NewGateway(p, market.GatewayOptions{Timeout: 20 * time.Second}, zerolog.Nop())

	// A week back, rolled to a weekday, has settled bars.
	asOf := market.TradingDate(time.Now().UTC().AddDate(0, 0, -7))
	q := g.LatestClose(context.Background(), "SPY", asOf)
	require.True(t, q.Available(), "err: %v", q.Err)
	assert.True(t, q.Price.IsPositive())

	q = g.LatestClose(context.Background(), "NOTATICKERXYZ", asOf)
	assert.False(t, q.Available())
}
