package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar represents one daily OHLC candle returned by a market data provider.
type Bar struct {
	Time   time.Time
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume int64
}
