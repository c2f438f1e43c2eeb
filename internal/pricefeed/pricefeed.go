package pricefeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one daily price observation.
type PricePoint struct {
	Time  time.Time
	Price decimal.Decimal
}

// HistoryFetcher retrieves an ordered daily price series over a trailing window.
type HistoryFetcher interface {
	FetchDailyPrices(ctx context.Context, seriesID string, days int) ([]PricePoint, error)
}
