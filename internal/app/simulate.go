package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"lending-risk-engine/internal/pricefeed"
	"lending-risk-engine/internal/risk"
)

// Simulate computes volatility and the effective rate from an offline CSV
// price series. Useful for checking rate policy changes without touching the
// price API or the database.
func (a *App) Simulate(ctx context.Context, opts SimulateOptions) error {
	if opts.PricesCSV == "" {
		return errors.New("--prices is required")
	}

	series, err := readPriceSeries(opts.PricesCSV)
	if err != nil {
		return err
	}

	volatility := risk.Volatility(series)
	effective := risk.EffectiveRateBps(opts.BaseRateBps, volatility, opts.Multiplier)

	fmt.Fprintf(os.Stdout, "points: %d\n", len(series))
	fmt.Fprintf(os.Stdout, "volatility: %.6f\n", volatility)
	fmt.Fprintf(os.Stdout, "effective rate: %d bps\n", effective)
	return nil
}

// readPriceSeries parses a two-column CSV: RFC3339 timestamp, price. A header
// row is skipped when the first timestamp does not parse.
func readPriceSeries(path string) ([]pricefeed.PricePoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 2

	series := make([]pricefeed.PricePoint, 0)
	first := true
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read price csv: %w", err)
		}

		ts, tsErr := time.Parse(time.RFC3339, row[0])
		if tsErr != nil {
			if first {
				first = false
				continue
			}
			return nil, fmt.Errorf("parse timestamp %q: %w", row[0], tsErr)
		}
		first = false

		price, priceErr := decimal.NewFromString(row[1])
		if priceErr != nil {
			return nil, fmt.Errorf("parse price %q: %w", row[1], priceErr)
		}

		series = append(series, pricefeed.PricePoint{Time: ts, Price: price})
	}

	if len(series) == 0 {
		return nil, errors.New("price csv contains no rows")
	}
	return series, nil
}
