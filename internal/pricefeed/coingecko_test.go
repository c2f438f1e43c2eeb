package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestFetchDailyPricesMissingSeries(t *testing.T) {
	c := NewCoinGecko(CoinGeckoOptions{}, noopLogger())
	if _, err := c.FetchDailyPrices(context.Background(), "", 30); err == nil {
		t.Fatal("expected error for empty series id")
	}
	if _, err := c.FetchDailyPrices(context.Background(), "ethereum", 0); err == nil {
		t.Fatal("expected error for zero days")
	}
}

func TestFetchDailyPricesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": map[string]any{"error_code": 429, "error_message": "rate limited"},
		})
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := c.FetchDailyPrices(context.Background(), "ethereum", 30); err == nil {
		t.Fatal("expected error for HTTP 429")
	}
}

func TestFetchDailyPricesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/ethereum/market_chart" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("days"); got != "30" {
			t.Fatalf("expected days=30, got %s", got)
		}
		if got := r.URL.Query().Get("interval"); got != "daily" {
			t.Fatalf("expected interval=daily, got %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"prices": [][2]float64{
				{1700000000000, 100.5},
				{1700086400000, 101.25},
			},
		})
	}))
	defer srv.Close()

	c := NewCoinGecko(CoinGeckoOptions{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	points, err := c.FetchDailyPrices(context.Background(), "ethereum", 30)
	if err != nil {
		t.Fatalf("fetch should succeed: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].Price.String() != "100.5" {
		t.Fatalf("expected first price 100.5, got %s", points[0].Price.String())
	}
	if !points[0].Time.Before(points[1].Time) {
		t.Fatal("points should be in ascending time order")
	}
	if points[0].Time != time.UnixMilli(1700000000000).UTC() {
		t.Fatalf("unexpected first timestamp %s", points[0].Time)
	}
}
