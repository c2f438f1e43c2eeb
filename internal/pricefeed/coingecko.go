package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const marketChartPathFormat = "/coins/%s/market_chart"

// CoinGeckoOptions parameterise the CoinGecko history fetcher.
type CoinGeckoOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// CoinGecko fetches daily price history from the CoinGecko market chart API.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko history fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "pricefeed").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// FetchDailyPrices retrieves the trailing daily USD price series for a coin id.
func (c *CoinGecko) FetchDailyPrices(ctx context.Context, seriesID string, days int) ([]PricePoint, error) {
	if strings.TrimSpace(seriesID) == "" {
		return nil, errors.New("series id required")
	}
	if days < 1 {
		return nil, fmt.Errorf("days must be at least 1, got %d", days)
	}

	endpoint := c.baseURL + fmt.Sprintf(marketChartPathFormat, url.PathEscape(seriesID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	query := req.URL.Query()
	query.Set("vs_currency", "usd")
	query.Set("days", strconv.Itoa(days))
	query.Set("interval", "daily")
	if c.opts.APIKey != "" {
		query.Set("x_cg_pro_api_key", c.opts.APIKey)
	}
	req.URL.RawQuery = query.Encode()

	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var chart marketChartResponse
	if err := json.Unmarshal(payload, &chart); err != nil {
		return nil, fmt.Errorf("decode market chart: %w", err)
	}

	points := make([]PricePoint, 0, len(chart.Prices))
	for _, pair := range chart.Prices {
		if len(pair) != 2 {
			continue
		}
		ms, err := pair[0].Int64()
		if err != nil {
			return nil, fmt.Errorf("parse price timestamp: %w", err)
		}
		price, err := decimal.NewFromString(pair[1].String())
		if err != nil {
			return nil, fmt.Errorf("parse price value: %w", err)
		}
		points = append(points, PricePoint{
			Time:  time.UnixMilli(ms).UTC(),
			Price: price,
		})
	}

	c.logger.Debug().Str("series", seriesID).Int("points", len(points)).Msg("price history fetched")
	return points, nil
}

type marketChartResponse struct {
	Prices [][]json.Number `json:"prices"`
}

type errorResponse struct {
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
	Error string `json:"error"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Status.ErrorMessage != "" {
			return fmt.Errorf("coingecko api error (%d): %s", status, apiErr.Status.ErrorMessage)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("coingecko api error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("coingecko api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("coingecko api error (%d)", status)
}

var _ HistoryFetcher = (*CoinGecko)(nil)
