package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"lending-risk-engine/internal/pricefeed"
	"lending-risk-engine/internal/storage"
)

// LiquidationCandidate is a position whose health factor has fallen below
// the warning threshold. Recomputed fresh on every scan, never persisted.
type LiquidationCandidate struct {
	PositionID   int64
	UserAddress  string
	Symbol       string
	HealthFactor float64
}

// Report summarises one risk scan.
type Report struct {
	UpdatedCount int
	Skipped      []string
	Candidates   []LiquidationCandidate
}

// ScannerOptions tune scan behaviour.
type ScannerOptions struct {
	PeriodDays           int
	FetchDelay           time.Duration
	LiquidationThreshold float64
}

// Scanner orchestrates the volatility/rate update across all active assets
// and health evaluation across all open positions.
type Scanner struct {
	assets    storage.AssetStore
	positions storage.PositionStore
	prices    pricefeed.HistoryFetcher
	sink      storage.VolatilityStore
	limiter   *rate.Limiter
	logger    zerolog.Logger

	periodDays int
	threshold  float64
	now        func() time.Time
}

// NewScanner constructs a scanner.
func NewScanner(opts ScannerOptions, assets storage.AssetStore, positions storage.PositionStore, prices pricefeed.HistoryFetcher, sink storage.VolatilityStore, logger zerolog.Logger) *Scanner {
	periodDays := opts.PeriodDays
	if periodDays <= 0 {
		periodDays = DefaultPeriodDays
	}
	threshold := opts.LiquidationThreshold
	if threshold <= 0 {
		threshold = DefaultLiquidationThreshold
	}

	var limiter *rate.Limiter
	if opts.FetchDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.FetchDelay), 1)
	}

	return &Scanner{
		assets:     assets,
		positions:  positions,
		prices:     prices,
		sink:       sink,
		limiter:    limiter,
		logger:     logger.With().Str("component", "risk_scanner").Logger(),
		periodDays: periodDays,
		threshold:  threshold,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ComputeAssetRate fetches the asset's price history and derives one fresh
// VolatilityRecord. The record is returned, not persisted. The fetch honours
// the scanner's rate limit.
func (s *Scanner) ComputeAssetRate(ctx context.Context, asset storage.Asset) (storage.VolatilityRecord, error) {
	if asset.SeriesID == "" {
		return storage.VolatilityRecord{}, fmt.Errorf("asset %s has no price series configured", asset.Symbol)
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return storage.VolatilityRecord{}, err
		}
	}

	series, err := s.prices.FetchDailyPrices(ctx, asset.SeriesID, s.periodDays)
	if err != nil {
		return storage.VolatilityRecord{}, fmt.Errorf("fetch price history for %s: %w", asset.Symbol, err)
	}

	// A missing or short series degrades to zero volatility.
	volatility := Volatility(series)
	effective := EffectiveRateBps(asset.BaseRateBps, volatility, asset.VolatilityMultiplier)

	return storage.VolatilityRecord{
		AssetID:          asset.ID,
		Symbol:           asset.Symbol,
		Volatility:       volatility,
		PeriodDays:       s.periodDays,
		EffectiveRateBps: effective,
		Timestamp:        s.now(),
	}, nil
}

// Scan runs one full risk cycle: update volatility/rate records for every
// active asset, commit them as one batch, then evaluate all open positions.
// One asset's failure never aborts the batch; the asset is skipped with a
// warning and the scan continues.
func (s *Scanner) Scan(ctx context.Context) (Report, error) {
	assets, err := s.assets.ListActiveAssets(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("list active assets: %w", err)
	}

	records := make([]storage.VolatilityRecord, 0, len(assets))
	var skipped []string
	for _, asset := range assets {
		select {
		case <-ctx.Done():
			return Report{}, ctx.Err()
		default:
		}

		record, err := s.ComputeAssetRate(ctx, asset)
		if err != nil {
			if ctx.Err() != nil {
				return Report{}, ctx.Err()
			}
			s.logger.Warn().Err(err).Str("symbol", asset.Symbol).Msg("skipping asset in scan")
			skipped = append(skipped, asset.Symbol)
			continue
		}

		s.logger.Info().
			Str("symbol", asset.Symbol).
			Float64("volatility", record.Volatility).
			Int64("effective_rate_bps", record.EffectiveRateBps).
			Msg("asset rate updated")
		records = append(records, record)
	}

	if len(records) > 0 && s.sink != nil {
		if err := s.sink.InsertVolatilityBatch(ctx, records); err != nil {
			return Report{}, fmt.Errorf("persist volatility batch: %w", err)
		}
	}

	candidates, err := s.evaluatePositions(ctx)
	if err != nil {
		return Report{}, err
	}

	return Report{
		UpdatedCount: len(records),
		Skipped:      skipped,
		Candidates:   candidates,
	}, nil
}

func (s *Scanner) evaluatePositions(ctx context.Context) ([]LiquidationCandidate, error) {
	if s.positions == nil {
		return nil, nil
	}

	positions, err := s.positions.ListOpenPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open positions: %w", err)
	}

	candidates := make([]LiquidationCandidate, 0)
	for _, pos := range positions {
		health := HealthFactor(pos.Deposited, pos.Borrowed, pos.CollateralFactorBps)
		if health >= s.threshold {
			continue
		}
		s.logger.Warn().
			Str("user", pos.UserAddress).
			Str("symbol", pos.Symbol).
			Int64("position_id", pos.PositionID).
			Float64("health_factor", health).
			Msg("position nearing liquidation threshold")
		candidates = append(candidates, LiquidationCandidate{
			PositionID:   pos.PositionID,
			UserAddress:  pos.UserAddress,
			Symbol:       pos.Symbol,
			HealthFactor: health,
		})
	}
	return candidates, nil
}
