package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lending-risk-engine/internal/alerting"
	"lending-risk-engine/internal/risk"
	"lending-risk-engine/internal/storage"
	"lending-risk-engine/internal/txbuilder"
)

// RiskScanner is the scan surface the engine drives each cycle.
type RiskScanner interface {
	Scan(ctx context.Context) (risk.Report, error)
	ComputeAssetRate(ctx context.Context, asset storage.Asset) (storage.VolatilityRecord, error)
}

// ReceiptSource fetches transaction receipts from the chain.
type ReceiptSource interface {
	GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PayloadBuilder prepares unsigned transaction payloads.
type PayloadBuilder interface {
	Build(ctx context.Context, intent txbuilder.Intent) (txbuilder.Payload, error)
}

// Options tune engine behaviour.
type Options struct {
	AdvisoryLockKey      int64
	LiquidationThreshold float64
	AlertChannels        []string
}

// Engine is the composition facade: it runs scan cycles under the advisory
// lock, routes liquidation alerts, and serves the transaction operations.
type Engine struct {
	opts     Options
	scanner  RiskScanner
	builder  PayloadBuilder
	receipts ReceiptSource
	assets   storage.AssetStore
	txs      storage.TransactionStore
	locker   storage.AdvisoryLocker
	notifier alerting.Notifier
	logger   zerolog.Logger
}

// New wires an Engine. notifier and locker may be nil; the corresponding
// behaviour is skipped.
func New(opts Options, scanner RiskScanner, builder PayloadBuilder, receipts ReceiptSource, assets storage.AssetStore, txs storage.TransactionStore, locker storage.AdvisoryLocker, notifier alerting.Notifier, logger zerolog.Logger) *Engine {
	if opts.LiquidationThreshold <= 0 {
		opts.LiquidationThreshold = risk.DefaultLiquidationThreshold
	}
	return &Engine{
		opts:     opts,
		scanner:  scanner,
		builder:  builder,
		receipts: receipts,
		assets:   assets,
		txs:      txs,
		locker:   locker,
		notifier: notifier,
		logger:   logger.With().Str("component", "engine").Logger(),
	}
}

// ProcessCycle runs one scan cycle. When a locker is configured, the cycle is
// guarded by a postgres advisory lock so concurrent replicas never double-scan;
// a held lock means another replica owns the cycle and we skip quietly.
func (e *Engine) ProcessCycle(ctx context.Context, cycle time.Time) error {
	if e.locker != nil {
		unlock, acquired, err := e.locker.TryAdvisoryLock(ctx, e.opts.AdvisoryLockKey)
		if err != nil {
			return fmt.Errorf("acquire scan lock: %w", err)
		}
		if !acquired {
			e.logger.Info().Time("cycle", cycle).Msg("scan lock held elsewhere, skipping cycle")
			return nil
		}
		defer unlock()
	}

	report, err := e.scanner.Scan(ctx)
	if err != nil {
		return err
	}

	e.logger.Info().
		Time("cycle", cycle).
		Int("updated", report.UpdatedCount).
		Int("skipped", len(report.Skipped)).
		Int("candidates", len(report.Candidates)).
		Msg("scan cycle complete")

	if e.notifier != nil && len(report.Candidates) > 0 {
		note := alerting.Notification{
			Cycle:        cycle,
			UpdatedCount: report.UpdatedCount,
			Threshold:    e.opts.LiquidationThreshold,
			Candidates:   report.Candidates,
			Channels:     e.opts.AlertChannels,
		}
		if err := e.notifier.Notify(ctx, note); err != nil {
			// Alert delivery failure must not fail the cycle; rates are
			// already committed.
			e.logger.Error().Err(err).Msg("liquidation alert delivery failed")
		}
	}
	return nil
}

// ScanRisk runs one scan outside the scheduler, without the advisory lock.
func (e *Engine) ScanRisk(ctx context.Context) (risk.Report, error) {
	return e.scanner.Scan(ctx)
}

// ComputeVolatilityAndRate derives a fresh volatility record for one symbol
// without persisting it.
func (e *Engine) ComputeVolatilityAndRate(ctx context.Context, symbol string) (storage.VolatilityRecord, error) {
	asset, err := e.assets.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return storage.VolatilityRecord{}, err
	}
	return e.scanner.ComputeAssetRate(ctx, asset)
}

// EvaluateHealth returns the health factor of a position snapshot.
func (e *Engine) EvaluateHealth(deposited, borrowed decimal.Decimal, collateralFactorBps int64) float64 {
	return risk.HealthFactor(deposited, borrowed, collateralFactorBps)
}

// BuildTransaction validates the intent and returns an unsigned payload.
func (e *Engine) BuildTransaction(ctx context.Context, intent txbuilder.Intent) (txbuilder.Payload, error) {
	return e.builder.Build(ctx, intent)
}

// RecordTransaction verifies an externally signed transaction on-chain and
// persists it. Only receipts with a success status are recorded.
func (e *Engine) RecordTransaction(ctx context.Context, userAddress, symbol, kind, amount, txHash string) (storage.TransactionRecord, error) {
	parsed, err := decimal.NewFromString(amount)
	if err != nil {
		return storage.TransactionRecord{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}

	asset, err := e.assets.GetAssetBySymbol(ctx, symbol)
	if err != nil {
		return storage.TransactionRecord{}, err
	}

	receipt, err := e.receipts.GetTransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return storage.TransactionRecord{}, fmt.Errorf("fetch receipt for %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return storage.TransactionRecord{}, fmt.Errorf("transaction %s was not successful (status %d)", txHash, receipt.Status)
	}

	record := storage.TransactionRecord{
		UserAddress: userAddress,
		AssetID:     asset.ID,
		Symbol:      asset.Symbol,
		Kind:        kind,
		Amount:      parsed,
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Int64(),
	}

	stored, err := e.txs.InsertTransaction(ctx, record)
	if err != nil {
		return storage.TransactionRecord{}, err
	}

	e.logger.Info().
		Str("user", userAddress).
		Str("symbol", symbol).
		Str("kind", kind).
		Str("tx_hash", txHash).
		Int64("block", stored.BlockNumber).
		Msg("transaction recorded")
	return stored, nil
}
