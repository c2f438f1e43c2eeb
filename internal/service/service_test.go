package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"lending-risk-engine/internal/alerting"
	"lending-risk-engine/internal/risk"
	"lending-risk-engine/internal/storage"
	"lending-risk-engine/internal/txbuilder"
)

type fakeScanner struct {
	report   risk.Report
	err      error
	scans    int
	computed storage.VolatilityRecord
}

func (f *fakeScanner) Scan(ctx context.Context) (risk.Report, error) {
	f.scans++
	return f.report, f.err
}

func (f *fakeScanner) ComputeAssetRate(ctx context.Context, asset storage.Asset) (storage.VolatilityRecord, error) {
	f.computed.Symbol = asset.Symbol
	return f.computed, nil
}

type fakeLocker struct {
	acquired bool
	err      error
	unlocked bool
}

func (f *fakeLocker) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	if !f.acquired {
		return nil, false, nil
	}
	return func() { f.unlocked = true }, true, nil
}

type fakeNotifier struct {
	notes []alerting.Notification
	err   error
}

func (f *fakeNotifier) Notify(ctx context.Context, note alerting.Notification) error {
	f.notes = append(f.notes, note)
	return f.err
}

type fakeAssets struct {
	assets map[string]storage.Asset
}

func (f *fakeAssets) ListActiveAssets(ctx context.Context) ([]storage.Asset, error) { return nil, nil }

func (f *fakeAssets) GetAssetBySymbol(ctx context.Context, symbol string) (storage.Asset, error) {
	asset, ok := f.assets[symbol]
	if !ok {
		return storage.Asset{}, storage.ErrAssetNotFound
	}
	return asset, nil
}

type fakeReceipts struct {
	receipt *types.Receipt
	err     error
}

func (f *fakeReceipts) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return f.receipt, f.err
}

type fakeTxStore struct {
	inserted []storage.TransactionRecord
	err      error
}

func (f *fakeTxStore) InsertTransaction(ctx context.Context, record storage.TransactionRecord) (storage.TransactionRecord, error) {
	if f.err != nil {
		return storage.TransactionRecord{}, f.err
	}
	record.ID = int64(len(f.inserted) + 1)
	record.CreatedAt = time.Now()
	f.inserted = append(f.inserted, record)
	return record, nil
}

type fakeBuilder struct{}

func (f *fakeBuilder) Build(ctx context.Context, intent txbuilder.Intent) (txbuilder.Payload, error) {
	return txbuilder.Payload{}, nil
}

func newEngine(scanner *fakeScanner, locker storage.AdvisoryLocker, notifier alerting.Notifier, assets storage.AssetStore, receipts ReceiptSource, txs storage.TransactionStore) *Engine {
	return New(
		Options{AdvisoryLockKey: 42, LiquidationThreshold: 1.2, AlertChannels: []string{"telegram"}},
		scanner, &fakeBuilder{}, receipts, assets, txs, locker, notifier, zerolog.Nop(),
	)
}

func TestProcessCycleSkipsWhenLockHeld(t *testing.T) {
	scanner := &fakeScanner{}
	locker := &fakeLocker{acquired: false}

	engine := newEngine(scanner, locker, nil, nil, nil, nil)
	if err := engine.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("skipped cycle should not error: %v", err)
	}
	if scanner.scans != 0 {
		t.Fatal("scan must not run without the lock")
	}
}

func TestProcessCycleNotifiesCandidates(t *testing.T) {
	scanner := &fakeScanner{
		report: risk.Report{
			UpdatedCount: 2,
			Candidates: []risk.LiquidationCandidate{
				{PositionID: 1, UserAddress: "0xa1", Symbol: "ETH", HealthFactor: 0.9},
			},
		},
	}
	locker := &fakeLocker{acquired: true}
	notifier := &fakeNotifier{}

	engine := newEngine(scanner, locker, notifier, nil, nil, nil)
	if err := engine.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}
	if scanner.scans != 1 {
		t.Fatalf("expected one scan, got %d", scanner.scans)
	}
	if !locker.unlocked {
		t.Fatal("lock must be released after the cycle")
	}
	if len(notifier.notes) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.notes))
	}
	if notifier.notes[0].Threshold != 1.2 {
		t.Fatalf("notification should carry the threshold, got %v", notifier.notes[0].Threshold)
	}
}

func TestProcessCycleNoCandidatesNoAlert(t *testing.T) {
	scanner := &fakeScanner{report: risk.Report{UpdatedCount: 3}}
	notifier := &fakeNotifier{}

	engine := newEngine(scanner, &fakeLocker{acquired: true}, notifier, nil, nil, nil)
	if err := engine.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("cycle should succeed: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatal("no candidates should mean no alert")
	}
}

func TestProcessCycleAlertFailureDoesNotFailCycle(t *testing.T) {
	scanner := &fakeScanner{
		report: risk.Report{Candidates: []risk.LiquidationCandidate{{PositionID: 1}}},
	}
	notifier := &fakeNotifier{err: errors.New("telegram down")}

	engine := newEngine(scanner, &fakeLocker{acquired: true}, notifier, nil, nil, nil)
	if err := engine.ProcessCycle(context.Background(), time.Now()); err != nil {
		t.Fatalf("alert failure must not fail the cycle: %v", err)
	}
}

func TestComputeVolatilityAndRate(t *testing.T) {
	scanner := &fakeScanner{computed: storage.VolatilityRecord{EffectiveRateBps: 700}}
	assets := &fakeAssets{assets: map[string]storage.Asset{
		"ETH": {ID: 1, Symbol: "ETH", SeriesID: "ethereum"},
	}}

	engine := newEngine(scanner, nil, nil, assets, nil, nil)
	record, err := engine.ComputeVolatilityAndRate(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("compute should succeed: %v", err)
	}
	if record.Symbol != "ETH" || record.EffectiveRateBps != 700 {
		t.Fatalf("unexpected record %+v", record)
	}

	if _, err := engine.ComputeVolatilityAndRate(context.Background(), "DOGE"); !errors.Is(err, storage.ErrAssetNotFound) {
		t.Fatalf("unknown symbol should surface ErrAssetNotFound, got %v", err)
	}
}

func TestRecordTransaction(t *testing.T) {
	assets := &fakeAssets{assets: map[string]storage.Asset{
		"ETH": {ID: 7, Symbol: "ETH"},
	}}
	receipts := &fakeReceipts{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(123456),
	}}
	txs := &fakeTxStore{}

	engine := newEngine(&fakeScanner{}, nil, nil, assets, receipts, txs)
	record, err := engine.RecordTransaction(context.Background(), "0xa1", "ETH", "deposit", "1.5", "0xhash")
	if err != nil {
		t.Fatalf("record should succeed: %v", err)
	}
	if record.AssetID != 7 || record.BlockNumber != 123456 {
		t.Fatalf("unexpected record %+v", record)
	}
	if len(txs.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(txs.inserted))
	}
}

func TestRecordTransactionRejectsFailedReceipt(t *testing.T) {
	assets := &fakeAssets{assets: map[string]storage.Asset{"ETH": {ID: 7, Symbol: "ETH"}}}
	receipts := &fakeReceipts{receipt: &types.Receipt{
		Status:      types.ReceiptStatusFailed,
		BlockNumber: big.NewInt(1),
	}}
	txs := &fakeTxStore{}

	engine := newEngine(&fakeScanner{}, nil, nil, assets, receipts, txs)
	if _, err := engine.RecordTransaction(context.Background(), "0xa1", "ETH", "deposit", "1", "0xhash"); err == nil {
		t.Fatal("reverted transaction must not be recorded")
	}
	if len(txs.inserted) != 0 {
		t.Fatal("no insert should happen for a failed receipt")
	}
}

func TestRecordTransactionRejectsBadAmount(t *testing.T) {
	engine := newEngine(&fakeScanner{}, nil, nil, &fakeAssets{}, &fakeReceipts{}, &fakeTxStore{})
	if _, err := engine.RecordTransaction(context.Background(), "0xa1", "ETH", "deposit", "abc", "0xhash"); err == nil {
		t.Fatal("unparseable amount must be rejected")
	}
}
