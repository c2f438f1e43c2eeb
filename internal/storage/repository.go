package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrAssetNotFound indicates the symbol has no active asset row.
	ErrAssetNotFound = errors.New("storage: asset not found")
)

const (
	listActiveAssetsSQL = `SELECT
        id, symbol, name, token_address, decimals,
        base_interest_rate, volatility_multiplier, collateral_factor,
        is_active, COALESCE(coingecko_id, ''), created_at, updated_at
    FROM assets
    WHERE is_active
    ORDER BY symbol;`

	getAssetBySymbolSQL = `SELECT
        id, symbol, name, token_address, decimals,
        base_interest_rate, volatility_multiplier, collateral_factor,
        is_active, COALESCE(coingecko_id, ''), created_at, updated_at
    FROM assets
    WHERE symbol = $1 AND is_active;`

	listOpenPositionsSQL = `SELECT
        p.id, p.user_address, a.symbol,
        p.deposited_amount, p.borrowed_amount,
        a.collateral_factor
    FROM positions p
    JOIN assets a ON a.id = p.asset_id
    WHERE p.borrowed_amount > 0 AND a.is_active
    ORDER BY p.id;`

	insertVolatilityRecordSQL = `INSERT INTO volatility_records (
        asset_id, volatility, period_days, effective_interest_rate, ts
    ) VALUES ($1,$2,$3,$4,$5);`

	listVolatilityBetweenSQL = `SELECT
        v.id, v.asset_id, a.symbol, v.volatility, v.period_days,
        v.effective_interest_rate, v.ts
    FROM volatility_records v
    JOIN assets a ON a.id = v.asset_id
    WHERE a.symbol = $1
      AND v.ts >= $2
      AND v.ts < $3
    ORDER BY v.ts;`

	listRecentVolatilitySQL = `SELECT
        v.id, v.asset_id, a.symbol, v.volatility, v.period_days,
        v.effective_interest_rate, v.ts
    FROM volatility_records v
    JOIN assets a ON a.id = v.asset_id
    WHERE a.symbol = $1
    ORDER BY v.ts DESC
    LIMIT $2;`

	insertTransactionSQL = `INSERT INTO transactions (
        user_address, asset_id, tx_type, amount, tx_hash, block_number
    ) VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING id, created_at;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// AssetStore defines read access to the asset catalogue.
type AssetStore interface {
	ListActiveAssets(ctx context.Context) ([]Asset, error)
	GetAssetBySymbol(ctx context.Context, symbol string) (Asset, error)
}

// PositionStore defines read access to the cached position table.
type PositionStore interface {
	ListOpenPositions(ctx context.Context) ([]OpenPosition, error)
}

// VolatilityStore defines volatility record persistence. Batches commit
// atomically: a failed insert rolls back every record from the scan.
type VolatilityStore interface {
	InsertVolatilityBatch(ctx context.Context, records []VolatilityRecord) error
	ListVolatilityBetween(ctx context.Context, symbol string, from, to time.Time) ([]VolatilityRecord, error)
	ListRecentVolatility(ctx context.Context, symbol string, limit int) ([]VolatilityRecord, error)
}

// TransactionStore defines confirmed-transaction persistence.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, record TransactionRecord) (TransactionRecord, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to assets, positions, and volatility history.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := conn.Exec(ctxUnlock, advisoryUnlockSQL, key); err != nil {
			// unlock best effort; log omitted in storage package
		}
		conn.Release()
	}
	return unlock, true, nil
}

// ListActiveAssets returns all active assets ordered by symbol.
func (s *Store) ListActiveAssets(ctx context.Context) ([]Asset, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listActiveAssetsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list active assets: %w", queryErr)
	}
	defer rows.Close()

	assets := make([]Asset, 0)
	for rows.Next() {
		asset, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		assets = append(assets, asset)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return assets, nil
}

// GetAssetBySymbol returns the active asset with the given symbol.
func (s *Store) GetAssetBySymbol(ctx context.Context, symbol string) (Asset, error) {
	pool, err := s.getPool()
	if err != nil {
		return Asset{}, err
	}

	rows, queryErr := pool.Query(ctx, getAssetBySymbolSQL, symbol)
	if queryErr != nil {
		return Asset{}, fmt.Errorf("get asset by symbol: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Asset{}, rows.Err()
		}
		return Asset{}, ErrAssetNotFound
	}
	return scanAsset(rows)
}

// ListOpenPositions lists cached positions with outstanding debt.
func (s *Store) ListOpenPositions(ctx context.Context) ([]OpenPosition, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listOpenPositionsSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list open positions: %w", queryErr)
	}
	defer rows.Close()

	positions := make([]OpenPosition, 0)
	for rows.Next() {
		var (
			pos          OpenPosition
			depositedStr string
			borrowedStr  string
		)
		if err := rows.Scan(
			&pos.PositionID,
			&pos.UserAddress,
			&pos.Symbol,
			&depositedStr,
			&borrowedStr,
			&pos.CollateralFactorBps,
		); err != nil {
			return nil, err
		}

		var convErr error
		pos.Deposited, convErr = decimal.NewFromString(depositedStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse deposited amount: %w", convErr)
		}
		pos.Borrowed, convErr = decimal.NewFromString(borrowedStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse borrowed amount: %w", convErr)
		}

		positions = append(positions, pos)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return positions, nil
}

// InsertVolatilityBatch persists a scan cycle's records in one transaction.
// Either every record lands or none does.
func (s *Store) InsertVolatilityBatch(ctx context.Context, records []VolatilityRecord) error {
	if len(records) == 0 {
		return nil
	}

	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin volatility batch: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, record := range records {
		if _, execErr := tx.Exec(ctx, insertVolatilityRecordSQL,
			record.AssetID,
			record.Volatility,
			record.PeriodDays,
			record.EffectiveRateBps,
			record.Timestamp,
		); execErr != nil {
			return fmt.Errorf("insert volatility record for asset %d: %w", record.AssetID, execErr)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit volatility batch: %w", err)
	}
	return nil
}

// ListVolatilityBetween lists records for a symbol within a time window.
func (s *Store) ListVolatilityBetween(ctx context.Context, symbol string, from, to time.Time) ([]VolatilityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listVolatilityBetweenSQL, symbol, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list volatility between: %w", queryErr)
	}
	defer rows.Close()

	return collectVolatilityRecords(rows, 0)
}

// ListRecentVolatility lists the most recent records for a symbol.
func (s *Store) ListRecentVolatility(ctx context.Context, symbol string, limit int) ([]VolatilityRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentVolatilitySQL, symbol, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent volatility: %w", queryErr)
	}
	defer rows.Close()

	return collectVolatilityRecords(rows, limit)
}

// InsertTransaction persists a confirmed transaction record.
func (s *Store) InsertTransaction(ctx context.Context, record TransactionRecord) (TransactionRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return TransactionRecord{}, err
	}

	row := pool.QueryRow(ctx, insertTransactionSQL,
		record.UserAddress,
		record.AssetID,
		record.Kind,
		record.Amount.String(),
		record.TxHash,
		record.BlockNumber,
	)
	if scanErr := row.Scan(&record.ID, &record.CreatedAt); scanErr != nil {
		return TransactionRecord{}, fmt.Errorf("insert transaction: %w", scanErr)
	}
	return record, nil
}

func collectVolatilityRecords(rows pgx.Rows, capacityHint int) ([]VolatilityRecord, error) {
	records := make([]VolatilityRecord, 0, capacityHint)
	for rows.Next() {
		var record VolatilityRecord
		if err := rows.Scan(
			&record.ID,
			&record.AssetID,
			&record.Symbol,
			&record.Volatility,
			&record.PeriodDays,
			&record.EffectiveRateBps,
			&record.Timestamp,
		); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanAsset(rows pgx.Rows) (Asset, error) {
	var asset Asset
	if err := rows.Scan(
		&asset.ID,
		&asset.Symbol,
		&asset.Name,
		&asset.TokenAddress,
		&asset.Decimals,
		&asset.BaseRateBps,
		&asset.VolatilityMultiplier,
		&asset.CollateralFactorBps,
		&asset.IsActive,
		&asset.SeriesID,
		&asset.CreatedAt,
		&asset.UpdatedAt,
	); err != nil {
		return Asset{}, err
	}
	return asset, nil
}
