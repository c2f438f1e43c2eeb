package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset describes a supported asset. Owned by the persistence layer and
// read-only to the engine.
type Asset struct {
	ID                   int64
	Symbol               string
	Name                 string
	TokenAddress         string
	Decimals             int
	BaseRateBps          int64
	VolatilityMultiplier int64
	CollateralFactorBps  int64
	IsActive             bool
	SeriesID             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Position is the cached copy of a user's on-chain position. The ledger is
// the canonical source of truth for balances.
type Position struct {
	ID                 int64
	UserAddress        string
	AssetID            int64
	Symbol             string
	Deposited          decimal.Decimal
	Borrowed           decimal.Decimal
	LastInterestUpdate time.Time
}

// OpenPosition is a position with borrowed funds, joined with the asset's
// collateral factor for health evaluation.
type OpenPosition struct {
	PositionID          int64
	UserAddress         string
	Symbol              string
	Deposited           decimal.Decimal
	Borrowed            decimal.Decimal
	CollateralFactorBps int64
}

// VolatilityRecord is one append-only volatility/rate observation per asset
// per scan cycle.
type VolatilityRecord struct {
	ID               int64
	AssetID          int64
	Symbol           string
	Volatility       float64
	PeriodDays       int
	EffectiveRateBps int64
	Timestamp        time.Time
}

// TransactionRecord captures a confirmed on-chain transaction.
type TransactionRecord struct {
	ID          int64
	UserAddress string
	AssetID     int64
	Symbol      string
	Kind        string
	Amount      decimal.Decimal
	TxHash      string
	BlockNumber int64
	CreatedAt   time.Time
}
