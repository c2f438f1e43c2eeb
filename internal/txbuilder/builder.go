package txbuilder

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"

	"lending-risk-engine/internal/ledger"
)

// Operation is a lending pool transaction kind.
type Operation string

const (
	OpDeposit  Operation = "deposit"
	OpWithdraw Operation = "withdraw"
	OpBorrow   Operation = "borrow"
	OpRepay    Operation = "repay"
)

// defaultGasLimit is the gas estimate attached to prepared payloads.
const defaultGasLimit = 300000

var bpsDenominator = big.NewInt(10000)

// Intent is a user-supplied transaction request. Amount is a positive
// integer in base token units.
type Intent struct {
	Operation   Operation
	UserAddress string
	Symbol      string
	Amount      string
}

// Payload is an unsigned transaction prepared for external signing. The
// engine never holds signing keys.
type Payload struct {
	To               common.Address `json:"to"`
	From             common.Address `json:"from"`
	Data             hexutil.Bytes  `json:"data"`
	Value            *big.Int       `json:"value"`
	GasLimit         uint64         `json:"gas"`
	Token            common.Address `json:"token"`
	TokenAmount      *big.Int       `json:"tokenAmount"`
	RequiresApproval bool           `json:"requiresApproval"`
}

// Ledger is the gateway surface the builder validates against.
type Ledger interface {
	Ready(ctx context.Context) error
	ValidateAddress(address string) bool
	ContractAddress() common.Address
	GetAssetDetails(ctx context.Context, symbol string) (ledger.AssetDetails, error)
	GetUserPosition(ctx context.Context, user common.Address, symbol string) (ledger.UserPosition, error)
	TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Builder validates transaction intents against live ledger state and
// produces unsigned payloads.
type Builder struct {
	ledger Ledger
	logger zerolog.Logger
}

// New constructs a Builder.
func New(l Ledger, logger zerolog.Logger) *Builder {
	return &Builder{
		ledger: l,
		logger: logger.With().Str("component", "tx_builder").Logger(),
	}
}

// Build validates the intent and encodes the pool call. Validation is
// fail-fast: the first failing step short-circuits the rest, and no partial
// payload is ever returned.
func (b *Builder) Build(ctx context.Context, intent Intent) (Payload, error) {
	switch intent.Operation {
	case OpDeposit, OpWithdraw, OpBorrow, OpRepay:
	default:
		return Payload{}, fmt.Errorf("unsupported operation %q", intent.Operation)
	}

	if err := b.ledger.Ready(ctx); err != nil {
		return Payload{}, err
	}

	if !b.ledger.ValidateAddress(intent.UserAddress) {
		return Payload{}, validationErrorf(CodeInvalidAddress, "address %q is not a valid hex address", intent.UserAddress)
	}
	user := common.HexToAddress(intent.UserAddress)

	symbol := strings.TrimSpace(intent.Symbol)
	if symbol == "" {
		return Payload{}, validationErrorf(CodeAssetNotFound, "asset symbol is required")
	}

	details, err := b.ledger.GetAssetDetails(ctx, symbol)
	if err != nil {
		return Payload{}, err
	}
	if !details.Supported {
		return Payload{}, validationErrorf(CodeAssetNotFound, "asset %s is not supported by the pool", symbol)
	}

	amount, ok := new(big.Int).SetString(strings.TrimSpace(intent.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return Payload{}, validationErrorf(CodeInvalidAmount, "amount %q must be a positive integer in base units", intent.Amount)
	}

	if err := b.checkOperation(ctx, intent.Operation, user, symbol, details, amount); err != nil {
		return Payload{}, err
	}

	data, err := ledger.PackPoolCall(string(intent.Operation), symbol, amount)
	if err != nil {
		return Payload{}, fmt.Errorf("encode %s call: %w", intent.Operation, err)
	}

	payload := Payload{
		To:       b.ledger.ContractAddress(),
		From:     user,
		Data:     data,
		Value:    big.NewInt(0),
		GasLimit: defaultGasLimit,
	}

	movesFundsIn := intent.Operation == OpDeposit || intent.Operation == OpRepay
	if movesFundsIn {
		if details.Native() {
			payload.Value = amount
		} else {
			payload.RequiresApproval = true
			payload.Token = details.Token
			payload.TokenAmount = amount
		}
	}

	b.logger.Debug().
		Str("operation", string(intent.Operation)).
		Str("symbol", symbol).
		Str("user", user.Hex()).
		Bool("requires_approval", payload.RequiresApproval).
		Msg("transaction payload prepared")

	return payload, nil
}

func (b *Builder) checkOperation(ctx context.Context, op Operation, user common.Address, symbol string, details ledger.AssetDetails, amount *big.Int) error {
	if (op == OpDeposit || op == OpRepay) && !details.Native() {
		balance, err := b.ledger.TokenBalance(ctx, details.Token, user)
		if err != nil {
			return err
		}
		if balance.Cmp(amount) < 0 {
			return validationErrorf(CodeInsufficientBalance, "balance %s is below requested amount %s", balance, amount)
		}
	}

	if op != OpBorrow && op != OpRepay {
		return nil
	}

	position, err := b.ledger.GetUserPosition(ctx, user, symbol)
	if err != nil {
		return err
	}

	switch op {
	case OpBorrow:
		maxBorrow := new(big.Int).Mul(position.Deposited, big.NewInt(details.CollateralFactorBps))
		maxBorrow.Div(maxBorrow, bpsDenominator)
		if amount.Cmp(maxBorrow) > 0 {
			return validationErrorf(CodeInsufficientCollateral, "amount %s exceeds max borrow %s", amount, maxBorrow)
		}
	case OpRepay:
		if amount.Cmp(position.Borrowed) > 0 {
			return validationErrorf(CodeExcessiveRepay, "amount %s exceeds outstanding debt %s", amount, position.Borrowed)
		}
	}
	return nil
}
