package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// AssetDetails mirrors the on-chain view of a supported asset.
type AssetDetails struct {
	Token               common.Address
	TotalDeposited      *big.Int
	TotalBorrowed       *big.Int
	CollateralFactorBps int64
	Supported           bool
}

// Native reports whether the asset is the chain's native currency.
func (d AssetDetails) Native() bool {
	return d.Token == (common.Address{})
}

// UserPosition mirrors the on-chain position of a user for one asset,
// in base token units.
type UserPosition struct {
	Deposited   *big.Int
	Borrowed    *big.Int
	InterestDue *big.Int
}

// Options parameterise the gateway.
type Options struct {
	RPCURL          string
	ContractAddress string
	Timeout         time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

// contractCaller is the subset of ethclient the gateway depends on.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Gateway is a retrying read/write adapter over the lending pool contract.
// The RPC connection is established lazily: every operation attempts to dial
// when no client is present yet.
type Gateway struct {
	opts         Options
	logger       zerolog.Logger
	retry        retrier
	contractAddr common.Address

	mu     sync.Mutex
	client contractCaller
	dial   func(ctx context.Context) (contractCaller, error)
}

// New constructs a gateway. No connection is made until Connect or the first
// operation.
func New(opts Options, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		opts:         opts,
		logger:       logger.With().Str("component", "ledger_gateway").Logger(),
		retry:        newRetrier(opts.RetryAttempts, opts.RetryDelay),
		contractAddr: common.HexToAddress(opts.ContractAddress),
	}
	g.dial = g.dialRPC
	return g
}

func (g *Gateway) dialRPC(ctx context.Context) (contractCaller, error) {
	if g.opts.RPCURL == "" {
		return nil, errors.New("ethereum rpc url not configured")
	}
	if g.opts.ContractAddress == "" {
		return nil, errors.New("lending pool contract address not configured")
	}
	client, err := ethclient.DialContext(ctx, g.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// ensure returns the RPC client, dialling on first use.
func (g *Gateway) ensure(ctx context.Context) (contractCaller, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	client, err := g.dial(ctx)
	if err != nil {
		return nil, err
	}
	g.client = client
	g.logger.Info().Str("rpc", g.opts.RPCURL).Msg("ledger gateway connected")
	return client, nil
}

// Connect establishes the RPC connection under the retry policy. Intended for
// the composition root; operations also connect lazily on demand.
func (g *Gateway) Connect(ctx context.Context) error {
	return g.retry.do(ctx, "connect", func() error {
		_, err := g.ensure(ctx)
		return err
	})
}

// Ready reports whether the gateway can serve calls, attempting a lazy
// connection first.
func (g *Gateway) Ready(ctx context.Context) error {
	if _, err := g.ensure(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

// Close releases the underlying RPC client.
func (g *Gateway) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client != nil {
		g.client.Close()
		g.client = nil
	}
}

// ContractAddress returns the lending pool contract address.
func (g *Gateway) ContractAddress() common.Address {
	return g.contractAddr
}

// ValidateAddress reports whether the input is a well-formed hex address.
// Best effort: malformed input yields false, never an error.
func (g *Gateway) ValidateAddress(address string) bool {
	return common.IsHexAddress(address)
}

// GetAssetDetails reads the on-chain details of an asset.
func (g *Gateway) GetAssetDetails(ctx context.Context, symbol string) (AssetDetails, error) {
	var details AssetDetails
	err := g.retry.do(ctx, "getAssetDetails", func() error {
		outputs, err := g.callPool(ctx, "getAssetDetails", symbol)
		if err != nil {
			return err
		}
		if len(outputs) != 5 {
			return fmt.Errorf("unexpected getAssetDetails response arity %d", len(outputs))
		}
		token, ok := outputs[0].(common.Address)
		if !ok {
			return errors.New("decode getAssetDetails token")
		}
		deposited, ok := outputs[1].(*big.Int)
		if !ok {
			return errors.New("decode getAssetDetails totalDeposited")
		}
		borrowed, ok := outputs[2].(*big.Int)
		if !ok {
			return errors.New("decode getAssetDetails totalBorrowed")
		}
		factor, ok := outputs[3].(*big.Int)
		if !ok {
			return errors.New("decode getAssetDetails collateralFactor")
		}
		supported, ok := outputs[4].(bool)
		if !ok {
			return errors.New("decode getAssetDetails isSupported")
		}
		details = AssetDetails{
			Token:               token,
			TotalDeposited:      deposited,
			TotalBorrowed:       borrowed,
			CollateralFactorBps: factor.Int64(),
			Supported:           supported,
		}
		return nil
	})
	return details, err
}

// GetAssetPrice reads the oracle price for an asset in the feed's base units.
func (g *Gateway) GetAssetPrice(ctx context.Context, symbol string) (*big.Int, error) {
	var price *big.Int
	err := g.retry.do(ctx, "getAssetPrice", func() error {
		out, err := g.callPoolSingleInt(ctx, "getAssetPrice", symbol)
		if err != nil {
			return err
		}
		price = out
		return nil
	})
	return price, err
}

// GetUserPosition reads a user's deposited/borrowed amounts for an asset.
func (g *Gateway) GetUserPosition(ctx context.Context, user common.Address, symbol string) (UserPosition, error) {
	var position UserPosition
	err := g.retry.do(ctx, "getUserPosition", func() error {
		outputs, err := g.callPool(ctx, "getUserPosition", user, symbol)
		if err != nil {
			return err
		}
		if len(outputs) != 3 {
			return fmt.Errorf("unexpected getUserPosition response arity %d", len(outputs))
		}
		fields := make([]*big.Int, 3)
		for i, raw := range outputs {
			value, ok := raw.(*big.Int)
			if !ok {
				return fmt.Errorf("decode getUserPosition output %d", i)
			}
			fields[i] = value
		}
		position = UserPosition{Deposited: fields[0], Borrowed: fields[1], InterestDue: fields[2]}
		return nil
	})
	return position, err
}

// GetCurrentInterestRate reads the effective interest rate for an asset in
// basis points.
func (g *Gateway) GetCurrentInterestRate(ctx context.Context, symbol string) (int64, error) {
	var rate int64
	err := g.retry.do(ctx, "getCurrentInterestRate", func() error {
		out, err := g.callPoolSingleInt(ctx, "getCurrentInterestRate", symbol)
		if err != nil {
			return err
		}
		rate = out.Int64()
		return nil
	})
	return rate, err
}

// TokenBalance reads the ERC-20 balance of owner for the given token contract.
func (g *Gateway) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := g.retry.do(ctx, "balanceOf", func() error {
		client, err := g.ensure(ctx)
		if err != nil {
			return err
		}
		data, err := erc20ABI.Pack("balanceOf", owner)
		if err != nil {
			return err
		}
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		raw, err := client.CallContract(callCtx, ethereum.CallMsg{To: &token, Data: data}, nil)
		if err != nil {
			return err
		}
		outputs, err := erc20ABI.Unpack("balanceOf", raw)
		if err != nil {
			return err
		}
		value, ok := outputs[0].(*big.Int)
		if !ok {
			return errors.New("decode balanceOf output")
		}
		balance = value
		return nil
	})
	return balance, err
}

// GetTransactionReceipt fetches the receipt for a transaction hash.
func (g *Gateway) GetTransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := g.retry.do(ctx, "getTransactionReceipt", func() error {
		client, err := g.ensure(ctx)
		if err != nil {
			return err
		}
		callCtx, cancel := g.callContext(ctx)
		defer cancel()
		r, err := client.TransactionReceipt(callCtx, txHash)
		if err != nil {
			return err
		}
		receipt = r
		return nil
	})
	return receipt, err
}

func (g *Gateway) callPool(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	client, err := g.ensure(ctx)
	if err != nil {
		return nil, err
	}

	data, err := lendingPoolABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := g.callContext(ctx)
	defer cancel()

	raw, err := client.CallContract(callCtx, ethereum.CallMsg{To: &g.contractAddr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	return lendingPoolABI.Unpack(method, raw)
}

func (g *Gateway) callPoolSingleInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	outputs, err := g.callPool(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	if len(outputs) != 1 {
		return nil, fmt.Errorf("unexpected %s response arity %d", method, len(outputs))
	}
	value, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("decode %s output", method)
	}
	return value, nil
}

func (g *Gateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := g.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
