package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

type fakeCaller struct {
	call    func(msg ethereum.CallMsg) ([]byte, error)
	receipt *types.Receipt
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return f.call(msg)
}

func (f *fakeCaller) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if f.receipt == nil {
		return nil, errors.New("not found")
	}
	return f.receipt, nil
}

func (f *fakeCaller) Close() {}

func newTestGateway(t *testing.T, caller contractCaller) *Gateway {
	t.Helper()
	g := New(Options{
		RPCURL:          "http://localhost:8545",
		ContractAddress: "0x00000000000000000000000000000000000000aa",
		Timeout:         time.Second,
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
	}, zerolog.Nop())
	g.retry.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	g.dial = func(ctx context.Context) (contractCaller, error) { return caller, nil }
	return g
}

func TestValidateAddress(t *testing.T) {
	g := New(Options{}, zerolog.Nop())
	if !g.ValidateAddress("0x1111111111111111111111111111111111111111") {
		t.Fatal("well-formed address should validate")
	}
	for _, bad := range []string{"", "0x123", "not-an-address", "0xZZ11111111111111111111111111111111111111"} {
		if g.ValidateAddress(bad) {
			t.Fatalf("malformed address %q should not validate", bad)
		}
	}
}

func TestReadyReportsNotReady(t *testing.T) {
	g := New(Options{}, zerolog.Nop())
	g.dial = func(ctx context.Context) (contractCaller, error) { return nil, errors.New("dial refused") }
	if err := g.Ready(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestGetAssetPriceRetriesThenSucceeds(t *testing.T) {
	encoded, err := lendingPoolABI.Methods["getAssetPrice"].Outputs.Pack(big.NewInt(250000000000))
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	calls := 0
	caller := &fakeCaller{call: func(msg ethereum.CallMsg) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("rpc timeout")
		}
		return encoded, nil
	}}

	g := newTestGateway(t, caller)
	price, err := g.GetAssetPrice(context.Background(), "ETH")
	if err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if price.Cmp(big.NewInt(250000000000)) != 0 {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestGetAssetPriceExhaustsRetries(t *testing.T) {
	caller := &fakeCaller{call: func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("rpc timeout")
	}}

	g := newTestGateway(t, caller)
	if _, err := g.GetAssetPrice(context.Background(), "ETH"); !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestGetAssetDetailsDecodes(t *testing.T) {
	token := common.HexToAddress("0x2222222222222222222222222222222222222222")
	encoded, err := lendingPoolABI.Methods["getAssetDetails"].Outputs.Pack(
		token, big.NewInt(1000), big.NewInt(400), big.NewInt(7500), true,
	)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	caller := &fakeCaller{call: func(msg ethereum.CallMsg) ([]byte, error) {
		if msg.To == nil || *msg.To != common.HexToAddress("0x00000000000000000000000000000000000000aa") {
			t.Fatalf("call should target the pool contract, got %v", msg.To)
		}
		return encoded, nil
	}}

	g := newTestGateway(t, caller)
	details, err := g.GetAssetDetails(context.Background(), "USDC")
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if details.Token != token {
		t.Fatalf("unexpected token %s", details.Token)
	}
	if details.CollateralFactorBps != 7500 {
		t.Fatalf("unexpected collateral factor %d", details.CollateralFactorBps)
	}
	if !details.Supported {
		t.Fatal("asset should be supported")
	}
	if details.Native() {
		t.Fatal("asset with a token address is not native")
	}
}

func TestGetUserPositionDecodes(t *testing.T) {
	encoded, err := lendingPoolABI.Methods["getUserPosition"].Outputs.Pack(
		big.NewInt(1000), big.NewInt(800), big.NewInt(12),
	)
	if err != nil {
		t.Fatalf("pack outputs: %v", err)
	}

	caller := &fakeCaller{call: func(msg ethereum.CallMsg) ([]byte, error) { return encoded, nil }}
	g := newTestGateway(t, caller)

	pos, err := g.GetUserPosition(context.Background(), common.HexToAddress("0x1111111111111111111111111111111111111111"), "ETH")
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if pos.Deposited.Cmp(big.NewInt(1000)) != 0 || pos.Borrowed.Cmp(big.NewInt(800)) != 0 || pos.InterestDue.Cmp(big.NewInt(12)) != 0 {
		t.Fatalf("unexpected position %+v", pos)
	}
}

func TestGetTransactionReceipt(t *testing.T) {
	caller := &fakeCaller{receipt: &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(42)}}
	g := newTestGateway(t, caller)

	receipt, err := g.GetTransactionReceipt(context.Background(), common.HexToHash("0xabc"))
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		t.Fatalf("unexpected status %d", receipt.Status)
	}
}

func TestPackPoolCall(t *testing.T) {
	data, err := PackPoolCall("deposit", "ETH", big.NewInt(1))
	if err != nil {
		t.Fatalf("pack should succeed: %v", err)
	}
	if len(data) <= 4 {
		t.Fatal("packed call data should include selector and arguments")
	}
	if _, err := PackPoolCall("unknownMethod", "ETH"); err == nil {
		t.Fatal("unknown method should fail to pack")
	}
}
