package app

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// RecordTx verifies a signed transaction on-chain and persists it.
func (a *App) RecordTx(ctx context.Context, opts RecordTxOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot record transactions")
	}
	defer closeStore()

	gateway := a.newGateway()
	defer gateway.Close()

	engine := a.newEngine(store, gateway)

	record, err := engine.RecordTransaction(ctx, opts.UserAddress, opts.Symbol, opts.Kind, opts.Amount, opts.TxHash)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "recorded transaction %d: %s %s %s at block %d\n",
		record.ID, record.Kind, record.Amount.String(), record.Symbol, record.BlockNumber)
	return nil
}
