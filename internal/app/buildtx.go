package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"lending-risk-engine/internal/txbuilder"
)

// BuildTx validates a transaction intent against the lending pool and prints
// the unsigned payload as JSON. Signing happens elsewhere.
func (a *App) BuildTx(ctx context.Context, opts BuildTxOptions) error {
	gateway := a.newGateway()
	defer gateway.Close()

	builder := txbuilder.New(gateway, a.Logger)

	payload, err := builder.Build(ctx, txbuilder.Intent{
		Operation:   txbuilder.Operation(opts.Operation),
		UserAddress: opts.UserAddress,
		Symbol:      opts.Symbol,
		Amount:      opts.Amount,
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(encoded))
	return nil
}
