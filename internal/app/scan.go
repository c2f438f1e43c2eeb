package app

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Scan runs one risk scan outside the scheduler and prints a summary.
func (a *App) Scan(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot scan")
	}
	defer closeStore()

	gateway := a.newGateway()
	defer gateway.Close()

	engine := a.newEngine(store, gateway)

	report, err := engine.ScanRisk(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "rates updated: %d\n", report.UpdatedCount)
	if len(report.Skipped) > 0 {
		fmt.Fprintf(os.Stdout, "skipped assets: %v\n", report.Skipped)
	}
	fmt.Fprintf(os.Stdout, "liquidation candidates: %d\n", len(report.Candidates))
	for _, candidate := range report.Candidates {
		fmt.Fprintf(os.Stdout, "- %s %s position %d: health %.4f\n",
			candidate.UserAddress, candidate.Symbol, candidate.PositionID, candidate.HealthFactor)
	}
	return nil
}
