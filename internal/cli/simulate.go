package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"lending-risk-engine/internal/app"
)

var (
	simulatePrices     string
	simulateBaseRate   int64
	simulateMultiplier int64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Compute volatility and effective rate from an offline price CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateBaseRate < 0 {
			return errors.New("--base-rate cannot be negative")
		}

		opts := app.SimulateOptions{
			PricesCSV:   simulatePrices,
			BaseRateBps: simulateBaseRate,
			Multiplier:  simulateMultiplier,
		}

		return getApp().Simulate(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulatePrices, "prices", "", "Path to a CSV of timestamp,price rows")
	simulateCmd.Flags().Int64Var(&simulateBaseRate, "base-rate", 200, "Base interest rate in basis points")
	simulateCmd.Flags().Int64Var(&simulateMultiplier, "multiplier", 100, "Volatility multiplier (percent)")
}
