package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"lending-risk-engine/internal/app"
)

var (
	buildTxOperation string
	buildTxUser      string
	buildTxSymbol    string
	buildTxAmount    string
)

var buildTxCmd = &cobra.Command{
	Use:   "build-tx",
	Short: "Prepare an unsigned lending pool transaction payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildTxOperation == "" || buildTxUser == "" || buildTxSymbol == "" || buildTxAmount == "" {
			return errors.New("--op, --user, --symbol, and --amount are required")
		}

		opts := app.BuildTxOptions{
			Operation:   buildTxOperation,
			UserAddress: buildTxUser,
			Symbol:      buildTxSymbol,
			Amount:      buildTxAmount,
		}

		return getApp().BuildTx(cmd.Context(), opts)
	},
}

func init() {
	buildTxCmd.Flags().StringVar(&buildTxOperation, "op", "", "Operation: deposit, withdraw, borrow, or repay")
	buildTxCmd.Flags().StringVar(&buildTxUser, "user", "", "User wallet address")
	buildTxCmd.Flags().StringVar(&buildTxSymbol, "symbol", "", "Asset symbol")
	buildTxCmd.Flags().StringVar(&buildTxAmount, "amount", "", "Amount in base token units")
}
