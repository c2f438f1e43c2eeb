package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"lending-risk-engine/internal/app"
)

var (
	recordTxUser   string
	recordTxSymbol string
	recordTxKind   string
	recordTxAmount string
	recordTxHash   string
)

var recordTxCmd = &cobra.Command{
	Use:   "record-tx",
	Short: "Verify a confirmed transaction on-chain and persist it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordTxUser == "" || recordTxSymbol == "" || recordTxKind == "" || recordTxAmount == "" || recordTxHash == "" {
			return errors.New("--user, --symbol, --kind, --amount, and --tx-hash are required")
		}

		opts := app.RecordTxOptions{
			UserAddress: recordTxUser,
			Symbol:      recordTxSymbol,
			Kind:        recordTxKind,
			Amount:      recordTxAmount,
			TxHash:      recordTxHash,
		}

		return getApp().RecordTx(cmd.Context(), opts)
	},
}

func init() {
	recordTxCmd.Flags().StringVar(&recordTxUser, "user", "", "User wallet address")
	recordTxCmd.Flags().StringVar(&recordTxSymbol, "symbol", "", "Asset symbol")
	recordTxCmd.Flags().StringVar(&recordTxKind, "kind", "", "Transaction kind: deposit, withdraw, borrow, or repay")
	recordTxCmd.Flags().StringVar(&recordTxAmount, "amount", "", "Transaction amount")
	recordTxCmd.Flags().StringVar(&recordTxHash, "tx-hash", "", "Transaction hash")
}
