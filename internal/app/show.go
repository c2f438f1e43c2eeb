package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"
)

// Show prints the most recent volatility records for a symbol.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show records")
	}
	defer closeStore()

	records, err := store.ListRecentVolatility(ctx, opts.Symbol, opts.Limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no records found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tSymbol\tVolatility\tPeriod (d)\tRate (bps)")

	for _, record := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%.6f\t%d\t%d\n",
			record.Timestamp.UTC().Format(time.RFC3339),
			record.Symbol,
			record.Volatility,
			record.PeriodDays,
			record.EffectiveRateBps,
		)
	}

	writer.Flush()
	return nil
}
