package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints a pair's recent price snapshots.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	snaps, err := store.History(ctx, opts.PairID, opts.Limit)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Fprintln(os.Stdout, "no snapshots found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tTime (UTC)\tDrink One\tDrink Two")

	for _, snap := range snaps {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%s\t%s\n",
			snap.ID,
			snap.CreatedAt.UTC().Format(time.RFC3339),
			formatDecimal(snap.PriceDrinkOne, 2),
			formatDecimal(snap.PriceDrinkTwo, 2),
		)
	}

	writer.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
