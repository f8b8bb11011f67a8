package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"drink-exchange/internal/storage"
)

// Export renders a pair's price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

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
		a.Logger.Info().Int64("pair_id", opts.PairID).Msg("no snapshots found for export")
		return nil
	}

	a.Logger.Info().Int64("pair_id", opts.PairID).Int("points", len(snaps)).Msg("exporting price history")

	if opts.CSVPath != "" {
		if err := writeHistoryCSV(opts.CSVPath, snaps); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeHistoryPNG(opts.PNGPath, snaps); err != nil {
			return err
		}
	}

	return nil
}

func writeHistoryCSV(path string, snaps []storage.PriceSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"id", "created_at", "price_drink_one", "price_drink_two"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, snap := range snaps {
		record := []string{
			strconv.FormatInt(snap.ID, 10),
			snap.CreatedAt.UTC().Format(time.RFC3339),
			snap.PriceDrinkOne.String(),
			snap.PriceDrinkTwo.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeHistoryPNG(path string, snaps []storage.PriceSnapshot) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]float64, len(snaps))
	one := make([]float64, len(snaps))
	two := make([]float64, len(snaps))

	for i, snap := range snaps {
		x[i] = float64(snap.ID)
		one[i] = snap.PriceDrinkOne.InexactFloat64()
		two[i] = snap.PriceDrinkTwo.InexactFloat64()
	}

	priceFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Snapshot",
		},
		YAxis: chart.YAxis{
			Name:           "Price",
			ValueFormatter: priceFormatter,
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "Drink One",
				XValues: x,
				YValues: one,
			},
			chart.ContinuousSeries{
				Name:    "Drink Two",
				XValues: x,
				YValues: two,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
