package app

import (
	"context"

	"github.com/rs/zerolog"

	"drink-exchange/internal/config"
	"drink-exchange/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool, a.Config.Event.TTL)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// ServeOptions configure the serve command.
type ServeOptions struct {
	// InMemory runs the full stack against in-memory stores seeded with a
	// demo market; no database required.
	InMemory bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	PairID int64
	Limit  int
}

// ExportOptions hold parameters for exporting a pair's price history.
type ExportOptions struct {
	PairID  int64
	CSVPath string
	PNGPath string
	Limit   int
}
