package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"drink-exchange/internal/broadcast"
	"drink-exchange/internal/httpapi"
	"drink-exchange/internal/pricing"
	"drink-exchange/internal/scheduler"
	"drink-exchange/internal/storage"
	"drink-exchange/internal/storage/memory"
)

// Serve runs the pricing service: HTTP API, websocket broadcast, and the
// expired-event sweeper.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		ledger storage.Ledger
		events storage.EventStore
		pairs  storage.PairStore
		drinks storage.DrinkStore
	)

	if opts.InMemory {
		memLedger := memory.NewLedger()
		memEvents := memory.NewEventStore(a.Config.Event.TTL, memLedger)
		memPairs := seedDemoMarket(memEvents, memory.NewPairStore())
		ledger, events, pairs, drinks = memLedger, memEvents, memPairs, memPairs
		a.Logger.Warn().Msg("running with in-memory storage; state is lost on exit")
	} else {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return err
		}
		defer closeStore()
		ledger, events, pairs, drinks = store, store, store, store
	}

	hub := broadcast.NewHub(a.Config.Server.WSBuffer, a.Logger)
	wsHandler := broadcast.NewWSHandler(hub, a.Logger)

	engine := pricing.New(pricing.Options{
		Events:    events,
		Pairs:     pairs,
		Drinks:    drinks,
		Ledger:    ledger,
		Publisher: hub,
		MaxBatch:  a.Config.Pricing.MaxBatch,
		Logger:    a.Logger,
	})

	api := httpapi.NewServer(engine, events, wsHandler, a.Logger)

	srv := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	sweeper := scheduler.New(scheduler.Options{
		Interval:     a.Config.Sweeper.Interval,
		StartupDelay: a.Config.Sweeper.StartupDelay,
	}, a.Logger)

	go func() {
		err := sweeper.Run(ctx, func(ctx context.Context) error {
			swept, err := events.DeactivateExpired(ctx)
			if err != nil {
				return err
			}
			if swept > 0 {
				a.Logger.Info().Int64("events", swept).Msg("deactivated expired events")
			}
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error().Err(err).Msg("sweeper terminated with error")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("http server shutdown failed")
		return err
	}

	a.Logger.Info().Msg("service stopped")
	return nil
}

// seedDemoMarket creates an event with two pairs so the in-memory mode is
// usable out of the box.
func seedDemoMarket(events *memory.EventStore, pairs *memory.PairStore) *memory.PairStore {
	ev, err := events.Create(context.Background())
	if err != nil {
		return pairs
	}

	drinkList := []storage.Drink{
		{ID: 1, Name: "Lager", BasePrice: decimal.RequireFromString("5.0")},
		{ID: 2, Name: "Stout", BasePrice: decimal.RequireFromString("5.0")},
		{ID: 3, Name: "Cider", BasePrice: decimal.RequireFromString("4.5")},
		{ID: 4, Name: "Pale Ale", BasePrice: decimal.RequireFromString("5.5")},
	}
	for _, d := range drinkList {
		pairs.SeedDrink(d)
	}

	inc := decimal.RequireFromString("0.5")
	sub := decimal.RequireFromString("0.25")
	floor := decimal.RequireFromString("2.0")
	pairs.SeedPair(storage.Pair{
		ID: 1, EventID: ev.ID, DrinkOneID: 1, DrinkTwoID: 2,
		IncOne: inc, SubOne: sub, FloorOne: floor,
		IncTwo: inc, SubTwo: sub, FloorTwo: floor,
	})
	pairs.SeedPair(storage.Pair{
		ID: 2, EventID: ev.ID, DrinkOneID: 3, DrinkTwoID: 4,
		IncOne: inc, SubOne: sub, FloorOne: floor,
		IncTwo: inc, SubTwo: sub, FloorTwo: floor,
	})
	return pairs
}
