package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"drink-exchange/internal/storage"
)

// EventCreate opens a new event, clearing the price ledger.
func (a *App) EventCreate(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ev, err := store.Create(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrActiveEventExists) {
			return errors.New("an active event already exists; close it first")
		}
		return err
	}

	fmt.Fprintf(os.Stdout, "event %d created at %s\n", ev.ID, ev.CreatedAt.UTC().Format(time.RFC3339))
	return nil
}

// EventClose deactivates the current event.
func (a *App) EventClose(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	ev, err := store.Current(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errors.New("no active event at the moment")
		}
		return err
	}

	if err := store.Deactivate(ctx, ev.ID); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "event %d closed\n", ev.ID)
	return nil
}

// SnapshotUndo removes a pair's most recent snapshot. Out-of-band correction
// only; the next buy re-derives its baseline from whatever remains.
func (a *App) SnapshotUndo(ctx context.Context, pairID int64) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.DeleteLatest(ctx, pairID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("pair %d has no snapshots", pairID)
		}
		return err
	}

	fmt.Fprintf(os.Stdout, "removed latest snapshot for pair %d\n", pairID)
	return nil
}
