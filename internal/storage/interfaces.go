package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrActiveEventExists indicates event creation was attempted while an
	// event is still current.
	ErrActiveEventExists = errors.New("storage: an active event already exists")
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

// Ledger is the append-only price snapshot store.
type Ledger interface {
	// Latest returns the highest-id snapshot for the pair, or ErrNotFound.
	Latest(ctx context.Context, pairID int64) (PriceSnapshot, error)

	// LatestMany returns, for each pair id, its edge snapshot(s) according to
	// mode, ordered by descending id. When limit > 0 the result is truncated
	// to the limit most recent rows.
	LatestMany(ctx context.Context, pairIDs []int64, mode ReadMode, limit int) ([]PriceSnapshot, error)

	// Append persists a snapshot, assigning the next ordering id. Ids strictly
	// increase across concurrent appenders.
	Append(ctx context.Context, snap PriceSnapshot) (PriceSnapshot, error)

	// History lists a pair's snapshots in ascending id order, newest-first
	// truncated to limit when limit > 0.
	History(ctx context.Context, pairID int64, limit int) ([]PriceSnapshot, error)

	// DeleteLatest removes a pair's most recent snapshot. Out-of-band
	// correction only; never part of a buy.
	DeleteLatest(ctx context.Context, pairID int64) error

	// Clear deletes all snapshots. Used only at event creation.
	Clear(ctx context.Context) error
}

// EventStore tracks exchange sessions and the one-current-event invariant.
type EventStore interface {
	// Current returns the current event: the greatest-id row with active=true
	// and age below the TTL. Returns ErrNotFound when no event qualifies.
	Current(ctx context.Context) (Event, error)

	// Create opens a new event and clears the ledger in the same transaction.
	// Returns ErrActiveEventExists if an event is still current.
	Create(ctx context.Context) (Event, error)

	// Deactivate marks the event inactive. Idempotent.
	Deactivate(ctx context.Context, id int64) error

	// DeactivateExpired flips active=false on events past their TTL and
	// reports how many rows changed.
	DeactivateExpired(ctx context.Context) (int64, error)
}

// PairStore is the read-only pair configuration lookup.
type PairStore interface {
	// Pair returns the pair by id, or ErrNotFound.
	Pair(ctx context.Context, id int64) (Pair, error)

	// PairsByEvent lists every pair belonging to the event.
	PairsByEvent(ctx context.Context, eventID int64) ([]Pair, error)
}

// DrinkStore resolves drink base prices for first-use initialization.
type DrinkStore interface {
	// Drink returns the drink by id, or ErrNotFound.
	Drink(ctx context.Context, id int64) (Drink, error)
}
