package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// eventCreateLockKey serialises event creation across processes.
const eventCreateLockKey = int64(0x6472696e6b)

const (
	currentEventSQL = `SELECT id, created_at, active
    FROM events
    WHERE active = TRUE
      AND created_at > $1
    ORDER BY id DESC
    LIMIT 1;`

	insertEventSQL = `INSERT INTO events (active) VALUES (TRUE)
    RETURNING id, created_at, active;`

	deactivateEventSQL = `UPDATE events SET active = FALSE WHERE id = $1;`

	deactivateExpiredSQL = `UPDATE events
    SET active = FALSE
    WHERE active = TRUE
      AND created_at <= $1;`

	advisoryXactLockSQL = `SELECT pg_advisory_xact_lock($1);`
)

// Current returns the current event per the selection rule: active, younger
// than the TTL, greatest id wins.
func (s *Store) Current(ctx context.Context) (Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return Event{}, err
	}

	cutoff := time.Now().UTC().Add(-s.ttl)

	var ev Event
	row := pool.QueryRow(ctx, currentEventSQL, cutoff)
	if scanErr := row.Scan(&ev.ID, &ev.CreatedAt, &ev.Active); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Event{}, ErrNotFound
		}
		return Event{}, fmt.Errorf("query current event: %w", scanErr)
	}
	return ev, nil
}

// Create opens a new event and clears the ledger in one transaction. The
// advisory lock keeps two admin processes from double-creating.
func (s *Store) Create(ctx context.Context) (Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return Event{}, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return Event{}, fmt.Errorf("begin event creation: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, advisoryXactLockSQL, eventCreateLockKey); err != nil {
		return Event{}, fmt.Errorf("acquire event creation lock: %w", err)
	}

	cutoff := time.Now().UTC().Add(-s.ttl)
	var existing Event
	row := tx.QueryRow(ctx, currentEventSQL, cutoff)
	scanErr := row.Scan(&existing.ID, &existing.CreatedAt, &existing.Active)
	switch {
	case scanErr == nil:
		return Event{}, ErrActiveEventExists
	case errors.Is(scanErr, pgx.ErrNoRows):
		// no current event, proceed
	default:
		return Event{}, fmt.Errorf("check current event: %w", scanErr)
	}

	// A new event starts every pair from its base price again.
	if _, err := tx.Exec(ctx, clearSnapshotsSQL); err != nil {
		return Event{}, fmt.Errorf("clear snapshots for new event: %w", err)
	}

	var ev Event
	row = tx.QueryRow(ctx, insertEventSQL)
	if err := row.Scan(&ev.ID, &ev.CreatedAt, &ev.Active); err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Event{}, fmt.Errorf("commit event creation: %w", err)
	}
	return ev, nil
}

// Deactivate marks the event inactive.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deactivateEventSQL, id); execErr != nil {
		return fmt.Errorf("deactivate event: %w", execErr)
	}
	return nil
}

// DeactivateExpired flips active=false on events whose TTL elapsed.
func (s *Store) DeactivateExpired(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.ttl)
	cmdTag, execErr := pool.Exec(ctx, deactivateExpiredSQL, cutoff)
	if execErr != nil {
		return 0, fmt.Errorf("deactivate expired events: %w", execErr)
	}
	return cmdTag.RowsAffected(), nil
}
