package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	latestSnapshotSQL = `SELECT id, pair_id, price_drink_one, price_drink_two, created_at
    FROM price_snapshots
    WHERE pair_id = $1
    ORDER BY id DESC
    LIMIT 1;`

	latestOnePerPairSQL = `SELECT id, pair_id, price_drink_one, price_drink_two, created_at
    FROM (
        SELECT DISTINCT ON (pair_id) id, pair_id, price_drink_one, price_drink_two, created_at
        FROM price_snapshots
        WHERE pair_id = ANY($1)
        ORDER BY pair_id, id DESC
    ) latest
    ORDER BY id DESC;`

	latestAtEdgeSQL = `SELECT p.id, p.pair_id, p.price_drink_one, p.price_drink_two, p.created_at
    FROM price_snapshots p
    JOIN (
        SELECT pair_id, MAX(id) AS edge_id
        FROM price_snapshots
        WHERE pair_id = ANY($1)
        GROUP BY pair_id
    ) edge ON p.pair_id = edge.pair_id AND p.id = edge.edge_id
    ORDER BY p.id DESC;`

	appendSnapshotSQL = `INSERT INTO price_snapshots (pair_id, price_drink_one, price_drink_two)
    VALUES ($1, $2, $3)
    RETURNING id, created_at;`

	historySQL = `SELECT id, pair_id, price_drink_one, price_drink_two, created_at
    FROM price_snapshots
    WHERE pair_id = $1
    ORDER BY id;`

	historyTailSQL = `SELECT id, pair_id, price_drink_one, price_drink_two, created_at
    FROM (
        SELECT id, pair_id, price_drink_one, price_drink_two, created_at
        FROM price_snapshots
        WHERE pair_id = $1
        ORDER BY id DESC
        LIMIT $2
    ) tail
    ORDER BY id;`

	deleteLatestSQL = `DELETE FROM price_snapshots
    WHERE id = (SELECT MAX(id) FROM price_snapshots WHERE pair_id = $1);`

	clearSnapshotsSQL = `DELETE FROM price_snapshots;`
)

// Latest returns the highest-id snapshot for the pair.
func (s *Store) Latest(ctx context.Context, pairID int64) (PriceSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceSnapshot{}, err
	}

	rows, queryErr := pool.Query(ctx, latestSnapshotSQL, pairID)
	if queryErr != nil {
		return PriceSnapshot{}, fmt.Errorf("query latest snapshot: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return PriceSnapshot{}, rows.Err()
		}
		return PriceSnapshot{}, ErrNotFound
	}
	return scanSnapshot(rows)
}

// LatestMany resolves each pair's edge snapshot(s) ordered by descending id.
func (s *Store) LatestMany(ctx context.Context, pairIDs []int64, mode ReadMode, limit int) ([]PriceSnapshot, error) {
	if len(pairIDs) == 0 {
		return nil, nil
	}

	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	query := latestOnePerPairSQL
	if mode == AllAtEdgeGeneration {
		query = latestAtEdgeSQL
	}

	rows, queryErr := pool.Query(ctx, query, pairIDs)
	if queryErr != nil {
		return nil, fmt.Errorf("query latest snapshots: %w", queryErr)
	}
	defer rows.Close()

	snaps, scanErr := scanSnapshots(rows)
	if scanErr != nil {
		return nil, scanErr
	}
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	return snaps, nil
}

// Append persists a snapshot; the sequence assigns the next ordering id.
func (s *Store) Append(ctx context.Context, snap PriceSnapshot) (PriceSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return PriceSnapshot{}, err
	}

	row := pool.QueryRow(ctx, appendSnapshotSQL,
		snap.PairID,
		snap.PriceDrinkOne.String(),
		snap.PriceDrinkTwo.String(),
	)
	if scanErr := row.Scan(&snap.ID, &snap.CreatedAt); scanErr != nil {
		return PriceSnapshot{}, fmt.Errorf("append snapshot: %w", scanErr)
	}
	return snap, nil
}

// History lists a pair's snapshots in ascending id order.
func (s *Store) History(ctx context.Context, pairID int64, limit int) ([]PriceSnapshot, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var rows pgx.Rows
	var queryErr error
	if limit > 0 {
		rows, queryErr = pool.Query(ctx, historyTailSQL, pairID, limit)
	} else {
		rows, queryErr = pool.Query(ctx, historySQL, pairID)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("query snapshot history: %w", queryErr)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// DeleteLatest removes a pair's most recent snapshot.
func (s *Store) DeleteLatest(ctx context.Context, pairID int64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	cmdTag, execErr := pool.Exec(ctx, deleteLatestSQL, pairID)
	if execErr != nil {
		return fmt.Errorf("delete latest snapshot: %w", execErr)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear deletes all snapshots.
func (s *Store) Clear(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, clearSnapshotsSQL); execErr != nil {
		return fmt.Errorf("clear snapshots: %w", execErr)
	}
	return nil
}

func scanSnapshot(rows pgx.Rows) (PriceSnapshot, error) {
	var snap PriceSnapshot
	var oneStr, twoStr string

	if err := rows.Scan(&snap.ID, &snap.PairID, &oneStr, &twoStr, &snap.CreatedAt); err != nil {
		return PriceSnapshot{}, err
	}

	var convErr error
	snap.PriceDrinkOne, convErr = decimal.NewFromString(oneStr)
	if convErr != nil {
		return PriceSnapshot{}, fmt.Errorf("parse price drink one: %w", convErr)
	}
	snap.PriceDrinkTwo, convErr = decimal.NewFromString(twoStr)
	if convErr != nil {
		return PriceSnapshot{}, fmt.Errorf("parse price drink two: %w", convErr)
	}
	return snap, nil
}

func scanSnapshots(rows pgx.Rows) ([]PriceSnapshot, error) {
	snaps := make([]PriceSnapshot, 0)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return snaps, nil
}
