package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	pairColumns = `id, event_id, drink_one_id, drink_two_id,
    inc_one, sub_one, floor_one, inc_two, sub_two, floor_two`

	getPairSQL = `SELECT ` + pairColumns + `
    FROM pairs
    WHERE id = $1;`

	listPairsByEventSQL = `SELECT ` + pairColumns + `
    FROM pairs
    WHERE event_id = $1
    ORDER BY id;`

	getDrinkSQL = `SELECT id, name, base_price
    FROM drinks
    WHERE id = $1;`
)

// Pair returns the pair configuration by id.
func (s *Store) Pair(ctx context.Context, id int64) (Pair, error) {
	pool, err := s.getPool()
	if err != nil {
		return Pair{}, err
	}

	rows, queryErr := pool.Query(ctx, getPairSQL, id)
	if queryErr != nil {
		return Pair{}, fmt.Errorf("query pair: %w", queryErr)
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return Pair{}, rows.Err()
		}
		return Pair{}, ErrNotFound
	}
	return scanPair(rows)
}

// PairsByEvent lists every pair belonging to the event, ordered by id.
func (s *Store) PairsByEvent(ctx context.Context, eventID int64) ([]Pair, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listPairsByEventSQL, eventID)
	if queryErr != nil {
		return nil, fmt.Errorf("query pairs by event: %w", queryErr)
	}
	defer rows.Close()

	pairs := make([]Pair, 0)
	for rows.Next() {
		pair, scanErr := scanPair(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		pairs = append(pairs, pair)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return pairs, nil
}

// Drink returns the drink by id.
func (s *Store) Drink(ctx context.Context, id int64) (Drink, error) {
	pool, err := s.getPool()
	if err != nil {
		return Drink{}, err
	}

	var drink Drink
	var priceStr string
	row := pool.QueryRow(ctx, getDrinkSQL, id)
	if scanErr := row.Scan(&drink.ID, &drink.Name, &priceStr); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return Drink{}, ErrNotFound
		}
		return Drink{}, fmt.Errorf("query drink: %w", scanErr)
	}

	var convErr error
	drink.BasePrice, convErr = decimal.NewFromString(priceStr)
	if convErr != nil {
		return Drink{}, fmt.Errorf("parse base price: %w", convErr)
	}
	return drink, nil
}

func scanPair(rows pgx.Rows) (Pair, error) {
	var pair Pair
	var incOne, subOne, floorOne, incTwo, subTwo, floorTwo string

	if err := rows.Scan(
		&pair.ID,
		&pair.EventID,
		&pair.DrinkOneID,
		&pair.DrinkTwoID,
		&incOne,
		&subOne,
		&floorOne,
		&incTwo,
		&subTwo,
		&floorTwo,
	); err != nil {
		return Pair{}, err
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&pair.IncOne, incOne},
		{&pair.SubOne, subOne},
		{&pair.FloorOne, floorOne},
		{&pair.IncTwo, incTwo},
		{&pair.SubTwo, subTwo},
		{&pair.FloorTwo, floorTwo},
	}
	for _, f := range fields {
		value, err := decimal.NewFromString(f.src)
		if err != nil {
			return Pair{}, fmt.Errorf("parse pair delta: %w", err)
		}
		*f.dst = value
	}
	return pair, nil
}
