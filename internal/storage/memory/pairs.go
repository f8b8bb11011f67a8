package memory

import (
	"context"
	"sort"
	"sync"

	"drink-exchange/internal/storage"
)

// PairStore is an in-memory implementation of storage.PairStore and
// storage.DrinkStore. Pairs and drinks are read-only for the engine; Seed
// methods exist for wiring up tests and the in-memory serve mode.
type PairStore struct {
	mu     sync.RWMutex
	pairs  map[int64]storage.Pair
	drinks map[int64]storage.Drink
}

// NewPairStore creates an empty in-memory pair/drink store.
func NewPairStore() *PairStore {
	return &PairStore{
		pairs:  make(map[int64]storage.Pair),
		drinks: make(map[int64]storage.Drink),
	}
}

var (
	_ storage.PairStore  = (*PairStore)(nil)
	_ storage.DrinkStore = (*PairStore)(nil)
)

// Pair returns the pair configuration by id.
func (s *PairStore) Pair(_ context.Context, id int64) (storage.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pair, ok := s.pairs[id]
	if !ok {
		return storage.Pair{}, storage.ErrNotFound
	}
	return pair, nil
}

// PairsByEvent lists every pair belonging to the event, ordered by id.
func (s *PairStore) PairsByEvent(_ context.Context, eventID int64) ([]storage.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.Pair
	for _, pair := range s.pairs {
		if pair.EventID == eventID {
			result = append(result, pair)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Drink returns the drink by id.
func (s *PairStore) Drink(_ context.Context, id int64) (storage.Drink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	drink, ok := s.drinks[id]
	if !ok {
		return storage.Drink{}, storage.ErrNotFound
	}
	return drink, nil
}

// SeedPair inserts a pair configuration.
func (s *PairStore) SeedPair(pair storage.Pair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[pair.ID] = pair
}

// SeedDrink inserts a drink.
func (s *PairStore) SeedDrink(drink storage.Drink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drinks[drink.ID] = drink
}
