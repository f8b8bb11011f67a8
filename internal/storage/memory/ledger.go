package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"drink-exchange/internal/storage"
)

// Ledger is an in-memory implementation of storage.Ledger.
type Ledger struct {
	mu     sync.RWMutex
	nextID int64
	snaps  []storage.PriceSnapshot
}

// NewLedger creates an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{nextID: 1}
}

var _ storage.Ledger = (*Ledger)(nil)

// Latest returns the highest-id snapshot for the pair.
func (l *Ledger) Latest(_ context.Context, pairID int64) (storage.PriceSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i := len(l.snaps) - 1; i >= 0; i-- {
		if l.snaps[i].PairID == pairID {
			return l.snaps[i], nil
		}
	}
	return storage.PriceSnapshot{}, storage.ErrNotFound
}

// LatestMany resolves each pair's edge snapshot(s) ordered by descending id.
func (l *Ledger) LatestMany(_ context.Context, pairIDs []int64, mode storage.ReadMode, limit int) ([]storage.PriceSnapshot, error) {
	if len(pairIDs) == 0 {
		return nil, nil
	}

	wanted := make(map[int64]struct{}, len(pairIDs))
	for _, id := range pairIDs {
		wanted[id] = struct{}{}
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	edges := make(map[int64]int64, len(pairIDs))
	for _, snap := range l.snaps {
		if _, ok := wanted[snap.PairID]; !ok {
			continue
		}
		if snap.ID > edges[snap.PairID] {
			edges[snap.PairID] = snap.ID
		}
	}

	result := make([]storage.PriceSnapshot, 0, len(edges))
	for _, snap := range l.snaps {
		edge, ok := edges[snap.PairID]
		if !ok {
			continue
		}
		switch mode {
		case storage.OnePerPair:
			if snap.ID == edge {
				result = append(result, snap)
			}
		case storage.AllAtEdgeGeneration:
			// With a strictly increasing counter ids cannot tie, but the mode
			// keeps its contract: every row at the pair's edge id.
			if snap.ID == edge {
				result = append(result, snap)
			}
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Append assigns the next ordering id and stores the snapshot.
func (l *Ledger) Append(_ context.Context, snap storage.PriceSnapshot) (storage.PriceSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap.ID = l.nextID
	l.nextID++
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now().UTC()
	}
	l.snaps = append(l.snaps, snap)
	return snap, nil
}

// History lists a pair's snapshots in ascending id order.
func (l *Ledger) History(_ context.Context, pairID int64, limit int) ([]storage.PriceSnapshot, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []storage.PriceSnapshot
	for _, snap := range l.snaps {
		if snap.PairID == pairID {
			result = append(result, snap)
		}
	}
	if limit > 0 && len(result) > limit {
		result = result[len(result)-limit:]
	}
	return result, nil
}

// DeleteLatest removes a pair's most recent snapshot.
func (l *Ledger) DeleteLatest(_ context.Context, pairID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := len(l.snaps) - 1; i >= 0; i-- {
		if l.snaps[i].PairID == pairID {
			l.snaps = append(l.snaps[:i], l.snaps[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

// Clear deletes all snapshots. The id counter keeps advancing so ordering
// stays strictly monotonic across events.
func (l *Ledger) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.snaps = nil
	return nil
}
