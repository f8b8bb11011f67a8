package memory

import (
	"context"
	"sync"
	"time"

	"drink-exchange/internal/storage"
)

// EventStore is an in-memory implementation of storage.EventStore.
type EventStore struct {
	mu     sync.RWMutex
	nextID int64
	events []storage.Event
	ttl    time.Duration
	ledger *Ledger

	// Now is overridable in tests to move the clock.
	Now func() time.Time
}

// NewEventStore creates an in-memory event store. The ledger, when non-nil,
// is cleared on event creation just like the Postgres store does in one
// transaction.
func NewEventStore(ttl time.Duration, ledger *Ledger) *EventStore {
	return &EventStore{nextID: 1, ttl: ttl, ledger: ledger, Now: time.Now}
}

var _ storage.EventStore = (*EventStore)(nil)

// Current returns the greatest-id active event younger than the TTL.
func (s *EventStore) Current(_ context.Context) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.currentLocked()
}

func (s *EventStore) currentLocked() (storage.Event, error) {
	cutoff := s.Now().Add(-s.ttl)
	for i := len(s.events) - 1; i >= 0; i-- {
		ev := s.events[i]
		if ev.Active && ev.CreatedAt.After(cutoff) {
			return ev, nil
		}
	}
	return storage.Event{}, storage.ErrNotFound
}

// Create opens a new event, clearing the ledger. Fails with
// ErrActiveEventExists while an event is still current.
func (s *EventStore) Create(ctx context.Context) (storage.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.currentLocked(); err == nil {
		return storage.Event{}, storage.ErrActiveEventExists
	}

	if s.ledger != nil {
		if err := s.ledger.Clear(ctx); err != nil {
			return storage.Event{}, err
		}
	}

	ev := storage.Event{ID: s.nextID, CreatedAt: s.Now().UTC(), Active: true}
	s.nextID++
	s.events = append(s.events, ev)
	return ev, nil
}

// Deactivate marks the event inactive.
func (s *EventStore) Deactivate(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Active = false
			return nil
		}
	}
	return storage.ErrNotFound
}

// DeactivateExpired flips active=false on events past their TTL.
func (s *EventStore) DeactivateExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.Now().Add(-s.ttl)
	var changed int64
	for i := range s.events {
		if s.events[i].Active && !s.events[i].CreatedAt.After(cutoff) {
			s.events[i].Active = false
			changed++
		}
	}
	return changed, nil
}

// Seed inserts an event row as-is. Test helper.
func (s *EventStore) Seed(ev storage.Event) storage.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ev.ID == 0 {
		ev.ID = s.nextID
	}
	if ev.ID >= s.nextID {
		s.nextID = ev.ID + 1
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.Now().UTC()
	}
	s.events = append(s.events, ev)
	return ev
}
