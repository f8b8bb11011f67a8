package broadcast

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drink-exchange/internal/storage"
)

// Update is the wire message emitted once per committed snapshot.
type Update struct {
	PairID        int64           `json:"pair_id"`
	PriceDrinkOne decimal.Decimal `json:"price_drink_one"`
	PriceDrinkTwo decimal.Decimal `json:"price_drink_two"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Subscriber receives updates on a buffered channel. A subscriber that stops
// draining loses messages rather than stalling the publisher.
type Subscriber struct {
	ch chan Update
}

// C returns the subscriber's receive channel.
func (s *Subscriber) C() <-chan Update {
	return s.ch
}

// Hub fans committed snapshots out to subscribers. Delivery to each
// subscriber follows publish order; delivery itself is best-effort and never
// blocks or fails the caller.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	buffer int
	logger zerolog.Logger
}

// NewHub constructs a Hub. buffer sets each subscriber's channel capacity.
func NewHub(buffer int, logger zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		buffer: buffer,
		logger: logger.With().Str("component", "broadcast").Logger(),
	}
}

// Subscribe registers a new observer.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Update, h.buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	return sub
}

// Unsubscribe removes the observer and closes its channel.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()
}

// Publish delivers the update to every subscriber without blocking. A full
// subscriber buffer drops the message for that subscriber only.
func (h *Hub) Publish(update Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		select {
		case sub.ch <- update:
		default:
			h.logger.Debug().Int64("pair_id", update.PairID).Msg("dropping update for slow subscriber")
		}
	}
}

// PublishSnapshot converts a committed snapshot into an Update and publishes
// it. The pricing engine calls this once per append, in append order.
func (h *Hub) PublishSnapshot(snap storage.PriceSnapshot) {
	h.Publish(Update{
		PairID:        snap.PairID,
		PriceDrinkOne: snap.PriceDrinkOne,
		PriceDrinkTwo: snap.PriceDrinkTwo,
		Timestamp:     snap.CreatedAt,
	})
}

// SubscriberCount reports the current number of observers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
