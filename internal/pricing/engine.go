package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"drink-exchange/internal/storage"
)

// DefaultMaxBatch bounds bulk price reads. Oversized batches are truncated
// to the most recent rows, never rejected.
const DefaultMaxBatch = 15

// TradedDrink names which side of a pair was bought.
type TradedDrink int

const (
	DrinkOne TradedDrink = iota + 1
	DrinkTwo
)

// Publisher receives every committed snapshot, in commit order. Publishing
// must not block; the broadcast hub satisfies this.
type Publisher interface {
	PublishSnapshot(snap storage.PriceSnapshot)
}

// Options wire the engine's collaborators.
type Options struct {
	Events    storage.EventStore
	Pairs     storage.PairStore
	Drinks    storage.DrinkStore
	Ledger    storage.Ledger
	Publisher Publisher
	MaxBatch  int
	Logger    zerolog.Logger
}

// Engine converts buy signals into consistent snapshot generations. All
// writes for one event run under that event's critical section, so reads
// during a buy always see the true latest price of every pair.
type Engine struct {
	events    storage.EventStore
	pairs     storage.PairStore
	drinks    storage.DrinkStore
	ledger    storage.Ledger
	publisher Publisher
	maxBatch  int
	logger    zerolog.Logger

	mu    sync.Mutex
	locks map[int64]chan struct{}
}

// New constructs the pricing engine.
func New(opts Options) *Engine {
	maxBatch := opts.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &Engine{
		events:    opts.Events,
		pairs:     opts.Pairs,
		drinks:    opts.Drinks,
		ledger:    opts.Ledger,
		publisher: opts.Publisher,
		maxBatch:  maxBatch,
		logger:    opts.Logger.With().Str("component", "pricing").Logger(),
		locks:     make(map[int64]chan struct{}),
	}
}

// lockEvent enters the event-scoped critical section. A queued caller may be
// cancelled via ctx; once inside, the section runs to completion.
func (e *Engine) lockEvent(ctx context.Context, eventID int64) (func(), error) {
	e.mu.Lock()
	sem, ok := e.locks[eventID]
	if !ok {
		sem = make(chan struct{}, 1)
		e.locks[eventID] = sem
	}
	e.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) currentEvent(ctx context.Context) (storage.Event, error) {
	ev, err := e.events.Current(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Event{}, ErrNoActiveEvent
		}
		return storage.Event{}, fmt.Errorf("resolve current event: %w", err)
	}
	return ev, nil
}

// Buy applies a purchase of one drink in a pair: the traded drink's price
// rises by its increment, the counterpart's falls by its decrement clamped at
// its floor, and every other pair of the event is carried forward into the
// same generation.
func (e *Engine) Buy(ctx context.Context, pairID int64, traded TradedDrink) (storage.PriceSnapshot, error) {
	ev, err := e.currentEvent(ctx)
	if err != nil {
		return storage.PriceSnapshot{}, err
	}

	unlock, err := e.lockEvent(ctx, ev.ID)
	if err != nil {
		return storage.PriceSnapshot{}, err
	}
	defer unlock()

	pair, err := e.pairs.Pair(ctx, pairID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PriceSnapshot{}, ErrPairNotFound
		}
		return storage.PriceSnapshot{}, fmt.Errorf("resolve pair %d: %w", pairID, err)
	}
	if pair.EventID != ev.ID {
		return storage.PriceSnapshot{}, ErrPairNotFound
	}

	eventPairs, err := e.pairs.PairsByEvent(ctx, ev.ID)
	if err != nil {
		return storage.PriceSnapshot{}, fmt.Errorf("list pairs for event %d: %w", ev.ID, err)
	}

	baseline, err := e.ledger.Latest(ctx, pairID)
	if errors.Is(err, storage.ErrNotFound) {
		baseline, err = e.initializePair(ctx, pair)
	}
	if err != nil {
		return storage.PriceSnapshot{}, err
	}

	snap, err := e.ledger.Append(ctx, applyTrade(pair, baseline, traded))
	if err != nil {
		return storage.PriceSnapshot{}, fmt.Errorf("%w: append traded snapshot for pair %d: %v", ErrLedgerWrite, pairID, err)
	}
	e.publish(snap)

	if err := e.carryForward(ctx, eventPairs, pairID); err != nil {
		return storage.PriceSnapshot{}, err
	}

	e.logger.Debug().
		Int64("event_id", ev.ID).
		Int64("pair_id", pairID).
		Int64("snapshot_id", snap.ID).
		Int("generation_size", len(eventPairs)).
		Msg("buy committed")

	return snap, nil
}

// carryForward re-emits every untraded pair's price as a fresh snapshot so a
// bulk read of the event returns one coherent generation, never a mix of old
// and new rows. Untraded pairs with no history are seeded from base prices.
func (e *Engine) carryForward(ctx context.Context, eventPairs []storage.Pair, tradedPairID int64) error {
	carry := make([]storage.Pair, 0, len(eventPairs))
	ids := make([]int64, 0, len(eventPairs))
	for _, p := range eventPairs {
		if p.ID == tradedPairID {
			continue
		}
		carry = append(carry, p)
		ids = append(ids, p.ID)
	}
	if len(carry) == 0 {
		return nil
	}

	latest, err := e.ledger.LatestMany(ctx, ids, storage.OnePerPair, 0)
	if err != nil {
		return fmt.Errorf("read carry set: %w", err)
	}
	byPair := make(map[int64]storage.PriceSnapshot, len(latest))
	for _, snap := range latest {
		byPair[snap.PairID] = snap
	}

	for _, p := range carry {
		prev, ok := byPair[p.ID]
		if !ok {
			if _, err := e.initializePair(ctx, p); err != nil {
				return err
			}
			continue
		}

		replica, err := e.ledger.Append(ctx, storage.PriceSnapshot{
			PairID:        p.ID,
			PriceDrinkOne: prev.PriceDrinkOne,
			PriceDrinkTwo: prev.PriceDrinkTwo,
		})
		if err != nil {
			return fmt.Errorf("%w: append carry snapshot for pair %d: %v", ErrLedgerWrite, p.ID, err)
		}
		e.publish(replica)
	}
	return nil
}

func applyTrade(pair storage.Pair, prev storage.PriceSnapshot, traded TradedDrink) storage.PriceSnapshot {
	one := prev.PriceDrinkOne
	two := prev.PriceDrinkTwo

	if traded == DrinkOne {
		one = one.Add(pair.IncOne)
		two = decimal.Max(two.Sub(pair.SubTwo), pair.FloorTwo)
	} else {
		two = two.Add(pair.IncTwo)
		one = decimal.Max(one.Sub(pair.SubOne), pair.FloorOne)
	}

	return storage.PriceSnapshot{PairID: pair.ID, PriceDrinkOne: one, PriceDrinkTwo: two}
}

// initializePair seeds a never-traded pair from its drinks' base prices. Runs
// under the event lock, which is what makes concurrent initialization safe.
func (e *Engine) initializePair(ctx context.Context, pair storage.Pair) (storage.PriceSnapshot, error) {
	one, err := e.drinks.Drink(ctx, pair.DrinkOneID)
	if err != nil {
		return storage.PriceSnapshot{}, fmt.Errorf("resolve drink %d: %w", pair.DrinkOneID, err)
	}
	two, err := e.drinks.Drink(ctx, pair.DrinkTwoID)
	if err != nil {
		return storage.PriceSnapshot{}, fmt.Errorf("resolve drink %d: %w", pair.DrinkTwoID, err)
	}

	snap, err := e.ledger.Append(ctx, storage.PriceSnapshot{
		PairID:        pair.ID,
		PriceDrinkOne: one.BasePrice,
		PriceDrinkTwo: two.BasePrice,
	})
	if err != nil {
		return storage.PriceSnapshot{}, fmt.Errorf("%w: initialize pair %d: %v", ErrLedgerWrite, pair.ID, err)
	}
	e.publish(snap)
	return snap, nil
}

// Latest returns the pair's current snapshot, seeding it from base prices on
// first read. Absence of a snapshot is a defined state, not an error.
func (e *Engine) Latest(ctx context.Context, pairID int64) (storage.PriceSnapshot, error) {
	snap, err := e.ledger.Latest(ctx, pairID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.PriceSnapshot{}, fmt.Errorf("read latest snapshot: %w", err)
	}

	pair, err := e.pairs.Pair(ctx, pairID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.PriceSnapshot{}, ErrPairNotFound
		}
		return storage.PriceSnapshot{}, fmt.Errorf("resolve pair %d: %w", pairID, err)
	}

	unlock, err := e.lockEvent(ctx, pair.EventID)
	if err != nil {
		return storage.PriceSnapshot{}, err
	}
	defer unlock()

	// Re-check under the lock: a racing caller may have initialized already.
	if snap, err := e.ledger.Latest(ctx, pairID); err == nil {
		return snap, nil
	}
	return e.initializePair(ctx, pair)
}

// LatestMany returns each pair's edge snapshot(s), initializing never-traded
// pairs first. Results come back in descending id order and are truncated to
// the configured batch bound.
func (e *Engine) LatestMany(ctx context.Context, pairIDs []int64, mode storage.ReadMode) ([]storage.PriceSnapshot, error) {
	if len(pairIDs) == 0 {
		return nil, nil
	}

	snaps, err := e.ledger.LatestMany(ctx, pairIDs, mode, e.maxBatch)
	if err != nil {
		return nil, fmt.Errorf("read latest snapshots: %w", err)
	}

	found := make(map[int64]struct{}, len(snaps))
	for _, snap := range snaps {
		found[snap.PairID] = struct{}{}
	}

	for _, id := range pairIDs {
		if _, ok := found[id]; ok {
			continue
		}
		seeded, err := e.Latest(ctx, id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, seeded)
		found[id] = struct{}{}
	}

	sort.Slice(snaps, func(i, j int) bool { return snaps[i].ID > snaps[j].ID })
	if len(snaps) > e.maxBatch {
		snaps = snaps[:e.maxBatch]
	}
	return snaps, nil
}

// MarketSnapshot returns the current state of the whole market: one edge
// snapshot per pair of the current event.
func (e *Engine) MarketSnapshot(ctx context.Context) ([]storage.PriceSnapshot, error) {
	ev, err := e.currentEvent(ctx)
	if err != nil {
		return nil, err
	}

	pairs, err := e.pairs.PairsByEvent(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list pairs for event %d: %w", ev.ID, err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(pairs))
	for _, p := range pairs {
		ids = append(ids, p.ID)
	}
	return e.LatestMany(ctx, ids, storage.AllAtEdgeGeneration)
}

// Pairs lists the current event's pair configurations.
func (e *Engine) Pairs(ctx context.Context) ([]storage.Pair, error) {
	ev, err := e.currentEvent(ctx)
	if err != nil {
		return nil, err
	}
	pairs, err := e.pairs.PairsByEvent(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("list pairs for event %d: %w", ev.ID, err)
	}
	return pairs, nil
}

func (e *Engine) publish(snap storage.PriceSnapshot) {
	if e.publisher == nil {
		return
	}
	e.publisher.PublishSnapshot(snap)
}
