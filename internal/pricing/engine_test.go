package pricing_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drink-exchange/internal/pricing"
	"drink-exchange/internal/storage"
	"drink-exchange/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %s, got %s", want, got)
}

// capturePublisher records published snapshots in arrival order.
type capturePublisher struct {
	mu    sync.Mutex
	snaps []storage.PriceSnapshot
}

func (c *capturePublisher) PublishSnapshot(snap storage.PriceSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
}

func (c *capturePublisher) all() []storage.PriceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]storage.PriceSnapshot, len(c.snaps))
	copy(out, c.snaps)
	return out
}

type fixture struct {
	ledger    *memory.Ledger
	events    *memory.EventStore
	pairs     *memory.PairStore
	publisher *capturePublisher
	engine    *pricing.Engine
	event     storage.Event
}

func newFixture(t *testing.T, maxBatch int) *fixture {
	t.Helper()

	ledger := memory.NewLedger()
	events := memory.NewEventStore(time.Hour, ledger)
	pairs := memory.NewPairStore()
	pub := &capturePublisher{}

	ev, err := events.Create(context.Background())
	require.NoError(t, err)

	engine := pricing.New(pricing.Options{
		Events:    events,
		Pairs:     pairs,
		Drinks:    pairs,
		Ledger:    ledger,
		Publisher: pub,
		MaxBatch:  maxBatch,
		Logger:    zerolog.Nop(),
	})

	return &fixture{
		ledger:    ledger,
		events:    events,
		pairs:     pairs,
		publisher: pub,
		engine:    engine,
		event:     ev,
	}
}

// seedPair adds a pair and its two drinks. Drinks get ids 2*pairID-1 and
// 2*pairID so multiple pairs never collide.
func (f *fixture) seedPair(pairID int64, baseOne, baseTwo string) {
	d1, d2 := 2*pairID-1, 2*pairID
	f.pairs.SeedDrink(storage.Drink{ID: d1, Name: "drink-one", BasePrice: dec(baseOne)})
	f.pairs.SeedDrink(storage.Drink{ID: d2, Name: "drink-two", BasePrice: dec(baseTwo)})
	f.pairs.SeedPair(storage.Pair{
		ID:         pairID,
		EventID:    f.event.ID,
		DrinkOneID: d1,
		DrinkTwoID: d2,
		IncOne:     dec("1"),
		SubOne:     dec("0.5"),
		FloorOne:   dec("2"),
		IncTwo:     dec("1"),
		SubTwo:     dec("0.5"),
		FloorTwo:   dec("2"),
	})
}

func TestBuyAdjustsBothPrices(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	snap, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
	require.NoError(t, err)
	requireDecimal(t, "6", snap.PriceDrinkOne)
	requireDecimal(t, "4.5", snap.PriceDrinkTwo)

	history, err := f.ledger.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, 2, "first buy seeds the pair, then records the trade")
	requireDecimal(t, "5", history[0].PriceDrinkOne)
	requireDecimal(t, "5", history[0].PriceDrinkTwo)
	assert.Greater(t, history[1].ID, history[0].ID)
}

func TestBuyDrinkTwoIsSymmetric(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "7", "3")

	snap, err := f.engine.Buy(context.Background(), 1, pricing.DrinkTwo)
	require.NoError(t, err)
	requireDecimal(t, "6.5", snap.PriceDrinkOne)
	requireDecimal(t, "4", snap.PriceDrinkTwo)
}

func TestBuyClampsCounterpartAtFloor(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	var last storage.PriceSnapshot
	for i := 0; i < 8; i++ {
		snap, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
		require.NoError(t, err)
		last = snap
	}

	requireDecimal(t, "13", last.PriceDrinkOne)
	requireDecimal(t, "2", last.PriceDrinkTwo)

	history, err := f.ledger.History(ctx, 1, 0)
	require.NoError(t, err)
	for _, snap := range history {
		assert.True(t, snap.PriceDrinkTwo.GreaterThanOrEqual(dec("2")),
			"counterpart price %s dropped below the floor", snap.PriceDrinkTwo)
	}
}

func TestBuyCarriesForwardOtherPairs(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	f.seedPair(2, "7", "3")
	ctx := context.Background()

	traded, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
	require.NoError(t, err)

	// The untraded pair joins the generation at its base prices, committed
	// after the traded snapshot.
	market, err := f.engine.MarketSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, market, 2)

	byPair := make(map[int64]storage.PriceSnapshot, len(market))
	for _, snap := range market {
		byPair[snap.PairID] = snap
	}
	requireDecimal(t, "6", byPair[1].PriceDrinkOne)
	requireDecimal(t, "4.5", byPair[1].PriceDrinkTwo)
	requireDecimal(t, "7", byPair[2].PriceDrinkOne)
	requireDecimal(t, "3", byPair[2].PriceDrinkTwo)
	assert.Greater(t, byPair[2].ID, traded.ID)

	// Trading the second pair replicates the first pair's prices forward.
	_, err = f.engine.Buy(ctx, 2, pricing.DrinkTwo)
	require.NoError(t, err)

	market, err = f.engine.MarketSnapshot(ctx)
	require.NoError(t, err)
	require.Len(t, market, 2)
	for _, snap := range market {
		byPair[snap.PairID] = snap
	}
	requireDecimal(t, "6", byPair[1].PriceDrinkOne)
	requireDecimal(t, "4.5", byPair[1].PriceDrinkTwo)
	requireDecimal(t, "6.5", byPair[2].PriceDrinkOne)
	requireDecimal(t, "4", byPair[2].PriceDrinkTwo)
}

func TestConcurrentBuysApplySequentially(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	const buyers = 10
	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Buy(ctx, 1, pricing.DrinkOne)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	latest, err := f.engine.Latest(ctx, 1)
	require.NoError(t, err)
	requireDecimal(t, "15", latest.PriceDrinkOne)
	requireDecimal(t, "2", latest.PriceDrinkTwo)

	// Every increment landed: consecutive snapshots differ by exactly one.
	history, err := f.ledger.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, history, buyers+1)
	for i := 1; i < len(history); i++ {
		diff := history[i].PriceDrinkOne.Sub(history[i-1].PriceDrinkOne)
		requireDecimal(t, "1", diff)
	}
}

func TestBuyQueuedCallerCancellable(t *testing.T) {
	ledger := memory.NewLedger()
	events := memory.NewEventStore(time.Hour, ledger)
	pairs := memory.NewPairStore()
	gated := &gatedLedger{Ledger: ledger, enter: make(chan struct{}), release: make(chan struct{})}

	_, err := events.Create(context.Background())
	require.NoError(t, err)

	engine := pricing.New(pricing.Options{
		Events: events,
		Pairs:  pairs,
		Drinks: pairs,
		Ledger: gated,
		Logger: zerolog.Nop(),
	})

	pairs.SeedDrink(storage.Drink{ID: 1, Name: "a", BasePrice: dec("5")})
	pairs.SeedDrink(storage.Drink{ID: 2, Name: "b", BasePrice: dec("5")})
	pairs.SeedPair(storage.Pair{
		ID: 1, EventID: 1, DrinkOneID: 1, DrinkTwoID: 2,
		IncOne: dec("1"), SubOne: dec("0.5"), FloorOne: dec("2"),
		IncTwo: dec("1"), SubTwo: dec("0.5"), FloorTwo: dec("2"),
	})

	first := make(chan error, 1)
	go func() {
		_, err := engine.Buy(context.Background(), 1, pricing.DrinkOne)
		first <- err
	}()
	<-gated.enter // first buy holds the event lock, parked in Append

	ctx, cancel := context.WithCancel(context.Background())
	second := make(chan error, 1)
	go func() {
		_, err := engine.Buy(ctx, 1, pricing.DrinkOne)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	require.ErrorIs(t, <-second, context.Canceled)

	gated.release <- struct{}{} // init append
	<-gated.enter
	gated.release <- struct{}{} // traded append
	require.NoError(t, <-first)
}

type gatedLedger struct {
	storage.Ledger
	enter   chan struct{}
	release chan struct{}
}

func (g *gatedLedger) Append(ctx context.Context, snap storage.PriceSnapshot) (storage.PriceSnapshot, error) {
	g.enter <- struct{}{}
	<-g.release
	return g.Ledger.Append(ctx, snap)
}

func TestBuyWithoutCurrentEvent(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	require.NoError(t, f.events.Deactivate(ctx, f.event.ID))

	_, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
	require.ErrorIs(t, err, pricing.ErrNoActiveEvent)

	_, err = f.engine.MarketSnapshot(ctx)
	require.ErrorIs(t, err, pricing.ErrNoActiveEvent)
}

func TestExpiredEventIsNotCurrent(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
	require.NoError(t, err)

	// Move the clock past the TTL: the event is still marked active but no
	// longer current.
	f.events.Now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = f.engine.Buy(ctx, 1, pricing.DrinkOne)
	require.ErrorIs(t, err, pricing.ErrNoActiveEvent)
}

func TestBuyUnknownPair(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, 99, pricing.DrinkOne)
	require.ErrorIs(t, err, pricing.ErrPairNotFound)

	// A pair configured for a different event is invisible too.
	f.pairs.SeedPair(storage.Pair{
		ID: 7, EventID: f.event.ID + 1, DrinkOneID: 1, DrinkTwoID: 2,
		IncOne: dec("1"), SubOne: dec("0.5"), FloorOne: dec("2"),
		IncTwo: dec("1"), SubTwo: dec("0.5"), FloorTwo: dec("2"),
	})
	_, err = f.engine.Buy(ctx, 7, pricing.DrinkOne)
	require.ErrorIs(t, err, pricing.ErrPairNotFound)
}

func TestLatestSeedsUntradedPair(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	snap, err := f.engine.Latest(ctx, 1)
	require.NoError(t, err)
	requireDecimal(t, "5", snap.PriceDrinkOne)
	requireDecimal(t, "5", snap.PriceDrinkTwo)

	again, err := f.engine.Latest(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, snap.ID, again.ID, "second read must not seed again")

	history, err := f.ledger.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestConcurrentLatestSeedsOnce(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	const readers = 8
	ids := make([]int64, readers)
	errs := make([]error, readers)
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := f.engine.Latest(ctx, 1)
			ids[i], errs[i] = snap.ID, err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for i := 1; i < readers; i++ {
		assert.Equal(t, ids[0], ids[i])
	}
	history, err := f.ledger.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestLatestUnknownPair(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.engine.Latest(context.Background(), 42)
	require.ErrorIs(t, err, pricing.ErrPairNotFound)
}

func TestLatestManyTruncatesToMaxBatch(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	ids := []int64{1, 2, 3, 4, 5}
	for _, id := range ids {
		f.seedPair(id, "5", "5")
	}

	snaps, err := f.engine.LatestMany(ctx, ids, storage.OnePerPair)
	require.NoError(t, err)
	require.Len(t, snaps, 3, "oversized batches are truncated, not rejected")
	for i := 1; i < len(snaps); i++ {
		assert.Greater(t, snaps[i-1].ID, snaps[i].ID, "results come back newest first")
	}
}

func TestLatestManySeedsMissingPairs(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	f.seedPair(2, "7", "3")
	ctx := context.Background()

	_, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
	require.NoError(t, err)
	// Clear pair 2's carry row so it must be seeded on read.
	require.NoError(t, f.ledger.DeleteLatest(ctx, 2))

	snaps, err := f.engine.LatestMany(ctx, []int64{1, 2}, storage.OnePerPair)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
}

func TestPublisherSeesCommitOrder(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	f.seedPair(2, "7", "3")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
		require.NoError(t, err)
		_, err = f.engine.Buy(ctx, 2, pricing.DrinkTwo)
		require.NoError(t, err)
	}

	published := f.publisher.all()
	require.NotEmpty(t, published)
	for i := 1; i < len(published); i++ {
		assert.Greater(t, published[i].ID, published[i-1].ID,
			"snapshots must be published in commit order")
	}
}

func TestNewEventStartsFromBasePrices(t *testing.T) {
	f := newFixture(t, 0)
	f.seedPair(1, "5", "5")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.engine.Buy(ctx, 1, pricing.DrinkOne)
		require.NoError(t, err)
	}
	drifted, err := f.engine.Latest(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, f.events.Deactivate(ctx, f.event.ID))
	next, err := f.events.Create(ctx)
	require.NoError(t, err)

	// The old event's prices are gone.
	history, err := f.ledger.History(ctx, 1, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	// A pair of the new event seeds from base prices, and snapshot ids keep
	// climbing across the reset.
	f.event = next
	f.seedPair(6, "4", "9")
	snap, err := f.engine.Buy(ctx, 6, pricing.DrinkTwo)
	require.NoError(t, err)
	requireDecimal(t, "3.5", snap.PriceDrinkOne)
	requireDecimal(t, "10", snap.PriceDrinkTwo)
	assert.Greater(t, snap.ID, drifted.ID)
}

func TestCreateEventConflictsWhileCurrent(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.events.Create(context.Background())
	require.ErrorIs(t, err, storage.ErrActiveEventExists)
}
