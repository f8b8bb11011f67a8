package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is one exchange session. At most one event is "current" at a time:
// the most recent active row whose age is below the configured TTL.
type Event struct {
	ID        int64
	CreatedAt time.Time
	Active    bool
}

// Pair couples two drinks whose prices move inversely on each buy. The
// increment/decrement deltas and floors are fixed at creation time and are
// read-only for the pricing engine.
type Pair struct {
	ID         int64
	EventID    int64
	DrinkOneID int64
	DrinkTwoID int64
	IncOne     decimal.Decimal
	SubOne     decimal.Decimal
	FloorOne   decimal.Decimal
	IncTwo     decimal.Decimal
	SubTwo     decimal.Decimal
	FloorTwo   decimal.Decimal
}

// Drink supplies the base price used to seed a pair's first snapshot.
type Drink struct {
	ID        int64
	Name      string
	BasePrice decimal.Decimal
}

// PriceSnapshot is one immutable price record for one pair. Ids are assigned
// at insertion and strictly increase; for a given pair the snapshot with the
// greatest id is its current price.
type PriceSnapshot struct {
	ID            int64
	PairID        int64
	PriceDrinkOne decimal.Decimal
	PriceDrinkTwo decimal.Decimal
	CreatedAt     time.Time
}

// ReadMode selects how LatestMany resolves each pair's snapshot.
type ReadMode int

const (
	// OnePerPair returns exactly one row per pair id: the highest-id snapshot.
	OnePerPair ReadMode = iota
	// AllAtEdgeGeneration returns every row sharing a pair's maximal id. With
	// strictly monotonic ids this collapses to one row per pair, but the mode
	// stays addressable for callers that must tolerate tied ids.
	AllAtEdgeGeneration
)
