package pricing

import "errors"

var (
	// ErrNoActiveEvent means no event is current; all pricing operations that
	// need a live market are unavailable.
	ErrNoActiveEvent = errors.New("pricing: no active event")

	// ErrPairNotFound means the pair does not exist or does not belong to the
	// current event.
	ErrPairNotFound = errors.New("pricing: pair not found")

	// ErrLedgerWrite wraps storage failures during a buy. A failed buy is not
	// retried internally: a retry after a partial commit could duplicate
	// carry-forward rows, so the caller resubmits and the engine re-derives
	// the baseline from whatever was persisted.
	ErrLedgerWrite = errors.New("pricing: ledger write failed")
)
