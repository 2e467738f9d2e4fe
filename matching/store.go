package matching

import (
	"context"
	"time"
)

// Store is the durable action ledger.
//
// Implementations classify their own failures: a write that collides with an
// existing (actor, target) record returns *DuplicateActionError and transient
// driver failures return *StorageUnavailableError.
type Store interface {
	// WithPair runs fn in a transaction that holds the lock for the unordered
	// pair {a, b}. Locks are taken in sorted id order. An error from fn rolls
	// the transaction back; typed errors from this package come back unchanged.
	WithPair(ctx context.Context, a, b string, fn func(tx PairTx) error) error

	// ListMatches returns the mutual records where user is the actor, newest
	// MatchedAt first.
	ListMatches(ctx context.Context, user string) ([]MatchSummary, error)

	// ListLikesReceived returns every like targeting user, newest first.
	ListLikesReceived(ctx context.Context, user string) ([]LikeReceived, error)

	// Stats returns the raw counters for user. MatchRate is left zero.
	Stats(ctx context.Context, user string) (Stats, error)

	// ListSplitPairs returns pairs where one record is mutual and the reverse
	// record is missing or not mutual.
	ListSplitPairs(ctx context.Context) ([]Pair, error)
}

// PairTx is the view of the ledger inside a pair transaction. Only the two
// directional records of the locked pair may be touched.
type PairTx interface {
	// Get returns the record for (actor, target) or nil if none exists.
	Get(ctx context.Context, actor, target string) (*ActionRecord, error)

	// Insert adds a new record.
	Insert(ctx context.Context, rec ActionRecord) error

	// SetMutual updates the mutual flag of the (actor, target) record.
	// mutual=true sets MatchedAt=at and clears UnmatchedAt; mutual=false
	// clears MatchedAt and sets UnmatchedAt=at. A missing record is a no-op.
	SetMutual(ctx context.Context, actor, target string, mutual bool, at time.Time) error
}

// ProfileSource resolves read-only profiles. Unknown ids return
// ErrProfileNotFound.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (Profile, error)
}
