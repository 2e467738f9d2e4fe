// Package memstore is an in-memory matching.Store with the same pair
// serialization guarantees as the SQL store. It backs unit tests and the
// seed command's dry runs.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

type key struct {
	actor  string
	target string
}

// Store keeps records in a map. Pair transactions hold a per-pair mutex and
// stage writes until fn returns nil.
type Store struct {
	mu      sync.RWMutex
	records map[key]matching.ActionRecord

	locksMu sync.Mutex
	locks   map[matching.Pair]*sync.Mutex
}

var _ matching.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[key]matching.ActionRecord),
		locks:   make(map[matching.Pair]*sync.Mutex),
	}
}

func (s *Store) pairLock(p matching.Pair) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[p]
	if !ok {
		l = &sync.Mutex{}
		s.locks[p] = l
	}
	return l
}

// WithPair implements matching.Store.
func (s *Store) WithPair(ctx context.Context, a, b string, fn func(tx matching.PairTx) error) error {
	if err := ctx.Err(); err != nil {
		return matching.Unavailable("memstore: with pair", err)
	}
	p := matching.NewPair(a, b)
	l := s.pairLock(p)
	l.Lock()
	defer l.Unlock()

	tx := &pairTx{store: s, pair: p, staged: make(map[key]matching.ActionRecord)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, rec := range tx.staged {
		s.records[k] = rec
	}
	return nil
}

type pairTx struct {
	store  *Store
	pair   matching.Pair
	staged map[key]matching.ActionRecord
}

func (tx *pairTx) inPair(actor, target string) bool {
	return matching.NewPair(actor, target) == tx.pair
}

func (tx *pairTx) lookup(k key) (matching.ActionRecord, bool) {
	if rec, ok := tx.staged[k]; ok {
		return rec, true
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	rec, ok := tx.store.records[k]
	return rec, ok
}

func (tx *pairTx) Get(_ context.Context, actor, target string) (*matching.ActionRecord, error) {
	if !tx.inPair(actor, target) {
		return nil, &matching.InvalidActionError{Reason: "record outside locked pair"}
	}
	rec, ok := tx.lookup(key{actor, target})
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (tx *pairTx) Insert(_ context.Context, rec matching.ActionRecord) error {
	if !tx.inPair(rec.ActorID, rec.TargetID) {
		return &matching.InvalidActionError{Reason: "record outside locked pair"}
	}
	k := key{rec.ActorID, rec.TargetID}
	if _, ok := tx.lookup(k); ok {
		return &matching.DuplicateActionError{ActorID: rec.ActorID, TargetID: rec.TargetID}
	}
	tx.staged[k] = rec
	return nil
}

func (tx *pairTx) SetMutual(_ context.Context, actor, target string, mutual bool, at time.Time) error {
	if !tx.inPair(actor, target) {
		return &matching.InvalidActionError{Reason: "record outside locked pair"}
	}
	k := key{actor, target}
	rec, ok := tx.lookup(k)
	if !ok {
		return nil
	}
	t := at
	rec.IsMutual = mutual
	if mutual {
		rec.MatchedAt = &t
		rec.UnmatchedAt = nil
	} else {
		rec.MatchedAt = nil
		rec.UnmatchedAt = &t
	}
	tx.staged[k] = rec
	return nil
}

// ListMatches implements matching.Store.
func (s *Store) ListMatches(ctx context.Context, user string) ([]matching.MatchSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, matching.Unavailable("memstore: list matches", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []matching.MatchSummary{}
	for k, rec := range s.records {
		if k.actor != user || !rec.IsMutual || rec.MatchedAt == nil {
			continue
		}
		out = append(out, matching.MatchSummary{OtherUserID: k.target, MatchedAt: *rec.MatchedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].MatchedAt.Equal(out[j].MatchedAt) {
			return out[i].MatchedAt.After(out[j].MatchedAt)
		}
		return out[i].OtherUserID < out[j].OtherUserID
	})
	return out, nil
}

// ListLikesReceived implements matching.Store.
func (s *Store) ListLikesReceived(ctx context.Context, user string) ([]matching.LikeReceived, error) {
	if err := ctx.Err(); err != nil {
		return nil, matching.Unavailable("memstore: list likes received", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []matching.LikeReceived{}
	for k, rec := range s.records {
		if k.target != user || rec.Kind != matching.Like {
			continue
		}
		back, ok := s.records[key{user, k.actor}]
		out = append(out, matching.LikeReceived{
			OtherUserID:    k.actor,
			LikedAt:        rec.CreatedAt,
			HaveILikedBack: ok && back.Kind == matching.Like,
			IsMutual:       rec.IsMutual,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LikedAt.Equal(out[j].LikedAt) {
			return out[i].LikedAt.After(out[j].LikedAt)
		}
		return out[i].OtherUserID < out[j].OtherUserID
	})
	return out, nil
}

// Stats implements matching.Store.
func (s *Store) Stats(ctx context.Context, user string) (matching.Stats, error) {
	if err := ctx.Err(); err != nil {
		return matching.Stats{}, matching.Unavailable("memstore: stats", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st matching.Stats
	for k, rec := range s.records {
		switch {
		case k.actor == user && rec.Kind == matching.Like:
			st.LikesGiven++
			if rec.IsMutual {
				st.MutualMatches++
			}
		case k.actor == user && rec.Kind == matching.Dislike:
			st.DislikesGiven++
		case k.target == user && rec.Kind == matching.Like:
			st.LikesReceived++
		}
	}
	return st, nil
}

// ListSplitPairs implements matching.Store.
func (s *Store) ListSplitPairs(ctx context.Context) ([]matching.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, matching.Unavailable("memstore: list split pairs", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[matching.Pair]struct{})
	for k, rec := range s.records {
		if !rec.IsMutual {
			continue
		}
		rev, ok := s.records[key{k.target, k.actor}]
		if ok && rev.IsMutual {
			continue
		}
		seen[matching.NewPair(k.actor, k.target)] = struct{}{}
	}

	out := make([]matching.Pair, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// Records returns a snapshot of every record, ordered by actor then target.
func (s *Store) Records() []matching.ActionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]matching.ActionRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ActorID != out[j].ActorID {
			return out[i].ActorID < out[j].ActorID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// Put writes rec directly, bypassing pair locking. Tests use it to build
// inconsistent states.
func (s *Store) Put(rec matching.ActionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key{rec.ActorID, rec.TargetID}] = rec
}
