package matching

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"
)

// MatchEvent is emitted once per new mutual match. UserA < UserB.
type MatchEvent struct {
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	MatchKey  string    `json:"match_key"`
	MatchedAt time.Time `json:"matched_at"`
}

// Notifier receives match events after the pair transaction commits.
// Delivery is at-least-once; consumers dedupe on MatchKey.
type Notifier interface {
	OnMutualMatch(ctx context.Context, ev MatchEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev MatchEvent) error

func (f NotifierFunc) OnMutualMatch(ctx context.Context, ev MatchEvent) error {
	return f(ctx, ev)
}

type nopNotifier struct{}

func (nopNotifier) OnMutualMatch(context.Context, MatchEvent) error { return nil }

// MatchKey derives a stable key for one match of a and b at matchedAt.
// Argument order does not matter.
func MatchKey(a, b string, matchedAt time.Time) string {
	p := NewPair(a, b)
	h, _ := blake2b.New256(nil)
	h.Write([]byte(p.Lo))
	h.Write([]byte{0})
	h.Write([]byte(p.Hi))
	h.Write([]byte{0})
	h.Write([]byte(matchedAt.UTC().Format(time.RFC3339Nano)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

func newMatchEvent(a, b string, at time.Time) MatchEvent {
	p := NewPair(a, b)
	return MatchEvent{
		UserA:     p.Lo,
		UserB:     p.Hi,
		MatchKey:  MatchKey(a, b, at),
		MatchedAt: at,
	}
}
