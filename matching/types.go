// Package matching records like/dislike actions between users, detects
// mutual matches and scores profile compatibility.
//
// Every write goes through a pair transaction (Store.WithPair) keyed by the
// two user ids in sorted order, so concurrent opposite likes are serialized
// and exactly one of them observes the reverse like and flips both records.
package matching

import (
	"fmt"
	"strings"
	"time"
)

// ActionKind is the decision an actor records about a target.
type ActionKind string

const (
	Like    ActionKind = "like"
	Dislike ActionKind = "dislike"
)

// Valid reports whether k is one of the known kinds.
func (k ActionKind) Valid() bool {
	return k == Like || k == Dislike
}

func (k ActionKind) String() string { return string(k) }

// ParseActionKind accepts "like" or "dislike" in any case.
func ParseActionKind(s string) (ActionKind, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return "", &InvalidActionError{Reason: fmt.Sprintf("unknown action kind %q", s)}
}

// ActionRecord is one directed decision. At most one exists per ordered
// (ActorID, TargetID) pair.
type ActionRecord struct {
	ID       string     `json:"id"`
	ActorID  string     `json:"actor_id"`
	TargetID string     `json:"target_id"`
	Kind     ActionKind `json:"kind"`
	IsMutual bool       `json:"is_mutual"`
	// MatchedAt is set while IsMutual is true.
	MatchedAt *time.Time `json:"matched_at,omitempty"`
	// UnmatchedAt is set once the pair has been unmatched; detection never
	// re-flags such a pair.
	UnmatchedAt *time.Time `json:"unmatched_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Result is returned by RecordAction.
type Result struct {
	Recorded bool `json:"recorded"`
	IsMutual bool `json:"is_mutual"`
}

// MatchSummary is one entry of a user's match list.
type MatchSummary struct {
	OtherUserID string    `json:"other_user_id"`
	MatchedAt   time.Time `json:"matched_at"`
}

// LikeReceived is an inbound like seen from the target's side.
type LikeReceived struct {
	OtherUserID    string    `json:"other_user_id"`
	LikedAt        time.Time `json:"liked_at"`
	HaveILikedBack bool      `json:"have_i_liked_back"`
	IsMutual       bool      `json:"is_mutual"`
}

// Stats summarizes a user's activity.
type Stats struct {
	LikesGiven    int     `json:"total_likes_given"`
	DislikesGiven int     `json:"total_dislikes_given"`
	MutualMatches int     `json:"mutual_matches"`
	LikesReceived int     `json:"likes_received"`
	MatchRate     float64 `json:"match_rate"`
}

// Profile is the read-only view of a user used for scoring. Zero values mean
// the attribute is absent.
type Profile struct {
	ID        string            `json:"id"`
	Location  string            `json:"location,omitempty"`
	Budget    int               `json:"budget,omitempty"`
	Age       int               `json:"age,omitempty"`
	Lifestyle map[string]string `json:"lifestyle,omitempty"`
	Interests []string          `json:"interests,omitempty"`
}

// Compatibility is the output of Score.
type Compatibility struct {
	Score             int `json:"score"`
	FactorsConsidered int `json:"factors_considered"`
}

// Pair is an unordered pair of users, always stored with Lo < Hi.
type Pair struct {
	Lo string
	Hi string
}

// NewPair orders a and b.
func NewPair(a, b string) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

func (p Pair) String() string { return p.Lo + ":" + p.Hi }

// ReconcileReport counts what a reconciliation pass did.
type ReconcileReport struct {
	Scanned int `json:"scanned"`
	Healed  int `json:"healed"`
	Cleared int `json:"cleared"`
	Skipped int `json:"skipped"`
}
