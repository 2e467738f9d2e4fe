package graph

import (
	"time"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// GraphQL object types. JSON names are the schema field names.

type ActionResult struct {
	Recorded bool `json:"recorded"`
	IsMutual bool `json:"isMutual"`
}

type Match struct {
	OtherUserID string    `json:"otherUserId"`
	MatchedAt   time.Time `json:"matchedAt"`
}

type LikeReceived struct {
	OtherUserID    string    `json:"otherUserId"`
	LikedAt        time.Time `json:"likedAt"`
	HaveILikedBack bool      `json:"haveILikedBack"`
	IsMutual       bool      `json:"isMutual"`
}

type MatchStats struct {
	TotalLikesGiven    int     `json:"totalLikesGiven"`
	TotalDislikesGiven int     `json:"totalDislikesGiven"`
	MutualMatches      int     `json:"mutualMatches"`
	LikesReceived      int     `json:"likesReceived"`
	MatchRate          float64 `json:"matchRate"`
}

type Compatibility struct {
	Score             int `json:"score"`
	FactorsConsidered int `json:"factorsConsidered"`
}

type MatchNotice struct {
	OtherUserID string    `json:"otherUserId"`
	MatchKey    string    `json:"matchKey"`
	MatchedAt   time.Time `json:"matchedAt"`
}

func toMatches(in []matching.MatchSummary) []*Match {
	out := make([]*Match, 0, len(in))
	for _, m := range in {
		out = append(out, &Match{OtherUserID: m.OtherUserID, MatchedAt: m.MatchedAt})
	}
	return out
}

func toLikesReceived(in []matching.LikeReceived) []*LikeReceived {
	out := make([]*LikeReceived, 0, len(in))
	for _, l := range in {
		out = append(out, &LikeReceived{
			OtherUserID:    l.OtherUserID,
			LikedAt:        l.LikedAt,
			HaveILikedBack: l.HaveILikedBack,
			IsMutual:       l.IsMutual,
		})
	}
	return out
}

func toStats(s matching.Stats) *MatchStats {
	return &MatchStats{
		TotalLikesGiven:    s.LikesGiven,
		TotalDislikesGiven: s.DislikesGiven,
		MutualMatches:      s.MutualMatches,
		LikesReceived:      s.LikesReceived,
		MatchRate:          s.MatchRate,
	}
}
