package graph

import (
	"context"
	"errors"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
	"github.com/Benwil1/latest-copy-sub000/notify"
)

var errUnauthenticated = errors.New("authentication required")

// Resolver holds the engine and the match hub behind the GraphQL schema.
type Resolver struct {
	Engine *matching.Engine
	Hub    *notify.Hub
	// CurrentUser returns the authenticated caller, or "" if none.
	CurrentUser func(ctx context.Context) string
}

// NewResolver creates a new resolver
func NewResolver(engine *matching.Engine, hub *notify.Hub, currentUser func(ctx context.Context) string) *Resolver {
	return &Resolver{Engine: engine, Hub: hub, CurrentUser: currentUser}
}

func (r *Resolver) Query() *queryResolver               { return &queryResolver{r} }
func (r *Resolver) Mutation() *mutationResolver         { return &mutationResolver{r} }
func (r *Resolver) Subscription() *subscriptionResolver { return &subscriptionResolver{r} }

type queryResolver struct{ *Resolver }
type mutationResolver struct{ *Resolver }
type subscriptionResolver struct{ *Resolver }

func (r *Resolver) userID(ctx context.Context) (string, error) {
	if r.CurrentUser == nil {
		return "", errUnauthenticated
	}
	if id := r.CurrentUser(ctx); id != "" {
		return id, nil
	}
	return "", errUnauthenticated
}

// ============================================================================
// QUERIES
// ============================================================================

func (r *queryResolver) Matches(ctx context.Context) ([]*Match, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	matches, err := r.Engine.Matches(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toMatches(matches), nil
}

func (r *queryResolver) LikesReceived(ctx context.Context) ([]*LikeReceived, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	likes, err := r.Engine.LikesReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toLikesReceived(likes), nil
}

func (r *queryResolver) Stats(ctx context.Context) (*MatchStats, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	st, err := r.Engine.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toStats(st), nil
}

func (r *queryResolver) Compatibility(ctx context.Context, userA, userB string) (*Compatibility, error) {
	if _, err := r.userID(ctx); err != nil {
		return nil, err
	}
	c, err := r.Engine.Compatibility(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	return &Compatibility{Score: c.Score, FactorsConsidered: c.FactorsConsidered}, nil
}

// ============================================================================
// MUTATIONS
// ============================================================================

func (r *mutationResolver) RecordAction(ctx context.Context, targetUserID string, kind string) (*ActionResult, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}
	k, err := matching.ParseActionKind(kind)
	if err != nil {
		return nil, err
	}
	res, err := r.Engine.RecordAction(ctx, userID, targetUserID, k)
	if err != nil {
		return nil, err
	}
	if res.IsMutual {
		logging.Ctx(ctx).Info().Str("user_id", userID).Str("other_user_id", targetUserID).Msg("mutual match formed")
	}
	return &ActionResult{Recorded: res.Recorded, IsMutual: res.IsMutual}, nil
}

func (r *mutationResolver) Unmatch(ctx context.Context, otherUserID string) (bool, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return false, err
	}
	if err := r.Engine.Unmatch(ctx, userID, otherUserID); err != nil {
		return false, err
	}
	return true, nil
}

// ============================================================================
// SUBSCRIPTIONS
// ============================================================================

// MatchCreated streams the caller's new matches until ctx ends.
func (r *subscriptionResolver) MatchCreated(ctx context.Context) (<-chan *MatchNotice, error) {
	userID, err := r.userID(ctx)
	if err != nil {
		return nil, err
	}

	events, cleanup := r.Hub.Subscribe(userID)
	out := make(chan *MatchNotice, 1)

	go func() {
		defer close(out)
		defer cleanup()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				p, isMatch := evt.Data.(notify.MatchPayload)
				if evt.Type != "match" || !isMatch {
					continue
				}
				select {
				case out <- &MatchNotice{OtherUserID: p.OtherUserID, MatchKey: p.MatchKey, MatchedAt: p.MatchedAt}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
