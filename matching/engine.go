package matching

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/metrics"
)

// Options tunes the engine. Zero fields take the defaults below.
type Options struct {
	StorageTimeout       time.Duration
	MaxRetries           int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

const (
	DefaultStorageTimeout = 5 * time.Second
	DefaultMaxRetries     = 3
)

func (o Options) withDefaults() Options {
	if o.StorageTimeout <= 0 {
		o.StorageTimeout = DefaultStorageTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.RetryInitialInterval <= 0 {
		o.RetryInitialInterval = 50 * time.Millisecond
	}
	if o.RetryMaxInterval <= 0 {
		o.RetryMaxInterval = time.Second
	}
	if o.Now == nil {
		o.Now = func() time.Time { return time.Now().UTC() }
	}
	if o.NewID == nil {
		o.NewID = func() string { return uuid.NewString() }
	}
	return o
}

// Engine is the matching engine. It is safe for concurrent use.
type Engine struct {
	store    Store
	profiles ProfileSource
	notifier Notifier
	opts     Options
}

// New builds an engine. A nil notifier drops events.
func New(store Store, profiles ProfileSource, notifier Notifier, opts Options) *Engine {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Engine{
		store:    store,
		profiles: profiles,
		notifier: notifier,
		opts:     opts.withDefaults(),
	}
}

// RecordAction stores actor's decision about target and, for a like, runs
// mutual detection in the same pair transaction.
//
// Once validation passes the storage phase ignores caller cancellation; it is
// still bounded by the storage timeout.
func (e *Engine) RecordAction(ctx context.Context, actor, target string, kind ActionKind) (Result, error) {
	res, err := e.recordAction(ctx, actor, target, kind)
	metrics.ActionsTotal.WithLabelValues(kindLabel(kind), outcomeLabel(res, err)).Inc()
	return res, err
}

func (e *Engine) recordAction(ctx context.Context, actor, target string, kind ActionKind) (Result, error) {
	actor, target = strings.TrimSpace(actor), strings.TrimSpace(target)
	if err := validatePair(actor, target); err != nil {
		return Result{}, err
	}
	if !kind.Valid() {
		return Result{}, &InvalidActionError{Reason: "unknown action kind " + string(kind)}
	}

	if err := e.requireProfile(ctx, target); err != nil {
		return Result{}, err
	}

	sctx := context.WithoutCancel(ctx)
	log := logging.Ctx(ctx)

	// The id and timestamp are fixed across retries so an attempt can
	// recognize a record committed by an earlier attempt of this call.
	id := e.opts.NewID()
	now := e.opts.Now().Truncate(time.Microsecond)

	var (
		res   Result
		event *MatchEvent
	)
	err := e.withStorage(sctx, "record_action", func(ctx context.Context) error {
		res, event = Result{}, nil
		return e.store.WithPair(ctx, actor, target, func(tx PairTx) error {
			existing, err := tx.Get(ctx, actor, target)
			if err != nil {
				return err
			}
			switch {
			case existing == nil:
				rec := ActionRecord{
					ID:        id,
					ActorID:   actor,
					TargetID:  target,
					Kind:      kind,
					CreatedAt: now,
				}
				if err := tx.Insert(ctx, rec); err != nil {
					return err
				}
			case existing.ID != id:
				return &DuplicateActionError{ActorID: actor, TargetID: target}
			default:
				// Committed by an earlier attempt whose result was lost.
				log.Warn().Str("actor_id", actor).Str("target_id", target).Msg("action already committed by an earlier attempt")
				if existing.IsMutual && existing.MatchedAt != nil && existing.MatchedAt.Equal(now) {
					res.Recorded, res.IsMutual = true, true
					ev := newMatchEvent(actor, target, now)
					event = &ev
					return nil
				}
			}
			res.Recorded = true

			if kind != Like {
				return nil
			}
			mutual, ev, err := e.detectInTx(ctx, tx, actor, target, now)
			if err != nil {
				return err
			}
			res.IsMutual = mutual
			event = ev
			return nil
		})
	})
	if err != nil {
		e.logFailure(ctx, err, actor, target)
		return Result{}, err
	}

	log.Debug().Str("actor_id", actor).Str("target_id", target).Str("kind", string(kind)).Bool("is_mutual", res.IsMutual).Msg("action recorded")

	if event != nil {
		e.emit(sctx, *event)
	}
	return res, nil
}

// Unmatch clears the mutual flag on both records of the pair. History is kept.
// Unmatching an already unmatched pair succeeds.
func (e *Engine) Unmatch(ctx context.Context, user, other string) error {
	user, other = strings.TrimSpace(user), strings.TrimSpace(other)
	if err := validatePair(user, other); err != nil {
		return err
	}

	sctx := context.WithoutCancel(ctx)
	cleared := false
	err := e.withStorage(sctx, "unmatch", func(ctx context.Context) error {
		cleared = false
		return e.store.WithPair(ctx, user, other, func(tx PairTx) error {
			fwd, rev, err := getBoth(ctx, tx, user, other)
			if err != nil {
				return err
			}
			if !isLike(fwd) || !isLike(rev) {
				return &NotMatchedError{UserID: user, OtherID: other}
			}
			if fwd.IsMutual != rev.IsMutual {
				return &InconsistentMatchStateError{UserA: user, UserB: other, Detail: "one side mutual during unmatch"}
			}
			if !fwd.IsMutual {
				return nil
			}

			now := e.opts.Now()
			if err := tx.SetMutual(ctx, user, other, false, now); err != nil {
				return err
			}
			if err := tx.SetMutual(ctx, other, user, false, now); err != nil {
				return err
			}
			cleared = true
			return nil
		})
	})
	if err != nil {
		e.logFailure(ctx, err, user, other)
		return err
	}
	if cleared {
		metrics.UnmatchesTotal.Inc()
		logging.Ctx(ctx).Info().Str("user_id", user).Str("other_user_id", other).Msg("unmatched")
	}
	return nil
}

// Matches lists user's mutual matches, newest first.
func (e *Engine) Matches(ctx context.Context, user string) ([]MatchSummary, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	var out []MatchSummary
	err := e.withStorage(ctx, "list_matches", func(ctx context.Context) error {
		var err error
		out, err = e.store.ListMatches(ctx, user)
		return err
	})
	if out == nil && err == nil {
		out = []MatchSummary{}
	}
	return out, err
}

// LikesReceived lists every like targeting user, newest first.
func (e *Engine) LikesReceived(ctx context.Context, user string) ([]LikeReceived, error) {
	if err := validateUser(user); err != nil {
		return nil, err
	}
	var out []LikeReceived
	err := e.withStorage(ctx, "list_likes_received", func(ctx context.Context) error {
		var err error
		out, err = e.store.ListLikesReceived(ctx, user)
		return err
	})
	if out == nil && err == nil {
		out = []LikeReceived{}
	}
	return out, err
}

// Stats returns user's counters and match rate (mutual / likes given, as a
// percentage with one decimal).
func (e *Engine) Stats(ctx context.Context, user string) (Stats, error) {
	if err := validateUser(user); err != nil {
		return Stats{}, err
	}
	var st Stats
	err := e.withStorage(ctx, "stats", func(ctx context.Context) error {
		var err error
		st, err = e.store.Stats(ctx, user)
		return err
	})
	if err != nil {
		return Stats{}, err
	}
	st.MatchRate = matchRate(st.MutualMatches, st.LikesGiven)
	return st, nil
}

func matchRate(mutual, likes int) float64 {
	if likes <= 0 {
		return 0
	}
	return math.Round(float64(mutual)/float64(likes)*1000) / 10
}

// Compatibility resolves both profiles and scores them.
func (e *Engine) Compatibility(ctx context.Context, a, b string) (Compatibility, error) {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return Compatibility{}, &InvalidActionError{Reason: "user ids are required"}
	}
	pa, pb, err := e.profilePair(ctx, a, b)
	if err != nil {
		return Compatibility{}, err
	}
	c := Score(pa, pb)
	metrics.CompatibilityScore.Observe(float64(c.Score))
	return c, nil
}

func (e *Engine) profile(ctx context.Context, id string) (Profile, error) {
	var p Profile
	err := e.withStorage(ctx, "get_profile", func(ctx context.Context) error {
		var err error
		p, err = e.profiles.GetProfile(ctx, id)
		if errors.Is(err, ErrProfileNotFound) {
			return &TargetNotFoundError{UserID: id}
		}
		return Unavailable("get_profile", err)
	})
	return p, err
}

// batchProfileSource is implemented by sources that can fetch several
// profiles in one round trip.
type batchProfileSource interface {
	GetProfiles(ctx context.Context, ids []string) (map[string]Profile, error)
}

func (e *Engine) profilePair(ctx context.Context, a, b string) (Profile, Profile, error) {
	bs, ok := e.profiles.(batchProfileSource)
	if !ok {
		pa, err := e.profile(ctx, a)
		if err != nil {
			return Profile{}, Profile{}, err
		}
		pb, err := e.profile(ctx, b)
		return pa, pb, err
	}

	var found map[string]Profile
	err := e.withStorage(ctx, "get_profiles", func(ctx context.Context) error {
		var err error
		found, err = bs.GetProfiles(ctx, []string{a, b})
		return Unavailable("get_profiles", err)
	})
	if err != nil {
		return Profile{}, Profile{}, err
	}
	pa, ok := found[a]
	if !ok {
		return Profile{}, Profile{}, &TargetNotFoundError{UserID: a}
	}
	pb, ok := found[b]
	if !ok {
		return Profile{}, Profile{}, &TargetNotFoundError{UserID: b}
	}
	return pa, pb, nil
}

func (e *Engine) requireProfile(ctx context.Context, id string) error {
	_, err := e.profile(ctx, id)
	return err
}

// emit hands ev to the notifier. Failures are logged and counted only.
func (e *Engine) emit(ctx context.Context, ev MatchEvent) {
	metrics.MutualMatchesTotal.Inc()
	log := logging.Ctx(ctx).With().Str("user_a", ev.UserA).Str("user_b", ev.UserB).Str("match_key", ev.MatchKey).Logger()
	if err := e.notifier.OnMutualMatch(ctx, ev); err != nil {
		metrics.NotifyFailuresTotal.Inc()
		log.Error().Err(err).Msg("match notification failed")
		return
	}
	log.Info().Msg("mutual match")
}

func (e *Engine) logFailure(ctx context.Context, err error, a, b string) {
	var inconsistent *InconsistentMatchStateError
	if errors.As(err, &inconsistent) {
		metrics.InconsistentStatesTotal.Inc()
		logging.Ctx(ctx).Error().Err(err).Str("actor_id", a).Str("target_id", b).Msg("inconsistent match state")
		return
	}
	if IsRetryable(err) {
		logging.Ctx(ctx).Error().Err(err).Str("actor_id", a).Str("target_id", b).Msg("storage unavailable")
	}
}

func validateUser(user string) error {
	if strings.TrimSpace(user) == "" {
		return &InvalidActionError{Reason: "user id is required"}
	}
	return nil
}

func validatePair(a, b string) error {
	if a == "" || b == "" {
		return &InvalidActionError{Reason: "actor and target are required"}
	}
	if a == b {
		return &InvalidActionError{Reason: "actor and target must differ"}
	}
	return nil
}

func getBoth(ctx context.Context, tx PairTx, a, b string) (*ActionRecord, *ActionRecord, error) {
	fwd, err := tx.Get(ctx, a, b)
	if err != nil {
		return nil, nil, err
	}
	rev, err := tx.Get(ctx, b, a)
	if err != nil {
		return nil, nil, err
	}
	return fwd, rev, nil
}

func isLike(r *ActionRecord) bool {
	return r != nil && r.Kind == Like
}

func kindLabel(k ActionKind) string {
	if k.Valid() {
		return string(k)
	}
	return "unknown"
}

func outcomeLabel(res Result, err error) string {
	var (
		invalid      *InvalidActionError
		notFound     *TargetNotFoundError
		duplicate    *DuplicateActionError
		inconsistent *InconsistentMatchStateError
	)
	switch {
	case err == nil && res.IsMutual:
		return "mutual"
	case err == nil:
		return "recorded"
	case errors.As(err, &invalid):
		return "invalid"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &duplicate):
		return "duplicate"
	case errors.As(err, &inconsistent):
		return "inconsistent"
	case IsRetryable(err):
		return "unavailable"
	}
	return "error"
}
