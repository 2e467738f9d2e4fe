package matching

import (
	"context"
	"strings"
	"time"
)

// DetectAndFlagMutual re-runs detection for the existing (actor, target)
// record in its own pair transaction. It reports whether the pair is mutual
// afterwards and emits an event only if this call flipped the flags.
func (e *Engine) DetectAndFlagMutual(ctx context.Context, actor, target string) (bool, error) {
	actor, target = strings.TrimSpace(actor), strings.TrimSpace(target)
	if err := validatePair(actor, target); err != nil {
		return false, err
	}

	sctx := context.WithoutCancel(ctx)
	var (
		mutual bool
		event  *MatchEvent
	)
	err := e.withStorage(sctx, "detect_mutual", func(ctx context.Context) error {
		mutual, event = false, nil
		return e.store.WithPair(ctx, actor, target, func(tx PairTx) error {
			var err error
			mutual, event, err = e.detectInTx(ctx, tx, actor, target, e.opts.Now())
			return err
		})
	})
	if err != nil {
		e.logFailure(ctx, err, actor, target)
		return false, err
	}
	if event != nil {
		e.emit(sctx, *event)
	}
	return mutual, nil
}

// detectInTx checks the reverse record of a like and flags both records when
// it is a like too. The returned event is non-nil only when this call made
// the 0->1 transition. Dislikes never reach the reverse record.
func (e *Engine) detectInTx(ctx context.Context, tx PairTx, actor, target string, now time.Time) (bool, *MatchEvent, error) {
	fwd, err := tx.Get(ctx, actor, target)
	if err != nil {
		return false, nil, err
	}
	if !isLike(fwd) {
		return false, nil, nil
	}

	rev, err := tx.Get(ctx, target, actor)
	if err != nil {
		return false, nil, err
	}
	if !isLike(rev) {
		if fwd.IsMutual {
			return false, nil, &InconsistentMatchStateError{UserA: actor, UserB: target, Detail: "mutual like without reverse like"}
		}
		return false, nil, nil
	}

	switch {
	case fwd.IsMutual && rev.IsMutual:
		return true, nil, nil
	case fwd.IsMutual != rev.IsMutual:
		return false, nil, &InconsistentMatchStateError{UserA: actor, UserB: target, Detail: "only one record flagged mutual"}
	case fwd.UnmatchedAt != nil || rev.UnmatchedAt != nil:
		return false, nil, nil
	}

	if err := tx.SetMutual(ctx, actor, target, true, now); err != nil {
		return false, nil, err
	}
	if err := tx.SetMutual(ctx, target, actor, true, now); err != nil {
		return false, nil, err
	}
	ev := newMatchEvent(actor, target, now)
	return true, &ev, nil
}
