package matching

import (
	"context"
	"errors"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/metrics"
)

// Reconcile repairs pairs whose mutual flags disagree. A pair with likes on
// both sides is flagged mutual on both, keeping the earliest MatchedAt and
// emitting no event. Anything else has its flags cleared.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	var pairs []Pair
	err := e.withStorage(ctx, "list_split_pairs", func(ctx context.Context) error {
		var err error
		pairs, err = e.store.ListSplitPairs(ctx)
		return err
	})
	if err != nil {
		return report, err
	}

	log := logging.Ctx(ctx)
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Scanned++

		var action string
		err := e.withStorage(ctx, "reconcile_pair", func(ctx context.Context) error {
			action = ""
			return e.store.WithPair(ctx, p.Lo, p.Hi, func(tx PairTx) error {
				var err error
				action, err = e.repairPair(ctx, tx, p)
				return err
			})
		})
		if err != nil {
			log.Error().Err(err).Str("user_a", p.Lo).Str("user_b", p.Hi).Msg("reconcile pair failed")
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			report.Skipped++
			continue
		}

		switch action {
		case "healed":
			report.Healed++
		case "cleared":
			report.Cleared++
		default:
			report.Skipped++
			continue
		}
		metrics.InconsistentStatesTotal.Inc()
		log.Error().Str("user_a", p.Lo).Str("user_b", p.Hi).Str("repair", action).Msg("repaired inconsistent match state")
	}
	return report, nil
}

func (e *Engine) repairPair(ctx context.Context, tx PairTx, p Pair) (string, error) {
	lo, hi, err := getBoth(ctx, tx, p.Lo, p.Hi)
	if err != nil {
		return "", err
	}
	loMutual := lo != nil && lo.IsMutual
	hiMutual := hi != nil && hi.IsMutual
	if loMutual == hiMutual {
		// Repaired concurrently or never split.
		return "", nil
	}

	now := e.opts.Now()
	if isLike(lo) && isLike(hi) {
		at := now
		for _, r := range []*ActionRecord{lo, hi} {
			if r.MatchedAt != nil && r.MatchedAt.Before(at) {
				at = *r.MatchedAt
			}
		}
		if err := tx.SetMutual(ctx, p.Lo, p.Hi, true, at); err != nil {
			return "", err
		}
		if err := tx.SetMutual(ctx, p.Hi, p.Lo, true, at); err != nil {
			return "", err
		}
		return "healed", nil
	}

	if err := tx.SetMutual(ctx, p.Lo, p.Hi, false, now); err != nil {
		return "", err
	}
	if err := tx.SetMutual(ctx, p.Hi, p.Lo, false, now); err != nil {
		return "", err
	}
	return "cleared", nil
}
