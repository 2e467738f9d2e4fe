package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

var _ matching.Store = (*Store)(nil)

// WithPair runs fn inside a transaction that owns the pair row for {a, b}.
//
// On PostgreSQL the pair row is created if missing and then locked with
// FOR UPDATE, so two transactions on the same pair queue behind each other
// even before either directional record exists. On SQLite the immediate
// transaction already holds the database write lock.
func (s *Store) WithPair(ctx context.Context, a, b string, fn func(tx matching.PairTx) error) error {
	p := matching.NewPair(a, b)

	err := withTx(ctx, s.db, s.txOptions(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO action_pairs (user_lo, user_hi) VALUES (?, ?)
			ON CONFLICT DO NOTHING`), p.Lo, p.Hi); err != nil {
			return classify("with pair: ensure pair row", err)
		}

		if s.driver == DriverPostgres {
			var one int
			if err := tx.QueryRowContext(ctx, `
				SELECT 1 FROM action_pairs
				WHERE user_lo = $1 AND user_hi = $2
				FOR UPDATE`, p.Lo, p.Hi).Scan(&one); err != nil {
				return classify("with pair: lock pair row", err)
			}
		}

		return fn(&pairTx{store: s, tx: tx, pair: p})
	})
	return classify("with pair", err)
}

type pairTx struct {
	store *Store
	tx    *sql.Tx
	pair  matching.Pair
}

func (t *pairTx) check(actor, target string) error {
	if matching.NewPair(actor, target) != t.pair {
		return &matching.InvalidActionError{Reason: "record outside locked pair"}
	}
	return nil
}

// Get returns the (actor, target) record, or nil when none exists.
func (t *pairTx) Get(ctx context.Context, actor, target string) (*matching.ActionRecord, error) {
	if err := t.check(actor, target); err != nil {
		return nil, err
	}

	var (
		rec         matching.ActionRecord
		kind        string
		matchedAt   sql.NullTime
		unmatchedAt sql.NullTime
	)
	err := t.tx.QueryRowContext(ctx, t.store.rebind(`
		SELECT id, actor_id, target_id, kind, is_mutual, matched_at, unmatched_at, created_at
		FROM action_records
		WHERE actor_id = ? AND target_id = ?`), actor, target).
		Scan(&rec.ID, &rec.ActorID, &rec.TargetID, &kind, &rec.IsMutual, &matchedAt, &unmatchedAt, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get record", err)
	}

	rec.Kind = matching.ActionKind(kind)
	rec.MatchedAt = nullTime(matchedAt)
	rec.UnmatchedAt = nullTime(unmatchedAt)
	rec.CreatedAt = rec.CreatedAt.UTC()
	return &rec, nil
}

func (t *pairTx) Insert(ctx context.Context, rec matching.ActionRecord) error {
	if err := t.check(rec.ActorID, rec.TargetID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(ctx, t.store.rebind(`
		INSERT INTO action_records (id, actor_id, target_id, kind, is_mutual, matched_at, unmatched_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.ActorID, rec.TargetID, string(rec.Kind), rec.IsMutual,
		timeArg(rec.MatchedAt), timeArg(rec.UnmatchedAt), rec.CreatedAt.UTC())
	if IsUniqueViolation(err) {
		return &matching.DuplicateActionError{ActorID: rec.ActorID, TargetID: rec.TargetID}
	}
	return classify("insert record", err)
}

func (t *pairTx) SetMutual(ctx context.Context, actor, target string, mutual bool, at time.Time) error {
	if err := t.check(actor, target); err != nil {
		return err
	}
	at = at.UTC()
	var matchedAt, unmatchedAt any
	if mutual {
		matchedAt = at
	} else {
		unmatchedAt = at
	}
	_, err := t.tx.ExecContext(ctx, t.store.rebind(`
		UPDATE action_records
		SET is_mutual = ?, matched_at = ?, unmatched_at = ?
		WHERE actor_id = ? AND target_id = ?`),
		mutual, matchedAt, unmatchedAt, actor, target)
	return classify("set mutual", err)
}

// ListMatches implements matching.Store.
func (s *Store) ListMatches(ctx context.Context, user string) ([]matching.MatchSummary, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT target_id, matched_at
		FROM action_records
		WHERE actor_id = ? AND is_mutual AND matched_at IS NOT NULL
		ORDER BY matched_at DESC, target_id ASC`), user)
	if err != nil {
		return nil, classify("list matches", err)
	}
	defer rows.Close()

	out := []matching.MatchSummary{}
	for rows.Next() {
		var m matching.MatchSummary
		if err := rows.Scan(&m.OtherUserID, &m.MatchedAt); err != nil {
			return nil, classify("list matches: scan", err)
		}
		m.MatchedAt = m.MatchedAt.UTC()
		out = append(out, m)
	}
	return out, classify("list matches: rows", rows.Err())
}

// ListLikesReceived implements matching.Store.
func (s *Store) ListLikesReceived(ctx context.Context, user string) ([]matching.LikeReceived, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT r.actor_id, r.created_at, r.is_mutual, b.id IS NOT NULL AS liked_back
		FROM action_records r
		LEFT JOIN action_records b
		       ON b.actor_id = r.target_id AND b.target_id = r.actor_id AND b.kind = 'like'
		WHERE r.target_id = ? AND r.kind = 'like'
		ORDER BY r.created_at DESC, r.actor_id ASC`), user)
	if err != nil {
		return nil, classify("list likes received", err)
	}
	defer rows.Close()

	out := []matching.LikeReceived{}
	for rows.Next() {
		var l matching.LikeReceived
		if err := rows.Scan(&l.OtherUserID, &l.LikedAt, &l.IsMutual, &l.HaveILikedBack); err != nil {
			return nil, classify("list likes received: scan", err)
		}
		l.LikedAt = l.LikedAt.UTC()
		out = append(out, l)
	}
	return out, classify("list likes received: rows", rows.Err())
}

// Stats implements matching.Store.
func (s *Store) Stats(ctx context.Context, user string) (matching.Stats, error) {
	var st matching.Stats
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT
			COALESCE(SUM(CASE WHEN actor_id = ? AND kind = 'like' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN actor_id = ? AND kind = 'dislike' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN actor_id = ? AND kind = 'like' AND is_mutual THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN target_id = ? AND kind = 'like' THEN 1 ELSE 0 END), 0)
		FROM action_records
		WHERE actor_id = ? OR target_id = ?`), user, user, user, user, user, user).
		Scan(&st.LikesGiven, &st.DislikesGiven, &st.MutualMatches, &st.LikesReceived)
	if err != nil {
		return matching.Stats{}, classify("stats", err)
	}
	return st, nil
}

// ListSplitPairs implements matching.Store.
func (s *Store) ListSplitPairs(ctx context.Context) ([]matching.Pair, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.actor_id, r.target_id
		FROM action_records r
		LEFT JOIN action_records b
		       ON b.actor_id = r.target_id AND b.target_id = r.actor_id
		WHERE r.is_mutual AND (b.id IS NULL OR NOT b.is_mutual)
		ORDER BY r.actor_id, r.target_id`)
	if err != nil {
		return nil, classify("list split pairs", err)
	}
	defer rows.Close()

	seen := make(map[matching.Pair]struct{})
	var out []matching.Pair
	for rows.Next() {
		var actor, target string
		if err := rows.Scan(&actor, &target); err != nil {
			return nil, classify("list split pairs: scan", err)
		}
		p := matching.NewPair(actor, target)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, classify("list split pairs: rows", rows.Err())
}

// Records returns every ledger row, ordered by actor then target. Used by
// the seed and reconcile commands for reporting.
func (s *Store) Records(ctx context.Context) ([]matching.ActionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_id, target_id, kind, is_mutual, matched_at, unmatched_at, created_at
		FROM action_records
		ORDER BY actor_id, target_id`)
	if err != nil {
		return nil, classify("records", err)
	}
	defer rows.Close()

	var out []matching.ActionRecord
	for rows.Next() {
		var (
			rec                    matching.ActionRecord
			kind                   string
			matchedAt, unmatchedAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &rec.ActorID, &rec.TargetID, &kind, &rec.IsMutual, &matchedAt, &unmatchedAt, &rec.CreatedAt); err != nil {
			return nil, classify("records: scan", err)
		}
		rec.Kind = matching.ActionKind(kind)
		rec.MatchedAt = nullTime(matchedAt)
		rec.UnmatchedAt = nullTime(unmatchedAt)
		rec.CreatedAt = rec.CreatedAt.UTC()
		out = append(out, rec)
	}
	return out, classify("records: rows", rows.Err())
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
