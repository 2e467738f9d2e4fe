package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

func like(actor, target string, at time.Time) matching.ActionRecord {
	return matching.ActionRecord{ID: actor + target, ActorID: actor, TargetID: target, Kind: matching.Like, CreatedAt: at}
}

func TestWithPairRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	boom := errors.New("boom")
	err := s.WithPair(ctx, "a", "b", func(tx matching.PairTx) error {
		require.NoError(t, tx.Insert(ctx, like("a", "b", now)))
		got, err := tx.Get(ctx, "a", "b")
		require.NoError(t, err)
		require.NotNil(t, got, "staged writes are visible inside the tx")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.Records())
}

func TestInsertDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.WithPair(ctx, "a", "b", func(tx matching.PairTx) error {
		return tx.Insert(ctx, like("a", "b", now))
	}))

	err := s.WithPair(ctx, "b", "a", func(tx matching.PairTx) error {
		return tx.Insert(ctx, like("a", "b", now))
	})
	var dup *matching.DuplicateActionError
	assert.ErrorAs(t, err, &dup)
	assert.Len(t, s.Records(), 1)
}

func TestTxIsScopedToPair(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.WithPair(ctx, "a", "b", func(tx matching.PairTx) error {
		_, err := tx.Get(ctx, "a", "c")
		return err
	})
	var invalid *matching.InvalidActionError
	assert.ErrorAs(t, err, &invalid)
}

func TestSetMutual(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.WithPair(ctx, "a", "b", func(tx matching.PairTx) error {
		if err := tx.Insert(ctx, like("a", "b", now)); err != nil {
			return err
		}
		if err := tx.SetMutual(ctx, "a", "b", true, now); err != nil {
			return err
		}
		// Missing record is a no-op.
		return tx.SetMutual(ctx, "b", "a", true, now)
	}))

	recs := s.Records()
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsMutual)
	require.NotNil(t, recs[0].MatchedAt)
	assert.True(t, recs[0].MatchedAt.Equal(now))

	pairs, err := s.ListSplitPairs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []matching.Pair{{Lo: "a", Hi: "b"}}, pairs)
}

func TestSamePairIsSerialized(t *testing.T) {
	s := New()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})

	go func() {
		_ = s.WithPair(ctx, "a", "b", func(matching.PairTx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	go func() {
		_ = s.WithPair(ctx, "b", "a", func(matching.PairTx) error { return nil })
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second transaction on the same pair ran concurrently")
	case <-time.After(50 * time.Millisecond):
	}

	// A different pair is not blocked.
	require.NoError(t, s.WithPair(ctx, "a", "c", func(matching.PairTx) error { return nil }))

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second transaction never ran")
	}
}
