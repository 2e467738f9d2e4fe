package main

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// MATCH QUERY TEST SUITE
// ============================================================================

func TestMatchesSuite(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.act(t, "alice", "bob", "like").Code)
	require.Equal(t, http.StatusOK, s.act(t, "bob", "alice", "like").Code)
	require.Equal(t, http.StatusOK, s.act(t, "alice", "carol", "dislike").Code)
	require.Equal(t, http.StatusOK, s.act(t, "carol", "alice", "like").Code)

	t.Run("Matches", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/matches", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		golden(t).Assert(t, "matches", rec.Body.Bytes())

		rec = s.do(t, http.MethodGet, "/matches", "carol", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())
	})

	t.Run("LikesReceived", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/likes/received", "bob", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		golden(t).Assert(t, "likes_received", rec.Body.Bytes())
	})

	t.Run("Stats", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/matches/stats", "alice", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		golden(t).Assert(t, "stats", rec.Body.Bytes())
	})

	t.Run("Compatibility", func(t *testing.T) {
		rec := s.do(t, http.MethodGet, "/compatibility/alice/bob", "carol", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		golden(t).Assert(t, "compatibility", rec.Body.Bytes())

		rec = s.do(t, http.MethodGet, "/compatibility/alice/zed", "alice", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", errorCode(t, rec))
	})

	t.Run("Unmatch", func(t *testing.T) {
		rec := s.do(t, http.MethodDelete, "/matches/carol", "alice", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_matched", errorCode(t, rec))

		rec = s.do(t, http.MethodDelete, "/matches/alice", "bob", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		// Idempotent.
		rec = s.do(t, http.MethodDelete, "/matches/bob", "alice", nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = s.do(t, http.MethodGet, "/matches", "alice", nil)
		assert.JSONEq(t, `{"matches":[]}`, rec.Body.String())

		for _, r := range s.store.Records() {
			assert.False(t, r.IsMutual)
		}
		assert.Len(t, s.store.Records(), 4, "history is kept")
	})

	t.Run("Storage unavailable on query", func(t *testing.T) {
		s := newTestServer(t, &unavailableStore{})
		rec := s.do(t, http.MethodGet, "/matches", "alice", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}
