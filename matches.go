package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Benwil1/latest-copy-sub000/matching"
)

// GET /matches
func matchesHandler(engine *matching.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matches, err := engine.Matches(r.Context(), currentUser(r))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]matching.MatchSummary{"matches": matches})
	}
}

// DELETE /matches/{userID}
//
// Either party may unmatch. Repeating the call on an unmatched pair succeeds.
func unmatchHandler(engine *matching.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		other := chi.URLParam(r, "userID")
		if err := engine.Unmatch(r.Context(), currentUser(r), other); err != nil {
			writeEngineError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /likes/received
func likesReceivedHandler(engine *matching.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		likes, err := engine.LikesReceived(r.Context(), currentUser(r))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]matching.LikeReceived{"likes": likes})
	}
}

// GET /matches/stats
func statsHandler(engine *matching.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := engine.Stats(r.Context(), currentUser(r))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// GET /compatibility/{userA}/{userB}
func compatibilityHandler(engine *matching.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := engine.Compatibility(r.Context(), chi.URLParam(r, "userA"), chi.URLParam(r, "userB"))
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}
