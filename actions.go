package main

import (
	"net/http"
	"strings"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
)

type actionRequest struct {
	TargetID string `json:"target_id" validate:"required,max=128"`
	Kind     string `json:"kind" validate:"required"`
	// ActorID is optional; when sent it must be the caller.
	ActorID string `json:"actor_id,omitempty" validate:"omitempty,max=128"`
}

// POST /actions
func recordActionHandler(engine *matching.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := currentUser(r)

		var req actionRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_action")
			return
		}
		if actor := strings.TrimSpace(req.ActorID); actor != "" && actor != userID {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}

		kind, err := matching.ParseActionKind(req.Kind)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}

		res, err := engine.RecordAction(r.Context(), userID, req.TargetID, kind)
		if err != nil {
			writeEngineError(w, r, err)
			return
		}
		if res.IsMutual {
			logging.Ctx(r.Context()).Info().
				Str("actor_id", userID).
				Str("target_id", req.TargetID).
				Msg("mutual match")
		}
		writeJSON(w, http.StatusOK, res)
	}
}
