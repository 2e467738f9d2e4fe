package main

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/Benwil1/latest-copy-sub000/logging"
	"github.com/Benwil1/latest-copy-sub000/matching"
)

var validate = validator.New()

// retryAfterSeconds is sent with 503 storage_unavailable.
const retryAfterSeconds = 1

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a single JSON object into v and validates it.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return err
	}
	return validate.Struct(v)
}

var codeStatus = map[string]int{
	matching.CodeInvalidAction:      http.StatusBadRequest,
	matching.CodeNotFound:           http.StatusNotFound,
	matching.CodeDuplicateAction:    http.StatusConflict,
	matching.CodeNotMatched:         http.StatusNotFound,
	matching.CodeStorageUnavailable: http.StatusServiceUnavailable,
	matching.CodeInconsistentState:  http.StatusInternalServerError,
}

// writeEngineError maps matching errors to status codes. Unknown errors are
// logged and reported as 500.
func writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := matching.Code(err)
	status, ok := codeStatus[code]
	if !ok {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("unhandled engine error")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	if code == matching.CodeStorageUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeError(w, status, code)
}
