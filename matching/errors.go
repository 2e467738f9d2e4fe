package matching

import (
	"context"
	"errors"
	"fmt"
)

// ErrProfileNotFound is returned by a ProfileSource for unknown ids.
var ErrProfileNotFound = errors.New("profile not found")

// InvalidActionError reports a malformed request: empty ids, self-action or
// an unknown kind.
type InvalidActionError struct {
	Reason string
}

func (e *InvalidActionError) Error() string {
	return "invalid action: " + e.Reason
}

// TargetNotFoundError reports that a referenced user has no profile.
type TargetNotFoundError struct {
	UserID string
}

func (e *TargetNotFoundError) Error() string {
	return fmt.Sprintf("user %s not found", e.UserID)
}

// DuplicateActionError reports that the actor already acted on the target.
type DuplicateActionError struct {
	ActorID  string
	TargetID string
}

func (e *DuplicateActionError) Error() string {
	return fmt.Sprintf("action already recorded for %s -> %s", e.ActorID, e.TargetID)
}

// NotMatchedError is returned by Unmatch when the pair never matched.
type NotMatchedError struct {
	UserID  string
	OtherID string
}

func (e *NotMatchedError) Error() string {
	return fmt.Sprintf("%s and %s are not matched", e.UserID, e.OtherID)
}

// StorageUnavailableError wraps a transient storage failure. It is the only
// retryable error.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	if e.Err == nil {
		return e.Op + ": storage unavailable"
	}
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// InconsistentMatchStateError reports a pair whose mutual flags disagree.
type InconsistentMatchStateError struct {
	UserA  string
	UserB  string
	Detail string
}

func (e *InconsistentMatchStateError) Error() string {
	return fmt.Sprintf("inconsistent match state between %s and %s: %s", e.UserA, e.UserB, e.Detail)
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var unavailable *StorageUnavailableError
	return errors.As(err, &unavailable)
}

// Unavailable wraps err as a StorageUnavailableError unless it already is one.
func Unavailable(op string, err error) error {
	if err == nil || IsRetryable(err) {
		return err
	}
	return &StorageUnavailableError{Op: op, Err: err}
}

// normalizeStorageErr turns deadline overruns into StorageUnavailableError and
// leaves typed errors alone.
func normalizeStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable(op, err)
	}
	return err
}

// Stable error codes reported by the API surfaces.
const (
	CodeInvalidAction      = "invalid_action"
	CodeNotFound           = "not_found"
	CodeDuplicateAction    = "duplicate_action"
	CodeNotMatched         = "not_matched"
	CodeStorageUnavailable = "storage_unavailable"
	CodeInconsistentState  = "inconsistent_state"
)

// Code returns the stable code for err, or "" when err is not one of this
// package's typed errors.
func Code(err error) string {
	var (
		invalid      *InvalidActionError
		notFound     *TargetNotFoundError
		duplicate    *DuplicateActionError
		notMatched   *NotMatchedError
		unavailable  *StorageUnavailableError
		inconsistent *InconsistentMatchStateError
	)
	switch {
	case errors.As(err, &invalid):
		return CodeInvalidAction
	case errors.As(err, &notFound):
		return CodeNotFound
	case errors.As(err, &duplicate):
		return CodeDuplicateAction
	case errors.As(err, &notMatched):
		return CodeNotMatched
	case errors.As(err, &unavailable):
		return CodeStorageUnavailable
	case errors.As(err, &inconsistent):
		return CodeInconsistentState
	}
	return ""
}
