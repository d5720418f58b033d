// Package fault carries the rejection taxonomy shared by every auction
// component. Each rejection has a kind (how the caller should react), a
// machine-checkable reason code, and a human-readable message, plus
// optional details that let a client correct and retry without re-fetching
// the whole round state.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller should handle it.
type Kind string

const (
	// KindValidation means the input shape was bad. Not retryable as-is.
	KindValidation Kind = "VALIDATION"
	// KindPrecondition means a business rule blocked the operation. The
	// client can correct (different player, lower amount) and retry.
	KindPrecondition Kind = "PRECONDITION_FAILED"
	// KindConflict means a concurrent operation won a race. The caller
	// should refetch current state and retry.
	KindConflict Kind = "CONFLICT"
	// KindTimeout means a hard deadline elapsed; operator intervention is
	// required to move the aggregate forward.
	KindTimeout Kind = "TIMEOUT"
	// KindInternal means storage or a collaborator failed. Logged, not
	// retried automatically inside the engine.
	KindInternal Kind = "INTERNAL"
)

// Reason codes, stable across releases. Clients branch on these.
const (
	ReasonRoundNotFound          = "round_not_found"
	ReasonRoundNotActive         = "round_not_active"
	ReasonPlayerNotInRound       = "player_not_in_round"
	ReasonPlayerAllocated        = "player_already_allocated"
	ReasonDuplicateBid           = "duplicate_bid"
	ReasonRosterFull             = "roster_full"
	ReasonInsufficientBudget     = "insufficient_budget"
	ReasonReserveViolation       = "reserve_violation"
	ReasonBidNotFound            = "bid_not_found"
	ReasonBudgetNotFound         = "budget_not_found"
	ReasonAlreadyFinalized       = "already_finalized"
	ReasonFinalizationInProgress = "finalization_in_progress"
	ReasonNotFinalizable         = "not_finalizable"
	ReasonTiebreakerUnresolved   = "tiebreaker_unresolved"
	ReasonTiebreakerNotFound     = "tiebreaker_not_found"
	ReasonTiebreakerClosed       = "tiebreaker_closed"
	ReasonNotParticipant         = "not_a_participant"
	ReasonParticipantWithdrawn   = "participant_withdrawn"
	ReasonBidTooLow              = "bid_too_low"
	ReasonLeaderCannotWithdraw   = "leader_cannot_withdraw"
	ReasonDeadlineExceeded       = "deadline_exceeded"
	ReasonBidRaceLost            = "bid_race_lost"
	ReasonBadInput               = "bad_input"
	ReasonStorage                = "storage_failure"
)

// Error is a classified engine failure.
type Error struct {
	Kind    Kind           `json:"kind"`
	Reason  string         `json:"reason"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Reason, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on kind and reason so sentinel-style comparisons work in tests.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Reason == t.Reason
}

// With attaches a detail for the client and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Validation builds a bad-input rejection.
func Validation(reason, message string) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Message: message}
}

// Precondition builds a business-rule rejection.
func Precondition(reason, message string) *Error {
	return &Error{Kind: KindPrecondition, Reason: reason, Message: message}
}

// Conflict builds a lost-race rejection.
func Conflict(reason, message string) *Error {
	return &Error{Kind: KindConflict, Reason: reason, Message: message}
}

// Timeout builds a deadline-exceeded rejection.
func Timeout(reason, message string) *Error {
	return &Error{Kind: KindTimeout, Reason: reason, Message: message}
}

// Internal wraps a storage/collaborator failure.
func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Reason: ReasonStorage, Message: message, cause: cause}
}

// KindOf extracts the kind from any error, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As unwraps err into a *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
