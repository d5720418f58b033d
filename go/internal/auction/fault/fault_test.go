package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestIs_MatchesKindAndReason(t *testing.T) {
	err := Precondition(ReasonBidTooLow, "bid must exceed the current highest")

	check.True(t, errors.Is(err, Precondition(ReasonBidTooLow, "any message")))
	check.False(t, errors.Is(err, Precondition(ReasonInsufficientBudget, "")))
	check.False(t, errors.Is(err, Conflict(ReasonBidTooLow, "")))
}

func TestIs_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("placing bid: %w", Conflict(ReasonBidRaceLost, "lost the race"))

	check.True(t, errors.Is(err, Conflict(ReasonBidRaceLost, "")))
	check.Equal(t, KindConflict, KindOf(err))
}

func TestWith_AttachesDetails(t *testing.T) {
	err := Precondition(ReasonInsufficientBudget, "not enough").
		With("available", int64(40)).
		With("base_price", int64(50))

	check.Equal(t, int64(40), err.Details["available"].(int64))
	check.Equal(t, int64(50), err.Details["base_price"].(int64))
}

func TestInternal_UnwrapsToCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal("storage failed", cause)

	check.True(t, errors.Is(err, cause))
	check.Equal(t, KindInternal, KindOf(err))
}

func TestKindOf_DefaultsToInternal(t *testing.T) {
	check.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestAs_ExtractsClassifiedError(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Validation(ReasonBadInput, "amount must be positive"))

	fe, ok := As(wrapped)
	assert.True(t, ok)
	check.Equal(t, KindValidation, fe.Kind)
	check.Equal(t, ReasonBadInput, fe.Reason)

	_, ok = As(errors.New("plain"))
	check.False(t, ok)
}
