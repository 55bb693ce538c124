package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/groupexchange/internal/ledger"
	"github.com/mmynk/groupexchange/internal/models"
	"github.com/mmynk/groupexchange/internal/storage"
)

var (
	// ErrNotFound is returned when the exchange does not exist.
	ErrNotFound = storage.ErrNotFound

	// ErrConflict is returned when a concurrent writer saved first.
	ErrConflict = storage.ErrConflict

	ErrDuplicateParticipant = errors.New("user is already a participant")
	ErrInvalidRole          = errors.New("role must be provider or receiver")
	ErrNotAParticipant      = errors.New("user is not a participant")
	ErrIncompleteRoster     = errors.New("exchange needs at least one provider and one receiver")
	ErrUnbalancedSplit      = errors.New("split produces no allocations")

	// ErrIllegalStateTransition is matched by every *TransitionError.
	ErrIllegalStateTransition = errors.New("illegal state transition")

	// ErrWrongState is returned when a command is valid in general but not in
	// the exchange's current status.
	ErrWrongState = errors.New("operation not allowed in current state")

	ErrNothingToSettle = errors.New("nothing to settle")

	// ErrLedgerPostingFailed is matched by every *LedgerError.
	ErrLedgerPostingFailed = errors.New("ledger posting failed")

	ErrInvalidValue     = errors.New("invalid value")
	ErrInvalidSplitType = errors.New("split type must be equal, custom or weighted")
	ErrUnknownUser      = errors.New("unknown user")
)

// TransitionError names the edge that was attempted.
type TransitionError struct {
	From   models.Status
	Action Action
	To     models.Status
}

func (e *TransitionError) Error() string {
	to := string(e.To)
	if to == "" {
		to = "?"
	}
	return fmt.Sprintf("%s: %s --%s--> %s", ErrIllegalStateTransition, e.From, e.Action, to)
}

// Is makes errors.Is(err, ErrIllegalStateTransition) true.
func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalStateTransition
}

// LedgerError wraps a failure of the ledger collaborator. The exchange is
// left unchanged whenever one is returned.
type LedgerError struct {
	Err error
	// Retryable is true for timeouts, cancellations and an open breaker.
	// Retrying the whole Complete call is safe.
	Retryable bool
}

func (e *LedgerError) Error() string {
	if e.Retryable {
		return fmt.Sprintf("%s (retryable): %v", ErrLedgerPostingFailed, e.Err)
	}
	return fmt.Sprintf("%s: %v", ErrLedgerPostingFailed, e.Err)
}

func (e *LedgerError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrLedgerPostingFailed) true.
func (e *LedgerError) Is(target error) bool {
	return target == ErrLedgerPostingFailed
}

// IsRetryable reports whether err is a ledger failure worth retrying.
func IsRetryable(err error) bool {
	var le *LedgerError
	return errors.As(err, &le) && le.Retryable
}

func newLedgerError(err error) *LedgerError {
	return &LedgerError{
		Err: err,
		Retryable: errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, ledger.ErrUnavailable),
	}
}
