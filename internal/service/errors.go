package service

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/groupexchange/internal/access"
	"github.com/mmynk/groupexchange/internal/exchange"
)

// toConnectError maps domain errors to Connect codes.
func toConnectError(err error) *connect.Error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	// Ledger failures wrap context errors, so they are matched first.
	if errors.Is(err, exchange.ErrLedgerPostingFailed) {
		if exchange.IsRetryable(err) {
			return connect.NewError(connect.CodeUnavailable, err)
		}
		return connect.NewError(connect.CodeInternal, err)
	}

	switch {
	case errors.Is(err, access.ErrPermissionDenied):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, exchange.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, exchange.ErrDuplicateParticipant):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, exchange.ErrConflict):
		return connect.NewError(connect.CodeAborted, err)
	case errors.Is(err, exchange.ErrInvalidRole),
		errors.Is(err, exchange.ErrInvalidValue),
		errors.Is(err, exchange.ErrInvalidSplitType),
		errors.Is(err, exchange.ErrUnknownUser),
		errors.Is(err, exchange.ErrNotAParticipant):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, exchange.ErrIncompleteRoster),
		errors.Is(err, exchange.ErrUnbalancedSplit),
		errors.Is(err, exchange.ErrIllegalStateTransition),
		errors.Is(err, exchange.ErrWrongState),
		errors.Is(err, exchange.ErrNothingToSettle):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
