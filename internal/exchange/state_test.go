package exchange

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupexchange/internal/ledger"
	"github.com/mmynk/groupexchange/internal/models"
)

func TestTransitions(t *testing.T) {
	tests := []struct {
		from   models.Status
		action Action
		to     models.Status
		legal  bool
	}{
		{models.StatusDraft, ActionAddParticipant, models.StatusPendingParticipants, true},
		{models.StatusPendingParticipants, ActionStart, models.StatusPendingConfirmation, true},
		{models.StatusPendingParticipants, ActionStart, models.StatusPendingBroker, true},
		{models.StatusPendingParticipants, ActionStart, models.StatusActive, false},
		{models.StatusPendingBroker, ActionApprove, models.StatusActive, true},
		{models.StatusActive, ActionRequestConfirmation, models.StatusPendingConfirmation, true},
		{models.StatusPendingConfirmation, ActionComplete, models.StatusCompleted, true},
		{models.StatusDisputed, ActionComplete, models.StatusCompleted, false},
		{models.StatusPendingConfirmation, ActionDispute, models.StatusDisputed, true},
		{models.StatusDisputed, ActionResolve, models.StatusPendingConfirmation, true},
		{models.StatusActive, ActionCancel, models.StatusCancelled, true},
		{models.StatusCompleted, ActionCancel, models.StatusCancelled, false},
		{models.StatusCancelled, ActionStart, models.StatusPendingConfirmation, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s_%s", tt.from, tt.action, tt.to), func(t *testing.T) {
			err := transition(tt.from, tt.action, tt.to)
			if tt.legal {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrIllegalStateTransition)
			}
		})
	}
}

func TestCancelReachableFromEveryNonTerminalState(t *testing.T) {
	for _, s := range []models.Status{
		models.StatusDraft, models.StatusPendingParticipants, models.StatusPendingBroker,
		models.StatusActive, models.StatusPendingConfirmation, models.StatusDisputed,
	} {
		assert.True(t, CanTransition(s, ActionCancel), "cancel from %s", s)
	}
	assert.False(t, CanTransition(models.StatusCompleted, ActionCancel))
	assert.False(t, CanTransition(models.StatusCancelled, ActionCancel))
}

func TestAllowedActions(t *testing.T) {
	assert.Equal(t,
		[]Action{ActionUpdateDetails, ActionAddParticipant, ActionRemoveParticipant, ActionUpdateValues, ActionStart, ActionCancel},
		AllowedActions(models.StatusDraft))
	assert.Equal(t,
		[]Action{ActionUpdateDetails, ActionUpdateValues, ActionConfirm, ActionDispute, ActionComplete, ActionCancel},
		AllowedActions(models.StatusPendingConfirmation))
	assert.Empty(t, AllowedActions(models.StatusCompleted))
}

func TestTransitionError(t *testing.T) {
	_, err := target(models.StatusCancelled, ActionComplete)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIllegalStateTransition))
	assert.Equal(t, "illegal state transition: cancelled --complete--> ?", err.Error())

	err = &TransitionError{From: models.StatusDraft, Action: ActionComplete, To: models.StatusCompleted}
	assert.Equal(t, "illegal state transition: draft --complete--> completed", err.Error())
	wrapped := fmt.Errorf("complete: %w", err)
	var te *TransitionError
	require.ErrorAs(t, wrapped, &te)
	assert.Equal(t, ActionComplete, te.Action)
}

func TestLedgerError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"timeout", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, true},
		{"breaker open", fmt.Errorf("%w: open", ledger.ErrUnavailable), true},
		{"rejected", errors.New("constraint failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newLedgerError(tt.err)
			assert.ErrorIs(t, err, ErrLedgerPostingFailed)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.retryable, IsRetryable(fmt.Errorf("complete: %w", err)))
		})
	}
	assert.False(t, IsRetryable(ErrWrongState))
}

func TestRegistryRules(t *testing.T) {
	x := &models.Exchange{Status: models.StatusDraft, SplitType: models.SplitEqual, TotalHours: decimal.NewFromInt(4)}

	require.NoError(t, checkAdd(x, provider("p1")))
	require.NoError(t, applyAdd(x, provider("p1"), 1))
	assert.Equal(t, models.StatusPendingParticipants, x.Status)

	assert.ErrorIs(t, checkSettleable(x), ErrIncompleteRoster)
	require.NoError(t, applyAdd(x, receiver("r1"), 2))
	assert.NoError(t, checkSettleable(x))

	x.Status = models.StatusPendingConfirmation
	changed, err := confirm(x, "p1", 3)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = confirm(x, "p1", 4)
	require.NoError(t, err)
	assert.False(t, changed)
	p1, _ := x.Participant("p1")
	assert.Equal(t, int64(3), p1.ConfirmedAt, "second confirm keeps the first timestamp")

	notes := "bringing tools"
	changed, err = updateValues(x, "p1", Values{Notes: &notes})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, p1.Confirmed, "notes do not reset confirmations")

	changed, err = updateValues(x, "r1", Values{Weight: dec("2")})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, x.Participants[0].Confirmed)

	assert.ErrorIs(t, removeParticipant(x, "p1"), ErrWrongState)
}
