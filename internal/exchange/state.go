package exchange

import (
	"slices"

	"github.com/mmynk/groupexchange/internal/models"
)

// Action names a command applied to an exchange. Actions are recorded in the
// exchange history.
type Action string

const (
	ActionCreate              Action = "create"
	ActionUpdateDetails       Action = "update_details"
	ActionAddParticipant      Action = "add_participant"
	ActionRemoveParticipant   Action = "remove_participant"
	ActionUpdateValues        Action = "update_values"
	ActionStart               Action = "start"
	ActionApprove             Action = "approve"
	ActionReject              Action = "reject"
	ActionRequestConfirmation Action = "request_confirmation"
	ActionConfirm             Action = "confirm"
	ActionDispute             Action = "dispute"
	ActionResolve             Action = "resolve"
	ActionComplete            Action = "complete"
	ActionCancel              Action = "cancel"
)

type edge struct {
	from   models.Status
	action Action
}

// transitions lists every legal status change. Actions absent from the table
// (roster and value edits, confirm) never change status except for the
// automatic draft -> pending_participants step on the first add.
var transitions = map[edge][]models.Status{
	{models.StatusDraft, ActionAddParticipant}: {models.StatusPendingParticipants},

	{models.StatusDraft, ActionStart}:               {models.StatusPendingConfirmation, models.StatusPendingBroker},
	{models.StatusPendingParticipants, ActionStart}: {models.StatusPendingConfirmation, models.StatusPendingBroker},

	{models.StatusPendingBroker, ActionApprove}: {models.StatusActive},
	{models.StatusPendingBroker, ActionReject}:  {models.StatusCancelled},

	{models.StatusActive, ActionRequestConfirmation}: {models.StatusPendingConfirmation},

	{models.StatusPendingConfirmation, ActionComplete}: {models.StatusCompleted},
	{models.StatusPendingConfirmation, ActionDispute}:  {models.StatusDisputed},

	{models.StatusDisputed, ActionResolve}: {models.StatusPendingConfirmation},

	{models.StatusDraft, ActionCancel}:               {models.StatusCancelled},
	{models.StatusPendingParticipants, ActionCancel}: {models.StatusCancelled},
	{models.StatusPendingBroker, ActionCancel}:       {models.StatusCancelled},
	{models.StatusActive, ActionCancel}:              {models.StatusCancelled},
	{models.StatusPendingConfirmation, ActionCancel}: {models.StatusCancelled},
	{models.StatusDisputed, ActionCancel}:            {models.StatusCancelled},
}

// transition validates from --action--> to.
func transition(from models.Status, action Action, to models.Status) error {
	if slices.Contains(transitions[edge{from, action}], to) {
		return nil
	}
	return &TransitionError{From: from, Action: action, To: to}
}

// target returns the default destination of action from status, or a
// TransitionError when no edge exists.
func target(from models.Status, action Action) (models.Status, error) {
	targets := transitions[edge{from, action}]
	if len(targets) == 0 {
		return "", &TransitionError{From: from, Action: action}
	}
	return targets[0], nil
}

// CanTransition reports whether action has an edge leaving status.
func CanTransition(status models.Status, action Action) bool {
	return len(transitions[edge{status, action}]) > 0
}

// AllowedActions lists the commands that status accepts, in a stable order.
// It drives the action buttons of the read model and does not consider who
// is asking.
func AllowedActions(status models.Status) []Action {
	var actions []Action
	if !status.IsTerminal() {
		actions = append(actions, ActionUpdateDetails)
	}
	if status.RosterEditable() {
		actions = append(actions, ActionAddParticipant, ActionRemoveParticipant)
	}
	if status.ValuesEditable() {
		actions = append(actions, ActionUpdateValues)
	}
	if status == models.StatusPendingConfirmation {
		actions = append(actions, ActionConfirm)
	}
	for _, a := range []Action{
		ActionStart, ActionApprove, ActionReject, ActionRequestConfirmation,
		ActionDispute, ActionResolve, ActionComplete, ActionCancel,
	} {
		if CanTransition(status, a) {
			actions = append(actions, a)
		}
	}
	return actions
}
