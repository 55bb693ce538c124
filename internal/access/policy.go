// Package access decides who may issue which exchange command.
//
// The engine enforces only state and data invariants. Identity rules live
// here and are applied by the RPC layer before a command reaches the engine.
package access

import (
	"errors"
	"fmt"

	"github.com/mmynk/groupexchange/internal/exchange"
	"github.com/mmynk/groupexchange/internal/models"
)

// ErrPermissionDenied is returned when the actor may not perform the action.
var ErrPermissionDenied = errors.New("permission denied")

// Policy holds the access rules. Brokers are configured by user ID.
type Policy struct {
	brokers map[string]struct{}
}

// NewPolicy creates a policy treating brokerIDs as brokers.
func NewPolicy(brokerIDs []string) *Policy {
	brokers := make(map[string]struct{}, len(brokerIDs))
	for _, id := range brokerIDs {
		if id != "" {
			brokers[id] = struct{}{}
		}
	}
	return &Policy{brokers: brokers}
}

// IsBroker reports whether userID is a configured broker.
func (p *Policy) IsBroker(userID string) bool {
	_, ok := p.brokers[userID]
	return ok
}

// Actor is the authenticated caller.
type Actor struct {
	UserID   string
	TenantID string
}

// CanView allows the organizer, participants and brokers of the exchange's
// tenant to read it.
func (p *Policy) CanView(actor Actor, x *models.Exchange) error {
	if err := checkTenant(actor, x); err != nil {
		return err
	}
	if actor.UserID == x.OrganizerID || p.IsBroker(actor.UserID) {
		return nil
	}
	if _, ok := x.Participant(actor.UserID); ok {
		return nil
	}
	return fmt.Errorf("%w: %s cannot view exchange %s", ErrPermissionDenied, actor.UserID, x.ID)
}

// Authorize checks that actor may apply action to x. subjectID is the
// participant the command targets, if any.
func (p *Policy) Authorize(actor Actor, action exchange.Action, x *models.Exchange, subjectID string) error {
	if err := checkTenant(actor, x); err != nil {
		return err
	}
	actorID := actor.UserID

	switch action {
	case exchange.ActionUpdateDetails, exchange.ActionAddParticipant, exchange.ActionRemoveParticipant,
		exchange.ActionStart, exchange.ActionRequestConfirmation, exchange.ActionComplete, exchange.ActionCancel:
		if actorID != x.OrganizerID {
			return fmt.Errorf("%w: only the organizer may %s", ErrPermissionDenied, action)
		}

	case exchange.ActionUpdateValues:
		if actorID != x.OrganizerID && actorID != subjectID {
			return fmt.Errorf("%w: participants may only change their own values", ErrPermissionDenied)
		}

	case exchange.ActionConfirm, exchange.ActionDispute:
		// Participants act for themselves; the engine rejects non-participants.
		if subjectID != "" && subjectID != actorID {
			return fmt.Errorf("%w: cannot %s on behalf of another user", ErrPermissionDenied, action)
		}

	case exchange.ActionApprove, exchange.ActionReject, exchange.ActionResolve:
		if !p.IsBroker(actorID) {
			return fmt.Errorf("%w: only brokers may %s", ErrPermissionDenied, action)
		}

	default:
		return fmt.Errorf("%w: unknown action %q", ErrPermissionDenied, action)
	}
	return nil
}

func checkTenant(actor Actor, x *models.Exchange) error {
	if actor.UserID == "" {
		return fmt.Errorf("%w: anonymous actor", ErrPermissionDenied)
	}
	if actor.TenantID != x.TenantID {
		return fmt.Errorf("%w: exchange belongs to another tenant", ErrPermissionDenied)
	}
	return nil
}
