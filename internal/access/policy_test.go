package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmynk/groupexchange/internal/exchange"
	"github.com/mmynk/groupexchange/internal/models"
)

func TestPolicy_Authorize(t *testing.T) {
	policy := NewPolicy([]string{"broker", ""})
	x := &models.Exchange{
		ID:          "ex-1",
		TenantID:    "t1",
		OrganizerID: "org",
		Participants: []models.Participant{
			{UserID: "alice", Role: models.RoleProvider},
			{UserID: "bob", Role: models.RoleReceiver},
		},
	}

	tests := []struct {
		name    string
		actor   Actor
		action  exchange.Action
		subject string
		allowed bool
	}{
		{"organizer starts", Actor{"org", "t1"}, exchange.ActionStart, "", true},
		{"participant cannot start", Actor{"alice", "t1"}, exchange.ActionStart, "", false},
		{"organizer adds", Actor{"org", "t1"}, exchange.ActionAddParticipant, "carol", true},
		{"participant cannot remove", Actor{"bob", "t1"}, exchange.ActionRemoveParticipant, "alice", false},
		{"organizer completes", Actor{"org", "t1"}, exchange.ActionComplete, "", true},
		{"broker cannot complete", Actor{"broker", "t1"}, exchange.ActionComplete, "", false},
		{"self updates values", Actor{"alice", "t1"}, exchange.ActionUpdateValues, "alice", true},
		{"organizer updates values", Actor{"org", "t1"}, exchange.ActionUpdateValues, "bob", true},
		{"other participant cannot update values", Actor{"bob", "t1"}, exchange.ActionUpdateValues, "alice", false},
		{"self confirms", Actor{"alice", "t1"}, exchange.ActionConfirm, "alice", true},
		{"confirm for someone else", Actor{"org", "t1"}, exchange.ActionConfirm, "alice", false},
		{"participant disputes", Actor{"bob", "t1"}, exchange.ActionDispute, "", true},
		{"broker approves", Actor{"broker", "t1"}, exchange.ActionApprove, "", true},
		{"organizer cannot approve", Actor{"org", "t1"}, exchange.ActionApprove, "", false},
		{"broker resolves", Actor{"broker", "t1"}, exchange.ActionResolve, "", true},
		{"other tenant", Actor{"org", "t2"}, exchange.ActionStart, "", false},
		{"anonymous", Actor{"", "t1"}, exchange.ActionConfirm, "", false},
		{"unknown action", Actor{"org", "t1"}, exchange.Action("delete"), "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Authorize(tt.actor, tt.action, x, tt.subject)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPermissionDenied)
			}
		})
	}
}

func TestPolicy_CanView(t *testing.T) {
	policy := NewPolicy([]string{"broker"})
	x := &models.Exchange{
		ID:           "ex-1",
		TenantID:     "t1",
		OrganizerID:  "org",
		Participants: []models.Participant{{UserID: "alice"}},
	}

	assert.NoError(t, policy.CanView(Actor{"org", "t1"}, x))
	assert.NoError(t, policy.CanView(Actor{"alice", "t1"}, x))
	assert.NoError(t, policy.CanView(Actor{"broker", "t1"}, x))
	assert.ErrorIs(t, policy.CanView(Actor{"mallory", "t1"}, x), ErrPermissionDenied)
	assert.ErrorIs(t, policy.CanView(Actor{"alice", "t2"}, x), ErrPermissionDenied)
	assert.False(t, policy.IsBroker(""))
}
