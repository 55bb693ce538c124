package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an exchange.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusPendingParticipants Status = "pending_participants"
	StatusPendingBroker       Status = "pending_broker"
	StatusActive              Status = "active"
	StatusPendingConfirmation Status = "pending_confirmation"
	StatusCompleted           Status = "completed"
	StatusCancelled           Status = "cancelled"
	StatusDisputed            Status = "disputed"
)

// IsTerminal reports whether no further transition may leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// RosterEditable reports whether participants may be added or removed in s.
func (s Status) RosterEditable() bool {
	return s == StatusDraft || s == StatusPendingParticipants
}

// ValuesEditable reports whether declared hours and weights may change in s.
// Participants may still correct their values while confirmations are collected.
func (s Status) ValuesEditable() bool {
	return s.RosterEditable() || s == StatusPendingConfirmation
}

// ParseStatus validates a status string.
func ParseStatus(v string) (Status, error) {
	switch s := Status(strings.ToLower(strings.TrimSpace(v))); s {
	case StatusDraft, StatusPendingParticipants, StatusPendingBroker, StatusActive,
		StatusPendingConfirmation, StatusCompleted, StatusCancelled, StatusDisputed:
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", v)
}

// SplitType selects the allocation algorithm.
type SplitType string

const (
	SplitEqual    SplitType = "equal"
	SplitCustom   SplitType = "custom"
	SplitWeighted SplitType = "weighted"
)

// ParseSplitType validates a split type string.
func ParseSplitType(v string) (SplitType, error) {
	switch t := SplitType(strings.ToLower(strings.TrimSpace(v))); t {
	case SplitEqual, SplitCustom, SplitWeighted:
		return t, nil
	}
	return "", fmt.Errorf("unknown split type %q", v)
}

// Exchange is a group exchange of hours between providers and receivers.
type Exchange struct {
	// ID is the unique identifier for the exchange (UUID format).
	ID string

	// TenantID scopes the exchange to one community.
	TenantID string

	Title       string
	Description string

	// OrganizerID is the user who created the exchange and drives its lifecycle.
	OrganizerID string

	// ListingID optionally links the exchange to the listing it came from.
	ListingID string

	Status    Status
	SplitType SplitType

	// TotalHours is the pledge being split. Always positive.
	TotalHours decimal.Decimal

	// BrokerID and BrokerNotes are recorded when a broker approves, rejects
	// or resolves the exchange.
	BrokerID    string
	BrokerNotes string

	// TransactionIDs are the ledger transactions created at settlement, in
	// allocation order.
	TransactionIDs []string

	// Participants are ordered by join time.
	Participants []Participant

	// CompletedAt is the Unix timestamp of settlement, 0 until completed.
	CompletedAt int64
	CreatedAt   int64
	UpdatedAt   int64

	// Version increments on every save and guards against lost updates.
	Version int64
}

// Participant returns the participant row for userID.
func (e *Exchange) Participant(userID string) (*Participant, bool) {
	for i := range e.Participants {
		if e.Participants[i].UserID == userID {
			return &e.Participants[i], true
		}
	}
	return nil, false
}

// RoleCounts returns the number of providers and receivers.
func (e *Exchange) RoleCounts() (providers, receivers int) {
	for _, p := range e.Participants {
		switch p.Role {
		case RoleProvider:
			providers++
		case RoleReceiver:
			receivers++
		}
	}
	return providers, receivers
}

// AllConfirmed reports whether every participant has confirmed.
// An exchange without participants is never considered confirmed.
func (e *Exchange) AllConfirmed() bool {
	if len(e.Participants) == 0 {
		return false
	}
	for _, p := range e.Participants {
		if !p.Confirmed {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can mutate without aliasing.
func (e *Exchange) Clone() *Exchange {
	c := *e
	c.Participants = append([]Participant(nil), e.Participants...)
	c.TransactionIDs = append([]string(nil), e.TransactionIDs...)
	return &c
}
