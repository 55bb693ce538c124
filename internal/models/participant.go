package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Role is a participant's side of the exchange.
type Role string

const (
	// RoleProvider gives hours.
	RoleProvider Role = "provider"
	// RoleReceiver receives hours.
	RoleReceiver Role = "receiver"
)

// ParseRole validates a role string.
func ParseRole(v string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(v))); r {
	case RoleProvider, RoleReceiver:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", v)
}

// DefaultWeight is the weight assigned when none is declared.
var DefaultWeight = decimal.NewFromInt(1)

// Participant is one user's membership in an exchange.
type Participant struct {
	ExchangeID string
	UserID     string
	Role       Role

	// Hours is the declared value used by the custom split.
	// For providers it is the total given, for receivers a share weight.
	Hours decimal.Decimal

	// Weight is the declared value used by the weighted split.
	Weight decimal.Decimal

	Confirmed   bool
	ConfirmedAt int64

	Notes string

	// JoinedAt orders participants deterministically.
	JoinedAt int64
}
