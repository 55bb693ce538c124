package exchange

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupexchange/internal/calculator"
	"github.com/mmynk/groupexchange/internal/models"
)

// NewParticipant describes a participant to attach to an exchange.
type NewParticipant struct {
	UserID string
	Role   models.Role
	// Hours defaults to zero and Weight to models.DefaultWeight when nil.
	Hours  *decimal.Decimal
	Weight *decimal.Decimal
	Notes  string
}

// Values is a partial update of a participant's declared values.
// Nil fields are left unchanged.
type Values struct {
	Hours  *decimal.Decimal
	Weight *decimal.Decimal
	Notes  *string
}

func checkNonNegative(name string, v *decimal.Decimal) error {
	if v != nil && v.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidValue, name, v)
	}
	return nil
}

// checkAdd validates in against x without modifying it.
func checkAdd(x *models.Exchange, in NewParticipant) error {
	if !x.Status.RosterEditable() {
		return fmt.Errorf("%w: cannot add participants while %s", ErrWrongState, x.Status)
	}
	if _, err := models.ParseRole(string(in.Role)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}
	if in.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidValue)
	}
	if err := checkNonNegative("hours", in.Hours); err != nil {
		return err
	}
	if err := checkNonNegative("weight", in.Weight); err != nil {
		return err
	}
	if _, ok := x.Participant(in.UserID); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateParticipant, in.UserID)
	}
	return nil
}

// applyAdd attaches a validated participant. The first participant moves a
// draft exchange to pending_participants.
func applyAdd(x *models.Exchange, in NewParticipant, now int64) error {
	role, _ := models.ParseRole(string(in.Role))
	p := models.Participant{
		ExchangeID: x.ID,
		UserID:     in.UserID,
		Role:       role,
		Hours:      decimal.Zero,
		Weight:     models.DefaultWeight,
		Notes:      in.Notes,
		JoinedAt:   now,
	}
	if in.Hours != nil {
		p.Hours = *in.Hours
	}
	if in.Weight != nil {
		p.Weight = *in.Weight
	}
	x.Participants = append(x.Participants, p)

	if x.Status == models.StatusDraft {
		if err := transition(x.Status, ActionAddParticipant, models.StatusPendingParticipants); err != nil {
			return err
		}
		x.Status = models.StatusPendingParticipants
	}
	return nil
}

func removeParticipant(x *models.Exchange, userID string) error {
	if !x.Status.RosterEditable() {
		return fmt.Errorf("%w: cannot remove participants while %s", ErrWrongState, x.Status)
	}
	i := slices.IndexFunc(x.Participants, func(p models.Participant) bool { return p.UserID == userID })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotAParticipant, userID)
	}
	x.Participants = slices.Delete(x.Participants, i, i+1)
	return nil
}

// updateValues applies v to userID's row. It reports whether hours or weight
// actually changed; when they did, every confirmation is withdrawn so a
// stale split can never be settled.
func updateValues(x *models.Exchange, userID string, v Values) (changed bool, err error) {
	if !x.Status.ValuesEditable() {
		return false, fmt.Errorf("%w: cannot change values while %s", ErrWrongState, x.Status)
	}
	p, ok := x.Participant(userID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotAParticipant, userID)
	}
	if err := checkNonNegative("hours", v.Hours); err != nil {
		return false, err
	}
	if err := checkNonNegative("weight", v.Weight); err != nil {
		return false, err
	}

	if v.Hours != nil && !v.Hours.Equal(p.Hours) {
		p.Hours = *v.Hours
		changed = true
	}
	if v.Weight != nil && !v.Weight.Equal(p.Weight) {
		p.Weight = *v.Weight
		changed = true
	}
	if v.Notes != nil {
		p.Notes = *v.Notes
	}

	if changed {
		resetConfirmations(x)
	}
	return changed, nil
}

// confirm records userID's confirmation. It reports false when the
// participant had already confirmed.
func confirm(x *models.Exchange, userID string, now int64) (bool, error) {
	p, ok := x.Participant(userID)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrNotAParticipant, userID)
	}
	if x.Status != models.StatusPendingConfirmation {
		return false, fmt.Errorf("%w: confirmations are collected in %s, exchange is %s",
			ErrWrongState, models.StatusPendingConfirmation, x.Status)
	}
	if p.Confirmed {
		return false, nil
	}
	p.Confirmed = true
	p.ConfirmedAt = now
	return true, nil
}

func resetConfirmations(x *models.Exchange) {
	for i := range x.Participants {
		x.Participants[i].Confirmed = false
		x.Participants[i].ConfirmedAt = 0
	}
}

// checkSettleable verifies the roster and that the current values produce a
// non-empty split.
func checkSettleable(x *models.Exchange) error {
	providers, receivers := x.RoleCounts()
	if providers == 0 || receivers == 0 {
		return fmt.Errorf("%w: have %d providers and %d receivers", ErrIncompleteRoster, providers, receivers)
	}
	allocations := calculator.Positive(calculator.ComputeAllocations(x.Participants, x.SplitType, x.TotalHours))
	if len(allocations) == 0 || !calculator.Total(allocations).IsPositive() {
		return fmt.Errorf("%w: %s split yields nothing to transfer", ErrUnbalancedSplit, x.SplitType)
	}
	return nil
}
