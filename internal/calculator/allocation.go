// Package calculator turns an exchange's declared participants into pairwise
// provider → receiver allocations of hours.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/groupexchange/internal/models"
)

// Precision is the number of decimal places every allocation is rounded to.
const Precision = 2

// RoundingTolerance is the maximum drift one rounded allocation may add to a sum.
var RoundingTolerance = decimal.New(5, -3)

// ComputeAllocations splits hours between every provider/receiver pair.
//
// Algorithms:
//   - equal: amount = totalHours / (providers × receivers)
//   - custom: amount(p,r) = p.hours × r.hours / Σ receiver.hours
//   - weighted: amount(p,r) = totalHours × p.weight/Σ provider.weight × r.weight/Σ receiver.weight
//
// Amounts are rounded to Precision places, half away from zero. The result is
// empty when either side has no participants or a divisor would be zero.
// Pairs are emitted provider-major in the order participants were given.
func ComputeAllocations(participants []models.Participant, splitType models.SplitType, totalHours decimal.Decimal) []models.Allocation {
	providers, receivers := partition(participants)
	if len(providers) == 0 || len(receivers) == 0 {
		return nil
	}

	var amount func(p, r models.Participant) decimal.Decimal

	switch splitType {
	case models.SplitEqual:
		pairs := decimal.NewFromInt(int64(len(providers) * len(receivers)))
		each := totalHours.Div(pairs).Round(Precision)
		amount = func(_, _ models.Participant) decimal.Decimal { return each }

	case models.SplitCustom:
		receiverSum := sum(receivers, hoursOf)
		if !receiverSum.IsPositive() {
			return nil
		}
		amount = func(p, r models.Participant) decimal.Decimal {
			return p.Hours.Mul(r.Hours).Div(receiverSum).Round(Precision)
		}

	case models.SplitWeighted:
		providerSum := sum(providers, weightOf)
		receiverSum := sum(receivers, weightOf)
		if !providerSum.IsPositive() || !receiverSum.IsPositive() {
			return nil
		}
		divisor := providerSum.Mul(receiverSum)
		amount = func(p, r models.Participant) decimal.Decimal {
			return totalHours.Mul(weightOf(p)).Mul(weightOf(r)).Div(divisor).Round(Precision)
		}

	default:
		return nil
	}

	allocations := make([]models.Allocation, 0, len(providers)*len(receivers))
	for _, p := range providers {
		for _, r := range receivers {
			allocations = append(allocations, models.Allocation{
				ProviderID: p.UserID,
				ReceiverID: r.UserID,
				Amount:     amount(p, r),
			})
		}
	}
	return allocations
}

// Positive returns the allocations that would be materialized in the ledger.
func Positive(allocations []models.Allocation) []models.Allocation {
	var out []models.Allocation
	for _, a := range allocations {
		if a.Amount.IsPositive() {
			out = append(out, a)
		}
	}
	return out
}

// Total sums allocation amounts.
func Total(allocations []models.Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Tolerance is the maximum rounding drift for n allocations.
func Tolerance(n int) decimal.Decimal {
	return RoundingTolerance.Mul(decimal.NewFromInt(int64(n)))
}

func partition(participants []models.Participant) (providers, receivers []models.Participant) {
	for _, p := range participants {
		switch p.Role {
		case models.RoleProvider:
			providers = append(providers, p)
		case models.RoleReceiver:
			receivers = append(receivers, p)
		}
	}
	return providers, receivers
}

func hoursOf(p models.Participant) decimal.Decimal { return p.Hours }

func weightOf(p models.Participant) decimal.Decimal { return p.Weight }

func sum(ps []models.Participant, value func(models.Participant) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, p := range ps {
		total = total.Add(value(p))
	}
	return total
}
