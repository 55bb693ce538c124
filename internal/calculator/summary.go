package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/groupexchange/internal/models"
)

// MemberTotal is the aggregate position of one participant in a set of allocations.
type MemberTotal struct {
	UserID   string
	Given    decimal.Decimal // Hours this member provides
	Received decimal.Decimal // Hours this member receives
	Net      decimal.Decimal // Received - Given
}

// Summarize aggregates allocations per member, sorted by user ID.
func Summarize(allocations []models.Allocation) []MemberTotal {
	totals := make(map[string]*MemberTotal)

	get := func(id string) *MemberTotal {
		t, ok := totals[id]
		if !ok {
			t = &MemberTotal{UserID: id}
			totals[id] = t
		}
		return t
	}

	for _, a := range allocations {
		get(a.ProviderID).Given = get(a.ProviderID).Given.Add(a.Amount)
		get(a.ReceiverID).Received = get(a.ReceiverID).Received.Add(a.Amount)
	}

	out := make([]MemberTotal, 0, len(totals))
	for _, t := range totals {
		t.Net = t.Received.Sub(t.Given)
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Matrix renders allocations as provider → receiver → amount.
func Matrix(allocations []models.Allocation) map[string]map[string]decimal.Decimal {
	m := make(map[string]map[string]decimal.Decimal)
	for _, a := range allocations {
		row, ok := m[a.ProviderID]
		if !ok {
			row = make(map[string]decimal.Decimal)
			m[a.ProviderID] = row
		}
		row[a.ReceiverID] = row[a.ReceiverID].Add(a.Amount)
	}
	return m
}
