package calculator

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupexchange/internal/models"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func provider(id, hours, weight string) models.Participant {
	return models.Participant{UserID: id, Role: models.RoleProvider, Hours: d(hours), Weight: d(weight)}
}

func receiver(id, hours, weight string) models.Participant {
	return models.Participant{UserID: id, Role: models.RoleReceiver, Hours: d(hours), Weight: d(weight)}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

func assertWithin(t *testing.T, want, got, tolerance decimal.Decimal) {
	t.Helper()
	diff := want.Sub(got).Abs()
	assert.True(t, diff.LessThanOrEqual(tolerance), "|%s - %s| = %s exceeds %s", want, got, diff, tolerance)
}

func TestComputeAllocations(t *testing.T) {
	tests := []struct {
		name         string
		participants []models.Participant
		splitType    models.SplitType
		totalHours   string
		want         []models.Allocation
	}{
		{
			name: "equal split between two providers and two receivers",
			participants: []models.Participant{
				provider("alice", "0", "1"),
				provider("bob", "0", "1"),
				receiver("carol", "0", "1"),
				receiver("dave", "0", "1"),
			},
			splitType:  models.SplitEqual,
			totalHours: "10",
			want: []models.Allocation{
				{ProviderID: "alice", ReceiverID: "carol", Amount: d("2.5")},
				{ProviderID: "alice", ReceiverID: "dave", Amount: d("2.5")},
				{ProviderID: "bob", ReceiverID: "carol", Amount: d("2.5")},
				{ProviderID: "bob", ReceiverID: "dave", Amount: d("2.5")},
			},
		},
		{
			name: "custom split follows receiver hours",
			participants: []models.Participant{
				provider("alice", "10", "1"),
				receiver("carol", "3", "1"),
				receiver("dave", "7", "1"),
			},
			splitType:  models.SplitCustom,
			totalHours: "10",
			want: []models.Allocation{
				{ProviderID: "alice", ReceiverID: "carol", Amount: d("3")},
				{ProviderID: "alice", ReceiverID: "dave", Amount: d("7")},
			},
		},
		{
			name: "weighted split is proportional on both sides",
			participants: []models.Participant{
				provider("alice", "0", "1"),
				provider("bob", "0", "3"),
				receiver("carol", "0", "1"),
				receiver("dave", "0", "1"),
			},
			splitType:  models.SplitWeighted,
			totalHours: "8",
			want: []models.Allocation{
				{ProviderID: "alice", ReceiverID: "carol", Amount: d("1")},
				{ProviderID: "alice", ReceiverID: "dave", Amount: d("1")},
				{ProviderID: "bob", ReceiverID: "carol", Amount: d("3")},
				{ProviderID: "bob", ReceiverID: "dave", Amount: d("3")},
			},
		},
		{
			name: "rounds half away from zero",
			participants: []models.Participant{
				provider("alice", "0", "1"),
				receiver("carol", "0", "1"),
				receiver("dave", "0", "1"),
			},
			splitType:  models.SplitEqual,
			totalHours: "0.25",
			want: []models.Allocation{
				{ProviderID: "alice", ReceiverID: "carol", Amount: d("0.13")},
				{ProviderID: "alice", ReceiverID: "dave", Amount: d("0.13")},
			},
		},
		{
			name: "custom split with zero receiver hours is empty",
			participants: []models.Participant{
				provider("alice", "10", "1"),
				receiver("carol", "0", "1"),
				receiver("dave", "0", "1"),
			},
			splitType:  models.SplitCustom,
			totalHours: "10",
		},
		{
			name: "weighted split with zero provider weights is empty",
			participants: []models.Participant{
				provider("alice", "0", "0"),
				receiver("carol", "0", "1"),
			},
			splitType:  models.SplitWeighted,
			totalHours: "10",
		},
		{
			name: "weighted split with zero receiver weights is empty",
			participants: []models.Participant{
				provider("alice", "0", "1"),
				receiver("carol", "0", "0"),
			},
			splitType:  models.SplitWeighted,
			totalHours: "10",
		},
		{
			name:         "no receivers is empty",
			participants: []models.Participant{provider("alice", "5", "1")},
			splitType:    models.SplitEqual,
			totalHours:   "10",
		},
		{
			name:         "no providers is empty",
			participants: []models.Participant{receiver("carol", "5", "1")},
			splitType:    models.SplitEqual,
			totalHours:   "10",
		},
		{
			name: "unknown split type is empty",
			participants: []models.Participant{
				provider("alice", "5", "1"),
				receiver("carol", "5", "1"),
			},
			splitType:  models.SplitType("lottery"),
			totalHours: "10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeAllocations(tt.participants, tt.splitType, d(tt.totalHours))
			require.Len(t, got, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want.ProviderID, got[i].ProviderID)
				assert.Equal(t, want.ReceiverID, got[i].ReceiverID)
				assertDecimal(t, want.Amount.String(), got[i].Amount, "pair %d", i)
			}
		})
	}
}

func TestComputeAllocations_EqualProperties(t *testing.T) {
	totals := []string{"1", "7.77", "10", "100.01", "0.5"}

	for providers := 1; providers <= 4; providers++ {
		for receivers := 1; receivers <= 4; receivers++ {
			for _, total := range totals {
				var participants []models.Participant
				for i := 0; i < providers; i++ {
					participants = append(participants, provider(fmt.Sprintf("p%d", i), "0", "1"))
				}
				for i := 0; i < receivers; i++ {
					participants = append(participants, receiver(fmt.Sprintf("r%d", i), "0", "1"))
				}

				got := ComputeAllocations(participants, models.SplitEqual, d(total))
				pairs := providers * receivers
				require.Len(t, got, pairs)

				want := d(total).Div(decimal.NewFromInt(int64(pairs))).Round(Precision)
				for _, a := range got {
					assert.True(t, want.Equal(a.Amount), "%dx%d total %s: amount %s, want %s", providers, receivers, total, a.Amount, want)
				}
				assertWithin(t, d(total), Total(got), Tolerance(pairs))
			}
		}
	}
}

func TestComputeAllocations_CustomPreservesProviderHours(t *testing.T) {
	participants := []models.Participant{
		provider("alice", "10", "1"),
		provider("bob", "4.5", "1"),
		provider("erin", "0", "1"),
		receiver("carol", "1", "1"),
		receiver("dave", "1", "1"),
		receiver("frank", "1", "1"),
	}

	got := ComputeAllocations(participants, models.SplitCustom, d("1"))
	require.Len(t, got, 9)

	given := map[string]decimal.Decimal{}
	for _, a := range got {
		given[a.ProviderID] = given[a.ProviderID].Add(a.Amount)
	}

	assertWithin(t, d("10"), given["alice"], Tolerance(3))
	assertWithin(t, d("4.5"), given["bob"], Tolerance(3))
	assert.True(t, given["erin"].IsZero())
	assert.Len(t, Positive(got), 6)
}

func TestComputeAllocations_WeightedProperties(t *testing.T) {
	participants := []models.Participant{
		provider("alice", "0", "1"),
		provider("bob", "0", "2"),
		receiver("carol", "0", "1"),
		receiver("dave", "0", "1.5"),
		receiver("frank", "0", "3"),
	}

	got := ComputeAllocations(participants, models.SplitWeighted, d("10"))
	require.Len(t, got, 6)
	assertWithin(t, d("10"), Total(got), Tolerance(len(got)))

	given := map[string]decimal.Decimal{}
	for _, a := range got {
		given[a.ProviderID] = given[a.ProviderID].Add(a.Amount)
	}
	// bob weighs twice alice, so gives twice as much up to rounding.
	assertWithin(t, given["alice"].Mul(d("2")), given["bob"], Tolerance(6))
	assertWithin(t, d("3.33"), given["alice"], Tolerance(3))
}

func TestComputeAllocations_Deterministic(t *testing.T) {
	participants := []models.Participant{
		provider("alice", "3", "1"),
		receiver("carol", "1", "2"),
		provider("bob", "1", "1"),
		receiver("dave", "2", "1"),
	}

	first := ComputeAllocations(participants, models.SplitWeighted, d("9"))
	second := ComputeAllocations(participants, models.SplitWeighted, d("9"))
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ProviderID, second[i].ProviderID)
		assert.Equal(t, first[i].ReceiverID, second[i].ReceiverID)
		assert.True(t, first[i].Amount.Equal(second[i].Amount))
	}
	assert.Equal(t, "alice", first[0].ProviderID)
	assert.Equal(t, "carol", first[0].ReceiverID)
}

func TestSummarizeAndMatrix(t *testing.T) {
	allocations := []models.Allocation{
		{ProviderID: "alice", ReceiverID: "carol", Amount: d("3")},
		{ProviderID: "alice", ReceiverID: "dave", Amount: d("7")},
		{ProviderID: "bob", ReceiverID: "carol", Amount: d("1.5")},
	}

	totals := Summarize(allocations)
	require.Len(t, totals, 4)
	assert.Equal(t, "alice", totals[0].UserID)
	assertDecimal(t, "10", totals[0].Given)
	assertDecimal(t, "-10", totals[0].Net)
	assert.Equal(t, "carol", totals[2].UserID)
	assertDecimal(t, "4.5", totals[2].Received)
	assertDecimal(t, "4.5", totals[2].Net)

	m := Matrix(allocations)
	assertDecimal(t, "7", m["alice"]["dave"])
	assertDecimal(t, "1.5", m["bob"]["carol"])
	_, ok := m["carol"]
	assert.False(t, ok)
}
