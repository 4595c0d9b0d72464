package approval_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/outlay/internal/approval"
)

func rule(name string, minAmount int64, maxAmount *int64, categories ...string) *approval.Rule {
	return &approval.Rule{
		ID:         uuid.New(),
		Name:       name,
		MinAmount:  minAmount,
		MaxAmount:  maxAmount,
		Categories: categories,
		IsActive:   true,
	}
}

func TestMatch(t *testing.T) {
	small := rule("small", 0, new(int64(10000)))
	large := rule("large", 10001, nil)
	travel := rule("travel", 5000, nil, "Travel")
	inactive := rule("inactive", 0, nil)
	inactive.IsActive = false

	tests := []struct {
		name     string
		rules    []*approval.Rule
		amount   int64
		category string
		want     *approval.Rule
	}{
		{
			name:     "LowestMinAmountWins",
			rules:    []*approval.Rule{large, travel, small},
			amount:   6000,
			category: "Travel",
			want:     small,
		},
		{
			name:     "CategoryRestrictedRuleSkipped",
			rules:    []*approval.Rule{travel, large},
			amount:   20000,
			category: "Food",
			want:     large,
		},
		{
			name:     "UnboundedMax",
			rules:    []*approval.Rule{small, large},
			amount:   1_000_000_00,
			category: "Other",
			want:     large,
		},
		{
			name:     "BoundsAreInclusive",
			rules:    []*approval.Rule{small, large},
			amount:   10000,
			category: "Food",
			want:     small,
		},
		{
			name:     "InactiveNeverMatches",
			rules:    []*approval.Rule{inactive},
			amount:   100,
			category: "Food",
			want:     nil,
		},
		{
			name:     "NoRules",
			amount:   100,
			category: "Food",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := approval.Match(tt.rules, tt.amount, tt.category)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatch_TieBrokenByID(t *testing.T) {
	a := rule("a", 0, nil)
	b := rule("b", 0, nil)

	want := a
	if b.ID.String() < a.ID.String() {
		want = b
	}

	assert.Equal(t, want, approval.Match([]*approval.Rule{a, b}, 50, "Food"))
	assert.Equal(t, want, approval.Match([]*approval.Rule{b, a}, 50, "Food"))
}

func TestMatch_DoesNotReorderInput(t *testing.T) {
	large := rule("large", 10000, nil)
	small := rule("small", 0, nil)
	rules := []*approval.Rule{large, small}

	approval.Match(rules, 50, "Food")

	assert.Equal(t, []*approval.Rule{large, small}, rules)
}

func TestOverlaps(t *testing.T) {
	small := rule("small", 0, new(int64(10000)))
	mid := rule("mid", 5000, new(int64(20000)))
	food := rule("food", 0, nil, "Food")
	travel := rule("travel", 0, nil, "Travel")
	disjoint := rule("disjoint", 50000, nil, "Travel")

	t.Run("RangesAndCategoriesIntersect", func(t *testing.T) {
		got := approval.Overlaps([]*approval.Rule{small, mid})
		require.Len(t, got, 1)
		assert.ElementsMatch(t, []*approval.Rule{small, mid}, []*approval.Rule{got[0].First, got[0].Second})
	})

	t.Run("DistinctCategories", func(t *testing.T) {
		assert.Empty(t, approval.Overlaps([]*approval.Rule{food, travel}))
	})

	t.Run("DisjointRanges", func(t *testing.T) {
		assert.Empty(t, approval.Overlaps([]*approval.Rule{small, disjoint}))
	})
}
