package approval

import (
	"cmp"
	"slices"
	"strings"
)

// SortRules orders rules by minimum amount. Ties are broken by ID so that
// overlapping rules always resolve the same way.
func SortRules(rules []*Rule) {
	slices.SortStableFunc(rules, func(a, b *Rule) int {
		if c := cmp.Compare(a.MinAmount, b.MinAmount); c != 0 {
			return c
		}

		return strings.Compare(a.ID.String(), b.ID.String())
	})
}

// Match returns the first active rule, in SortRules order, that admits the
// amount and category. It returns nil when no rule applies.
func Match(rules []*Rule, amount int64, category string) *Rule {
	sorted := slices.Clone(rules)
	SortRules(sorted)

	for _, r := range sorted {
		if r == nil || !r.IsActive {
			continue
		}

		if r.Admits(amount, category) {
			return r
		}
	}

	return nil
}

// Overlap is a pair of active rules that can both match the same expense.
type Overlap struct {
	First  *Rule
	Second *Rule
}

// Overlaps reports every pair of active rules whose amount ranges and
// category sets intersect. Only the lower-sorted rule of a pair is ever used.
func Overlaps(rules []*Rule) []Overlap {
	active := make([]*Rule, 0, len(rules))

	for _, r := range rules {
		if r != nil && r.IsActive {
			active = append(active, r)
		}
	}

	SortRules(active)

	var out []Overlap

	for i, a := range active {
		for _, b := range active[i+1:] {
			if rangesIntersect(a, b) && categoriesIntersect(a.Categories, b.Categories) {
				out = append(out, Overlap{First: a, Second: b})
			}
		}
	}

	return out
}

func rangesIntersect(a, b *Rule) bool {
	if a.MaxAmount != nil && b.MinAmount > *a.MaxAmount {
		return false
	}

	if b.MaxAmount != nil && a.MinAmount > *b.MaxAmount {
		return false
	}

	return true
}

func categoriesIntersect(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return true
	}

	for _, c := range a {
		if slices.Contains(b, c) {
			return true
		}
	}

	return false
}
