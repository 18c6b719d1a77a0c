// Package feetier resolves days-late counts to late fees and keeps the tier
// ranges pairwise disjoint.
package feetier

import (
	"fmt"
	"sort"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
)

// Validate checks a single tier in isolation.
func Validate(t model.FeeTier) error {
	if t.DaysLateStart < 0 {
		return fmt.Errorf("%w: start %d is negative", errs.ErrInvalidRange, t.DaysLateStart)
	}
	if t.DaysLateEnd < t.DaysLateStart {
		return fmt.Errorf("%w: end %d before start %d", errs.ErrInvalidRange, t.DaysLateEnd, t.DaysLateStart)
	}
	if err := money.NonNegative(t.FeePerDay); err != nil {
		return fmt.Errorf("fee per day: %w", err)
	}
	return nil
}

// Overlaps reports whether two inclusive ranges share a day.
func Overlaps(a, b model.FeeTier) bool {
	return max(a.DaysLateStart, b.DaysLateStart) <= min(a.DaysLateEnd, b.DaysLateEnd)
}

// Range is an inclusive span of days-late values.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Table is an immutable snapshot of tiers ordered by DaysLateStart.
type Table struct {
	tiers []model.FeeTier
}

// NewTable copies and sorts tiers. It does not check for overlaps; the
// stored set is kept disjoint by Service.
func NewTable(tiers []model.FeeTier) Table {
	sorted := make([]model.FeeTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].DaysLateStart != sorted[j].DaysLateStart {
			return sorted[i].DaysLateStart < sorted[j].DaysLateStart
		}
		return sorted[i].ID < sorted[j].ID
	})
	return Table{tiers: sorted}
}

// Tiers returns a copy of the ordered tiers.
func (t Table) Tiers() []model.FeeTier {
	out := make([]model.FeeTier, len(t.tiers))
	copy(out, t.tiers)
	return out
}

func (t Table) Len() int { return len(t.tiers) }

// Match returns the tier covering daysLate.
func (t Table) Match(daysLate int) (model.FeeTier, bool) {
	i := sort.Search(len(t.tiers), func(i int) bool { return t.tiers[i].DaysLateEnd >= daysLate })
	if i < len(t.tiers) && t.tiers[i].Contains(daysLate) {
		return t.tiers[i], true
	}
	return model.FeeTier{}, false
}

// Resolve returns feePerDay * daysLate for the covering tier. Non-positive
// counts and uncovered counts cost nothing.
func (t Table) Resolve(daysLate int) money.Money {
	if daysLate <= 0 {
		return money.Zero()
	}
	tier, ok := t.Match(daysLate)
	if !ok {
		return money.Zero()
	}
	return tier.FeePerDay.Mul(int64(daysLate))
}

// Conflict returns the first tier, other than candidate itself by id, whose
// range intersects candidate.
func (t Table) Conflict(candidate model.FeeTier) (model.FeeTier, bool) {
	for _, tier := range t.tiers {
		if candidate.ID != 0 && tier.ID == candidate.ID {
			continue
		}
		if Overlaps(tier, candidate) {
			return tier, true
		}
	}
	return model.FeeTier{}, false
}

// Gaps lists the sub-ranges of [start, end] no tier covers.
func (t Table) Gaps(start, end int) []Range {
	if end < start {
		return nil
	}
	var gaps []Range
	next := start
	for _, tier := range t.tiers {
		if tier.DaysLateEnd < next {
			continue
		}
		if tier.DaysLateStart > end {
			break
		}
		if tier.DaysLateStart > next {
			gaps = append(gaps, Range{Start: next, End: tier.DaysLateStart - 1})
		}
		if tier.DaysLateEnd >= end {
			return gaps
		}
		next = tier.DaysLateEnd + 1
	}
	return append(gaps, Range{Start: next, End: end})
}

// HasGap reports whether some day in [start, end] resolves to no tier.
func (t Table) HasGap(start, end int) bool {
	return len(t.Gaps(start, end)) > 0
}
