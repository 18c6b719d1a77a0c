package feetier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
)

func tier(id int64, start, end int, fee string) model.FeeTier {
	return model.FeeTier{ID: id, DaysLateStart: start, DaysLateEnd: end, FeePerDay: money.MustParse(fee)}
}

func TestResolve(t *testing.T) {
	table := NewTable([]model.FeeTier{
		tier(2, 4, 100, "2.00"),
		tier(1, 1, 3, "1.00"),
	})

	tests := []struct {
		daysLate int
		want     string
	}{
		{-2, "0"},
		{0, "0"},
		{1, "1.00"},
		{2, "2.00"},
		{3, "3.00"},
		{4, "8.00"},
		{5, "10.00"},
		{100, "200.00"},
		{101, "0"},
	}
	for _, tc := range tests {
		got := table.Resolve(tc.daysLate)
		assert.True(t, got.Equal(money.MustParse(tc.want)), "resolve(%d) = %s, want %s", tc.daysLate, got, tc.want)
	}
}

func TestResolveEmptyTable(t *testing.T) {
	assert.True(t, NewTable(nil).Resolve(10).IsZero())
}

func TestNewTableSortsAndCopies(t *testing.T) {
	in := []model.FeeTier{tier(3, 10, 20, "1"), tier(1, 0, 4, "1"), tier(2, 5, 9, "1")}
	table := NewTable(in)
	in[0].DaysLateStart = 99

	tiers := table.Tiers()
	assert.Equal(t, []int64{1, 2, 3}, []int64{tiers[0].ID, tiers[1].ID, tiers[2].ID})
	assert.Equal(t, 10, tiers[2].DaysLateStart)
	assert.Equal(t, 3, table.Len())
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(tier(0, 0, 0, "0")))
	assert.NoError(t, Validate(tier(0, 3, 3, "1.50")))
	assert.ErrorIs(t, Validate(tier(0, -1, 3, "1")), errs.ErrInvalidRange)
	assert.ErrorIs(t, Validate(tier(0, 5, 4, "1")), errs.ErrInvalidRange)
	assert.ErrorIs(t, Validate(tier(0, 1, 4, "-1")), errs.ErrInvalidAmount)
}

func TestOverlapsIsInclusive(t *testing.T) {
	assert.True(t, Overlaps(tier(0, 1, 3, "1"), tier(0, 3, 5, "1")))
	assert.True(t, Overlaps(tier(0, 1, 10, "1"), tier(0, 4, 5, "1")))
	assert.False(t, Overlaps(tier(0, 1, 3, "1"), tier(0, 4, 5, "1")))
	assert.False(t, Overlaps(tier(0, 6, 9, "1"), tier(0, 1, 5, "1")))
}

func TestConflictSkipsSelf(t *testing.T) {
	table := NewTable([]model.FeeTier{tier(1, 1, 3, "1"), tier(2, 4, 10, "2")})

	other, ok := table.Conflict(tier(0, 3, 4, "1"))
	assert.True(t, ok)
	assert.Equal(t, int64(1), other.ID)

	_, ok = table.Conflict(tier(1, 1, 3, "5"))
	assert.False(t, ok)

	other, ok = table.Conflict(tier(1, 1, 4, "5"))
	assert.True(t, ok)
	assert.Equal(t, int64(2), other.ID)
}

func TestGaps(t *testing.T) {
	table := NewTable([]model.FeeTier{tier(1, 1, 3, "1"), tier(2, 7, 10, "2"), tier(3, 20, 30, "3")})

	assert.Equal(t, []Range{{4, 6}, {11, 19}}, table.Gaps(1, 30))
	assert.Equal(t, []Range{{0, 0}, {4, 6}, {11, 19}, {31, 40}}, table.Gaps(0, 40))
	assert.Empty(t, table.Gaps(7, 10))
	assert.Equal(t, []Range{{5, 6}}, table.Gaps(5, 8))
	assert.Nil(t, table.Gaps(5, 4))
	assert.True(t, table.HasGap(1, 30))
	assert.False(t, table.HasGap(1, 3))
	assert.Equal(t, []Range{{1, 365}}, NewTable(nil).Gaps(1, 365))
}

// Tiers admitted only when Conflict finds nothing are pairwise disjoint, so
// every covered day resolves through exactly one tier.
func TestAdmittedTiersNeverOverlap(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var admitted []model.FeeTier
		n := rapid.IntRange(1, 30).Draw(rt, "n")
		for i := range n {
			start := rapid.IntRange(0, 60).Draw(rt, "start")
			end := start + rapid.IntRange(0, 15).Draw(rt, "width")
			candidate := tier(int64(i+1), start, end, "1")
			if _, ok := NewTable(admitted).Conflict(candidate); ok {
				continue
			}
			admitted = append(admitted, candidate)
		}

		for i := range admitted {
			for j := i + 1; j < len(admitted); j++ {
				if Overlaps(admitted[i], admitted[j]) {
					rt.Fatalf("tiers %v and %v overlap", admitted[i], admitted[j])
				}
			}
		}

		table := NewTable(admitted)
		for day := 0; day <= 80; day++ {
			covering := 0
			for _, a := range admitted {
				if a.Contains(day) {
					covering++
				}
			}
			_, matched := table.Match(day)
			if covering > 1 || matched != (covering == 1) {
				rt.Fatalf("day %d: %d covering tiers, matched=%v", day, covering, matched)
			}
		}
	})
}
