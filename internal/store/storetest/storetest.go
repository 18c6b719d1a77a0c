// Package storetest is a conformance suite every store.Store must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/store"
)

// Factory returns a migrated, empty store.
type Factory func(t *testing.T) store.Store

// Run executes the suite, one fresh store per subtest.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"DecrementStopsAtZero", testDecrementStopsAtZero},
		{"IncrementBoundedByTotal", testIncrementBoundedByTotal},
		{"RollbackOnError", testRollbackOnError},
		{"RollbackOnPanic", testRollbackOnPanic},
		{"PricingLookup", testPricingLookup},
		{"CategoryNamesIgnoreCase", testCategoryNamesIgnoreCase},
		{"UpdateTitle", testUpdateTitle},
		{"RentalLifecycle", testRentalLifecycle},
		{"RentalViews", testRentalViews},
		{"FeeTiers", testFeeTiers},
		{"EventVersions", testEventVersions},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

var (
	errBoom = errors.New("boom")
	seeded  atomic.Int64
)

func day(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// SeedTitle creates a priced title with the given number of copies.
func SeedTitle(t testing.TB, s store.Store, copies int, price string) *model.Title {
	t.Helper()
	var title *model.Title
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		cat := &model.PricingCategory{Name: fmt.Sprintf("category-%d", seeded.Add(1)), BasePrice: money.MustParse(price)}
		if err := tx.Catalog().CreatePricingCategory(ctx, cat); err != nil {
			return err
		}
		title = &model.Title{Name: "Heat", Genre: "crime", TotalCopies: copies, AvailableCopies: copies, PricingCategoryID: cat.ID}
		return tx.Catalog().CreateTitle(ctx, title)
	})
	require.NoError(t, err)
	return title
}

// Available reads a title's available copies outside any write.
func Available(t testing.TB, s store.Store, titleID int64) int {
	t.Helper()
	var n int
	require.NoError(t, s.View(context.Background(), func(ctx context.Context, tx store.Tx) error {
		var err error
		n, err = tx.Inventory().Available(ctx, titleID)
		return err
	}))
	return n
}

func testDecrementStopsAtZero(t *testing.T, s store.Store) {
	ctx := context.Background()
	title := SeedTitle(t, s, 1, "5")

	decrement := func() error {
		return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.Inventory().DecrementIfAvailable(ctx, title.ID)
		})
	}
	require.NoError(t, decrement())
	assert.ErrorIs(t, decrement(), errs.ErrNoCopiesAvailable)
	assert.Equal(t, 0, Available(t, s, title.ID))

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Inventory().DecrementIfAvailable(ctx, title.ID+1000)
	})
	assert.ErrorIs(t, err, errs.ErrTitleNotFound)
}

func testIncrementBoundedByTotal(t *testing.T, s store.Store) {
	title := SeedTitle(t, s, 2, "5")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Inventory().Increment(ctx, title.ID)
	})
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
	assert.Equal(t, 2, Available(t, s, title.ID))

	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Inventory().AddCopies(ctx, title.ID, 3)
	}))
	assert.Equal(t, 5, Available(t, s, title.ID))
}

func testRollbackOnError(t *testing.T, s store.Store) {
	title := SeedTitle(t, s, 3, "5")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		if err := tx.Inventory().DecrementIfAvailable(ctx, title.ID); err != nil {
			return err
		}
		return errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 3, Available(t, s, title.ID))
}

func testRollbackOnPanic(t *testing.T, s store.Store) {
	title := SeedTitle(t, s, 3, "5")

	assert.Panics(t, func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
			if err := tx.Inventory().DecrementIfAvailable(ctx, title.ID); err != nil {
				return err
			}
			panic("boom")
		})
	})
	assert.Equal(t, 3, Available(t, s, title.ID))
}

func testPricingLookup(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		unpriced := &model.Title{Name: "Alien", TotalCopies: 1, AvailableCopies: 1}
		require.NoError(t, tx.Catalog().CreateTitle(ctx, unpriced))

		_, err := tx.Catalog().PricingForTitle(ctx, unpriced.ID)
		assert.ErrorIs(t, err, errs.ErrNoPricingSet)
		_, err = tx.Catalog().PricingForTitle(ctx, unpriced.ID+1000)
		assert.ErrorIs(t, err, errs.ErrTitleNotFound)

		cat := &model.PricingCategory{Name: "New Release", BasePrice: money.MustParse("4.99")}
		require.NoError(t, tx.Catalog().CreatePricingCategory(ctx, cat))
		require.NoError(t, tx.Catalog().AssignPricing(ctx, unpriced.ID, cat.ID))

		got, err := tx.Catalog().PricingForTitle(ctx, unpriced.ID)
		require.NoError(t, err)
		assert.Equal(t, cat.ID, got.ID)
		assert.True(t, got.BasePrice.Equal(money.MustParse("4.99")))

		assert.ErrorIs(t, tx.Catalog().AssignPricing(ctx, unpriced.ID, cat.ID+1000), errs.ErrPricingCategoryNotFound)
		return nil
	})
	require.NoError(t, err)

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Catalog().CreatePricingCategory(ctx, &model.PricingCategory{Name: "New Release", BasePrice: money.Zero()})
	})
	assert.ErrorIs(t, err, errs.ErrDuplicateCategory)
}

func testCategoryNamesIgnoreCase(t *testing.T, s store.Store) {
	ctx := context.Background()
	create := func(name string) error {
		return s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.Catalog().CreatePricingCategory(ctx, &model.PricingCategory{Name: name, BasePrice: money.MustParse("1.00")})
		})
	}

	require.NoError(t, create("Drama"))
	assert.ErrorIs(t, create("drama"), errs.ErrDuplicateCategory)
	assert.ErrorIs(t, create("DRAMA"), errs.ErrDuplicateCategory)
	require.NoError(t, create("Dramedy"))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		list, err := tx.Catalog().ListPricingCategories(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Drama", list[0].Name)
		return nil
	}))
}

func testUpdateTitle(t *testing.T, s store.Store) {
	ctx := context.Background()
	title := SeedTitle(t, s, 2, "3.00")

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Catalog().UpdateTitle(ctx, title.ID, "Heat (1995)", "thriller")
	}))
	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Catalog().UpdateTitle(ctx, title.ID+1000, "Ghost", "")
	})
	assert.ErrorIs(t, err, errs.ErrTitleNotFound)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Catalog().GetTitle(ctx, title.ID)
		require.NoError(t, err)
		assert.Equal(t, "Heat (1995)", got.Name)
		assert.Equal(t, "thriller", got.Genre)
		assert.Equal(t, 2, got.TotalCopies)
		assert.Equal(t, 2, got.AvailableCopies)
		assert.Equal(t, title.PricingCategoryID, got.PricingCategoryID)
		return nil
	}))
}

func testRentalLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	title := SeedTitle(t, s, 1, "5")

	var rental *model.Rental
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		rental = &model.Rental{
			UserID: 9, TitleID: title.ID,
			RentalDate: day("2024-03-01"), DueDate: day("2024-03-08"),
			BasePrice: money.MustParse("5"),
		}
		return tx.Rentals().CreateOpen(ctx, rental)
	}))
	require.NotZero(t, rental.ID)
	assert.True(t, rental.IsOpen())
	assert.True(t, rental.TotalPrice.Equal(money.MustParse("5")))
	assert.True(t, rental.LateFee.IsZero())

	var closed *model.Rental
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		closed, err = tx.Rentals().Close(ctx, rental.ID, day("2024-03-09"), money.MustParse("1"))
		return err
	}))
	require.NotNil(t, closed.ReturnDate)
	assert.Equal(t, day("2024-03-09"), *closed.ReturnDate)
	assert.True(t, closed.TotalPrice.Equal(money.MustParse("6")))

	err := s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Rentals().Close(ctx, rental.ID, day("2024-03-10"), money.Zero())
		return err
	})
	assert.ErrorIs(t, err, errs.ErrAlreadyClosed)

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Rentals().Close(ctx, rental.ID+1000, day("2024-03-10"), money.Zero())
		return err
	})
	assert.ErrorIs(t, err, errs.ErrRentalNotFound)

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		got, err := tx.Rentals().Get(ctx, rental.ID)
		require.NoError(t, err)
		assert.Equal(t, day("2024-03-09"), *got.ReturnDate)
		assert.True(t, got.TotalPrice.Equal(money.MustParse("6")))

		open, total, err := tx.Rentals().CountByTitle(ctx, title.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, open)
		assert.Equal(t, 1, total)
		return nil
	}))
}

func testRentalViews(t *testing.T, s store.Store) {
	ctx := context.Background()
	title := SeedTitle(t, s, 10, "3")

	create := func(rented, due string) int64 {
		var id int64
		require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
			r := &model.Rental{UserID: 1, TitleID: title.ID, RentalDate: day(rented), DueDate: day(due), BasePrice: money.MustParse("3")}
			err := tx.Rentals().CreateOpen(ctx, r)
			id = r.ID
			return err
		}))
		return id
	}
	a := create("2024-03-01", "2024-03-08")
	b := create("2024-03-03", "2024-03-06")
	c := create("2024-03-02", "2024-03-20")
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Rentals().Close(ctx, b, day("2024-03-05"), money.Zero())
		return err
	}))

	ids := func(f model.RentalFilter) []int64 {
		var out []int64
		require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
			rentals, err := tx.Rentals().List(ctx, f)
			for _, r := range rentals {
				out = append(out, r.ID)
			}
			return err
		}))
		return out
	}

	assert.Equal(t, []int64{b, c, a}, ids(model.RentalFilter{View: model.AllRentals}))
	assert.Equal(t, []int64{a, c}, ids(model.RentalFilter{View: model.ActiveRentals}))
	assert.Equal(t, []int64{a}, ids(model.RentalFilter{View: model.OverdueRentals, AsOf: day("2024-03-10")}))
	assert.Empty(t, ids(model.RentalFilter{View: model.OverdueRentals, AsOf: day("2024-03-08")}))
	assert.Empty(t, ids(model.RentalFilter{View: model.AllRentals, TitleID: title.ID + 1000}))
}

func testFeeTiers(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.FeeTiers().Lock(ctx))
		for _, tier := range []model.FeeTier{
			{DaysLateStart: 4, DaysLateEnd: 100, FeePerDay: money.MustParse("2")},
			{DaysLateStart: 1, DaysLateEnd: 3, FeePerDay: money.MustParse("1")},
		} {
			require.NoError(t, tx.FeeTiers().Create(ctx, &tier))
			require.NotZero(t, tier.ID)
		}
		return nil
	}))

	var tiers []model.FeeTier
	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		tiers, err = tx.FeeTiers().List(ctx)
		return err
	}))
	require.Len(t, tiers, 2)
	assert.Equal(t, 1, tiers[0].DaysLateStart)
	assert.Equal(t, 4, tiers[1].DaysLateStart)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		first := tiers[0]
		first.FeePerDay = money.MustParse("1.50")
		require.NoError(t, tx.FeeTiers().Update(ctx, &first))
		got, err := tx.FeeTiers().Get(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, got.FeePerDay.Equal(money.MustParse("1.50")))

		missing := model.FeeTier{ID: first.ID + 1000, DaysLateStart: 200, DaysLateEnd: 300}
		assert.ErrorIs(t, tx.FeeTiers().Update(ctx, &missing), errs.ErrFeeTierNotFound)
		require.NoError(t, tx.FeeTiers().Delete(ctx, first.ID))
		assert.ErrorIs(t, tx.FeeTiers().Delete(ctx, first.ID), errs.ErrFeeTierNotFound)
		return nil
	}))
}

func testEventVersions(t *testing.T, s store.Store) {
	ctx := context.Background()
	first, err := model.NewEvent(42, model.EventRentalCheckedOut, 1, map[string]int{"n": 1})
	require.NoError(t, err)
	second, err := model.NewEvent(42, model.EventRentalReturned, 2, map[string]int{"n": 2})
	require.NoError(t, err)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Events().Append(ctx, 42, 0, first)
	}))

	err = s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Events().Append(ctx, 42, 0, second)
	})
	assert.ErrorIs(t, err, errs.ErrConcurrencyConflict)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Events().Append(ctx, 42, 1, second)
	}))

	require.NoError(t, s.View(ctx, func(ctx context.Context, tx store.Tx) error {
		events, err := tx.Events().Load(ctx, 42)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, model.EventRentalCheckedOut, events[0].Type)
		assert.Equal(t, 2, events[1].Version)
		assert.JSONEq(t, `{"n":2}`, string(events[1].Data))

		none, err := tx.Events().Load(ctx, 43)
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
}
