package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierental/internal/errs"
	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/store"
	"movierental/internal/store/boltstore"
)

func newTestService(t *testing.T) (Service, store.Store) {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return NewService(s, nil), s
}

func TestAddTitleWithPricing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreatePricingCategory(ctx, "  classic ", money.MustParse("2.99"))
	require.NoError(t, err)
	assert.Equal(t, "classic", category.Name)

	title, err := svc.AddTitle(ctx, "Casablanca", "drama", 3, category.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, title.TotalCopies)
	assert.Equal(t, 3, title.AvailableCopies)
	require.NotNil(t, title.CurrentPrice)
	assert.True(t, title.CurrentPrice.Equal(money.MustParse("2.99")))

	price, err := svc.CurrentPrice(ctx, title.ID)
	require.NoError(t, err)
	assert.True(t, price.Equal(money.MustParse("2.99")))

	unpriced, err := svc.AddTitle(ctx, "Metropolis", "sci-fi", 1, 0)
	require.NoError(t, err)
	assert.Nil(t, unpriced.CurrentPrice)
	_, err = svc.CurrentPrice(ctx, unpriced.ID)
	assert.ErrorIs(t, err, errs.ErrNoPricingSet)
}

func TestAddTitleValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddTitle(ctx, "   ", "", 1, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = svc.AddTitle(ctx, "Heat", "", -1, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = svc.AddTitle(ctx, "Heat", "", 1, 99)
	assert.ErrorIs(t, err, errs.ErrPricingCategoryNotFound)

	titles, err := svc.ListTitles(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestPricingCategoryNamesAreUnique(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePricingCategory(ctx, "new release", money.MustParse("4.99"))
	require.NoError(t, err)
	_, err = svc.CreatePricingCategory(ctx, "new release", money.MustParse("1.00"))
	assert.ErrorIs(t, err, errs.ErrDuplicateCategory)
	_, err = svc.CreatePricingCategory(ctx, "bargain", money.MustParse("-1"))
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)

	categories, err := svc.ListPricingCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 1)
}

func TestUpdateTitleKeepsStockAndPrice(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreatePricingCategory(ctx, "classic", money.MustParse("2.99"))
	require.NoError(t, err)
	title, err := svc.AddTitle(ctx, "Casablanka", "drama", 2, category.ID)
	require.NoError(t, err)

	updated, err := svc.UpdateTitle(ctx, title.ID, " Casablanca ", " romance ")
	require.NoError(t, err)
	assert.Equal(t, "Casablanca", updated.Name)
	assert.Equal(t, "romance", updated.Genre)
	assert.Equal(t, 2, updated.TotalCopies)
	require.NotNil(t, updated.CurrentPrice)
	assert.True(t, updated.CurrentPrice.Equal(money.MustParse("2.99")))

	_, err = svc.UpdateTitle(ctx, title.ID, "  ", "drama")
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = svc.UpdateTitle(ctx, title.ID+100, "Ghost", "")
	assert.ErrorIs(t, err, errs.ErrTitleNotFound)
}

func TestPricingCategoryNamesIgnoreCase(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePricingCategory(ctx, "Drama", money.MustParse("3.00"))
	require.NoError(t, err)
	_, err = svc.CreatePricingCategory(ctx, "drama", money.MustParse("3.00"))
	assert.ErrorIs(t, err, errs.ErrDuplicateCategory)
}

func TestAddCopiesAndAvailableListing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	empty, err := svc.AddTitle(ctx, "Alien", "horror", 0, 0)
	require.NoError(t, err)
	_, err = svc.AddTitle(ctx, "Aliens", "action", 2, 0)
	require.NoError(t, err)

	available, err := svc.ListTitles(ctx, true)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Aliens", available[0].Name)

	restocked, err := svc.AddCopies(ctx, empty.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, restocked.TotalCopies)
	assert.Equal(t, 2, restocked.AvailableCopies)

	_, err = svc.AddCopies(ctx, empty.ID, 0)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = svc.AddCopies(ctx, 404, 1)
	assert.ErrorIs(t, err, errs.ErrTitleNotFound)
}

func TestRemoveTitleGuards(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreatePricingCategory(ctx, "standard", money.MustParse("3.00"))
	require.NoError(t, err)
	rented, err := svc.AddTitle(ctx, "Ran", "drama", 1, category.ID)
	require.NoError(t, err)
	unused, err := svc.AddTitle(ctx, "Ikiru", "drama", 1, category.ID)
	require.NoError(t, err)

	rental := &model.Rental{UserID: 1, TitleID: rented.ID, BasePrice: money.MustParse("3.00")}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.Inventory().DecrementIfAvailable(ctx, rented.ID); err != nil {
			return err
		}
		rental.RentalDate = model.Day(time.Now())
		rental.DueDate = model.DueDate(rental.RentalDate)
		return tx.Rentals().CreateOpen(ctx, rental)
	}))

	assert.ErrorIs(t, svc.RemoveTitle(ctx, rented.ID), errs.ErrTitleHasOpenRentals)

	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if _, err := tx.Rentals().Close(ctx, rental.ID, rental.DueDate, money.Zero()); err != nil {
			return err
		}
		return tx.Inventory().Increment(ctx, rented.ID)
	}))
	assert.ErrorIs(t, svc.RemoveTitle(ctx, rented.ID), errs.ErrTitleReferenced)

	require.NoError(t, svc.RemoveTitle(ctx, unused.ID))
	_, err = svc.GetTitle(ctx, unused.ID)
	assert.ErrorIs(t, err, errs.ErrTitleNotFound)
	assert.ErrorIs(t, svc.RemoveTitle(ctx, unused.ID), errs.ErrTitleNotFound)
}

func TestAssignPricing(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cheap, err := svc.CreatePricingCategory(ctx, "cheap", money.MustParse("1.00"))
	require.NoError(t, err)
	premium, err := svc.CreatePricingCategory(ctx, "premium", money.MustParse("6.00"))
	require.NoError(t, err)
	title, err := svc.AddTitle(ctx, "Dune", "sci-fi", 1, cheap.ID)
	require.NoError(t, err)

	view, err := svc.AssignPricing(ctx, title.ID, premium.ID)
	require.NoError(t, err)
	assert.Equal(t, premium.ID, view.PricingCategoryID)
	assert.True(t, view.CurrentPrice.Equal(money.MustParse("6.00")))

	_, err = svc.AssignPricing(ctx, title.ID, 999)
	assert.ErrorIs(t, err, errs.ErrPricingCategoryNotFound)
}

func TestHandlerRoutes(t *testing.T) {
	svc, _ := newTestService(t)
	r := chi.NewRouter()
	NewHandler(svc).Routes(r)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := send(http.MethodPost, "/pricing-categories", `{"name": "weekly", "basePrice": 3.50}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = send(http.MethodPost, "/pricing-categories", `{"name": "weekly", "basePrice": 1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = send(http.MethodPost, "/pricing-categories", `{"name": "free"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPost, "/titles", `{"name": "Heat", "genre": "crime", "copies": 2, "pricingCategoryId": 1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"currentPrice":3.50`)

	rec = send(http.MethodGet, "/titles/1/price", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"movieId": 1, "basePrice": 3.50}`, rec.Body.String())

	rec = send(http.MethodPost, "/titles/1/copies", `{"copies": 3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalCopies":5`)

	rec = send(http.MethodGet, "/titles?available=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Heat"`)

	rec = send(http.MethodPut, "/titles/1", `{"name": "Heat (1995)", "genre": "thriller"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"name":"Heat (1995)"`)
	assert.Contains(t, rec.Body.String(), `"totalCopies":5`)
	rec = send(http.MethodPut, "/titles/1", `{"genre": "thriller"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = send(http.MethodPut, "/titles/99", `{"name": "Ghost"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = send(http.MethodDelete, "/titles/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(http.MethodGet, "/titles/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
