package clients

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierental/internal/catalog"
	"movierental/internal/circulation"
	"movierental/internal/errs"
	"movierental/internal/feetier"
	"movierental/internal/model"
	"movierental/internal/money"
	"movierental/internal/server"
	"movierental/internal/store/boltstore"
)

var today = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	client  *RentalClient
	catalog catalog.Service
}

func setup(t *testing.T) fixture {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "rental.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	cat := catalog.NewService(s, nil)
	srv := httptest.NewServer(server.NewRouter(server.Deps{
		Store:    s,
		Rentals:  circulation.NewEngine(s, circulation.WithClock(circulation.FixedClock{T: today})),
		Catalog:  cat,
		FeeTiers: feetier.NewService(s, nil),
	}))
	t.Cleanup(srv.Close)

	return fixture{client: NewRentalClient(srv.URL+"/", srv.Client()), catalog: cat}
}

func TestRentalRoundTrip(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	category, err := f.catalog.CreatePricingCategory(ctx, "new release", money.MustParse("4.99"))
	require.NoError(t, err)
	title, err := f.catalog.AddTitle(ctx, "Heat", "crime", 1, category.ID)
	require.NoError(t, err)

	titles, err := f.client.ListTitles(ctx, true)
	require.NoError(t, err)
	require.Len(t, titles, 1)
	require.NotNil(t, titles[0].CurrentPrice)
	assert.True(t, titles[0].CurrentPrice.Equal(money.MustParse("4.99")))

	rental, err := f.client.Checkout(ctx, 7, title.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rental.UserID)
	assert.Equal(t, title.ID, rental.TitleID)
	assert.Equal(t, model.DueDate(today), rental.DueDate)
	assert.True(t, rental.BasePrice.Equal(money.MustParse("4.99")))
	assert.True(t, rental.IsOpen())

	_, err = f.client.Checkout(ctx, 8, title.ID)
	require.ErrorIs(t, err, errs.ErrNoCopiesAvailable)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "no_copies_available", apiErr.Code)

	titles, err = f.client.ListTitles(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, titles)

	active, err := f.client.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, rental.ID, active[0].ID)

	returned, err := f.client.Return(ctx, rental.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnDate)
	assert.True(t, returned.LateFee.IsZero())
	assert.True(t, returned.TotalPrice.Equal(money.MustParse("4.99")))

	_, err = f.client.Return(ctx, rental.ID)
	assert.ErrorIs(t, err, errs.ErrAlreadyReturned)

	got, err := f.client.Get(ctx, rental.ID)
	require.NoError(t, err)
	assert.False(t, got.IsOpen())

	report, err := f.client.Audit(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Empty(t, report.Discrepancies)
}

func TestAPIErrorClassification(t *testing.T) {
	f := setup(t)

	_, err := f.client.Get(context.Background(), 999)
	require.ErrorIs(t, err, errs.ErrRentalNotFound)
	assert.True(t, errs.IsNotFound(err))

	_, err = f.client.Checkout(context.Background(), 0, 1)
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestUnknownCodeDoesNotUnwrap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewRentalClient(srv.URL, nil).Audit(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
	assert.Nil(t, errors.Unwrap(err))
	assert.Equal(t, errs.KindUnknown, errs.KindOf(err))
}
