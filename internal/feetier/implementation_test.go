package feetier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierental/internal/errs"
	"movierental/internal/money"
	"movierental/internal/store/boltstore"
)

func newService(t *testing.T) Service {
	t.Helper()
	s, err := boltstore.Open(filepath.Join(t.TempDir(), "tiers.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return NewService(s, nil)
}

func TestServiceRejectsOverlap(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	first, err := svc.Add(ctx, tier(0, 1, 3, "1.00"))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	_, err = svc.Add(ctx, tier(0, 4, 100, "2.00"))
	require.NoError(t, err)

	_, err = svc.Add(ctx, tier(0, 3, 5, "9.00"))
	require.ErrorIs(t, err, errs.ErrOverlappingRange)
	assert.True(t, errs.IsConflict(err))

	_, err = svc.Add(ctx, tier(0, 50, 60, "9.00"))
	require.ErrorIs(t, err, errs.ErrOverlappingRange)

	tiers, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, tiers, 2)
}

func TestServiceRejectsInvalidTier(t *testing.T) {
	svc := newService(t)

	_, err := svc.Add(context.Background(), tier(0, 5, 1, "1"))
	assert.ErrorIs(t, err, errs.ErrInvalidRange)
	_, err = svc.Add(context.Background(), tier(0, 1, 5, "-0.01"))
	assert.ErrorIs(t, err, errs.ErrInvalidAmount)
}

func TestServiceUpdate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	low, err := svc.Add(ctx, tier(0, 1, 3, "1.00"))
	require.NoError(t, err)
	_, err = svc.Add(ctx, tier(0, 4, 10, "2.00"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, tier(low.ID, 1, 3, "1.50"))
	require.NoError(t, err)
	assert.Equal(t, low.CreatedAt, updated.CreatedAt)

	fee, err := svc.Resolve(ctx, 2)
	require.NoError(t, err)
	assert.True(t, fee.Equal(money.MustParse("3.00")))

	_, err = svc.Update(ctx, tier(low.ID, 1, 4, "1.50"))
	assert.ErrorIs(t, err, errs.ErrOverlappingRange)
	_, err = svc.Update(ctx, tier(404, 50, 60, "1"))
	assert.ErrorIs(t, err, errs.ErrFeeTierNotFound)
	_, err = svc.Update(ctx, tier(0, 50, 60, "1"))
	assert.ErrorIs(t, err, errs.ErrInvalidInput)
}

func TestServiceRemoveOpensGap(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	_, err := svc.Add(ctx, tier(0, 1, 3, "1.00"))
	require.NoError(t, err)
	mid, err := svc.Add(ctx, tier(0, 4, 6, "2.00"))
	require.NoError(t, err)

	gaps, err := svc.Gaps(ctx, 1, 6)
	require.NoError(t, err)
	assert.Empty(t, gaps)

	require.NoError(t, svc.Remove(ctx, mid.ID))
	assert.ErrorIs(t, svc.Remove(ctx, mid.ID), errs.ErrFeeTierNotFound)

	gaps, err = svc.Gaps(ctx, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, []Range{{4, 6}}, gaps)

	fee, err := svc.Resolve(ctx, 5)
	require.NoError(t, err)
	assert.True(t, fee.IsZero())

	_, err = svc.Gaps(ctx, 5, 1)
	assert.ErrorIs(t, err, errs.ErrInvalidRange)
}

func TestHandler(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(newService(t)).Routes(r)

	send := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := send(http.MethodGet, "/fee-tiers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = send(http.MethodPost, "/fee-tiers", `{"daysLateStart": 1, "daysLateEnd": 3, "feePerDay": 1.00}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = send(http.MethodPost, "/fee-tiers", `{"daysLateStart": 2, "daysLateEnd": 8, "feePerDay": "2.00"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "overlapping_range")

	rec = send(http.MethodPost, "/fee-tiers", `{"daysLateStart": 0, "feePerDay": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodPut, "/fee-tiers/1", `{"daysLateStart": 0, "daysLateEnd": 5, "feePerDay": 0.50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = send(http.MethodGet, "/fee-tiers/gaps?start=0&end=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"start": 0, "end": 10, "hasGap": true, "gaps": [{"start": 6, "end": 10}]}`, rec.Body.String())

	rec = send(http.MethodGet, "/fee-tiers/gaps?start=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = send(http.MethodDelete, "/fee-tiers/1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = send(http.MethodDelete, "/fee-tiers/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
