package circulation_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movierental/internal/circulation"
	"movierental/internal/httpapi"
	"movierental/internal/model"
	"movierental/internal/store/storetest"
)

func newHandler(t *testing.T, copies int) (http.Handler, *model.Title) {
	t.Helper()
	s := newStore(t)
	clock := &stepClock{}
	clock.Set("2024-03-01")
	title := storetest.SeedTitle(t, s, copies, "5.00")

	r := chi.NewRouter()
	circulation.NewHandler(circulation.NewEngine(s, circulation.WithClock(clock))).Routes(r)
	return r, title
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpapi.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}

func TestHandleCheckoutAndReturn(t *testing.T) {
	h, title := newHandler(t, 1)

	rec := do(h, http.MethodPost, "/rentals", `{"userId": 9, "movieId": `+itoa(title.ID)+`}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var fields map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	for _, key := range []string{"id", "userId", "movieId", "rentalDate", "dueDate", "returnDate", "basePrice", "lateFee", "totalPrice"} {
		assert.Contains(t, fields, key)
	}
	assert.Equal(t, "2024-03-01", fields["rentalDate"])
	assert.Equal(t, "2024-03-08", fields["dueDate"])
	assert.Nil(t, fields["returnDate"])
	assert.Equal(t, 5.0, fields["basePrice"])
	id := itoa(int64(fields["id"].(float64)))

	rec = do(h, http.MethodPost, "/rentals", `{"userId": 10, "movieId": `+itoa(title.ID)+`}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "no_copies_available", errorCode(t, rec))

	rec = do(h, http.MethodGet, "/rentals/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var active []model.Rental
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Len(t, active, 1)

	rec = do(h, http.MethodPut, "/rentals/return/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var returned model.Rental
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &returned))
	assert.False(t, returned.IsOpen())

	rec = do(h, http.MethodPost, "/rentals/"+id+"/return", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_returned", errorCode(t, rec))

	rec = do(h, http.MethodGet, "/rentals/"+id+"/events", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, model.EventRentalReturned, events[1]["type"])
}

func TestHandleCheckoutRejectsBadBodies(t *testing.T) {
	h, title := newHandler(t, 1)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"userId":`},
		{"unknown field", `{"userId": 1, "movieId": 1, "coupon": "x"}`},
		{"missing user", `{"movieId": ` + itoa(title.ID) + `}`},
		{"negative movie", `{"userId": 1, "movieId": -3}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/rentals", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "invalid_input", errorCode(t, rec))
		})
	}
}

func TestHandleLookupErrors(t *testing.T) {
	h, _ := newHandler(t, 1)

	rec := do(h, http.MethodGet, "/rentals/77", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "rental_not_found", errorCode(t, rec))

	rec = do(h, http.MethodGet, "/rentals/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/rentals?view=late", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/rentals", `{"userId": 1, "movieId": 999}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "title_not_found", errorCode(t, rec))
}

func TestHandleListAndAudit(t *testing.T) {
	h, _ := newHandler(t, 1)

	rec := do(h, http.MethodGet, "/rentals?view=overdue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = do(h, http.MethodGet, "/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"consistent": true, "discrepancies": []}`, rec.Body.String())
}

func TestHandlerUsesRequestContext(t *testing.T) {
	h, title := newHandler(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := httptest.NewRequest(http.MethodPost, "/rentals", strings.NewReader(`{"userId": 1, "movieId": `+itoa(title.ID)+`}`)).WithContext(ctx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
