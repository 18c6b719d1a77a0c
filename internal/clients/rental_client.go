// Package clients holds typed HTTP clients for the rental API.
package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"movierental/internal/catalog"
	"movierental/internal/circulation"
	"movierental/internal/errs"
	"movierental/internal/model"
)

// APIError is a non-2xx response. It unwraps to the matching errs sentinel,
// so errors.Is(err, errs.ErrNoCopiesAvailable) works across the wire.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rental api: %d %s: %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	if sentinel, ok := errs.ByCode(e.Code); ok {
		return sentinel
	}
	return nil
}

// AuditReport is the body of GET /audit.
type AuditReport struct {
	Consistent    bool                      `json:"consistent"`
	Discrepancies []circulation.Discrepancy `json:"discrepancies"`
}

type RentalClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRentalClient returns a client for the API at baseURL. A nil httpClient
// gets one with a 10 second timeout.
func NewRentalClient(baseURL string, httpClient *http.Client) *RentalClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &RentalClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

func (c *RentalClient) Checkout(ctx context.Context, userID, movieID int64) (*model.Rental, error) {
	body := struct {
		UserID  int64 `json:"userId"`
		MovieID int64 `json:"movieId"`
	}{UserID: userID, MovieID: movieID}

	var rental model.Rental
	if err := c.do(ctx, http.MethodPost, "/rentals", body, &rental); err != nil {
		return nil, err
	}
	return &rental, nil
}

func (c *RentalClient) Return(ctx context.Context, rentalID int64) (*model.Rental, error) {
	var rental model.Rental
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/rentals/%d/return", rentalID), nil, &rental); err != nil {
		return nil, err
	}
	return &rental, nil
}

func (c *RentalClient) Get(ctx context.Context, rentalID int64) (*model.Rental, error) {
	var rental model.Rental
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/rentals/%d", rentalID), nil, &rental); err != nil {
		return nil, err
	}
	return &rental, nil
}

func (c *RentalClient) ListActive(ctx context.Context) ([]*model.Rental, error) {
	var rentals []*model.Rental
	if err := c.do(ctx, http.MethodGet, "/rentals/active", nil, &rentals); err != nil {
		return nil, err
	}
	return rentals, nil
}

func (c *RentalClient) ListTitles(ctx context.Context, availableOnly bool) ([]*catalog.TitleView, error) {
	path := "/titles"
	if availableOnly {
		path += "?" + url.Values{"available": {"true"}}.Encode()
	}
	var titles []*catalog.TitleView
	if err := c.do(ctx, http.MethodGet, path, nil, &titles); err != nil {
		return nil, err
	}
	return titles, nil
}

func (c *RentalClient) Audit(ctx context.Context) (*AuditReport, error) {
	var report AuditReport
	if err := c.do(ctx, http.MethodGet, "/audit", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *RentalClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body); err == nil {
		apiErr.Code = body.Error
		apiErr.Message = body.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
