package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Domenick1991/carbooking/config"
	"github.com/Domenick1991/carbooking/internal/domain"
	"github.com/Domenick1991/carbooking/internal/session"
	"github.com/google/uuid"
)

// Client talks to the rental backend over its JSON API. The backend owns all
// booking state and business rules; this client only reads and triggers.
type Client struct {
	httpClient *http.Client
	baseURL    string
	sessions   session.Provider
}

type PendingResult struct {
	Bookings []domain.PendingBooking
	// CleanupTriggered is set when the backend ran its own expiry sweep
	// while serving the request, so the returned list may already be stale.
	CleanupTriggered bool
}

type CleanupResult struct {
	ExpiredCount int
}

type CreateBookingInput struct {
	CarID        string    `json:"car_id"`
	PickupBranch string    `json:"pickup_branch"`
	PickupAt     time.Time `json:"pickup_at"`
	ReturnAt     time.Time `json:"return_at"`
}

func NewClient(cfg config.BackendConfig, sessions session.Provider) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		baseURL:    cfg.BaseURL,
		sessions:   sessions,
	}
}

type bookingPayload struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	ExpiresAt    *time.Time `json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
	CarName      string     `json:"car_name"`
	PickupBranch string     `json:"pickup_branch"`
}

type pendingPayload struct {
	Bookings         []bookingPayload `json:"bookings"`
	CleanupTriggered bool             `json:"cleanup_triggered"`
}

type cleanupPayload struct {
	ExpiredCount int `json:"expired_count"`
}

func (c *Client) PendingBookings(ctx context.Context, actor string) (*PendingResult, error) {
	path := fmt.Sprintf("/v1/actors/%s/bookings/pending", url.PathEscape(actor))

	var out pendingPayload
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}

	result := &PendingResult{CleanupTriggered: out.CleanupTriggered}
	for _, b := range out.Bookings {
		result.Bookings = append(result.Bookings, domain.PendingBooking{
			ID:        b.ID,
			Status:    domain.BookingStatus(b.Status),
			ExpiresAt: b.ExpiresAt,
			CreatedAt: b.CreatedAt,
			CarName:   b.CarName,
		})
	}
	return result, nil
}

// Cleanup asks the backend to reconcile expired bookings for the actor's
// visible scope. The operation is idempotent server-side, so concurrent
// callers need no coordination here.
func (c *Client) Cleanup(ctx context.Context) (*CleanupResult, error) {
	var out cleanupPayload
	if err := c.do(ctx, http.MethodPost, "/v1/bookings/cleanup", nil, &out); err != nil {
		return nil, err
	}
	return &CleanupResult{ExpiredCount: out.ExpiredCount}, nil
}

func (c *Client) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	var out bookingPayload
	if err := c.do(ctx, http.MethodPost, "/v1/bookings", input, &out); err != nil {
		return nil, err
	}
	return toBooking(out), nil
}

func (c *Client) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	var out bookingPayload
	if err := c.do(ctx, http.MethodGet, "/v1/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return toBooking(out), nil
}

func (c *Client) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	var out bookingPayload
	if err := c.do(ctx, http.MethodDelete, "/v1/bookings/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return toBooking(out), nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	sess, err := c.sessions.Current(ctx)
	if err != nil {
		return err
	}

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rental backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("rental backend returned %s: %s", resp.Status, readErrorMessage(resp))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readErrorMessage(resp *http.Response) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || payload.Error == "" {
		return "no details"
	}
	return payload.Error
}

func toBooking(p bookingPayload) *domain.Booking {
	return &domain.Booking{
		ID:           p.ID,
		Status:       domain.BookingStatus(p.Status),
		ExpiresAt:    p.ExpiresAt,
		CreatedAt:    p.CreatedAt,
		CarName:      p.CarName,
		PickupBranch: p.PickupBranch,
	}
}
