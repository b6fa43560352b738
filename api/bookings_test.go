package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/carbooking/internal/backend"
	"github.com/Domenick1991/carbooking/internal/domain"
	"github.com/Domenick1991/carbooking/internal/reconciler"
	"github.com/Domenick1991/carbooking/internal/timer"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Snapshot() reconciler.View {
	args := m.Called()
	return args.Get(0).(reconciler.View)
}

func (m *MockReconciler) Refresh(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockCleanup struct {
	mock.Mock
}

func (m *MockCleanup) Run(ctx context.Context) (backend.CleanupResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(backend.CleanupResult), args.Error(1)
}

type MockBookingAPI struct {
	mock.Mock
}

func (m *MockBookingAPI) CreateBooking(ctx context.Context, input backend.CreateBookingInput) (*domain.Booking, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingAPI) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingAPI) CancelBooking(ctx context.Context, id string) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockWatches struct {
	mock.Mock
}

func (m *MockWatches) Watch(bookingID string, expiresAt *time.Time) {
	m.Called(bookingID, expiresAt)
}

func (m *MockWatches) Countdown(bookingID string) (timer.State, bool) {
	args := m.Called(bookingID)
	return args.Get(0).(timer.State), args.Bool(1)
}

func (m *MockWatches) Unwatch(bookingID string) {
	m.Called(bookingID)
}

func newTestRouter(h *BookingHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h.Register(router.Group("/api/v1"))
	return router
}

func TestBookingHandler_pending(t *testing.T) {
	rec := &MockReconciler{}
	handler := NewBookingHandler(rec, &MockCleanup{}, &MockBookingAPI{}, &MockWatches{})

	expires := time.Now().Add(time.Minute)
	rec.On("Snapshot").Return(reconciler.View{
		Items: []domain.PendingBooking{
			{ID: "b1", Status: domain.BookingStatusConfirmed, ExpiresAt: &expires, CarName: "Kia Rio"},
			{ID: "b2", Status: domain.BookingStatusPending, IsExpired: true},
		},
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/bookings/pending", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response pendingViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Items, 2)
	assert.True(t, response.HasPending)
	assert.True(t, response.HasExpired)
	assert.Equal(t, "Kia Rio", response.Items[0].CarName)

	rec.AssertExpectations(t)
}

func TestBookingHandler_refresh_NoActor(t *testing.T) {
	rec := &MockReconciler{}
	handler := NewBookingHandler(rec, &MockCleanup{}, &MockBookingAPI{}, &MockWatches{})

	rec.On("Refresh", mock.Anything).Return(domain.ErrNoActor)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/bookings/refresh", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandler_refresh_TransportErrorStillReturnsView(t *testing.T) {
	rec := &MockReconciler{}
	handler := NewBookingHandler(rec, &MockCleanup{}, &MockBookingAPI{}, &MockWatches{})

	rec.On("Refresh", mock.Anything).Return(errors.New("backend down"))
	rec.On("Snapshot").Return(reconciler.View{
		Items:     []domain.PendingBooking{{ID: "stale", Status: domain.BookingStatusPending}},
		LastError: "could not refresh reservations: backend down",
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/bookings/refresh", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response pendingViewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Items, 1)
	assert.Contains(t, response.LastError, "backend down")
}

func TestBookingHandler_runCleanup(t *testing.T) {
	cleanup := &MockCleanup{}
	handler := NewBookingHandler(&MockReconciler{}, cleanup, &MockBookingAPI{}, &MockWatches{})

	cleanup.On("Run", mock.Anything).Return(backend.CleanupResult{ExpiredCount: 2}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/cleanup", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"expired_count": 2}`, w.Body.String())
}

func TestBookingHandler_cancel_AllowedWhilePending(t *testing.T) {
	bookings := &MockBookingAPI{}
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, bookings, &MockWatches{})

	pending := &domain.Booking{ID: "b1", Status: domain.BookingStatusPending, CreatedAt: time.Now()}
	cancelled := &domain.Booking{ID: "b1", Status: domain.BookingStatusCancelled, CreatedAt: pending.CreatedAt}
	bookings.On("GetBooking", mock.Anything, "b1").Return(pending, nil)
	bookings.On("CancelBooking", mock.Anything, "b1").Return(cancelled, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/v1/bookings/b1", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, string(domain.BookingStatusCancelled), response.Status)

	bookings.AssertExpectations(t)
}

func TestBookingHandler_cancel_RejectedOnceConfirmed(t *testing.T) {
	bookings := &MockBookingAPI{}
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, bookings, &MockWatches{})

	confirmed := &domain.Booking{ID: "b1", Status: domain.BookingStatusConfirmed}
	bookings.On("GetBooking", mock.Anything, "b1").Return(confirmed, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("DELETE", "/api/v1/bookings/b1", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	bookings.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything)
}

func TestBookingHandler_get_UnknownStatusStillRendered(t *testing.T) {
	bookings := &MockBookingAPI{}
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, bookings, &MockWatches{})

	booking := &domain.Booking{ID: "b1", Status: "teleported", CreatedAt: time.Now()}
	bookings.On("GetBooking", mock.Anything, "b1").Return(booking, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/bookings/b1", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response bookingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "teleported", response.Status)
	assert.Equal(t, string(domain.VariantUnknown), response.Descriptor.Variant)
	assert.Empty(t, response.Descriptor.Actions)
}

func TestBookingHandler_describeStatus(t *testing.T) {
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, &MockBookingAPI{}, &MockWatches{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/statuses/confirmed", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response statusDescriptorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "success", response.Variant)
	assert.Contains(t, response.Actions, "pay_now")
	assert.Contains(t, response.Actions, "call_branch")
}

func TestBookingHandler_describeStatus_Expired(t *testing.T) {
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, &MockBookingAPI{}, &MockWatches{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/statuses/confirmed?expired=true", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response statusDescriptorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "expired", response.Variant)
	assert.NotContains(t, response.Actions, "pay_now")
}

func TestBookingHandler_describeStatus_Unknown(t *testing.T) {
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, &MockBookingAPI{}, &MockWatches{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/statuses/vanished", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestBookingHandler_watchAndCountdown(t *testing.T) {
	watches := &MockWatches{}
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, &MockBookingAPI{}, watches)

	watches.On("Watch", "b1", mock.Anything).Return()
	remaining := int64(65)
	watches.On("Countdown", "b1").Return(timer.State{
		SecondsRemaining: &remaining,
		Formatted:        "01:05",
	}, true)

	expires := time.Now().Add(65 * time.Second)
	body, _ := json.Marshal(watchRequest{ExpiresAt: &expires})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/bookings/b1/watch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router := newTestRouter(handler)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/api/v1/bookings/b1/countdown", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"formatted":"01:05"`)

	watches.AssertExpectations(t)
}

func TestBookingHandler_countdown_NotWatched(t *testing.T) {
	watches := &MockWatches{}
	handler := NewBookingHandler(&MockReconciler{}, &MockCleanup{}, &MockBookingAPI{}, watches)

	watches.On("Countdown", "ghost").Return(timer.State{}, false)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/bookings/ghost/countdown", nil)
	newTestRouter(handler).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
