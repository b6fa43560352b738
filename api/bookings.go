package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Domenick1991/carbooking/internal/backend"
	"github.com/Domenick1991/carbooking/internal/domain"
	"github.com/Domenick1991/carbooking/internal/reconciler"
	"github.com/Domenick1991/carbooking/internal/timer"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ReconcilerAPI interface {
	Snapshot() reconciler.View
	Refresh(ctx context.Context) error
}

type CleanupAPI interface {
	Run(ctx context.Context) (backend.CleanupResult, error)
}

type BookingAPI interface {
	CreateBooking(ctx context.Context, input backend.CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, id string) (*domain.Booking, error)
}

type WatchAPI interface {
	Watch(bookingID string, expiresAt *time.Time)
	Countdown(bookingID string) (timer.State, bool)
	Unwatch(bookingID string)
}

type BookingHandler struct {
	reconciler ReconcilerAPI
	cleanup    CleanupAPI
	bookings   BookingAPI
	watches    WatchAPI
}

func NewBookingHandler(rec ReconcilerAPI, cleanup CleanupAPI, bookings BookingAPI, watches WatchAPI) *BookingHandler {
	return &BookingHandler{reconciler: rec, cleanup: cleanup, bookings: bookings, watches: watches}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/bookings/pending", h.pending)
	router.POST("/bookings/refresh", h.refresh)
	router.POST("/cleanup", h.runCleanup)
	router.POST("/bookings", h.create)
	router.GET("/bookings/:id", h.get)
	router.DELETE("/bookings/:id", h.cancel)
	router.POST("/bookings/:id/watch", h.watch)
	router.GET("/bookings/:id/countdown", h.countdown)
	router.DELETE("/bookings/:id/watch", h.unwatch)
	router.GET("/statuses/:status", h.describeStatus)
}

type pendingItemResponse struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
	CarName   string     `json:"car_name"`
	IsExpired bool       `json:"is_expired"`
}

type pendingViewResponse struct {
	Items      []pendingItemResponse `json:"items"`
	IsLoading  bool                  `json:"is_loading"`
	LastError  string                `json:"last_error"`
	HasPending bool                  `json:"has_pending"`
	HasExpired bool                  `json:"has_expired"`
}

type bookingResponse struct {
	ID           string                   `json:"id"`
	Status       string                   `json:"status"`
	ExpiresAt    *time.Time               `json:"expires_at"`
	CreatedAt    time.Time                `json:"created_at"`
	CarName      string                   `json:"car_name"`
	PickupBranch string                   `json:"pickup_branch"`
	Descriptor   statusDescriptorResponse `json:"descriptor"`
}

type statusDescriptorResponse struct {
	Label   string   `json:"label"`
	Variant string   `json:"variant"`
	Actions []string `json:"actions"`
}

func (h *BookingHandler) pending(c *gin.Context) {
	c.JSON(http.StatusOK, toPendingViewResponse(h.reconciler.Snapshot()))
}

func (h *BookingHandler) refresh(c *gin.Context) {
	err := h.reconciler.Refresh(c.Request.Context())
	if errors.Is(err, domain.ErrNoActor) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no signed-in actor"})
		return
	}
	// a transport failure is recorded on the view itself; the caller still
	// gets the last known state plus the error indicator
	c.JSON(http.StatusOK, toPendingViewResponse(h.reconciler.Snapshot()))
}

func (h *BookingHandler) runCleanup(c *gin.Context) {
	res, err := h.cleanup.Run(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"expired_count": res.ExpiredCount})
}

type createBookingRequest struct {
	CarID        string    `json:"car_id" binding:"required"`
	PickupBranch string    `json:"pickup_branch" binding:"required"`
	PickupAt     time.Time `json:"pickup_at" binding:"required"`
	ReturnAt     time.Time `json:"return_at" binding:"required"`
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := h.bookings.CreateBooking(c.Request.Context(), backend.CreateBookingInput{
		CarID:        req.CarID,
		PickupBranch: req.PickupBranch,
		PickupAt:     req.PickupAt,
		ReturnAt:     req.ReturnAt,
	})
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, toBookingResponse(booking, time.Now()))
}

func (h *BookingHandler) get(c *gin.Context) {
	booking, err := h.bookings.GetBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toBookingResponse(booking, time.Now()))
}

/// cancel enforces the status model before touching the backend: cancellation
// is only offered while a booking is still pending.
func (h *BookingHandler) cancel(c *gin.Context) {
	id := c.Param("id")

	booking, err := h.bookings.GetBooking(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "booking not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	desc, err := domain.DescribeStatus(booking.Status, isExpired(booking, time.Now()))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if !desc.AllowsAction(domain.ActionCancel) {
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrActionNotAllowed.Error()})
		return
	}

	cancelled, err := h.bookings.CancelBooking(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toBookingResponse(cancelled, time.Now()))
}

type watchRequest struct {
	ExpiresAt *time.Time `json:"expires_at"`
}

func (h *BookingHandler) watch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.watches.Watch(c.Param("id"), req.ExpiresAt)
	c.Status(http.StatusNoContent)
}

func (h *BookingHandler) countdown(c *gin.Context) {
	state, ok := h.watches.Countdown(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "booking is not being watched"})
		return
	}

	var formatted *string
	if state.SecondsRemaining != nil {
		formatted = &state.Formatted
	}
	c.JSON(http.StatusOK, gin.H{
		"seconds_remaining": state.SecondsRemaining,
		"is_expired":        state.Expired,
		"is_busy":           state.Busy,
		"formatted":         formatted,
	})
}

func (h *BookingHandler) unwatch(c *gin.Context) {
	h.watches.Unwatch(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (h *BookingHandler) describeStatus(c *gin.Context) {
	status := domain.BookingStatus(c.Param("status"))
	expired := c.Query("expired") == "true"

	desc, err := domain.DescribeStatus(status, expired)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toDescriptorResponse(desc))
}

func toPendingViewResponse(view reconciler.View) pendingViewResponse {
	items := make([]pendingItemResponse, 0, len(view.Items))
	for _, item := range view.Items {
		items = append(items, pendingItemResponse{
			ID:        item.ID,
			Status:    string(item.Status),
			ExpiresAt: item.ExpiresAt,
			CreatedAt: item.CreatedAt,
			CarName:   item.CarName,
			IsExpired: item.IsExpired,
		})
	}
	return pendingViewResponse{
		Items:      items,
		IsLoading:  view.IsLoading,
		LastError:  view.LastError,
		HasPending: view.HasPending(),
		HasExpired: view.HasExpired(),
	}
}

func toBookingResponse(b *domain.Booking, now time.Time) bookingResponse {
	desc, err := domain.DescribeStatus(b.Status, isExpired(b, now))
	if err != nil {
		// still render the booking; the descriptor carries the unknown
		// variant so the client shows a safe banner with no actions
		logrus.WithField("booking_id", b.ID).WithError(err).Warn("unrecognized booking status from backend")
	}
	return bookingResponse{
		ID:           b.ID,
		Status:       string(b.Status),
		ExpiresAt:    b.ExpiresAt,
		CreatedAt:    b.CreatedAt,
		CarName:      b.CarName,
		PickupBranch: b.PickupBranch,
		Descriptor:   toDescriptorResponse(desc),
	}
}

func toDescriptorResponse(desc domain.StatusDescriptor) statusDescriptorResponse {
	actions := make([]string, 0, len(desc.Actions))
	for _, a := range desc.Actions {
		actions = append(actions, string(a))
	}
	return statusDescriptorResponse{
		Label:   desc.Label,
		Variant: string(desc.Variant),
		Actions: actions,
	}
}

func isExpired(b *domain.Booking, now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}
