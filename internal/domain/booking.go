package domain

import "time"

// BookingStatus is assigned by the rental backend only. The client never
// computes a transition; it just reflects what the server reports.
type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusActive         BookingStatus = "active"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusCompleted      BookingStatus = "completed"
)

// Booking is a read-only projection of a reservation held by the backend.
// ExpiresAt is nil when no countdown applies to the booking.
type Booking struct {
	ID           string
	Status       BookingStatus
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	CarName      string
	PickupBranch string
}

// PendingBooking is the lightweight summary the reconciler keeps per actor.
// IsExpired is derived client-side from ExpiresAt at fetch time.
type PendingBooking struct {
	ID        string
	Status    BookingStatus
	ExpiresAt *time.Time
	CreatedAt time.Time
	CarName   string
	IsExpired bool
}
