package domain

import "fmt"

// Variant is the presentation category for a booking banner.
type Variant string

const (
	VariantNeutral Variant = "neutral"
	VariantSuccess Variant = "success"
	VariantWarning Variant = "warning"
	VariantDanger  Variant = "danger"
	VariantExpired Variant = "expired"
	VariantUnknown Variant = "unknown"
)

// Action is a user action the UI may offer for a booking.
type Action string

const (
	ActionPayNow     Action = "pay_now"
	ActionCallBranch Action = "call_branch"
	ActionCancel     Action = "cancel"
)

// StatusDescriptor tells the UI layer what to render and what to allow for a
// booking in a given state.
type StatusDescriptor struct {
	Label   string
	Variant Variant
	Actions []Action
}

var statusLabels = map[BookingStatus]string{
	BookingStatusPending:        "Awaiting branch approval",
	BookingStatusConfirmed:      "Confirmed, awaiting payment",
	BookingStatusPaymentPending: "Payment in progress",
	BookingStatusActive:         "Rental in progress",
	BookingStatusCancelled:      "Cancelled",
	BookingStatusCompleted:      "Completed",
}

var statusVariants = map[BookingStatus]Variant{
	BookingStatusPending:        VariantWarning,
	BookingStatusConfirmed:      VariantSuccess,
	BookingStatusPaymentPending: VariantWarning,
	BookingStatusActive:         VariantSuccess,
	BookingStatusCancelled:      VariantDanger,
	BookingStatusCompleted:      VariantNeutral,
}

// DescribeStatus maps (status, expired) to a presentation descriptor. It is
// total: an unrecognized status yields VariantUnknown with no actions and a
// non-nil error, never a guessed variant.
func DescribeStatus(status BookingStatus, expired bool) (StatusDescriptor, error) {
	label, ok := statusLabels[status]
	if !ok {
		return StatusDescriptor{
			Label:   "Unknown status",
			Variant: VariantUnknown,
		}, fmt.Errorf("%w: %q", ErrUnknownStatus, status)
	}

	variant := statusVariants[status]
	if expired {
		variant = VariantExpired
	}

	var actions []Action
	if !expired && (status == BookingStatusConfirmed || status == BookingStatusPaymentPending) {
		actions = append(actions, ActionPayNow)
	}
	if status == BookingStatusActive || status == BookingStatusConfirmed {
		actions = append(actions, ActionCallBranch)
	}
	if status == BookingStatusPending {
		actions = append(actions, ActionCancel)
	}

	return StatusDescriptor{Label: label, Variant: variant, Actions: actions}, nil
}

// AllowsAction reports whether the descriptor permits the given action.
func (d StatusDescriptor) AllowsAction(action Action) bool {
	for _, a := range d.Actions {
		if a == action {
			return true
		}
	}
	return false
}
