// README: Booking aggregate, status state machine, and payment status definitions.
package booking

import (
	"time"

	"ridepool/internal/types"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusAwaitingPayment Status = "awaiting_payment"
	// StatusPending is a legacy intermediate kept for data written by the
	// old flow; new bookings go awaiting_payment -> confirmed directly.
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// AllowedTransitions represents the booking state flow as code. Cancellation
// is reachable from every non-terminal state.
var AllowedTransitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusPending, StatusConfirmed, StatusCancelled},
	StatusPending:         {StatusConfirmed, StatusCancelled},
	StatusConfirmed:       {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// ParseStatus rejects unknown status values at the boundary.
func ParseStatus(in string) (Status, bool) {
	s := Status(in)
	switch s {
	case StatusAwaitingPayment, StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return s, true
	default:
		return "", false
	}
}

func ParsePaymentStatus(in string) (PaymentStatus, bool) {
	s := PaymentStatus(in)
	switch s {
	case PaymentUnpaid, PaymentPending, PaymentPaid:
		return s, true
	default:
		return "", false
	}
}

// Active reports whether the booking still holds seat inventory. Seats are
// held from creation time, so an unpaid booking still occupies its seats
// during the payment window.
func (s Status) Active() bool {
	return s != StatusCancelled
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Booking reserves N seats on one ride for one passenger.
type Booking struct {
	ID            types.ID
	RideID        types.ID
	PassengerID   types.ID
	Seats         int
	Status        Status
	StatusVersion int
	PaymentStatus PaymentStatus
	Fee           types.Money
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
