// README: Payment service: checkout preferences and the idempotent confirm boundary.
package payment

import (
	"context"
	"errors"
	"time"

	"ridepool/internal/audit"
	"ridepool/internal/config"
	"ridepool/internal/modules/booking"
	"ridepool/internal/notify"
	"ridepool/internal/types"
)

var (
	ErrNotFound  = errors.New("payment not found")
	ErrForbidden = errors.New("forbidden")
)

// Bookings is the slice of the booking service the payment flow needs.
type Bookings interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
}

// Marker flips booking payment state; implemented by the booking store.
type Marker interface {
	MarkPaid(ctx context.Context, id types.ID) (bool, error)
	SetPaymentStatus(ctx context.Context, id types.ID, ps booking.PaymentStatus) error
}

type Service struct {
	store    *Store
	bookings Bookings
	marker   Marker
	events   notify.Publisher
	audit    *audit.Recorder
	policy   config.PolicyConfig
	newExtID func() string
	now      func() time.Time
}

func NewService(
	store *Store,
	bookings Bookings,
	marker Marker,
	events notify.Publisher,
	auditor *audit.Recorder,
	policy config.PolicyConfig,
) *Service {
	return &Service{
		store:    store,
		bookings: bookings,
		marker:   marker,
		events:   events,
		audit:    auditor,
		policy:   policy,
		newExtID: func() string { return string(types.NewID()) },
		now:      time.Now,
	}
}

// BookingFee exposes the fee so the payment collaborator can build its own
// checkout session.
func (s *Service) BookingFee(b *booking.Booking) types.Money {
	return b.Fee
}

type Preference struct {
	ExternalID string
	Amount     types.Money
}

// CreatePreference opens the payment window for a booking: a pending payment
// record keyed by a fresh external id, booking moved to awaiting_payment with
// payment pending.
func (s *Service) CreatePreference(ctx context.Context, bookingID, actorID types.ID) (*Preference, error) {
	b, err := s.bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.PassengerID != actorID {
		return nil, ErrForbidden
	}
	now := s.now().UTC()
	p := &Payment{
		ID:         types.NewID(),
		BookingID:  b.ID,
		ExternalID: s.newExtID(),
		Amount:     b.Fee,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Create(ctx, p); err != nil {
		return nil, err
	}
	if b.PaymentStatus == booking.PaymentUnpaid {
		if err := s.marker.SetPaymentStatus(ctx, b.ID, booking.PaymentPending); err != nil {
			return nil, err
		}
	}
	return &Preference{ExternalID: p.ExternalID, Amount: p.Amount}, nil
}

type ConfirmCommand struct {
	// Reference resolves to a booking id; used when the provider confirms a
	// payment the core never pre-registered.
	Reference types.ID
	// ExternalPaymentID is the provider's id for the payment event.
	ExternalPaymentID string
	Amount            int64
}

// Confirm is the on_payment_confirmed boundary. It is idempotent under
// redelivery: the first delivery flips exactly one payment record to approved
// and confirms the booking; every later delivery for the same external id is
// a silent no-op. Webhook-style callers always get a nil error for
// duplicates.
func (s *Service) Confirm(ctx context.Context, cmd ConfirmCommand) error {
	p, err := s.store.GetByExternalID(ctx, cmd.ExternalPaymentID)
	if errors.Is(err, ErrNotFound) {
		// The provider can confirm a payment we never pre-registered, as
		// long as the reference resolves to a booking. The unique external
		// id still dedupes concurrent first deliveries.
		if cmd.Reference == "" {
			return ErrNotFound
		}
		b, berr := s.bookings.Get(ctx, cmd.Reference)
		if berr != nil {
			return berr
		}
		now := s.now().UTC()
		rec := &Payment{
			ID:         types.NewID(),
			BookingID:  b.ID,
			ExternalID: cmd.ExternalPaymentID,
			Amount:     types.Money{Amount: cmd.Amount, Currency: s.policy.Currency},
			Status:     StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if cerr := s.store.Create(ctx, rec); cerr != nil {
			return cerr
		}
		p, err = s.store.GetByExternalID(ctx, cmd.ExternalPaymentID)
	}
	if err != nil {
		return err
	}

	applied, err := s.store.Approve(ctx, p.ExternalID)
	if err != nil {
		return err
	}
	if !applied {
		// Duplicate delivery; already applied.
		return nil
	}

	if _, err := s.marker.MarkPaid(ctx, p.BookingID); err != nil {
		return err
	}
	s.events.Publish(ctx, notify.Event{Type: notify.EventPaymentConfirmed, BookingID: p.BookingID})
	s.audit.Record(ctx, "PAYMENT_CONFIRMED", "", map[string]any{
		"booking_id": p.BookingID, "external_id": p.ExternalID, "amount": p.Amount.Amount,
	})
	return nil
}

func (s *Service) GetByBooking(ctx context.Context, bookingID types.ID) (*Payment, error) {
	return s.store.GetByBooking(ctx, bookingID)
}
