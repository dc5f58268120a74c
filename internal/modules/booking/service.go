// README: Booking service: seat ledger entry point, lifecycle transitions, penalties.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridepool/internal/audit"
	"ridepool/internal/config"
	"ridepool/internal/modules/ride"
	"ridepool/internal/notify"
	"ridepool/internal/types"
)

var (
	ErrNotFound          = errors.New("booking not found")
	ErrRideNotFound      = errors.New("ride not found")
	ErrRideNotActive     = errors.New("ride is not active")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrSelfBooking       = errors.New("cannot book a seat on your own ride")
	ErrDuplicateBooking  = errors.New("passenger already holds an active booking on this ride")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrNotDeparted       = errors.New("ride has not departed yet")
	ErrConflict          = errors.New("booking state conflict")
)

// InsufficientSeatsError carries the counts so the caller can correct and
// resubmit.
type InsufficientSeatsError struct {
	Available int
	Requested int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("insufficient seats: available %d, requested %d", e.Available, e.Requested)
}

const maxSeatsPerBooking = 10

// Rides is the slice of the ride store the booking service needs.
type Rides interface {
	GetRide(ctx context.Context, id types.ID) (*ride.Ride, error)
}

// PenaltyEngine applies the late-cancellation policy to a passenger who
// cancels their own booking.
type PenaltyEngine interface {
	OnBookingCancelled(ctx context.Context, passengerID types.ID, departure time.Time) error
}

type Service struct {
	store   *Store
	rides   Rides
	penalty PenaltyEngine
	events  notify.Publisher
	audit   *audit.Recorder
	policy  config.PolicyConfig
	now     func() time.Time
}

func NewService(
	store *Store,
	rides Rides,
	penalty PenaltyEngine,
	events notify.Publisher,
	auditor *audit.Recorder,
	policy config.PolicyConfig,
) *Service {
	return &Service{
		store:   store,
		rides:   rides,
		penalty: penalty,
		events:  events,
		audit:   auditor,
		policy:  policy,
		now:     time.Now,
	}
}

type CreateCommand struct {
	RideID      types.ID
	PassengerID types.ID
	Seats       int
}

// Create reserves seats. The fee is fixed here, at creation time; it is the
// flat platform fee, not the ride fare.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.RideID == "" || cmd.PassengerID == "" {
		return nil, ErrBadRequest
	}
	if cmd.Seats < 1 || cmd.Seats > maxSeatsPerBooking {
		return nil, ErrBadRequest
	}
	now := s.now().UTC()
	b := &Booking{
		ID:            types.NewID(),
		RideID:        cmd.RideID,
		PassengerID:   cmd.PassengerID,
		Seats:         cmd.Seats,
		Status:        StatusAwaitingPayment,
		PaymentStatus: PaymentUnpaid,
		Fee:           types.Money{Amount: s.policy.BookingFee, Currency: s.policy.Currency},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, notify.Event{Type: notify.EventBookingCreated, RideID: b.RideID, BookingID: b.ID, UserID: b.PassengerID})
	s.audit.Record(ctx, "BOOKING_CREATED", b.PassengerID, map[string]any{
		"booking_id": b.ID, "ride_id": b.RideID, "seats": b.Seats,
	})
	return b, nil
}

// Cancel releases the seat unconditionally. Only the booking's passenger or
// the ride's driver may cancel; a passenger cancelling inside the penalty
// window takes the reputation hit.
func (s *Service) Cancel(ctx context.Context, bookingID, actorID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	r, err := s.rides.GetRide(ctx, b.RideID)
	if err != nil {
		return err
	}
	isPassenger := b.PassengerID == actorID
	isDriver := r.DriverID == actorID
	if !isPassenger && !isDriver {
		return ErrForbidden
	}
	if !CanTransition(b.Status, StatusCancelled) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, bookingID, b.Status, StatusCancelled, b.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}

	if isPassenger {
		if err := s.penalty.OnBookingCancelled(ctx, b.PassengerID, r.Departure); err != nil {
			return err
		}
	}
	s.events.Publish(ctx, notify.Event{Type: notify.EventBookingCancelled, RideID: b.RideID, BookingID: b.ID, UserID: actorID})
	s.audit.Record(ctx, "BOOKING_CANCELLED", actorID, map[string]any{
		"booking_id": b.ID, "ride_id": b.RideID, "by_passenger": isPassenger,
	})
	return nil
}

// Complete closes out a confirmed booking once the departure has passed.
func (s *Service) Complete(ctx context.Context, bookingID, actorID types.ID) error {
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	r, err := s.rides.GetRide(ctx, b.RideID)
	if err != nil {
		return err
	}
	if b.PassengerID != actorID && r.DriverID != actorID {
		return ErrForbidden
	}
	if !CanTransition(b.Status, StatusCompleted) {
		return ErrInvalidTransition
	}
	if s.now().Before(r.Departure) {
		return ErrNotDeparted
	}
	ok, err := s.store.UpdateStatus(ctx, bookingID, b.Status, StatusCompleted, b.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

// SetStatus is the PATCH entry point: it accepts only the transitions a user
// may drive directly. Confirmation happens through the payment flow, never
// here. Unknown target values are rejected.
func (s *Service) SetStatus(ctx context.Context, bookingID, actorID types.ID, target string) error {
	status, ok := ParseStatus(target)
	if !ok {
		return ErrInvalidTransition
	}
	switch status {
	case StatusCancelled:
		return s.Cancel(ctx, bookingID, actorID)
	case StatusCompleted:
		return s.Complete(ctx, bookingID, actorID)
	default:
		return ErrInvalidTransition
	}
}

// UpdateSeats changes the seat count on an active booking, re-running the
// ledger check without counting the booking's own prior seats.
func (s *Service) UpdateSeats(ctx context.Context, bookingID, actorID types.ID, seats int) error {
	if seats < 1 || seats > maxSeatsPerBooking {
		return ErrBadRequest
	}
	b, err := s.store.Get(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.PassengerID != actorID {
		return ErrForbidden
	}
	return s.store.UpdateSeats(ctx, bookingID, seats)
}

// CancelAllForRide implements the ride service's BookingCanceller.
func (s *Service) CancelAllForRide(ctx context.Context, rideID types.ID) (int, error) {
	return s.store.CancelAllForRide(ctx, rideID)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListMine(ctx context.Context, passengerID types.ID) ([]Booking, error) {
	return s.store.ListByPassenger(ctx, passengerID)
}

// ListForRide is driver-only: the counterpart list is part of the driver's
// trip management view.
func (s *Service) ListForRide(ctx context.Context, rideID, actorID types.ID) ([]Booking, error) {
	r, err := s.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID != actorID {
		return nil, ErrForbidden
	}
	return s.store.ListByRide(ctx, rideID)
}

func (s *Service) AvailableSeats(ctx context.Context, rideID types.ID) (int, error) {
	return s.store.AvailableSeats(ctx, rideID)
}
