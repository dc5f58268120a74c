// README: Penalty engine, no-show reports and peer reviews.
package reputation

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"ridepool/internal/audit"
	"ridepool/internal/config"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/ride"
	"ridepool/internal/modules/user"
	"ridepool/internal/types"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrTooEarly        = errors.New("ride has not departed yet")
	ErrDuplicateReport = errors.New("no-show already reported")
	ErrDuplicateReview = errors.New("booking already reviewed")
	ErrNotReviewable   = errors.New("booking is not reviewable")
)

// WithinPenaltyWindow reports whether a cancellation at now is close enough
// to departure to be penalized. Departures already in the past count.
func WithinPenaltyWindow(departure, now time.Time, window time.Duration) bool {
	return departure.Sub(now) <= window
}

// Rides is the slice of the ride store the engine needs.
type Rides interface {
	GetRide(ctx context.Context, id types.ID) (*ride.Ride, error)
}

// Bookings is the slice of the booking store the engine needs.
type Bookings interface {
	Get(ctx context.Context, id types.ID) (*booking.Booking, error)
	HasConfirmed(ctx context.Context, rideID, passengerID types.ID) (bool, error)
}

// Users is the slice of the user store the engine needs.
type Users interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
	AddPenalty(ctx context.Context, id types.ID, points int, countCancellation bool) error
	SetRatingBaseline(ctx context.Context, id types.ID, baseline int) error
}

type Service struct {
	store    *Store
	rides    Rides
	bookings Bookings
	users    Users
	policy   config.PolicyConfig
	auditor  *audit.Recorder
	log      *slog.Logger

	now func() time.Time
}

func NewService(
	store *Store,
	rides Rides,
	bookings Bookings,
	users Users,
	policy config.PolicyConfig,
	auditor *audit.Recorder,
	log *slog.Logger,
) *Service {
	return &Service{
		store:    store,
		rides:    rides,
		bookings: bookings,
		users:    users,
		policy:   policy,
		auditor:  auditor,
		log:      log,
		now:      time.Now,
	}
}

// OnBookingCancelled penalizes a passenger who cancelled inside the window.
func (s *Service) OnBookingCancelled(ctx context.Context, passengerID types.ID, departure time.Time) error {
	if !WithinPenaltyWindow(departure, s.now(), s.policy.PenaltyWindow) {
		return nil
	}
	return s.applyPenalty(ctx, passengerID, "booking_cancelled_late")
}

// OnRideCancelled penalizes a driver who cancelled inside the window. A ride
// with no bookings cancels freely regardless of timing.
func (s *Service) OnRideCancelled(ctx context.Context, driverID types.ID, departure time.Time, bookingsAffected int) error {
	if bookingsAffected == 0 {
		return nil
	}
	if !WithinPenaltyWindow(departure, s.now(), s.policy.PenaltyWindow) {
		return nil
	}
	return s.applyPenalty(ctx, driverID, "ride_cancelled_late")
}

func (s *Service) applyPenalty(ctx context.Context, userID types.ID, reason string) error {
	if err := s.users.AddPenalty(ctx, userID, s.policy.CancelPenaltyPoints, true); err != nil {
		return err
	}
	s.auditor.Record(ctx, "penalty_applied", userID, map[string]any{
		"points": s.policy.CancelPenaltyPoints,
		"reason": reason,
	})
	return nil
}

type ReportNoShowCommand struct {
	RideID     types.ID
	ReportedID types.ID
	Reason     string
}

// ReportNoShow penalizes the reported party. Only a confirmed booking links a
// driver and a passenger tightly enough to accept the report, and only once
// the ride has actually departed.
func (s *Service) ReportNoShow(ctx context.Context, reporterID types.ID, cmd ReportNoShowCommand) (*NoShowReport, error) {
	if reporterID == cmd.ReportedID {
		return nil, ErrBadRequest
	}
	r, err := s.rides.GetRide(ctx, cmd.RideID)
	if err != nil {
		if errors.Is(err, ride.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if s.now().Before(r.Departure) {
		return nil, ErrTooEarly
	}

	// Exactly one of the pair must be the driver; the other must hold a
	// confirmed booking on this ride.
	var passengerID types.ID
	switch {
	case reporterID == r.DriverID:
		passengerID = cmd.ReportedID
	case cmd.ReportedID == r.DriverID:
		passengerID = reporterID
	default:
		return nil, ErrForbidden
	}
	ok, err := s.bookings.HasConfirmed(ctx, r.ID, passengerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	rep := &NoShowReport{
		ID:         types.NewID(),
		RideID:     r.ID,
		ReporterID: reporterID,
		ReportedID: cmd.ReportedID,
		Reason:     cmd.Reason,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertReport(ctx, rep); err != nil {
		return nil, err
	}
	if err := s.applyPenalty(ctx, cmd.ReportedID, "no_show"); err != nil {
		return nil, err
	}
	s.auditor.Record(ctx, "no_show_reported", reporterID, map[string]any{
		"ride_id":     string(r.ID),
		"reported_id": string(cmd.ReportedID),
	})
	return rep, nil
}

type SubmitReviewCommand struct {
	BookingID types.ID
	Rating    int
	Comment   string
}

// SubmitReview records a rating about the counterpart of a finished booking
// and recomputes the reviewee's rating baseline from the new average.
func (s *Service) SubmitReview(ctx context.Context, reviewerID types.ID, cmd SubmitReviewCommand) (*Review, error) {
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return nil, ErrInvalidRating
	}
	b, err := s.bookings.Get(ctx, cmd.BookingID)
	if err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r, err := s.rides.GetRide(ctx, b.RideID)
	if err != nil {
		return nil, err
	}

	var revieweeID types.ID
	switch reviewerID {
	case b.PassengerID:
		revieweeID = r.DriverID
	case r.DriverID:
		revieweeID = b.PassengerID
	default:
		return nil, ErrForbidden
	}
	if !reviewable(b, r.Departure, s.now()) {
		return nil, ErrNotReviewable
	}

	rev := &Review{
		ID:         types.NewID(),
		BookingID:  b.ID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     cmd.Rating,
		Comment:    cmd.Comment,
		CreatedAt:  s.now(),
	}
	if err := s.store.InsertReview(ctx, rev); err != nil {
		return nil, err
	}
	if err := s.recomputeBaseline(ctx, revieweeID); err != nil {
		// The review is in; a failed recompute only delays the baseline.
		s.log.Error("rating baseline recompute failed", "user_id", revieweeID, "error", err)
	}
	s.auditor.Record(ctx, "review_submitted", reviewerID, map[string]any{
		"booking_id":  string(b.ID),
		"reviewee_id": string(revieweeID),
		"rating":      cmd.Rating,
	})
	return rev, nil
}

// reviewable admits completed bookings, plus confirmed ones whose ride has
// already departed even if nobody marked them completed.
func reviewable(b *booking.Booking, departure, now time.Time) bool {
	switch b.Status {
	case booking.StatusCompleted:
		return true
	case booking.StatusConfirmed:
		return !now.Before(departure)
	default:
		return false
	}
}

func (s *Service) recomputeBaseline(ctx context.Context, revieweeID types.ID) error {
	avg, count, err := s.store.AverageRating(ctx, revieweeID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return s.users.SetRatingBaseline(ctx, revieweeID, int(math.Round(avg*20)))
}

// ListUserReviews returns a page of the reviews a user has received.
func (s *Service) ListUserReviews(ctx context.Context, userID types.ID, offset, limit int) ([]Review, error) {
	if _, err := s.users.Get(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.store.ListByReviewee(ctx, userID, offset, limit)
}
