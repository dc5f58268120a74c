// README: Ride service: publishing, listing with safety filters, and driver cancellation.
package ride

import (
	"context"
	"errors"
	"time"

	"ridepool/internal/audit"
	"ridepool/internal/config"
	"ridepool/internal/geocode"
	"ridepool/internal/modules/user"
	"ridepool/internal/notify"
	"ridepool/internal/types"
)

var (
	ErrNotFound      = errors.New("ride not found")
	ErrForbidden     = errors.New("forbidden")
	ErrBadRequest    = errors.New("bad request")
	ErrNotActive     = errors.New("ride is not active")
	ErrBadSchedule   = errors.New("departure outside the allowed window")
	ErrWomenOnlyRule = errors.New("women-only rides require a female driver")
)

// BookingCanceller releases every active booking on a ride. Implemented by
// the booking service; declared here so ride does not import booking.
type BookingCanceller interface {
	CancelAllForRide(ctx context.Context, rideID types.ID) (affected int, err error)
}

// PenaltyEngine applies the 24-hour cancellation policy to a driver who
// cancels a ride with active bookings.
type PenaltyEngine interface {
	OnRideCancelled(ctx context.Context, driverID types.ID, departure time.Time, bookingsAffected int) error
}

type Users interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

// GeoIndex keeps the matching prefilter's spatial index in step with the
// ride and request lifecycle. Implemented by the matching store; declared
// here so ride does not import matching. Index writes are best-effort.
type GeoIndex interface {
	IndexRide(ctx context.Context, id types.ID, origin *types.Point) error
	RemoveRide(ctx context.Context, id types.ID) error
	IndexRequest(ctx context.Context, id types.ID, origin *types.Point) error
	RemoveRequest(ctx context.Context, id types.ID) error
}

type Service struct {
	store    *Store
	users    Users
	bookings BookingCanceller
	penalty  PenaltyEngine
	geo      geocode.Geocoder
	index    GeoIndex
	events   notify.Publisher
	audit    *audit.Recorder
	policy   config.PolicyConfig
	now      func() time.Time
}

func NewService(
	store *Store,
	users Users,
	bookings BookingCanceller,
	penalty PenaltyEngine,
	geo geocode.Geocoder,
	index GeoIndex,
	events notify.Publisher,
	auditor *audit.Recorder,
	policy config.PolicyConfig,
) *Service {
	return &Service{
		store:    store,
		users:    users,
		bookings: bookings,
		penalty:  penalty,
		geo:      geo,
		index:    index,
		events:   events,
		audit:    auditor,
		policy:   policy,
		now:      time.Now,
	}
}

type PublishCommand struct {
	DriverID     types.ID
	Origin       string
	Destination  string
	OriginPos    *types.Point
	DestPos      *types.Point
	Departure    time.Time
	Price        int64
	Capacity     int
	WomenOnly    bool
	AllowPets    bool
	AllowSmoking bool
	AllowLuggage bool
}

// ValidateSchedule enforces the bounded publish window: not in the past
// beyond the grace period, not further out than the publish window.
func ValidateSchedule(departure, now time.Time, policy config.PolicyConfig) error {
	if departure.IsZero() {
		return ErrBadSchedule
	}
	if departure.Before(now.Add(-policy.PastGrace)) {
		return ErrBadSchedule
	}
	if departure.After(now.Add(policy.PublishWindow)) {
		return ErrBadSchedule
	}
	return nil
}

func (s *Service) Publish(ctx context.Context, cmd PublishCommand) (*Ride, error) {
	if cmd.DriverID == "" || cmd.Origin == "" || cmd.Destination == "" || cmd.Capacity < 1 {
		return nil, ErrBadRequest
	}
	now := s.now()
	if err := ValidateSchedule(cmd.Departure, now, s.policy); err != nil {
		return nil, err
	}
	driver, err := s.users.Get(ctx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if cmd.WomenOnly && driver.Gender != user.GenderFemale {
		return nil, ErrWomenOnlyRule
	}

	r := &Ride{
		ID:           types.NewID(),
		DriverID:     cmd.DriverID,
		Origin:       cmd.Origin,
		Destination:  cmd.Destination,
		OriginPos:    s.resolve(ctx, cmd.OriginPos, cmd.Origin),
		DestPos:      s.resolve(ctx, cmd.DestPos, cmd.Destination),
		Departure:    cmd.Departure.UTC(),
		Price:        cmd.Price,
		Capacity:     cmd.Capacity,
		Status:       StatusActive,
		WomenOnly:    cmd.WomenOnly,
		AllowPets:    cmd.AllowPets,
		AllowSmoking: cmd.AllowSmoking,
		AllowLuggage: cmd.AllowLuggage,
		CreatedAt:    now.UTC(),
	}
	if err := s.store.CreateRide(ctx, r); err != nil {
		return nil, err
	}
	if s.index != nil && r.OriginPos != nil {
		_ = s.index.IndexRide(ctx, r.ID, r.OriginPos)
	}
	s.events.Publish(ctx, notify.Event{Type: notify.EventRideCreated, RideID: r.ID, UserID: r.DriverID})
	s.audit.Record(ctx, "RIDE_CREATED", r.DriverID, map[string]any{
		"ride_id": r.ID, "origin": r.Origin, "women_only": r.WomenOnly,
	})
	return r, nil
}

type CancelResult struct {
	BookingsCancelled int
	PenaltyApplied    bool
}

// Cancel marks the ride cancelled, releases every active booking, and applies
// the driver penalty once when at least one booking was affected and the ride
// departs inside the penalty window.
func (s *Service) Cancel(ctx context.Context, rideID, actorID types.ID) (*CancelResult, error) {
	r, err := s.store.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID != actorID {
		return nil, ErrForbidden
	}
	ok, err := s.store.UpdateRideStatus(ctx, rideID, StatusActive, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotActive
	}

	if s.index != nil {
		_ = s.index.RemoveRide(ctx, rideID)
	}

	affected, err := s.bookings.CancelAllForRide(ctx, rideID)
	if err != nil {
		return nil, err
	}

	res := &CancelResult{BookingsCancelled: affected}
	if affected > 0 {
		if err := s.penalty.OnRideCancelled(ctx, r.DriverID, r.Departure, affected); err != nil {
			return nil, err
		}
		res.PenaltyApplied = withinPenaltyWindow(r.Departure, s.now(), s.policy.PenaltyWindow)
	}

	s.events.Publish(ctx, notify.Event{Type: notify.EventRideCancelled, RideID: rideID, UserID: actorID})
	s.audit.Record(ctx, "RIDE_CANCELLED", actorID, map[string]any{
		"ride_id": rideID, "bookings_affected": affected, "penalty_applied": res.PenaltyApplied,
	})
	return res, nil
}

// withinPenaltyWindow mirrors reputation.WithinPenaltyWindow; duplicated as a
// private helper to keep the reporting field accurate without a reverse import.
func withinPenaltyWindow(departure, now time.Time, window time.Duration) bool {
	return departure.Sub(now) <= window
}

// ListOptions carries the viewer so the women-only safety rule can apply in
// both directions.
type ListOptions struct {
	Viewer       *user.User
	WomenOnly    bool
	AllowPets    bool
	AllowSmoking bool
}

func (s *Service) List(ctx context.Context, opts ListOptions) ([]Ride, error) {
	f := RideFilter{AllowPets: opts.AllowPets, AllowSmoking: opts.AllowSmoking}
	if opts.Viewer != nil && opts.Viewer.Gender == user.GenderMale {
		// Men never see women-only rides, and cannot activate the filter.
		if opts.WomenOnly {
			return nil, nil
		}
		f.HideWomenOnly = true
	}
	if opts.WomenOnly {
		if opts.Viewer == nil || opts.Viewer.Gender != user.GenderFemale {
			return nil, ErrForbidden
		}
		f.FemaleDriversOnly = true
	}
	return s.store.ListActiveRides(ctx, f)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.GetRide(ctx, id)
}

func (s *Service) ListMine(ctx context.Context, driverID types.ID) ([]Ride, error) {
	return s.store.ListRidesByDriver(ctx, driverID)
}

type RequestCommand struct {
	PassengerID   types.ID
	Origin        string
	Destination   string
	OriginPos     *types.Point
	DestPos       *types.Point
	WindowStart   time.Time
	WindowEnd     time.Time
	Flexible      bool
	ProposedPrice int64
}

func (s *Service) CreateRequest(ctx context.Context, cmd RequestCommand) (*Request, error) {
	if cmd.PassengerID == "" || cmd.Origin == "" || cmd.Destination == "" {
		return nil, ErrBadRequest
	}
	if !cmd.WindowEnd.After(cmd.WindowStart) {
		return nil, ErrBadRequest
	}
	if err := ValidateSchedule(cmd.WindowStart, s.now(), s.policy); err != nil {
		return nil, err
	}
	r := &Request{
		ID:            types.NewID(),
		PassengerID:   cmd.PassengerID,
		Origin:        cmd.Origin,
		Destination:   cmd.Destination,
		OriginPos:     s.resolve(ctx, cmd.OriginPos, cmd.Origin),
		DestPos:       s.resolve(ctx, cmd.DestPos, cmd.Destination),
		WindowStart:   cmd.WindowStart.UTC(),
		WindowEnd:     cmd.WindowEnd.UTC(),
		Flexible:      cmd.Flexible,
		ProposedPrice: cmd.ProposedPrice,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.store.CreateRequest(ctx, r); err != nil {
		return nil, err
	}
	if s.index != nil && r.OriginPos != nil {
		_ = s.index.IndexRequest(ctx, r.ID, r.OriginPos)
	}
	return r, nil
}

func (s *Service) DeleteRequest(ctx context.Context, requestID, actorID types.ID) error {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if req.PassengerID != actorID {
		return ErrForbidden
	}
	ok, err := s.store.DeleteRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if s.index != nil {
		_ = s.index.RemoveRequest(ctx, requestID)
	}
	return nil
}

func (s *Service) ListMyRequests(ctx context.Context, passengerID types.ID) ([]Request, error) {
	return s.store.ListRequestsByPassenger(ctx, passengerID)
}

// resolve geocodes the address when the caller supplied no coordinates.
// Failure is fine: a ride without coordinates simply never matches on location.
func (s *Service) resolve(ctx context.Context, given *types.Point, address string) *types.Point {
	if given != nil {
		return given
	}
	if p, ok := s.geo.Resolve(ctx, address); ok {
		return &p
	}
	return nil
}
