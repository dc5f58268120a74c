// README: Matching service: surfaces candidates for a principal's rides and requests.
package matching

import (
	"context"
	"log/slog"

	"ridepool/internal/config"
	"ridepool/internal/modules/ride"
	"ridepool/internal/notify"
	"ridepool/internal/types"
)

type Rides interface {
	GetRide(ctx context.Context, id types.ID) (*ride.Ride, error)
	ListActiveRides(ctx context.Context, f ride.RideFilter) ([]ride.Ride, error)
	ListRidesByDriver(ctx context.Context, driverID types.ID) ([]ride.Ride, error)
	GetRequest(ctx context.Context, id types.ID) (*ride.Request, error)
	ListRequests(ctx context.Context) ([]ride.Request, error)
	ListRequestsByPassenger(ctx context.Context, passengerID types.ID) ([]ride.Request, error)
}

type Service struct {
	rides  Rides
	geo    *Store
	events notify.Publisher
	params Params
	log    *slog.Logger
}

func NewService(rides Rides, geo *Store, events notify.Publisher, cfg config.MatchingConfig, log *slog.Logger) *Service {
	return &Service{
		rides:  rides,
		geo:    geo,
		events: events,
		params: Params{RadiusKm: cfg.RadiusKm, Tolerance: cfg.Tolerance},
		log:    log,
	}
}

// ForRide finds compatible requests for one ride.
func (s *Service) ForRide(ctx context.Context, rideID types.ID) ([]Match, error) {
	r, err := s.rides.GetRide(ctx, rideID)
	if err != nil {
		return nil, err
	}
	requests, err := s.candidateRequests(ctx, r)
	if err != nil {
		return nil, err
	}
	return MatchesForRide(r, requests, s.params), nil
}

// ForRequest finds compatible active rides for one request.
func (s *Service) ForRequest(ctx context.Context, requestID types.ID) ([]Match, error) {
	req, err := s.rides.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	rides, err := s.candidateRides(ctx, req)
	if err != nil {
		return nil, err
	}
	return MatchesForRequest(req, rides, s.params), nil
}

// ForUser aggregates matches over the principal's active rides and requests.
func (s *Service) ForUser(ctx context.Context, userID types.ID) ([]Match, error) {
	var out []Match

	myRides, err := s.rides.ListRidesByDriver(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range myRides {
		if myRides[i].Status != ride.StatusActive {
			continue
		}
		requests, err := s.candidateRequests(ctx, &myRides[i])
		if err != nil {
			return nil, err
		}
		out = append(out, MatchesForRide(&myRides[i], requests, s.params)...)
	}

	myRequests, err := s.rides.ListRequestsByPassenger(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range myRequests {
		rides, err := s.candidateRides(ctx, &myRequests[i])
		if err != nil {
			return nil, err
		}
		out = append(out, MatchesForRequest(&myRequests[i], rides, s.params)...)
	}
	return out, nil
}

// Invite emits a match.invite event so the notification service can nudge the
// counterpart. Matching itself stays read-only.
func (s *Service) Invite(ctx context.Context, m Match, fromUser types.ID) {
	s.events.Publish(ctx, notify.Event{
		Type:   notify.EventMatchInvite,
		RideID: m.RideID,
		UserID: fromUser,
		Details: map[string]any{
			"request_id": m.RequestID,
			"match_type": string(m.Type),
			"score":      m.Score,
		},
	})
}

// candidateRequests narrows the request scan through the geo index when the
// ride has an origin; otherwise, or on index failure, it falls back to the
// full list. The pure filter re-checks everything either way.
func (s *Service) candidateRequests(ctx context.Context, r *ride.Ride) ([]ride.Request, error) {
	if s.geo != nil && r.OriginPos != nil {
		ids, err := s.geo.NearbyRequests(ctx, *r.OriginPos, s.params.withDefaults().RadiusKm)
		if err == nil && len(ids) > 0 {
			return s.fetchRequests(ctx, ids), nil
		}
		if err != nil {
			s.log.Warn("geo prefilter unavailable, scanning all requests", "err", err)
		}
	}
	return s.rides.ListRequests(ctx)
}

func (s *Service) candidateRides(ctx context.Context, req *ride.Request) ([]ride.Ride, error) {
	if s.geo != nil && req.OriginPos != nil {
		ids, err := s.geo.NearbyRides(ctx, *req.OriginPos, s.params.withDefaults().RadiusKm)
		if err == nil && len(ids) > 0 {
			return s.fetchRides(ctx, ids), nil
		}
		if err != nil {
			s.log.Warn("geo prefilter unavailable, scanning all rides", "err", err)
		}
	}
	return s.rides.ListActiveRides(ctx, ride.RideFilter{})
}

func (s *Service) fetchRequests(ctx context.Context, ids []types.ID) []ride.Request {
	out := make([]ride.Request, 0, len(ids))
	for _, id := range ids {
		req, err := s.rides.GetRequest(ctx, id)
		if err != nil {
			// Stale index entry; skip it, never fail the batch.
			continue
		}
		out = append(out, *req)
	}
	return out
}

func (s *Service) fetchRides(ctx context.Context, ids []types.ID) []ride.Ride {
	out := make([]ride.Ride, 0, len(ids))
	for _, id := range ids {
		r, err := s.rides.GetRide(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, *r)
	}
	return out
}
