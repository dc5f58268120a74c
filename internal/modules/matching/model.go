// README: Matching parameters and candidate results.
package matching

import (
	"time"

	"ridepool/internal/types"
)

// Params tune the geo-time filter. Zero values are replaced by defaults.
type Params struct {
	RadiusKm  float64
	Tolerance time.Duration
}

const (
	DefaultRadiusKm  = 20.0
	DefaultTolerance = time.Hour
)

func (p Params) withDefaults() Params {
	if p.RadiusKm <= 0 {
		p.RadiusKm = DefaultRadiusKm
	}
	if p.Tolerance <= 0 {
		p.Tolerance = DefaultTolerance
	}
	return p
}

type MatchType string

const (
	// MatchPassengerFound is a request matching one of a driver's rides.
	MatchPassengerFound MatchType = "PASSENGER_FOUND"
	// MatchRideFound is a ride matching one of a passenger's requests.
	MatchRideFound MatchType = "RIDE_FOUND"
)

// Match pairs one ride with one compatible request.
type Match struct {
	Type      MatchType
	RideID    types.ID
	RequestID types.ID
	// Score in [0,100]: proximity of both endpoints and of the departure to
	// the requested window, equally weighted.
	Score int
}
