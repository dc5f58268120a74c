// README: Pure geo-time matcher: haversine distance plus window-with-tolerance filter.
package matching

import (
	"math"
	"time"

	"ridepool/internal/modules/ride"
	"ridepool/internal/types"
)

const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance in kilometres between two
// points. A nil point means the location is unknown and can never match, so
// the distance is +Inf.
func haversineKm(a, b *types.Point) float64 {
	if a == nil || b == nil {
		return math.Inf(1)
	}
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// compatible applies the shared rule in both query directions: the departure
// must fall inside [window_start - tol, window_end + tol], and both the
// origin and the destination legs must be within the radius. Candidates with
// a missing instant are skipped (reported as not compatible), never fatal.
func compatible(r *ride.Ride, req *ride.Request, p Params) (score int, ok bool) {
	if r.Departure.IsZero() || req.WindowStart.IsZero() || req.WindowEnd.IsZero() {
		return 0, false
	}
	if r.Departure.Before(req.WindowStart.Add(-p.Tolerance)) ||
		r.Departure.After(req.WindowEnd.Add(p.Tolerance)) {
		return 0, false
	}
	distOrigin := haversineKm(r.OriginPos, req.OriginPos)
	distDest := haversineKm(r.DestPos, req.DestPos)
	if distOrigin > p.RadiusKm || distDest > p.RadiusKm {
		return 0, false
	}
	return matchScore(distOrigin, distDest, r.Departure, req.WindowStart, req.WindowEnd, p), true
}

// matchScore grades an accepted candidate in [0,100]: half from endpoint
// proximity, half from how close the departure sits to the requested window.
// A departure inside the window scores full time credit.
func matchScore(distOrigin, distDest float64, departure, start, end time.Time, p Params) int {
	distPart := 1 - (distOrigin+distDest)/(2*p.RadiusKm)

	var offset time.Duration
	if departure.Before(start) {
		offset = start.Sub(departure)
	} else if departure.After(end) {
		offset = departure.Sub(end)
	}
	timePart := 1 - float64(offset)/float64(p.Tolerance)

	score := int(math.Round(50*distPart + 50*timePart))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// MatchesForRide returns the requests compatible with a driver's ride.
func MatchesForRide(r *ride.Ride, requests []ride.Request, p Params) []Match {
	p = p.withDefaults()
	var out []Match
	for i := range requests {
		if score, ok := compatible(r, &requests[i], p); ok {
			out = append(out, Match{
				Type:      MatchPassengerFound,
				RideID:    r.ID,
				RequestID: requests[i].ID,
				Score:     score,
			})
		}
	}
	return out
}

// MatchesForRequest returns the active rides compatible with a passenger's
// request. The same rule runs in both directions, so matching is symmetric.
func MatchesForRequest(req *ride.Request, rides []ride.Ride, p Params) []Match {
	p = p.withDefaults()
	var out []Match
	for i := range rides {
		if rides[i].Status != ride.StatusActive {
			continue
		}
		if score, ok := compatible(&rides[i], req, p); ok {
			out = append(out, Match{
				Type:      MatchRideFound,
				RideID:    rides[i].ID,
				RequestID: req.ID,
				Score:     score,
			})
		}
	}
	return out
}
