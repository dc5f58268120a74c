// README: Review and no-show report records feeding the reputation engine.
package reputation

import (
	"time"

	"ridepool/internal/types"
)

// Review is a 1-5 rating tied to one booking, authored by one participant
// about the counterpart. At most one per (booking, reviewer).
type Review struct {
	ID         types.ID
	BookingID  types.ID
	ReviewerID types.ID
	RevieweeID types.ID
	Rating     int
	Comment    string
	CreatedAt  time.Time
}

// NoShowReport records one party reporting the other absent after departure.
// At most one per (ride, reporter, reported).
type NoShowReport struct {
	ID         types.ID
	RideID     types.ID
	ReporterID types.ID
	ReportedID types.ID
	Reason     string
	CreatedAt  time.Time
}
