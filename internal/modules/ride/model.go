// README: Ride offer and ride request aggregates with status definitions.
package ride

import (
	"errors"
	"time"

	"ridepool/internal/types"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

var ErrInvalidStatus = errors.New("invalid ride status")

// ParseStatus validates a status value coming from storage or the wire.
func ParseStatus(in string) (Status, error) {
	s := Status(in)
	switch s {
	case StatusActive, StatusCancelled, StatusCompleted:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Ride is a driver's published offer. Departure is normalized to a UTC
// instant at ingestion; nothing downstream re-parses strings.
type Ride struct {
	ID          types.ID
	DriverID    types.ID
	Origin      string
	Destination string
	OriginPos   *types.Point
	DestPos     *types.Point
	Departure   time.Time
	Price       int64
	Capacity    int // declared seats, immutable after creation
	Status      Status

	WomenOnly    bool
	AllowPets    bool
	AllowSmoking bool
	AllowLuggage bool

	CreatedAt time.Time
}

// Request is a passenger's stated demand inside a date/time window.
type Request struct {
	ID          types.ID
	PassengerID types.ID
	Origin      string
	Destination string
	OriginPos   *types.Point
	DestPos     *types.Point
	WindowStart time.Time
	WindowEnd   time.Time
	Flexible    bool
	// ProposedPrice is what the passenger offers to pay; zero means no proposal.
	ProposedPrice int64

	CreatedAt time.Time
}
