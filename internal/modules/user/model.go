// README: User aggregate with trust attributes and the reputation split.
package user

import (
	"time"

	"ridepool/internal/types"
)

type Gender string

const (
	GenderMale   Gender = "M"
	GenderFemale Gender = "F"
	GenderOther  Gender = "O"
)

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationPending    VerificationStatus = "pending"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

// User is a single global account; driving and requesting are capabilities,
// not separate identities.
type User struct {
	ID       types.ID
	Identity string // government identity number, unique
	Email    string // unique
	Name     string
	Phone    string // disclosed only through the booking contact gate
	Gender   Gender
	Active   bool

	CanDrive   bool
	CanRequest bool

	// Reputation is kept as two independent columns: the peer-review baseline
	// (replaced wholesale on each review) and the accumulated penalty points.
	// The surfaced score is max(0, min(100, baseline - penalties)).
	RatingBaseline    int
	PenaltyPoints     int
	CancellationCount int

	Verification VerificationStatus

	// Driver profile.
	CarModel     string
	CarPlate     string
	AllowPets    bool
	AllowSmoking bool
	AllowLuggage bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReputationScore derives the 0-100 score from the baseline and penalties.
func (u *User) ReputationScore() int {
	score := u.RatingBaseline - u.PenaltyPoints
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func (s VerificationStatus) Valid() bool {
	switch s {
	case VerificationUnverified, VerificationPending, VerificationVerified, VerificationRejected:
		return true
	default:
		return false
	}
}
