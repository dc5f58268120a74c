// README: Payment record keyed by the provider's external payment id.
package payment

import (
	"time"

	"ridepool/internal/types"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Payment is the platform-fee transaction for one booking. external_id is
// unique, which is what makes webhook redelivery an at-most-once apply.
type Payment struct {
	ID         types.ID
	BookingID  types.ID
	ExternalID string
	Amount     types.Money
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
