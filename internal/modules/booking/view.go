// README: Booking serialization with the payment-gated contact disclosure rule.
package booking

import (
	"time"

	"ridepool/internal/modules/ride"
	"ridepool/internal/modules/user"
	"ridepool/internal/types"
)

// View is what a participant sees of a booking. Counterpart phone numbers are
// withheld until the platform fee is paid: the rule is stateless and derived
// from PaymentStatus on every read, so flipping to paid unlocks both sides on
// the next serialization.
type View struct {
	ID            types.ID      `json:"id"`
	RideID        types.ID      `json:"ride_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Seats         int           `json:"seats"`
	FeeAmount     int64         `json:"fee_amount"`
	FeeCurrency   string        `json:"fee_currency"`

	RideOrigin      string    `json:"ride_origin"`
	RideDestination string    `json:"ride_destination"`
	RideDeparture   time.Time `json:"ride_departure"`
	RidePrice       int64     `json:"ride_price"`

	DriverName    string `json:"driver_name"`
	PassengerName string `json:"passenger_name"`

	// Phones are nil until payment_status == paid, and only the viewer's
	// counterpart is ever disclosed.
	DriverPhone    *string `json:"driver_phone,omitempty"`
	PassengerPhone *string `json:"passenger_phone,omitempty"`
}

// NewView builds the viewer-specific serialization of a booking.
func NewView(b *Booking, r *ride.Ride, driver, passenger *user.User, viewerID types.ID) View {
	v := View{
		ID:              b.ID,
		RideID:          b.RideID,
		Status:          b.Status,
		PaymentStatus:   b.PaymentStatus,
		Seats:           b.Seats,
		FeeAmount:       b.Fee.Amount,
		FeeCurrency:     b.Fee.Currency,
		RideOrigin:      r.Origin,
		RideDestination: r.Destination,
		RideDeparture:   r.Departure,
		RidePrice:       r.Price,
		DriverName:      driver.Name,
		PassengerName:   passenger.Name,
	}
	if b.PaymentStatus != PaymentPaid {
		return v
	}
	switch viewerID {
	case b.PassengerID:
		if driver.Phone != "" {
			phone := driver.Phone
			v.DriverPhone = &phone
		}
	case r.DriverID:
		if passenger.Phone != "" {
			phone := passenger.Phone
			v.PassengerPhone = &phone
		}
	}
	return v
}
