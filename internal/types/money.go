// README: Money value object for booking fees and ride prices.
package types

// Money carries an amount in the currency's minor unit. Booking fees and
// driver-set ride prices both use it; arithmetic across currencies is never
// performed, so there is no conversion helper.
type Money struct {
	Amount   int64
	Currency string
}
