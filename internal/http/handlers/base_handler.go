// README: Shared handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/payment"
	"ridepool/internal/modules/reputation"
	"ridepool/internal/modules/ride"
	"ridepool/internal/modules/user"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// parseTime accepts RFC3339 and normalizes to UTC. The zero time signals a
// missing or unparseable value to the caller.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func writeRideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ride.ErrBadRequest), errors.Is(err, ride.ErrBadSchedule), errors.Is(err, ride.ErrWomenOnlyRule):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, ride.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ride.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, ride.ErrNotActive):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeBookingError(c *gin.Context, err error) {
	var insufficient *booking.InsufficientSeatsError
	if errors.As(err, &insufficient) {
		// The payload carries both counts so the client can resize the hold.
		writeError(c, http.StatusBadRequest, insufficient.Error())
		return
	}
	switch {
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, booking.ErrSelfBooking), errors.Is(err, booking.ErrNotDeparted):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, booking.ErrRideNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, booking.ErrRideNotActive), errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrInvalidTransition), errors.Is(err, booking.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, payment.ErrNotFound), errors.Is(err, booking.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, payment.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeReputationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, reputation.ErrBadRequest), errors.Is(err, reputation.ErrInvalidRating),
		errors.Is(err, reputation.ErrTooEarly), errors.Is(err, reputation.ErrNotReviewable):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, reputation.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, reputation.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, reputation.ErrDuplicateReport), errors.Is(err, reputation.ErrDuplicateReview):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeUserError(c *gin.Context, err error) {
	if errors.Is(err, user.ErrNotFound) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	writeError(c, http.StatusInternalServerError, "internal error")
}
