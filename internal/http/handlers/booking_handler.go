// README: Booking handlers; responses go through the contact-gated view.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/ride"
	"ridepool/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	rides    *ride.Service
	users    Users
}

func NewBookingHandler(bookings *booking.Service, rides *ride.Service, users Users) *BookingHandler {
	return &BookingHandler{bookings: bookings, rides: rides, users: users}
}

// view assembles the viewer-specific booking serialization.
func (h *BookingHandler) view(c *gin.Context, b *booking.Booking, viewerID types.ID) (booking.View, bool) {
	ctx := c.Request.Context()
	r, err := h.rides.Get(ctx, b.RideID)
	if err != nil {
		writeRideError(c, err)
		return booking.View{}, false
	}
	driver, err := h.users.Get(ctx, r.DriverID)
	if err != nil {
		writeUserError(c, err)
		return booking.View{}, false
	}
	passenger, err := h.users.Get(ctx, b.PassengerID)
	if err != nil {
		writeUserError(c, err)
		return booking.View{}, false
	}
	return booking.NewView(b, r, driver, passenger, viewerID), true
}

type createBookingReq struct {
	RideID string `json:"ride_id"`
	Seats  int    `json:"seats"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	b, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		RideID:      types.ID(req.RideID),
		PassengerID: middleware.UserID(c),
		Seats:       req.Seats,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	v, ok := h.view(c, b, middleware.UserID(c))
	if !ok {
		return
	}
	writeJSON(c, http.StatusCreated, v)
}

func (h *BookingHandler) Get(c *gin.Context) {
	viewerID := middleware.UserID(c)
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	r, err := h.rides.Get(c.Request.Context(), b.RideID)
	if err != nil {
		writeRideError(c, err)
		return
	}
	if viewerID != b.PassengerID && viewerID != r.DriverID {
		writeError(c, http.StatusForbidden, booking.ErrForbidden.Error())
		return
	}
	v, ok := h.view(c, b, viewerID)
	if !ok {
		return
	}
	writeJSON(c, http.StatusOK, v)
}

func (h *BookingHandler) Mine(c *gin.Context) {
	viewerID := middleware.UserID(c)
	list, err := h.bookings.ListMine(c.Request.Context(), viewerID)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := make([]booking.View, 0, len(list))
	for i := range list {
		v, ok := h.view(c, &list[i], viewerID)
		if !ok {
			return
		}
		out = append(out, v)
	}
	writeJSON(c, http.StatusOK, out)
}

// ForRide lists the bookings on one of the caller's rides.
func (h *BookingHandler) ForRide(c *gin.Context) {
	viewerID := middleware.UserID(c)
	list, err := h.bookings.ListForRide(c.Request.Context(), types.ID(c.Param("id")), viewerID)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := make([]booking.View, 0, len(list))
	for i := range list {
		v, ok := h.view(c, &list[i], viewerID)
		if !ok {
			return
		}
		out = append(out, v)
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *BookingHandler) Cancel(c *gin.Context) {
	if err := h.bookings.Cancel(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c)); err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusCancelled})
}

func (h *BookingHandler) Complete(c *gin.Context) {
	if err := h.bookings.Complete(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c)); err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": booking.StatusCompleted})
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *BookingHandler) SetStatus(c *gin.Context) {
	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.bookings.SetStatus(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c), req.Status); err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": req.Status})
}

type updateSeatsReq struct {
	Seats int `json:"seats"`
}

func (h *BookingHandler) UpdateSeats(c *gin.Context) {
	var req updateSeatsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.bookings.UpdateSeats(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c), req.Seats); err != nil {
		writeBookingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"seats": req.Seats})
}
