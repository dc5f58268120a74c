// README: Ride handlers for publish/list/cancel plus passenger requests.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/ride"
	"ridepool/internal/modules/user"
	"ridepool/internal/types"
)

// Users loads the viewer so the women-only listing rules can apply.
type Users interface {
	Get(ctx context.Context, id types.ID) (*user.User, error)
}

// SeatCounts exposes remaining availability for ride detail responses.
type SeatCounts interface {
	AvailableSeats(ctx context.Context, rideID types.ID) (int, error)
}

type RideHandler struct {
	rides *ride.Service
	users Users
	seats SeatCounts
}

func NewRideHandler(rides *ride.Service, users Users, seats SeatCounts) *RideHandler {
	return &RideHandler{rides: rides, users: users, seats: seats}
}

type publishRideReq struct {
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	OriginLat    *float64 `json:"origin_lat"`
	OriginLng    *float64 `json:"origin_lng"`
	DestLat      *float64 `json:"dest_lat"`
	DestLng      *float64 `json:"dest_lng"`
	Departure    string   `json:"departure"`
	Price        int64    `json:"price"`
	Capacity     int      `json:"capacity"`
	WomenOnly    bool     `json:"women_only"`
	AllowPets    bool     `json:"allow_pets"`
	AllowSmoking bool     `json:"allow_smoking"`
	AllowLuggage bool     `json:"allow_luggage"`
}

type rideView struct {
	ID           types.ID     `json:"id"`
	DriverID     types.ID     `json:"driver_id"`
	Origin       string       `json:"origin"`
	Destination  string       `json:"destination"`
	OriginPos    *types.Point `json:"origin_pos,omitempty"`
	DestPos      *types.Point `json:"dest_pos,omitempty"`
	Departure    time.Time    `json:"departure"`
	Price        int64        `json:"price"`
	Capacity     int          `json:"capacity"`
	Status       ride.Status  `json:"status"`
	WomenOnly    bool         `json:"women_only"`
	AllowPets    bool         `json:"allow_pets"`
	AllowSmoking bool         `json:"allow_smoking"`
	AllowLuggage bool         `json:"allow_luggage"`
}

func newRideView(r *ride.Ride) rideView {
	return rideView{
		ID:           r.ID,
		DriverID:     r.DriverID,
		Origin:       r.Origin,
		Destination:  r.Destination,
		OriginPos:    r.OriginPos,
		DestPos:      r.DestPos,
		Departure:    r.Departure,
		Price:        r.Price,
		Capacity:     r.Capacity,
		Status:       r.Status,
		WomenOnly:    r.WomenOnly,
		AllowPets:    r.AllowPets,
		AllowSmoking: r.AllowSmoking,
		AllowLuggage: r.AllowLuggage,
	}
}

func point(lat, lng *float64) *types.Point {
	if lat == nil || lng == nil {
		return nil
	}
	p := types.Point{Lat: *lat, Lng: *lng}
	if !p.Valid() {
		// Out-of-range coordinates degrade to "unlocated": the address text
		// still stands, the geocoder may fill the gap.
		return nil
	}
	return &p
}

func (h *RideHandler) Publish(c *gin.Context) {
	var req publishRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.Publish(c.Request.Context(), ride.PublishCommand{
		DriverID:     middleware.UserID(c),
		Origin:       req.Origin,
		Destination:  req.Destination,
		OriginPos:    point(req.OriginLat, req.OriginLng),
		DestPos:      point(req.DestLat, req.DestLng),
		Departure:    parseTime(req.Departure),
		Price:        req.Price,
		Capacity:     req.Capacity,
		WomenOnly:    req.WomenOnly,
		AllowPets:    req.AllowPets,
		AllowSmoking: req.AllowSmoking,
		AllowLuggage: req.AllowLuggage,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRideView(r))
}

func (h *RideHandler) List(c *gin.Context) {
	viewer, err := h.users.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeUserError(c, err)
		return
	}
	opts := ride.ListOptions{
		Viewer:       viewer,
		WomenOnly:    c.Query("women_only") == "true",
		AllowPets:    c.Query("pets") == "true",
		AllowSmoking: c.Query("smoking") == "true",
	}
	rides, err := h.rides.List(c.Request.Context(), opts)
	if err != nil {
		writeRideError(c, err)
		return
	}
	out := make([]rideView, 0, len(rides))
	for i := range rides {
		out = append(out, newRideView(&rides[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *RideHandler) Get(c *gin.Context) {
	r, err := h.rides.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	available, err := h.seats.AvailableSeats(c.Request.Context(), r.ID)
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ride": newRideView(r), "seats_available": available})
}

func (h *RideHandler) Mine(c *gin.Context) {
	rides, err := h.rides.ListMine(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	out := make([]rideView, 0, len(rides))
	for i := range rides {
		out = append(out, newRideView(&rides[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *RideHandler) Cancel(c *gin.Context) {
	res, err := h.rides.Cancel(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"status":             ride.StatusCancelled,
		"bookings_cancelled": res.BookingsCancelled,
		"penalty_applied":    res.PenaltyApplied,
	})
}

type createRequestReq struct {
	Origin        string   `json:"origin"`
	Destination   string   `json:"destination"`
	OriginLat     *float64 `json:"origin_lat"`
	OriginLng     *float64 `json:"origin_lng"`
	DestLat       *float64 `json:"dest_lat"`
	DestLng       *float64 `json:"dest_lng"`
	WindowStart   string   `json:"window_start"`
	WindowEnd     string   `json:"window_end"`
	Flexible      bool     `json:"flexible"`
	ProposedPrice int64    `json:"proposed_price"`
}

type requestView struct {
	ID            types.ID     `json:"id"`
	PassengerID   types.ID     `json:"passenger_id"`
	Origin        string       `json:"origin"`
	Destination   string       `json:"destination"`
	OriginPos     *types.Point `json:"origin_pos,omitempty"`
	DestPos       *types.Point `json:"dest_pos,omitempty"`
	WindowStart   time.Time    `json:"window_start"`
	WindowEnd     time.Time    `json:"window_end"`
	Flexible      bool         `json:"flexible"`
	ProposedPrice int64        `json:"proposed_price"`
}

func newRequestView(r *ride.Request) requestView {
	return requestView{
		ID:            r.ID,
		PassengerID:   r.PassengerID,
		Origin:        r.Origin,
		Destination:   r.Destination,
		OriginPos:     r.OriginPos,
		DestPos:       r.DestPos,
		WindowStart:   r.WindowStart,
		WindowEnd:     r.WindowEnd,
		Flexible:      r.Flexible,
		ProposedPrice: r.ProposedPrice,
	}
}

func (h *RideHandler) CreateRequest(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	r, err := h.rides.CreateRequest(c.Request.Context(), ride.RequestCommand{
		PassengerID:   middleware.UserID(c),
		Origin:        req.Origin,
		Destination:   req.Destination,
		OriginPos:     point(req.OriginLat, req.OriginLng),
		DestPos:       point(req.DestLat, req.DestLng),
		WindowStart:   parseTime(req.WindowStart),
		WindowEnd:     parseTime(req.WindowEnd),
		Flexible:      req.Flexible,
		ProposedPrice: req.ProposedPrice,
	})
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRequestView(r))
}

func (h *RideHandler) MyRequests(c *gin.Context) {
	reqs, err := h.rides.ListMyRequests(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	out := make([]requestView, 0, len(reqs))
	for i := range reqs {
		out = append(out, newRequestView(&reqs[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *RideHandler) DeleteRequest(c *gin.Context) {
	if err := h.rides.DeleteRequest(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c)); err != nil {
		writeRideError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// paginationParams reads offset/limit query values with safe defaults.
func paginationParams(c *gin.Context) (int, int) {
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if offset < 0 {
		offset = 0
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	return offset, limit
}
