// README: Matching handlers; read-only candidate lookups plus the invite nudge.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/matching"
	"ridepool/internal/types"
)

type MatchingHandler struct {
	matching *matching.Service
}

func NewMatchingHandler(svc *matching.Service) *MatchingHandler {
	return &MatchingHandler{matching: svc}
}

type matchView struct {
	Type      matching.MatchType `json:"type"`
	RideID    types.ID           `json:"ride_id"`
	RequestID types.ID           `json:"request_id"`
	Score     int                `json:"score"`
}

func matchViews(ms []matching.Match) []matchView {
	out := make([]matchView, 0, len(ms))
	for _, m := range ms {
		out = append(out, matchView{Type: m.Type, RideID: m.RideID, RequestID: m.RequestID, Score: m.Score})
	}
	return out
}

// ForMe surfaces matches for everything the caller has published or requested.
func (h *MatchingHandler) ForMe(c *gin.Context) {
	ms, err := h.matching.ForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, matchViews(ms))
}

func (h *MatchingHandler) ForRide(c *gin.Context) {
	ms, err := h.matching.ForRide(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, matchViews(ms))
}

func (h *MatchingHandler) ForRequest(c *gin.Context) {
	ms, err := h.matching.ForRequest(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeRideError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, matchViews(ms))
}

type inviteReq struct {
	Type      string `json:"type"`
	RideID    string `json:"ride_id"`
	RequestID string `json:"request_id"`
	Score     int    `json:"score"`
}

func (h *MatchingHandler) Invite(c *gin.Context) {
	var req inviteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.RideID == "" || req.RequestID == "" {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	h.matching.Invite(c.Request.Context(), matching.Match{
		Type:      matching.MatchType(req.Type),
		RideID:    types.ID(req.RideID),
		RequestID: types.ID(req.RequestID),
		Score:     req.Score,
	}, middleware.UserID(c))
	c.Status(http.StatusAccepted)
}
