// README: Review and no-show report handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/reputation"
	"ridepool/internal/types"
)

type ReputationHandler struct {
	reputation *reputation.Service
}

func NewReputationHandler(svc *reputation.Service) *ReputationHandler {
	return &ReputationHandler{reputation: svc}
}

type submitReviewReq struct {
	BookingID string `json:"booking_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type reviewView struct {
	ID         types.ID  `json:"id"`
	BookingID  types.ID  `json:"booking_id"`
	ReviewerID types.ID  `json:"reviewer_id"`
	RevieweeID types.ID  `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func newReviewView(r *reputation.Review) reviewView {
	return reviewView{
		ID:         r.ID,
		BookingID:  r.BookingID,
		ReviewerID: r.ReviewerID,
		RevieweeID: r.RevieweeID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

func (h *ReputationHandler) SubmitReview(c *gin.Context) {
	var req submitReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rev, err := h.reputation.SubmitReview(c.Request.Context(), middleware.UserID(c), reputation.SubmitReviewCommand{
		BookingID: types.ID(req.BookingID),
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		writeReputationError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newReviewView(rev))
}

func (h *ReputationHandler) ListUserReviews(c *gin.Context) {
	offset, limit := paginationParams(c)
	reviews, err := h.reputation.ListUserReviews(c.Request.Context(), types.ID(c.Param("id")), offset, limit)
	if err != nil {
		writeReputationError(c, err)
		return
	}
	out := make([]reviewView, 0, len(reviews))
	for i := range reviews {
		out = append(out, newReviewView(&reviews[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

type reportNoShowReq struct {
	RideID     string `json:"ride_id"`
	ReportedID string `json:"reported_id"`
	Reason     string `json:"reason"`
}

func (h *ReputationHandler) ReportNoShow(c *gin.Context) {
	var req reportNoShowReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	rep, err := h.reputation.ReportNoShow(c.Request.Context(), middleware.UserID(c), reputation.ReportNoShowCommand{
		RideID:     types.ID(req.RideID),
		ReportedID: types.ID(req.ReportedID),
		Reason:     req.Reason,
	})
	if err != nil {
		writeReputationError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"id": rep.ID, "ride_id": rep.RideID, "reported_id": rep.ReportedID})
}
