// README: User profile handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/user"
	"ridepool/internal/types"
)

type UserHandler struct {
	users Users
}

func NewUserHandler(users Users) *UserHandler {
	return &UserHandler{users: users}
}

// profileView is the owner's view; phone stays private to everyone else.
type profileView struct {
	ID                types.ID                `json:"id"`
	Email             string                  `json:"email"`
	Name              string                  `json:"name"`
	Phone             string                  `json:"phone"`
	Gender            user.Gender             `json:"gender"`
	CanDrive          bool                    `json:"can_drive"`
	CanRequest        bool                    `json:"can_request"`
	ReputationScore   int                     `json:"reputation_score"`
	CancellationCount int                     `json:"cancellation_count"`
	Verification      user.VerificationStatus `json:"verification"`
	CarModel          string                  `json:"car_model,omitempty"`
	CarPlate          string                  `json:"car_plate,omitempty"`
}

func (h *UserHandler) Me(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeUserError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, profileView{
		ID:                u.ID,
		Email:             u.Email,
		Name:              u.Name,
		Phone:             u.Phone,
		Gender:            u.Gender,
		CanDrive:          u.CanDrive,
		CanRequest:        u.CanRequest,
		ReputationScore:   u.ReputationScore(),
		CancellationCount: u.CancellationCount,
		Verification:      u.Verification,
		CarModel:          u.CarModel,
		CarPlate:          u.CarPlate,
	})
}

// Profile is the public view of another user: name and reputation only.
func (h *UserHandler) Profile(c *gin.Context) {
	u, err := h.users.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeUserError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"id":               u.ID,
		"name":             u.Name,
		"reputation_score": u.ReputationScore(),
		"verification":     u.Verification,
		"can_drive":        u.CanDrive,
	})
}
