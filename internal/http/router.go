// README: API gateway; registers HTTP routes and delegates to module services.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridepool/internal/http/handlers"
	"ridepool/internal/http/middleware"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/matching"
	"ridepool/internal/modules/payment"
	"ridepool/internal/modules/reputation"
	"ridepool/internal/modules/ride"
)

type RouterDeps struct {
	Rides      *ride.Service
	Bookings   *booking.Service
	Matching   *matching.Service
	Payments   *payment.Service
	Reputation *reputation.Service
	Users      handlers.Users
	Tokens     *middleware.TokenManager
	Log        *slog.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logging(deps.Log), middleware.Recovery(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	rideHandler := handlers.NewRideHandler(deps.Rides, deps.Users, deps.Bookings)
	bookingHandler := handlers.NewBookingHandler(deps.Bookings, deps.Rides, deps.Users)
	matchingHandler := handlers.NewMatchingHandler(deps.Matching)
	paymentHandler := handlers.NewPaymentHandler(deps.Payments)
	reputationHandler := handlers.NewReputationHandler(deps.Reputation)
	userHandler := handlers.NewUserHandler(deps.Users)

	// Provider callback; authenticated by idempotency, not by user token.
	r.POST("/api/payments/webhook", paymentHandler.Webhook)

	api := r.Group("/api", middleware.Auth(deps.Tokens))

	api.GET("/rides", rideHandler.List)
	api.POST("/rides", rideHandler.Publish)
	api.GET("/rides/mine", rideHandler.Mine)
	api.GET("/rides/:id", rideHandler.Get)
	api.POST("/rides/:id/cancel", rideHandler.Cancel)
	api.GET("/rides/:id/matches", matchingHandler.ForRide)
	api.GET("/rides/:id/bookings", bookingHandler.ForRide)

	api.POST("/requests", rideHandler.CreateRequest)
	api.GET("/requests/mine", rideHandler.MyRequests)
	api.DELETE("/requests/:id", rideHandler.DeleteRequest)
	api.GET("/requests/:id/matches", matchingHandler.ForRequest)

	api.GET("/matches", matchingHandler.ForMe)
	api.POST("/matches/invite", matchingHandler.Invite)

	api.POST("/bookings", bookingHandler.Create)
	api.GET("/bookings/mine", bookingHandler.Mine)
	api.GET("/bookings/:id", bookingHandler.Get)
	api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	api.POST("/bookings/:id/complete", bookingHandler.Complete)
	api.PATCH("/bookings/:id/status", bookingHandler.SetStatus)
	api.PATCH("/bookings/:id/seats", bookingHandler.UpdateSeats)
	api.POST("/bookings/:id/payment", paymentHandler.CreatePreference)
	api.GET("/bookings/:id/payment", paymentHandler.GetForBooking)

	api.POST("/reviews", reputationHandler.SubmitReview)
	api.POST("/reports/no-show", reputationHandler.ReportNoShow)

	api.GET("/users/me", userHandler.Me)
	api.GET("/users/:id", userHandler.Profile)
	api.GET("/users/:id/reviews", reputationHandler.ListUserReviews)

	return r
}
