// README: Entry point; loads config, wires module services, runs the HTTP server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridepool/internal/audit"
	"ridepool/internal/config"
	"ridepool/internal/geocode"
	httptransport "ridepool/internal/http"
	"ridepool/internal/http/middleware"
	"ridepool/internal/infra"
	"ridepool/internal/logging"
	"ridepool/internal/modules/booking"
	"ridepool/internal/modules/matching"
	"ridepool/internal/modules/payment"
	"ridepool/internal/modules/reputation"
	"ridepool/internal/modules/ride"
	"ridepool/internal/modules/user"
	"ridepool/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}
	log := logging.New("ridepool-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("db init failed", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var events notify.Publisher = notify.Noop{}
	if cfg.AMQP.URL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQP.URL, log)
		if err != nil {
			log.Error("amqp init failed, events disabled", "error", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	var geocoder geocode.Geocoder = geocode.Noop{}
	if cfg.Maps.APIKey != "" {
		g, err := geocode.NewGoogleGeocoder(cfg.Maps.APIKey, cfg.Maps.Region, log)
		if err != nil {
			log.Error("geocoder init failed, geocoding disabled", "error", err)
		} else {
			geocoder = g
		}
	}

	auditor := audit.NewRecorder(dbPool, log)

	userStore := user.NewStore(dbPool)
	rideStore := ride.NewStore(dbPool)
	bookingStore := booking.NewStore(dbPool)
	paymentStore := payment.NewStore(dbPool)
	reputationStore := reputation.NewStore(dbPool)

	reputationSvc := reputation.NewService(reputationStore, rideStore, bookingStore, userStore, cfg.Policy, auditor, log)
	bookingSvc := booking.NewService(bookingStore, rideStore, reputationSvc, events, auditor, cfg.Policy)
	geoIndex := matching.NewStore(redisClient)
	rideSvc := ride.NewService(rideStore, userStore, bookingSvc, reputationSvc, geocoder, geoIndex, events, auditor, cfg.Policy)
	matchingSvc := matching.NewService(rideStore, geoIndex, events, cfg.Matching, log)
	paymentSvc := payment.NewService(paymentStore, bookingSvc, bookingStore, events, auditor, cfg.Policy)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:      rideSvc,
		Bookings:   bookingSvc,
		Matching:   matchingSvc,
		Payments:   paymentSvc,
		Reputation: reputationSvc,
		Users:      userStore,
		Tokens:     middleware.NewTokenManager(cfg.Auth.JWTSecret),
		Log:        log,
	})

	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
