package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/api/recovery"
	"github.com/CaputoDavide93/new-starters-meetup/internal/config"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
)

// NewRouter wires all API routes.
func NewRouter(runner BookingRunner, st store.Store, cfg *config.Config, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.Middleware)

	bookingHandler := NewBookingHandler(runner, cfg, log)
	healthHandler := NewHealthHandler(st)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	router.HandleFunc("/api/bookings", bookingHandler.CreateBooking).Methods("POST")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return router
}
