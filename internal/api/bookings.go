// Package api exposes the HTTP trigger surface for booking runs.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/api/respond"
	"github.com/CaputoDavide93/new-starters-meetup/internal/api/validate"
	"github.com/CaputoDavide93/new-starters-meetup/internal/config"
	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/scheduler"
)

// BookingRunner accepts a booking request for background execution and
// returns its run id.
type BookingRunner interface {
	Enqueue(req model.BookingRequest) (string, error)
}

// BookingHandler handles the booking trigger endpoint.
type BookingHandler struct {
	runner      BookingRunner
	modes       []string
	maxMeetings int
	loc         *time.Location
	now         func() time.Time
	log         zerolog.Logger
}

// NewBookingHandler creates a booking handler bound to the configured modes.
func NewBookingHandler(runner BookingRunner, cfg *config.Config, log zerolog.Logger) *BookingHandler {
	modes := make([]string, 0, len(cfg.Modes()))
	for name := range cfg.Modes() {
		modes = append(modes, name)
	}
	return &BookingHandler{
		runner:      runner,
		modes:       modes,
		maxMeetings: cfg.MaxMeetingsPerRun,
		loc:         cfg.Location(),
		now:         time.Now,
		log:         log,
	}
}

type bookingPayload struct {
	Mode       string   `json:"mode"`
	Channel    string   `json:"channel"`
	Initiators []string `json:"initiators"`
	StartDate  string   `json:"startDate"`
	// Pointer so an absent field defaults to 1 while an explicit 0 still
	// reaches the validator.
	MeetingsPerInitiator *int `json:"meetingsPerInitiator"`
}

type bookingAccepted struct {
	RunID  string `json:"runId"`
	Status string `json:"status"`
}

// CreateBooking handles POST /api/bookings. The run executes in the
// background; the response only acknowledges the queued run.
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var payload bookingPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respond.WriteBadRequest(w, "invalid JSON body")
		return
	}

	if payload.Mode == "" {
		payload.Mode = config.ModeCoffee
	}
	meetings := 1
	if payload.MeetingsPerInitiator != nil {
		meetings = *payload.MeetingsPerInitiator
	}

	if err := validate.Mode(payload.Mode, h.modes); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.NonEmpty("channel", payload.Channel); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.Emails("initiators", payload.Initiators); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.MeetingCount(meetings, h.maxMeetings); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	startDate := h.now().In(h.loc)
	if payload.StartDate != "" {
		d, err := validate.Date(payload.StartDate, h.loc)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		startDate = d
	}

	initiators := make([]string, 0, len(payload.Initiators))
	for _, email := range payload.Initiators {
		initiators = append(initiators, strings.ToLower(strings.TrimSpace(email)))
	}

	runID, err := h.runner.Enqueue(model.BookingRequest{
		Mode:                 payload.Mode,
		Channel:              payload.Channel,
		Initiators:           initiators,
		StartDate:            startDate,
		MeetingsPerInitiator: meetings,
	})
	if err != nil {
		if errors.Is(err, scheduler.ErrQueueFull) {
			respond.WriteTooManyRequests(w, "a booking run is already queued")
			return
		}
		h.log.Error().Err(err).Msg("failed to enqueue booking run")
		respond.WriteInternalError(w, "failed to queue booking run")
		return
	}

	h.log.Info().Str("run_id", runID).Str("mode", payload.Mode).Msg("booking run accepted")
	respond.WriteJSON(w, http.StatusAccepted, bookingAccepted{RunID: runID, Status: "queued"})
}
