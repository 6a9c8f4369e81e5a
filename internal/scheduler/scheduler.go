// Package scheduler implements the matching-and-scheduling engine: fairness
// weighted partner selection, multi-calendar slot search and the
// cadence-aware booking loop with deadline enforcement.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/availability"
	"github.com/CaputoDavide93/new-starters-meetup/internal/calendar"
	"github.com/CaputoDavide93/new-starters-meetup/internal/config"
	"github.com/CaputoDavide93/new-starters-meetup/internal/directory"
	"github.com/CaputoDavide93/new-starters-meetup/internal/metrics"
	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/notify"
	"github.com/CaputoDavide93/new-starters-meetup/internal/weights"
)

// Mode bundles the per-mode collaborators: the mode's weight partition, its
// directory group and its message templates.
type Mode struct {
	Weights             *weights.WeightStore
	Directory           directory.Directory
	GroupID             string
	TitleTemplate       string
	DescriptionTemplate string
}

// Options are the scheduling knobs, normally derived from config.
type Options struct {
	SharedCalendarID string
	Location         *time.Location
	WindowStart      config.Clock
	WindowEnd        config.Clock
	MeetingDuration  time.Duration
	CadenceDays      int // business days between an initiator's meetings
	MaxSearchDays    int // consecutive calendar days searched per candidate
	SoftDeadline     time.Duration
	HardDeadline     time.Duration
}

// Scheduler runs booking requests. One Scheduler serves one deployment; runs
// are strictly sequential.
type Scheduler struct {
	modes    map[string]Mode
	resolver *availability.Resolver
	cal      calendar.Provider
	notifier notify.Notifier
	opts     Options
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New constructs a Scheduler.
func New(modes map[string]Mode, resolver *availability.Resolver, cal calendar.Provider, notifier notify.Notifier, opts Options, log zerolog.Logger, sopts ...Option) *Scheduler {
	s := &Scheduler{
		modes:    modes,
		resolver: resolver,
		cal:      cal,
		notifier: notifier,
		opts:     opts,
		now:      time.Now,
		log:      log,
	}
	for _, o := range sopts {
		o(s)
	}
	return s
}

// runState is the per-run bookkeeping the loop mutates. It is created at run
// start and discarded at run end.
type runState struct {
	summary     *model.RunSummary
	globalUsed  map[string]struct{}
	start       time.Time
	softWarned  bool
	hardStopped bool
}

// initiatorState tracks one initiator's bookings within a run.
type initiatorState struct {
	used           map[string]struct{}
	bookedSlots    []model.Interval
	lastBookedDate time.Time // zero until the first booking
}

// Run executes one booking request end to end and always returns a summary;
// per-meeting failures are recorded in it, not raised. The returned error is
// non-nil only for invalid input (unknown mode).
func (s *Scheduler) Run(ctx context.Context, req model.BookingRequest) (*model.RunSummary, error) {
	return s.RunWithID(ctx, uuid.NewString(), req)
}

// RunWithID is Run with a caller-supplied run id, used when the id was
// already handed out by the trigger surface.
func (s *Scheduler) RunWithID(ctx context.Context, runID string, req model.BookingRequest) (*model.RunSummary, error) {
	mode, ok := s.modes[req.Mode]
	if !ok {
		return nil, errors.Wrapf(model.ErrValidation, "unknown mode %q", req.Mode)
	}

	log := s.log.With().Str("run_id", runID).Str("mode", req.Mode).Logger()
	log.Info().
		Int("initiators", len(req.Initiators)).
		Int("meetings_per_initiator", req.MeetingsPerInitiator).
		Time("start_date", req.StartDate).
		Msg("booking run starting")
	metrics.RunsTotal.WithLabelValues(req.Mode).Inc()

	st := &runState{
		summary: &model.RunSummary{
			RunID:     runID,
			Mode:      req.Mode,
			Channel:   req.Channel,
			Successes: []string{},
			Failures:  []string{},
		},
		globalUsed: make(map[string]struct{}),
		start:      s.now(),
	}

	s.syncRoster(ctx, mode, req.Channel, st, log)

	for _, initiator := range req.Initiators {
		if err := mode.Weights.EnsurePresent(ctx, initiator); err != nil {
			log.Warn().Err(err).Str("initiator", initiator).Msg("ensure initiator failed")
		}
	}

	for i, initiator := range req.Initiators {
		if s.checkDeadline(ctx, req.Channel, st, log) {
			for _, remaining := range req.Initiators[i:] {
				st.summary.Failures = append(st.summary.Failures, fmt.Sprintf("deadline exceeded before processing %s", remaining))
				metrics.BookingsFailed.WithLabelValues(req.Mode).Inc()
			}
			break
		}
		s.bookForInitiator(ctx, mode, req, initiator, st, log)
	}

	s.post(ctx, req.Channel, fmt.Sprintf(":white_check_mark: Booking complete! %d succeeded, %d failed.",
		len(st.summary.Successes), len(st.summary.Failures)))
	log.Info().
		Int("successes", len(st.summary.Successes)).
		Int("failures", len(st.summary.Failures)).
		Msg("booking run complete")
	return st.summary, nil
}

// syncRoster refreshes the mode's roster from the directory before booking.
// A directory failure is transient: the previous roster stays in effect.
func (s *Scheduler) syncRoster(ctx context.Context, mode Mode, channel string, st *runState, log zerolog.Logger) {
	members, err := mode.Directory.GroupMembers(ctx, mode.GroupID)
	if err != nil {
		log.Warn().Err(err).Msg("roster fetch failed, booking against previous roster")
		s.post(ctx, channel, ":warning: Could not refresh the member list, using the previous one")
		return
	}

	removed, err := mode.Weights.SyncRoster(ctx, members)
	if err != nil {
		log.Warn().Err(err).Msg("roster sync failed, booking against previous roster")
		return
	}
	st.summary.Removed = removed
	if removed > 0 {
		s.post(ctx, channel, fmt.Sprintf(":broom: Cleaned up %d departed user(s) from the database", removed))
	}
}

func (s *Scheduler) bookForInitiator(ctx context.Context, mode Mode, req model.BookingRequest, initiator string, st *runState, log zerolog.Logger) {
	log = log.With().Str("initiator", initiator).Logger()

	ist := &initiatorState{used: make(map[string]struct{})}
	maxPartnerAttempts := 2 * len(req.Initiators)
	if maxPartnerAttempts < 10 {
		maxPartnerAttempts = 10
	}

	for meeting := 0; meeting < req.MeetingsPerInitiator; meeting++ {
		if s.checkDeadline(ctx, req.Channel, st, log) {
			st.summary.Failures = append(st.summary.Failures, fmt.Sprintf("deadline exceeded: remaining meetings for %s", initiator))
			metrics.BookingsFailed.WithLabelValues(req.Mode).Inc()
			return
		}

		minSearchDate := dateOnly(req.StartDate.In(s.opts.Location))
		if !ist.lastBookedDate.IsZero() {
			minSearchDate = addBusinessDays(ist.lastBookedDate, s.opts.CadenceDays)
		}

		partner, slot, found := s.findPartnerAndSlot(ctx, mode, req, initiator, ist, st, minSearchDate, maxPartnerAttempts, log)
		if !found {
			st.summary.Failures = append(st.summary.Failures, fmt.Sprintf("no slot for %s", initiator))
			metrics.BookingsFailed.WithLabelValues(req.Mode).Inc()
			continue
		}

		if err := s.commit(ctx, mode, req, initiator, partner, slot, ist, st, log); err != nil {
			st.summary.Failures = append(st.summary.Failures, fmt.Sprintf("event creation failed for %s: %v", initiator, err))
			metrics.BookingsFailed.WithLabelValues(req.Mode).Inc()
			s.post(ctx, req.Channel, fmt.Sprintf(":warning: Failed to book meeting: %v", err))
		}
	}
}

// findPartnerAndSlot walks the partner-attempt loop: draw a fair candidate,
// then search up to MaxSearchDays consecutive days for a mutually free slot.
func (s *Scheduler) findPartnerAndSlot(
	ctx context.Context,
	mode Mode,
	req model.BookingRequest,
	initiator string,
	ist *initiatorState,
	st *runState,
	minSearchDate time.Time,
	maxPartnerAttempts int,
	log zerolog.Logger,
) (partner string, slot time.Time, found bool) {
	exclude := make(map[string]struct{}, len(req.Initiators)+len(ist.used)+len(st.globalUsed))
	for _, email := range req.Initiators {
		exclude[normalize(email)] = struct{}{}
	}
	for email := range ist.used {
		exclude[email] = struct{}{}
	}
	for email := range st.globalUsed {
		exclude[email] = struct{}{}
	}

	today := dateOnly(s.now().In(s.opts.Location))

	for attempt := 0; attempt < maxPartnerAttempts; attempt++ {
		candidate, err := mode.Weights.SelectFairPartner(ctx, exclude)
		if err != nil {
			if errors.Is(err, model.ErrNoPartner) {
				log.Warn().Msg("no partner available")
				s.post(ctx, req.Channel, fmt.Sprintf(":warning: No partner available for %s", initiator))
			} else {
				log.Error().Err(err).Msg("partner selection failed")
			}
			return "", time.Time{}, false
		}

		start, err := s.searchSlot(ctx, initiator, candidate, minSearchDate, today, ist.bookedSlots, log)
		if err == nil {
			return candidate, start, true
		}

		// This candidate has no opening in the window; exclude them from
		// further attempts for this meeting and draw again.
		exclude[candidate] = struct{}{}
		log.Debug().Str("candidate", candidate).Int("attempt", attempt+1).Msg("no slot with candidate")
	}
	return "", time.Time{}, false
}

// searchSlot scans up to MaxSearchDays consecutive days from minSearchDate,
// skipping past days and weekends.
func (s *Scheduler) searchSlot(ctx context.Context, initiator, candidate string, minSearchDate, today time.Time, booked []model.Interval, log zerolog.Logger) (time.Time, error) {
	calendarIDs := []string{s.opts.SharedCalendarID, normalize(initiator), candidate}

	for offset := 0; offset < s.opts.MaxSearchDays; offset++ {
		day := minSearchDate.AddDate(0, 0, offset)
		if day.Before(today) || isWeekend(day) {
			continue
		}

		slot, err := s.resolver.FindFreeSlot(ctx,
			calendarIDs,
			s.opts.WindowStart.On(day),
			s.opts.WindowEnd.On(day),
			s.opts.MeetingDuration,
			booked,
		)
		if err == nil {
			return slot, nil
		}
		switch {
		case errors.Is(err, model.ErrNoSlot):
			// Fully booked day, keep scanning.
		case errors.Is(err, model.ErrAllCalendarsFailed):
			log.Warn().Time("day", day).Msg("availability unknown for all calendars, skipping day")
		default:
			log.Error().Err(err).Time("day", day).Msg("availability query failed, skipping day")
		}
	}
	return time.Time{}, model.ErrNoSlot
}

// commit books the meeting: external event first, then the weight increment
// and the run-state updates that keep later selections fair and collision
// free.
func (s *Scheduler) commit(ctx context.Context, mode Mode, req model.BookingRequest, initiator, partner string, slot time.Time, ist *initiatorState, st *runState, log zerolog.Logger) error {
	initiatorName := mode.Weights.DisplayName(ctx, initiator)
	partnerName := mode.Weights.DisplayName(ctx, partner)
	title, description := s.eventText(mode, initiatorName, partnerName, normalize(initiator), partner, log)

	eventID, err := s.cal.CreateEvent(ctx, calendar.Event{
		CalendarID:  s.opts.SharedCalendarID,
		Title:       title,
		Description: description,
		Start:       slot,
		Duration:    s.opts.MeetingDuration,
		Attendees:   []string{normalize(initiator), partner},
	})
	if err != nil {
		return err
	}

	if err := mode.Weights.IncrementWeight(ctx, partner); err != nil {
		// The event exists; fairness bookkeeping is off by one until the
		// next successful increment. Worth surfacing but not undoing.
		log.Error().Err(err).Str("partner", partner).Msg("weight increment failed after booking")
	}

	ist.used[partner] = struct{}{}
	st.globalUsed[partner] = struct{}{}
	ist.bookedSlots = append(ist.bookedSlots, model.Interval{Start: slot, End: slot.Add(s.opts.MeetingDuration)})
	ist.lastBookedDate = dateOnly(slot.In(s.opts.Location))

	st.summary.Successes = append(st.summary.Successes, fmt.Sprintf("%s ↔ %s", normalize(initiator), partner))
	metrics.BookingsSucceeded.WithLabelValues(req.Mode).Inc()
	s.post(ctx, req.Channel, fmt.Sprintf("✅ %s ↔ %s — %s", initiatorName, partnerName, slot.In(s.opts.Location).Format("02 Jan 15:04")))
	log.Info().Str("event_id", eventID).Str("partner", partner).Time("slot", slot).Msg("meeting booked")
	return nil
}

// checkDeadline polls elapsed wall-clock time. It posts a one-time warning
// past the soft threshold and reports true once the hard threshold is
// crossed, which stops further processing.
func (s *Scheduler) checkDeadline(ctx context.Context, channel string, st *runState, log zerolog.Logger) bool {
	elapsed := s.now().Sub(st.start)

	if elapsed > s.opts.SoftDeadline && !st.softWarned {
		log.Warn().Dur("elapsed", elapsed).Msg("approaching run deadline")
		s.post(ctx, channel, ":warning: Booking process taking longer than expected, may time out")
		st.softWarned = true
	}
	if elapsed > s.opts.HardDeadline {
		if !st.hardStopped {
			log.Error().Dur("elapsed", elapsed).Msg("hard deadline exceeded, stopping early")
			metrics.DeadlineTruncations.Inc()
			st.hardStopped = true
		}
		return true
	}
	return false
}

// post delivers a notification, degrading to a log entry when delivery
// fails. Notification failure never affects the run.
func (s *Scheduler) post(ctx context.Context, channel, text string) {
	if err := s.notifier.Post(ctx, channel, text); err != nil {
		metrics.NotifyFailures.Inc()
		s.log.Warn().Err(err).Msg("notification dropped")
	}
}
