// Package availability finds free meeting slots across a set of calendars
// within a business-hours window.
package availability

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/calendar"
	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// Granularity is the step between candidate slot starts.
const Granularity = 15 * time.Minute

// Resolver computes free slots from a calendar provider's busy data.
type Resolver struct {
	provider calendar.Provider
	log      zerolog.Logger
}

// NewResolver returns a Resolver over the given provider.
func NewResolver(p calendar.Provider, log zerolog.Logger) *Resolver {
	return &Resolver{provider: p, log: log}
}

// FindFreeSlot returns the first instant in [windowStart, windowEnd-duration]
// at Granularity steps where no queried calendar is busy and no excluded
// interval overlaps. Calendars whose availability cannot be read are logged
// and skipped (fail-open); when every calendar fails the resolver returns
// model.ErrAllCalendarsFailed so callers never book on zero information.
// model.ErrNoSlot means the window was readable but fully booked.
func (r *Resolver) FindFreeSlot(
	ctx context.Context,
	calendarIDs []string,
	windowStart, windowEnd time.Time,
	duration time.Duration,
	excluded []model.Interval,
) (time.Time, error) {
	perCalendar, err := r.provider.FreeBusy(ctx, calendarIDs, windowStart, windowEnd)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "freebusy")
	}

	busy := make([]model.Interval, 0, len(excluded))
	failed := 0
	for _, id := range calendarIDs {
		entry := perCalendar[id]
		if entry.Err != nil {
			r.log.Warn().Err(entry.Err).Str("calendar", id).Msg("availability unreadable, skipping calendar")
			failed++
			continue
		}
		busy = append(busy, entry.Intervals...)
	}
	if len(calendarIDs) > 0 && failed == len(calendarIDs) {
		return time.Time{}, model.ErrAllCalendarsFailed
	}
	busy = append(busy, excluded...)

	for start := windowStart; !start.Add(duration).After(windowEnd); start = start.Add(Granularity) {
		slot := model.Interval{Start: start, End: start.Add(duration)}
		free := true
		for _, b := range busy {
			if slot.Overlaps(b) {
				free = false
				break
			}
		}
		if free {
			r.log.Debug().Time("slot", start).Msg("free slot found")
			return start, nil
		}
	}
	return time.Time{}, model.ErrNoSlot
}
