// Package calendar abstracts the two calendar-provider operations the
// scheduler consumes: a batched free/busy query and event creation.
package calendar

import (
	"context"
	"time"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// Busy is one calendar's answer to a free/busy query. Err is set when that
// calendar's availability could not be retrieved; its intervals are then
// meaningless.
type Busy struct {
	Intervals []model.Interval
	Err       error
}

// Event describes a meeting to create.
type Event struct {
	CalendarID  string
	Title       string
	Description string
	Start       time.Time
	Duration    time.Duration
	Attendees   []string
}

// Provider is the narrow calendar-provider contract. One FreeBusy call
// covers all requested calendars so external API usage stays bounded.
type Provider interface {
	FreeBusy(ctx context.Context, calendarIDs []string, min, max time.Time) (map[string]Busy, error)
	CreateEvent(ctx context.Context, ev Event) (string, error)
}
