package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// GoogleProvider implements Provider on the Google Calendar API using a
// domain-delegated service account.
type GoogleProvider struct {
	svc      *gcal.Service
	timeZone string
	log      zerolog.Logger
}

// NewGoogleProvider builds a calendar service from a service-account key,
// impersonating the delegated user. timeZone is the IANA zone used for
// event times and free/busy queries.
func NewGoogleProvider(ctx context.Context, saKeyJSON []byte, delegatedUser, timeZone string, log zerolog.Logger) (*GoogleProvider, error) {
	if delegatedUser == "" {
		return nil, errors.New("delegated user is required")
	}
	cfg, err := google.JWTConfigFromJSON(saKeyJSON, gcal.CalendarScope)
	if err != nil {
		return nil, errors.Wrap(err, "parse service account key")
	}
	cfg.Subject = delegatedUser

	svc, err := gcal.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx)))
	if err != nil {
		return nil, errors.Wrap(err, "build calendar service")
	}
	return &GoogleProvider{svc: svc, timeZone: timeZone, log: log}, nil
}

// FreeBusy queries all calendars in a single API call and returns one Busy
// entry per requested calendar id.
func (p *GoogleProvider) FreeBusy(ctx context.Context, calendarIDs []string, min, max time.Time) (map[string]Busy, error) {
	items := make([]*gcal.FreeBusyRequestItem, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		items = append(items, &gcal.FreeBusyRequestItem{Id: id})
	}

	resp, err := p.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin:  min.Format(time.RFC3339),
		TimeMax:  max.Format(time.RFC3339),
		TimeZone: p.timeZone,
		Items:    items,
	}).Context(ctx).Do()
	if err != nil {
		return nil, errors.Wrap(err, "freebusy query")
	}

	out := make(map[string]Busy, len(calendarIDs))
	for _, id := range calendarIDs {
		cal, ok := resp.Calendars[id]
		if !ok {
			out[id] = Busy{Err: fmt.Errorf("calendar %s missing from freebusy response", id)}
			continue
		}
		if len(cal.Errors) > 0 {
			out[id] = Busy{Err: fmt.Errorf("freebusy error: %s", cal.Errors[0].Reason)}
			continue
		}
		busy := Busy{}
		for _, period := range cal.Busy {
			start, serr := time.Parse(time.RFC3339, period.Start)
			end, eerr := time.Parse(time.RFC3339, period.End)
			if serr != nil || eerr != nil {
				p.log.Warn().Str("calendar", id).Str("start", period.Start).Str("end", period.End).
					Msg("unparseable busy period")
				continue
			}
			busy.Intervals = append(busy.Intervals, model.Interval{Start: start, End: end})
		}
		out[id] = busy
	}
	return out, nil
}

// CreateEvent inserts the event on the target calendar and invites all
// attendees.
func (p *GoogleProvider) CreateEvent(ctx context.Context, ev Event) (string, error) {
	attendees := make([]*gcal.EventAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		attendees = append(attendees, &gcal.EventAttendee{Email: email})
	}

	created, err := p.svc.Events.Insert(ev.CalendarID, &gcal.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: p.timeZone},
		End:         &gcal.EventDateTime{DateTime: ev.Start.Add(ev.Duration).Format(time.RFC3339), TimeZone: p.timeZone},
		Attendees:   attendees,
	}).SendUpdates("all").Context(ctx).Do()
	if err != nil {
		return "", errors.Wrap(err, "insert event")
	}
	p.log.Info().Str("event_id", created.Id).Time("start", ev.Start).Msg("event created")
	return created.Id, nil
}
