package introservice

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/CaputoDavide93/new-starters-meetup/internal/availability"
	"github.com/CaputoDavide93/new-starters-meetup/internal/calendar"
	"github.com/CaputoDavide93/new-starters-meetup/internal/config"
	"github.com/CaputoDavide93/new-starters-meetup/internal/notify"
	"github.com/CaputoDavide93/new-starters-meetup/internal/scheduler"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store/postgres"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store/sqlite"
	"github.com/CaputoDavide93/new-starters-meetup/internal/weights"

	"github.com/CaputoDavide93/new-starters-meetup/internal/directory"
)

// NewStore opens the configured store backend.
func NewStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "sqlite":
		return sqlite.Open(cfg.SQLitePath)
	case "postgres":
		return postgres.Open(cfg.PostgresDSN)
	default:
		return nil, errors.Errorf("unsupported DB driver %q", cfg.DBDriver)
	}
}

// NewNotifier builds the Slack notifier, or a no-op one when no bot token is
// configured so local runs work without Slack.
func NewNotifier(cfg *config.Config, log zerolog.Logger) notify.Notifier {
	if cfg.SlackBotToken == "" {
		log.Warn().Msg("no Slack bot token configured, notifications disabled")
		return notify.Nop{}
	}
	return notify.NewSlack(cfg.SlackBotToken, log, notify.WithBaseURL(cfg.SlackBaseURL))
}

// NewScheduler assembles the scheduler from configuration: store, calendar
// provider, per-mode directories and the notification sink.
func NewScheduler(ctx context.Context, cfg *config.Config, st store.Store, log zerolog.Logger) (*scheduler.Scheduler, error) {
	provider, err := calendar.NewGoogleProvider(ctx, []byte(cfg.GoogleServiceAccountKey), cfg.GoogleDelegatedUser, cfg.TimeZone, log)
	if err != nil {
		return nil, errors.Wrap(err, "google calendar provider")
	}

	modes := make(map[string]scheduler.Mode, len(cfg.Modes()))
	for name, mc := range cfg.Modes() {
		modes[name] = scheduler.Mode{
			Weights:             weights.New(st, name, log),
			Directory:           directory.NewGraph(ctx, mc.TenantID, mc.ClientID, mc.ClientSecret, log),
			GroupID:             mc.GroupID,
			TitleTemplate:       mc.TitleTemplate,
			DescriptionTemplate: mc.DescriptionTemplate,
		}
	}

	windowStart, err := config.ParseClock(cfg.WindowStart)
	if err != nil {
		return nil, err
	}
	windowEnd, err := config.ParseClock(cfg.WindowEnd)
	if err != nil {
		return nil, err
	}

	return scheduler.New(
		modes,
		availability.NewResolver(provider, log),
		provider,
		NewNotifier(cfg, log),
		scheduler.Options{
			SharedCalendarID: cfg.GoogleCalendarID,
			Location:         cfg.Location(),
			WindowStart:      windowStart,
			WindowEnd:        windowEnd,
			MeetingDuration:  time.Duration(cfg.MeetingMinutes) * time.Minute,
			CadenceDays:      cfg.CadenceBusinessDays,
			MaxSearchDays:    cfg.MaxSearchDays,
			SoftDeadline:     time.Duration(cfg.SoftDeadlineSeconds) * time.Second,
			HardDeadline:     time.Duration(cfg.HardDeadlineSeconds) * time.Second,
		},
		log,
	), nil
}
