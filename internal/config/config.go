// Package config loads service configuration from INTRO_-prefixed
// environment variables. The Config is constructed once at process start and
// passed into every component; there are no ambient globals.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Meeting modes. Each mode has its own store partition, directory group and
// message templates.
const (
	ModeCoffee = "coffee"
	ModeBuddy  = "buddy"
)

// Config holds the full service configuration.
type Config struct {
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Store backend: sqlite (default) or postgres.
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/intro.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Slack
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN" default:""`
	SlackBaseURL  string `envconfig:"SLACK_BASE_URL" default:"https://slack.com"`

	// Azure AD application used for the coffee-intro group.
	AzureTenantID     string `envconfig:"AZURE_TENANT_ID" default:""`
	AzureClientID     string `envconfig:"AZURE_CLIENT_ID" default:""`
	AzureClientSecret string `envconfig:"AZURE_CLIENT_SECRET" default:""`
	AzureGroupID      string `envconfig:"AZURE_GROUP_ID" default:""`

	// Buddy-intro overrides; each falls back to the coffee value when unset.
	BuddyAzureTenantID     string `envconfig:"BUDDY_AZURE_TENANT_ID" default:""`
	BuddyAzureClientID     string `envconfig:"BUDDY_AZURE_CLIENT_ID" default:""`
	BuddyAzureClientSecret string `envconfig:"BUDDY_AZURE_CLIENT_SECRET" default:""`
	BuddyAzureGroupID      string `envconfig:"BUDDY_AZURE_GROUP_ID" default:""`

	// Google Calendar
	GoogleServiceAccountKey string `envconfig:"GOOGLE_SERVICE_ACCOUNT_KEY" default:""`
	GoogleDelegatedUser     string `envconfig:"GOOGLE_DELEGATED_USER" default:""`
	GoogleCalendarID        string `envconfig:"GOOGLE_CALENDAR_ID" default:""`

	// Meeting templates. Placeholders: {person1} {person2} {email1} {email2}
	// plus the {new_starter}/{buddy} aliases.
	MeetingTitleTemplate            string `envconfig:"MEETING_TITLE_TEMPLATE" default:"☕️ Coffee: {person1} & {person2}"`
	MeetingDescriptionTemplate      string `envconfig:"MEETING_DESCRIPTION_TEMPLATE" default:"Intro meeting between {person1} and {person2}"`
	BuddyMeetingTitleTemplate       string `envconfig:"BUDDY_MEETING_TITLE_TEMPLATE" default:"🤝 Buddy: {person1} & {person2}"`
	BuddyMeetingDescriptionTemplate string `envconfig:"BUDDY_MEETING_DESCRIPTION_TEMPLATE" default:"Buddy meeting between {person1} and {person2}"`

	// Scheduling window and cadence.
	TimeZone            string `envconfig:"TIME_ZONE" default:"Europe/Dublin"`
	WindowStart         string `envconfig:"WINDOW_START" default:"11:00"`
	WindowEnd           string `envconfig:"WINDOW_END" default:"15:00"`
	MeetingMinutes      int    `envconfig:"MEETING_MINUTES" default:"15"`
	CadenceBusinessDays int    `envconfig:"CADENCE_BUSINESS_DAYS" default:"2"`
	MaxSearchDays       int    `envconfig:"MAX_SEARCH_DAYS" default:"7"`
	MaxMeetingsPerRun   int    `envconfig:"MAX_MEETINGS_PER_RUN" default:"10"`

	// Run deadline, measured from run start. The soft deadline triggers a
	// one-time warning; the hard deadline stops processing.
	SoftDeadlineSeconds int `envconfig:"SOFT_DEADLINE_SECONDS" default:"840"`
	HardDeadlineSeconds int `envconfig:"HARD_DEADLINE_SECONDS" default:"870"`
}

// Mode is the per-mode slice of the configuration.
type Mode struct {
	Name                string
	TenantID            string
	ClientID            string
	ClientSecret        string
	GroupID             string
	TitleTemplate       string
	DescriptionTemplate string
}

// New loads and validates configuration from the environment.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("intro", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveDefaults applies buddy-credential fallbacks and validates derived
// settings.
func (c *Config) ResolveDefaults() error {
	if c.BuddyAzureTenantID == "" {
		c.BuddyAzureTenantID = c.AzureTenantID
	}
	if c.BuddyAzureClientID == "" {
		c.BuddyAzureClientID = c.AzureClientID
	}
	if c.BuddyAzureClientSecret == "" {
		c.BuddyAzureClientSecret = c.AzureClientSecret
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}
	if c.DBDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("POSTGRES_DSN required for postgres driver")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE %q: %w", c.TimeZone, err)
	}
	if _, err := ParseClock(c.WindowStart); err != nil {
		return fmt.Errorf("invalid WINDOW_START: %w", err)
	}
	if _, err := ParseClock(c.WindowEnd); err != nil {
		return fmt.Errorf("invalid WINDOW_END: %w", err)
	}
	if c.MeetingMinutes <= 0 {
		return fmt.Errorf("MEETING_MINUTES must be positive")
	}
	if c.HardDeadlineSeconds < c.SoftDeadlineSeconds {
		return fmt.Errorf("HARD_DEADLINE_SECONDS must be >= SOFT_DEADLINE_SECONDS")
	}
	return nil
}

// Location returns the configured time zone. ResolveDefaults has already
// validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Modes returns the closed set of configured meeting modes.
func (c *Config) Modes() map[string]Mode {
	return map[string]Mode{
		ModeCoffee: {
			Name:                ModeCoffee,
			TenantID:            c.AzureTenantID,
			ClientID:            c.AzureClientID,
			ClientSecret:        c.AzureClientSecret,
			GroupID:             c.AzureGroupID,
			TitleTemplate:       c.MeetingTitleTemplate,
			DescriptionTemplate: c.MeetingDescriptionTemplate,
		},
		ModeBuddy: {
			Name:                ModeBuddy,
			TenantID:            c.BuddyAzureTenantID,
			ClientID:            c.BuddyAzureClientID,
			ClientSecret:        c.BuddyAzureClientSecret,
			GroupID:             c.BuddyAzureGroupID,
			TitleTemplate:       c.BuddyMeetingTitleTemplate,
			DescriptionTemplate: c.BuddyMeetingDescriptionTemplate,
		},
	}
}

// Clock is a time of day, minutes since midnight.
type Clock int

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("parse %q as HH:MM: %w", s, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return Clock(hh*60 + mm), nil
}

// On anchors the clock time to the given day in its location.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), int(c)/60, int(c)%60, 0, 0, day.Location())
}
