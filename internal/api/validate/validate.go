// Package validate holds the request field validators for the booking API.
package validate

import (
	"fmt"
	"regexp"
	"time"
)

var emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Email checks for a plausible address; the directory is the real authority.
func Email(v string) error {
	if v == "" {
		return fmt.Errorf("email is required")
	}
	if len(v) > 320 || !emailRx.MatchString(v) {
		return fmt.Errorf("invalid email %q", v)
	}
	return nil
}

// Emails requires a non-empty list where every entry passes Email.
func Emails(field string, vs []string) error {
	if len(vs) == 0 {
		return fmt.Errorf("%s is required", field)
	}
	for _, v := range vs {
		if err := Email(v); err != nil {
			return fmt.Errorf("%s: %v", field, err)
		}
	}
	return nil
}

// Mode requires one of the configured mode names.
func Mode(v string, known []string) error {
	for _, k := range known {
		if v == k {
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", v)
}

// MeetingCount bounds the per-initiator meeting count.
func MeetingCount(n, max int) error {
	if n < 1 {
		return fmt.Errorf("meetingsPerInitiator must be at least 1")
	}
	if n > max {
		return fmt.Errorf("meetingsPerInitiator exceeds limit of %d", max)
	}
	return nil
}

// NonEmpty rejects an empty required field.
func NonEmpty(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

// Date parses a YYYY-MM-DD date in the given location.
func Date(v string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid startDate %q, want YYYY-MM-DD", v)
	}
	return d, nil
}
