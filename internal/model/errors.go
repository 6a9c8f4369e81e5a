package model

import "errors"

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// ErrNoPartner means the candidate pool was empty after exclusions.
	ErrNoPartner = errors.New("no partner available")

	// ErrNoSlot means no free slot exists in the searched window.
	ErrNoSlot = errors.New("no free slot")

	// ErrAllCalendarsFailed means every queried calendar returned an
	// availability error, so free time cannot be asserted.
	ErrAllCalendarsFailed = errors.New("availability unknown: all calendars failed")
)
