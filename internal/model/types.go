package model

import "time"

// Participant is a member of a roster, keyed by lower-cased email.
// Weight counts how many times the participant has been chosen as an
// intro partner; lower weights are prioritized for fairness.
type Participant struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Weight      int64  `json:"weight"`
}

// Member is a directory group entry as returned by the roster source.
type Member struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// BookingRequest is the validated input for one scheduling run. It is
// never persisted.
type BookingRequest struct {
	Mode                 string    `json:"mode"`
	Channel              string    `json:"channel"`
	Initiators           []string  `json:"initiators"`
	StartDate            time.Time `json:"startDate"`
	MeetingsPerInitiator int       `json:"meetingsPerInitiator"`
}

// RunSummary is the outcome of one scheduling run.
type RunSummary struct {
	RunID     string   `json:"runId"`
	Mode      string   `json:"mode"`
	Channel   string   `json:"channel"`
	Successes []string `json:"successes"`
	Failures  []string `json:"failures"`
	Removed   int      `json:"removed"`
}
