package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CaputoDavide93/new-starters-meetup/internal/calendar"
	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
)

// fakeProvider serves scripted busy data per calendar id.
type fakeProvider struct {
	busy    map[string]calendar.Busy
	err     error
	queries int
}

func (f *fakeProvider) FreeBusy(ctx context.Context, calendarIDs []string, min, max time.Time) (map[string]calendar.Busy, error) {
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]calendar.Busy, len(calendarIDs))
	for _, id := range calendarIDs {
		out[id] = f.busy[id]
	}
	return out, nil
}

func (f *fakeProvider) CreateEvent(ctx context.Context, ev calendar.Event) (string, error) {
	return "", errors.New("not supported")
}

func at(t *testing.T, hhmm string) time.Time {
	t.Helper()
	ts, err := time.Parse("2006-01-02 15:04", "2025-03-10 "+hhmm)
	require.NoError(t, err)
	return ts
}

func interval(t *testing.T, from, to string) model.Interval {
	return model.Interval{Start: at(t, from), End: at(t, to)}
}

func TestFindFreeSlotSkipsbusyOpening(t *testing.T) {
	// Scenario: busy 10:00-10:15, window 10:00-10:30, 15-minute meeting →
	// first free slot is 10:15, not 10:00.
	fake := &fakeProvider{busy: map[string]calendar.Busy{
		"room": {Intervals: []model.Interval{interval(t, "10:00", "10:15")}},
	}}
	r := NewResolver(fake, zerolog.Nop())

	slot, err := r.FindFreeSlot(context.Background(), []string{"room"}, at(t, "10:00"), at(t, "10:30"), 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, at(t, "10:15"), slot)
}

func TestFindFreeSlotReturnsWindowStartWhenFree(t *testing.T) {
	fake := &fakeProvider{}
	r := NewResolver(fake, zerolog.Nop())

	slot, err := r.FindFreeSlot(context.Background(), []string{"a", "b"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, at(t, "11:00"), slot)
	assert.Equal(t, 1, fake.queries, "one batched query per search")
}

func TestFindFreeSlotMergesAllCalendars(t *testing.T) {
	fake := &fakeProvider{busy: map[string]calendar.Busy{
		"a": {Intervals: []model.Interval{interval(t, "11:00", "11:30")}},
		"b": {Intervals: []model.Interval{interval(t, "11:30", "12:00")}},
	}}
	r := NewResolver(fake, zerolog.Nop())

	slot, err := r.FindFreeSlot(context.Background(), []string{"a", "b"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, at(t, "12:00"), slot)
}

func TestFindFreeSlotHonorsExclusions(t *testing.T) {
	fake := &fakeProvider{}
	r := NewResolver(fake, zerolog.Nop())

	excluded := []model.Interval{interval(t, "11:00", "11:15")}
	slot, err := r.FindFreeSlot(context.Background(), []string{"a"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, excluded)
	require.NoError(t, err)
	assert.Equal(t, at(t, "11:15"), slot)
}

func TestFindFreeSlotAdjacentBusyIsFree(t *testing.T) {
	// Half-open intervals: a meeting ending at 11:15 does not block a
	// slot starting at 11:15.
	fake := &fakeProvider{busy: map[string]calendar.Busy{
		"a": {Intervals: []model.Interval{interval(t, "11:00", "11:15")}},
	}}
	r := NewResolver(fake, zerolog.Nop())

	slot, err := r.FindFreeSlot(context.Background(), []string{"a"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, at(t, "11:15"), slot)
}

func TestFindFreeSlotNoRoom(t *testing.T) {
	fake := &fakeProvider{busy: map[string]calendar.Busy{
		"a": {Intervals: []model.Interval{interval(t, "10:00", "10:30")}},
	}}
	r := NewResolver(fake, zerolog.Nop())

	_, err := r.FindFreeSlot(context.Background(), []string{"a"}, at(t, "10:00"), at(t, "10:30"), 15*time.Minute, nil)
	require.ErrorIs(t, err, model.ErrNoSlot)
}

func TestFindFreeSlotTooShortWindow(t *testing.T) {
	fake := &fakeProvider{}
	r := NewResolver(fake, zerolog.Nop())

	_, err := r.FindFreeSlot(context.Background(), []string{"a"}, at(t, "10:00"), at(t, "10:10"), 15*time.Minute, nil)
	require.ErrorIs(t, err, model.ErrNoSlot)
}

func TestFindFreeSlotFailOpenOnPartialFailure(t *testing.T) {
	fake := &fakeProvider{busy: map[string]calendar.Busy{
		"a": {Err: errors.New("permission denied")},
		"b": {Intervals: []model.Interval{interval(t, "11:00", "11:15")}},
	}}
	r := NewResolver(fake, zerolog.Nop())

	slot, err := r.FindFreeSlot(context.Background(), []string{"a", "b"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, nil)
	require.NoError(t, err)
	assert.Equal(t, at(t, "11:15"), slot)
}

func TestFindFreeSlotAllCalendarsFailed(t *testing.T) {
	fake := &fakeProvider{busy: map[string]calendar.Busy{
		"a": {Err: errors.New("permission denied")},
		"b": {Err: errors.New("not found")},
	}}
	r := NewResolver(fake, zerolog.Nop())

	_, err := r.FindFreeSlot(context.Background(), []string{"a", "b"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, nil)
	require.ErrorIs(t, err, model.ErrAllCalendarsFailed)
}

func TestFindFreeSlotQueryFailure(t *testing.T) {
	fake := &fakeProvider{err: errors.New("network down")}
	r := NewResolver(fake, zerolog.Nop())

	_, err := r.FindFreeSlot(context.Background(), []string{"a"}, at(t, "11:00"), at(t, "15:00"), 15*time.Minute, nil)
	require.Error(t, err)
}
