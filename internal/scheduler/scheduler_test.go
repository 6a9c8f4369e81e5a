package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/CaputoDavide93/new-starters-meetup/internal/availability"
	"github.com/CaputoDavide93/new-starters-meetup/internal/calendar"
	"github.com/CaputoDavide93/new-starters-meetup/internal/config"
	"github.com/CaputoDavide93/new-starters-meetup/internal/model"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store"
	"github.com/CaputoDavide93/new-starters-meetup/internal/store/memstore"
	"github.com/CaputoDavide93/new-starters-meetup/internal/weights"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeCal struct {
	mu         sync.Mutex
	busy       map[string][]model.Interval
	onFreeBusy func()
	events     []calendar.Event
	createErr  error
}

func (f *fakeCal) FreeBusy(_ context.Context, calendarIDs []string, _, _ time.Time) (map[string]calendar.Busy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onFreeBusy != nil {
		f.onFreeBusy()
	}
	out := make(map[string]calendar.Busy, len(calendarIDs))
	for _, id := range calendarIDs {
		out[id] = calendar.Busy{Intervals: f.busy[id]}
	}
	return out, nil
}

func (f *fakeCal) CreateEvent(_ context.Context, ev calendar.Event) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.events = append(f.events, ev)
	return fmt.Sprintf("evt-%d", len(f.events)), nil
}

type fakeDirectory struct {
	members []model.Member
	err     error
}

func (f *fakeDirectory) GroupMembers(context.Context, string) ([]model.Member, error) {
	return f.members, f.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	posts []string
}

func (n *recordingNotifier) Post(_ context.Context, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, text)
	return nil
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.posts...)
}

func (n *recordingNotifier) containing(sub string) int {
	count := 0
	for _, p := range n.all() {
		if strings.Contains(p, sub) {
			count++
		}
	}
	return count
}

type fixture struct {
	st    store.Store
	cal   *fakeCal
	dir   *fakeDirectory
	posts *recordingNotifier
	clk   *fakeClock
	sched *Scheduler
}

// monday is a Monday at 09:00 UTC used as the run's wall-clock start.
var monday = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func day(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

func at(d, hour, min int) time.Time {
	return time.Date(2026, 3, d, hour, min, 0, 0, time.UTC)
}

func newFixture(t *testing.T, rosterEmails ...string) *fixture {
	t.Helper()
	members := make([]model.Member, 0, len(rosterEmails))
	for _, e := range rosterEmails {
		members = append(members, model.Member{Email: e})
	}

	f := &fixture{
		st:    memstore.New(),
		cal:   &fakeCal{busy: map[string][]model.Interval{}},
		dir:   &fakeDirectory{members: members},
		posts: &recordingNotifier{},
		clk:   &fakeClock{t: monday},
	}

	log := zerolog.Nop()
	w := weights.New(f.st, "coffee", log, weights.WithRand(rand.New(rand.NewSource(1))))
	modes := map[string]Mode{
		"coffee": {
			Weights:             w,
			Directory:           f.dir,
			GroupID:             "grp-1",
			TitleTemplate:       "☕️ Coffee: {person1} & {person2}",
			DescriptionTemplate: "15 minutes for {person1} and {person2} to get to know each other.",
		},
	}

	windowStart, err := config.ParseClock("11:00")
	require.NoError(t, err)
	windowEnd, err := config.ParseClock("15:00")
	require.NoError(t, err)

	f.sched = New(modes, availability.NewResolver(f.cal, log), f.cal, f.posts, Options{
		SharedCalendarID: "intros@example.com",
		Location:         time.UTC,
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
		MeetingDuration:  15 * time.Minute,
		CadenceDays:      2,
		MaxSearchDays:    7,
		SoftDeadline:     840 * time.Second,
		HardDeadline:     870 * time.Second,
	}, log, WithClock(f.clk.Now))
	return f
}

func request(start time.Time, meetings int, initiators ...string) model.BookingRequest {
	return model.BookingRequest{
		Mode:                 "coffee",
		Channel:              "C123",
		Initiators:           initiators,
		StartDate:            start,
		MeetingsPerInitiator: meetings,
	}
}

func TestRunBooksMeetingsWithCadence(t *testing.T) {
	f := newFixture(t, "ada@example.com", "bob@example.com", "cat@example.com", "dan@example.com")

	summary, err := f.sched.Run(context.Background(), request(day(2), 2, "new@example.com"))
	require.NoError(t, err)
	require.Len(t, summary.Successes, 2)
	require.Empty(t, summary.Failures)

	require.Len(t, f.cal.events, 2)
	require.Equal(t, at(2, 11, 0), f.cal.events[0].Start, "first meeting on the start day at window open")
	require.Equal(t, at(4, 11, 0), f.cal.events[1].Start, "second meeting two business days later")

	for _, ev := range f.cal.events {
		require.Equal(t, "intros@example.com", ev.CalendarID)
		require.Contains(t, ev.Attendees, "new@example.com")
		require.Len(t, ev.Attendees, 2)
		require.Contains(t, ev.Title, "☕️ Coffee:")
		require.Equal(t, 15*time.Minute, ev.Duration)
	}
	require.NotEqual(t, f.cal.events[0].Attendees[1], f.cal.events[1].Attendees[1], "partners are distinct within a run")

	// Each chosen partner was charged exactly one unit of weight.
	for _, ev := range f.cal.events {
		got, err := f.st.Participants().Get(context.Background(), "coffee", ev.Attendees[1])
		require.NoError(t, err)
		require.Equal(t, int64(1), got.Weight)
	}
}

func TestRunSkipsWeekendForCadence(t *testing.T) {
	f := newFixture(t, "ada@example.com", "bob@example.com", "cat@example.com")
	f.clk.t = time.Date(2026, 3, 6, 9, 0, 0, 0, time.UTC) // Friday

	summary, err := f.sched.Run(context.Background(), request(day(6), 2, "new@example.com"))
	require.NoError(t, err)
	require.Len(t, summary.Successes, 2)

	require.Equal(t, at(6, 11, 0), f.cal.events[0].Start)
	require.Equal(t, at(10, 11, 0), f.cal.events[1].Start, "two business days past Friday is Tuesday")
}

func TestRunSkipsBusyDay(t *testing.T) {
	f := newFixture(t, "bob@example.com")
	f.cal.busy["bob@example.com"] = []model.Interval{{Start: at(2, 11, 0), End: at(2, 15, 0)}}

	summary, err := f.sched.Run(context.Background(), request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.Len(t, summary.Successes, 1)
	require.Equal(t, at(3, 11, 0), f.cal.events[0].Start, "Monday fully booked, falls through to Tuesday")
}

func TestRunPartnersDistinctAcrossInitiators(t *testing.T) {
	f := newFixture(t, "ada@example.com", "bob@example.com", "cat@example.com", "dan@example.com", "eve@example.com")

	summary, err := f.sched.Run(context.Background(), request(day(2), 1, "new1@example.com", "new2@example.com", "new3@example.com"))
	require.NoError(t, err)
	require.Len(t, summary.Successes, 3)

	seen := map[string]bool{}
	for _, ev := range f.cal.events {
		partner := ev.Attendees[1]
		require.False(t, seen[partner], "partner %s reused across initiators", partner)
		seen[partner] = true
	}
}

func TestRunNoPartnerAvailable(t *testing.T) {
	f := newFixture(t, "new@example.com") // roster holds only the initiator

	summary, err := f.sched.Run(context.Background(), request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.Empty(t, summary.Successes)
	require.Equal(t, []string{"no slot for new@example.com"}, summary.Failures)
	require.Equal(t, 1, f.posts.containing("No partner available"))
	require.Empty(t, f.cal.events)
}

func TestRunHardDeadlineTruncates(t *testing.T) {
	f := newFixture(t,
		"a@example.com", "b@example.com", "c@example.com", "d@example.com",
		"e@example.com", "f@example.com", "g@example.com")
	// Every availability query burns five minutes of wall clock.
	f.cal.onFreeBusy = func() { f.clk.Advance(300 * time.Second) }

	summary, err := f.sched.Run(context.Background(), request(day(2), 1,
		"n1@example.com", "n2@example.com", "n3@example.com", "n4@example.com", "n5@example.com"))
	require.NoError(t, err)

	// 300s per initiator against an 870s hard deadline: three get through,
	// the rest are reported as failures.
	require.Len(t, summary.Successes, 3)
	require.Equal(t, []string{
		"deadline exceeded before processing n4@example.com",
		"deadline exceeded before processing n5@example.com",
	}, summary.Failures)
	require.Equal(t, 1, f.posts.containing("taking longer than expected"))
}

func TestRunCleansUpDepartedUsers(t *testing.T) {
	f := newFixture(t, "ada@example.com")
	ctx := context.Background()

	// Two participants left the group since the previous run.
	for _, e := range []string{"ada@example.com", "gone1@example.com", "gone2@example.com"} {
		require.NoError(t, f.st.Participants().EnsurePresent(ctx, "coffee", e))
	}
	require.NoError(t, f.st.Rosters().Put(ctx, "coffee", []string{"ada@example.com", "gone1@example.com", "gone2@example.com"}))

	summary, err := f.sched.Run(ctx, request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.Equal(t, 2, summary.Removed)
	require.Equal(t, 1, f.posts.containing("Cleaned up 2 departed"))
	require.Len(t, summary.Successes, 1)
	require.Contains(t, f.cal.events[0].Attendees, "ada@example.com")
}

func TestRunDirectoryFailureKeepsPreviousRoster(t *testing.T) {
	f := newFixture(t)
	f.dir.err = fmt.Errorf("graph: 503")
	ctx := context.Background()
	require.NoError(t, f.st.Rosters().Put(ctx, "coffee", []string{"ada@example.com"}))

	summary, err := f.sched.Run(ctx, request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.Len(t, summary.Successes, 1, "previous roster still serves the run")
	require.Equal(t, 1, f.posts.containing("Could not refresh"))
}

func TestRunEventCreationFailure(t *testing.T) {
	f := newFixture(t, "ada@example.com")
	f.cal.createErr = fmt.Errorf("calendar: quota exceeded")

	summary, err := f.sched.Run(context.Background(), request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.Empty(t, summary.Successes)
	require.Len(t, summary.Failures, 1)
	require.Contains(t, summary.Failures[0], "event creation failed")

	// The partner keeps weight zero when the booking never materialized.
	got, err := f.st.Participants().Get(context.Background(), "coffee", "ada@example.com")
	require.NoError(t, err)
	require.Equal(t, int64(0), got.Weight)
}

func TestRunUnknownMode(t *testing.T) {
	f := newFixture(t, "ada@example.com")
	req := request(day(2), 1, "new@example.com")
	req.Mode = "tea"

	_, err := f.sched.Run(context.Background(), req)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestRunPostsSummary(t *testing.T) {
	f := newFixture(t, "ada@example.com", "bob@example.com")

	_, err := f.sched.Run(context.Background(), request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.Equal(t, 1, f.posts.containing("Booking complete! 1 succeeded, 0 failed"))
	require.Equal(t, 1, f.posts.containing("✅"))
	require.Equal(t, 1, f.posts.containing("02 Mar 11:00"))
}

func TestAddBusinessDays(t *testing.T) {
	cases := []struct {
		name string
		from time.Time
		n    int
		want time.Time
	}{
		{"monday plus two", day(2), 2, day(4)},
		{"thursday plus two spans weekend", day(5), 2, day(9)},
		{"friday plus two spans weekend", day(6), 2, day(10)},
		{"saturday start counts from monday", day(7), 1, day(9)},
		{"zero is identity", day(2), 0, day(2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, addBusinessDays(tc.from, tc.n))
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := renderTemplate("☕️ Coffee: {person1} & {person2}", map[string]string{
		"person1": "Ada Lovelace",
		"person2": "Bob Noble",
	})
	require.NoError(t, err)
	require.Equal(t, "☕️ Coffee: Ada Lovelace & Bob Noble", out)

	_, err = renderTemplate("Hi {nobody}", map[string]string{"person1": "Ada"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "nobody")
}

func TestEventTextFallback(t *testing.T) {
	f := newFixture(t, "ada@example.com")
	mode := f.sched.modes["coffee"]
	mode.TitleTemplate = "broken {typo}"

	title, desc := f.sched.eventText(mode, "New Starter", "Ada Lovelace", "new@example.com", "ada@example.com", zerolog.Nop())
	require.Equal(t, "Intro: New Starter & Ada Lovelace", title)
	require.Contains(t, desc, "New Starter")
}

func TestRunnerEnqueueAndExecute(t *testing.T) {
	f := newFixture(t, "ada@example.com", "bob@example.com")
	runner := NewRunner(f.sched, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runner.Start(ctx)

	id, err := runner.Enqueue(request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		return f.posts.containing("Booking complete") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerQueueFull(t *testing.T) {
	f := newFixture(t, "ada@example.com")
	runner := NewRunner(f.sched, 1, zerolog.Nop()) // worker never started

	_, err := runner.Enqueue(request(day(2), 1, "new@example.com"))
	require.NoError(t, err)
	_, err = runner.Enqueue(request(day(2), 1, "new@example.com"))
	require.ErrorIs(t, err, ErrQueueFull)
}
