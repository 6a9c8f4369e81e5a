package scheduler

import (
	"strings"
	"time"
)

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// dateOnly truncates t to midnight in its own location.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// addBusinessDays advances n weekdays past d. Saturdays and Sundays do not
// count; a result landing on one is skipped forward.
func addBusinessDays(d time.Time, n int) time.Time {
	cur := d
	for added := 0; added < n; {
		cur = cur.AddDate(0, 0, 1)
		if !isWeekend(cur) {
			added++
		}
	}
	return cur
}
