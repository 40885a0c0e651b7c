package engine

import (
	"fmt"
	"time"
)

// DayKeyLayout is the canonical format of a day key.
const DayKeyLayout = "2006-01-02"

// DayKey normalizes a point in time to the canonical key of the calendar day
// it falls on in the given location. The day boundary is midnight in loc; a
// nil loc means UTC. Every per-day lookup and write in the system goes through
// this function, so two timestamps within the same local calendar day always
// collapse onto the same key.
func DayKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayKeyLayout)
}

// ParseDayKey parses a canonical day key back into a midnight-UTC time, which
// is only used for day arithmetic, never as a wall-clock instant.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.Parse(DayKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// PrevDay returns the day key of the calendar day before key.
func PrevDay(key string) (string, error) {
	t, err := ParseDayKey(key)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -1).Format(DayKeyLayout), nil
}

// ElapsedDay maps "now" onto a 1-based day number within a fixed-duration
// program that began on start: day 1 is the calendar day of start itself.
// The result is clamped to [1, duration], so a program that has run past its
// duration stays pinned at its final day. Both instants are resolved against
// the same location so the count follows the user's day boundary.
func ElapsedDay(start, now time.Time, loc *time.Location, duration int) int {
	if loc == nil {
		loc = time.UTC
	}
	startDay, _ := ParseDayKey(DayKey(start, loc))
	nowDay, _ := ParseDayKey(DayKey(now, loc))

	day := int(nowDay.Sub(startDay).Hours()/24) + 1
	if day < 1 {
		day = 1
	}
	if day > duration {
		day = duration
	}
	return day
}
