package engine

import (
	"sort"

	"github.com/ascentapp/ascent/backend/models"
)

// CurrentStreak derives the length of the run of consecutive completed days
// ending at today, given the entity's completion records and today's day key.
//
// Policy: a day that has not been marked yet does not break the streak until
// it has fully elapsed. If today is completed it counts; if today is absent or
// toggled off, the walk simply starts at yesterday instead. Any missing or
// not-completed day before that ends the streak.
func CurrentStreak(records []models.CompletionRecord, today string) int {
	completed := completedSet(records)

	streak := 0
	day := today
	if completed[day] {
		streak++
	}

	for {
		prev, err := PrevDay(day)
		if err != nil {
			return streak
		}
		if !completed[prev] {
			return streak
		}
		streak++
		day = prev
	}
}

// LongestStreak derives the maximum run of consecutive completed days across
// the entity's entire history. A broken run never lowers the result.
func LongestStreak(records []models.CompletionRecord) int {
	completed := completedSet(records)
	if len(completed) == 0 {
		return 0
	}

	days := make([]string, 0, len(completed))
	for day := range completed {
		days = append(days, day)
	}
	sort.Strings(days)

	longest, run := 0, 0
	prevKey := ""
	for _, day := range days {
		if prevKey != "" {
			if prev, err := PrevDay(day); err == nil && prev == prevKey {
				run++
			} else {
				run = 1
			}
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
		prevKey = day
	}
	return longest
}

// completedSet reduces records to the set of day keys marked completed.
// Records with completed=false are equivalent to absent days.
func completedSet(records []models.CompletionRecord) map[string]bool {
	set := make(map[string]bool, len(records))
	for _, r := range records {
		if r.Completed {
			set[r.Day] = true
		}
	}
	return set
}
