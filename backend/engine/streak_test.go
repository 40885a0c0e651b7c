package engine

import (
	"testing"

	"github.com/ascentapp/ascent/backend/models"
	"github.com/stretchr/testify/assert"
)

// days builds completion records for the given day keys, all marked completed.
func days(keys ...string) []models.CompletionRecord {
	records := make([]models.CompletionRecord, 0, len(keys))
	for _, k := range keys {
		records = append(records, models.CompletionRecord{Day: k, Completed: true})
	}
	return records
}

func TestCurrentStreakEmptyHistory(t *testing.T) {
	assert.Equal(t, 0, CurrentStreak(nil, "2024-03-10"))
}

func TestCurrentStreakSingleDay(t *testing.T) {
	records := days("2024-03-10")
	assert.Equal(t, 1, CurrentStreak(records, "2024-03-10"))
}

func TestCurrentStreakMissedTodayDoesNotBreak(t *testing.T) {
	// Today has no record yet; the streak counts from yesterday until the day
	// fully elapses.
	records := days("2024-03-08", "2024-03-09")
	assert.Equal(t, 2, CurrentStreak(records, "2024-03-10"))

	// The next day, with still nothing for the 10th, the gap is real.
	assert.Equal(t, 0, CurrentStreak(records, "2024-03-11"))
}

func TestCurrentStreakGapResets(t *testing.T) {
	// Completions on days 1,2,3,5,6 of March; day 4 missing. Measured as of
	// day 6 the current streak is 2 and the longest is 3.
	records := days("2024-03-01", "2024-03-02", "2024-03-03", "2024-03-05", "2024-03-06")
	assert.Equal(t, 2, CurrentStreak(records, "2024-03-06"))
	assert.Equal(t, 3, LongestStreak(records))
}

func TestCurrentStreakToggledOffTodayRecomputes(t *testing.T) {
	// Toggling today off leaves an explicit completed=false record; history
	// before today must still be honored, not just a counter decrement.
	records := days("2024-03-08", "2024-03-09")
	records = append(records, models.CompletionRecord{Day: "2024-03-10", Completed: false})
	assert.Equal(t, 2, CurrentStreak(records, "2024-03-10"))
}

func TestCurrentStreakCrossesMonthBoundary(t *testing.T) {
	records := days("2024-02-28", "2024-02-29", "2024-03-01")
	assert.Equal(t, 3, CurrentStreak(records, "2024-03-01"))
}

func TestLongestStreakEmptyHistory(t *testing.T) {
	assert.Equal(t, 0, LongestStreak(nil))
}

func TestLongestStreakIgnoresIncompleteRecords(t *testing.T) {
	records := days("2024-03-01", "2024-03-02")
	records = append(records, models.CompletionRecord{Day: "2024-03-03", Completed: false})
	records = append(records, days("2024-03-04")...)
	assert.Equal(t, 2, LongestStreak(records))
}

func TestLongestStreakNeverBelowCurrent(t *testing.T) {
	// For any history, currentStreak <= longestStreak must hold.
	histories := [][]models.CompletionRecord{
		nil,
		days("2024-03-10"),
		days("2024-03-05", "2024-03-06", "2024-03-09", "2024-03-10"),
		days("2024-03-01", "2024-03-02", "2024-03-03", "2024-03-05", "2024-03-06"),
	}
	for _, records := range histories {
		current := CurrentStreak(records, "2024-03-10")
		longest := LongestStreak(records)
		assert.LessOrEqual(t, current, longest, "current streak must not exceed longest")
	}
}
