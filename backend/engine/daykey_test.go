package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKeySameDayCollapses(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	morning := time.Date(2024, 3, 10, 0, 30, 0, 0, loc)
	night := time.Date(2024, 3, 10, 23, 59, 59, 0, loc)

	assert.Equal(t, DayKey(morning, loc), DayKey(night, loc))
	assert.Equal(t, "2024-03-10", DayKey(morning, loc))
}

func TestDayKeyRespectsZoneBoundary(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}

	// 01:00 UTC is still the previous evening in New York.
	instant := time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-15", DayKey(instant, time.UTC))
	assert.Equal(t, "2024-06-14", DayKey(instant, loc))
}

func TestDayKeyNilLocationDefaultsToUTC(t *testing.T) {
	instant := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-06-15", DayKey(instant, nil))
}

func TestPrevDay(t *testing.T) {
	prev, err := PrevDay("2024-03-01")
	assert.NoError(t, err)
	assert.Equal(t, "2024-02-29", prev)

	_, err = PrevDay("not-a-day")
	assert.Error(t, err)
}

func TestElapsedDay(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	// Day 1 is the start day itself.
	assert.Equal(t, 1, ElapsedDay(start, start, time.UTC, 40))

	// Ten days in, regardless of time of day.
	now := time.Date(2024, 1, 11, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, 11, ElapsedDay(start, now, time.UTC, 40))

	// Clamped to the duration once the program has run its course.
	now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 40, ElapsedDay(start, now, time.UTC, 40))

	// Never below 1, even with a start date in the future.
	now = time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, ElapsedDay(start, now, time.UTC, 40))
}
