package engine

import "math"

// ConsistencyThreshold is the streak length at which an entity counts toward
// the consistency score.
const ConsistencyThreshold = 7

// EntityStats is the per-entity input to the aggregate metrics: the entity's
// current streak and whether it has been completed today.
type EntityStats struct {
	Streak         int
	CompletedToday bool
}

// Summary is the cross-entity dashboard view. CompletionRate and
// ConsistencyScore are percentages in [0, 100]; AverageStreak is a mean in
// days. All three are derived on read and never persisted.
type Summary struct {
	CompletionRate   float64 `json:"completion_rate"`
	AverageStreak    float64 `json:"average_streak"`
	ConsistencyScore float64 `json:"consistency_score"`
}

// Metrics computes the aggregate summary over a user's full entity set. An
// empty set yields a zero-valued summary rather than an error.
func Metrics(stats []EntityStats) Summary {
	if len(stats) == 0 {
		return Summary{}
	}

	completedToday, streakSum, consistent := 0, 0, 0
	for _, s := range stats {
		if s.CompletedToday {
			completedToday++
		}
		streakSum += s.Streak
		if s.Streak >= ConsistencyThreshold {
			consistent++
		}
	}

	n := float64(len(stats))
	return Summary{
		CompletionRate:   round1(float64(completedToday) / n * 100),
		AverageStreak:    round1(float64(streakSum) / n),
		ConsistencyScore: round1(float64(consistent) / n * 100),
	}
}

// ProgressPercent is a challenge's completion percentage, rounded to the
// nearest whole percent for display.
func ProgressPercent(completedDays, duration int) int {
	if duration <= 0 {
		return 0
	}
	return int(math.Round(float64(completedDays) / float64(duration) * 100))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
