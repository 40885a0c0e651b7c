package tracker

import (
	"context"
	"time"

	"github.com/ascentapp/ascent/backend/engine"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Summary computes the user's dashboard metrics over all habits and rules.
// The result is derived on read from the entities' ledger state and never
// persisted; an empty entity set yields zeros.
func (t *Tracker) Summary(ctx context.Context, userID primitive.ObjectID, now time.Time) (engine.Summary, error) {
	habits, err := t.ListHabits(ctx, userID, now)
	if err != nil {
		return engine.Summary{}, err
	}
	rules, err := t.ListRules(ctx, userID, now)
	if err != nil {
		return engine.Summary{}, err
	}

	stats := make([]engine.EntityStats, 0, len(habits)+len(rules))
	for _, h := range habits {
		stats = append(stats, engine.EntityStats{Streak: h.CurrentStreak, CompletedToday: h.CompletedToday})
	}
	for _, r := range rules {
		stats = append(stats, engine.EntityStats{Streak: r.CurrentStreak, CompletedToday: r.CompletedToday})
	}

	return engine.Metrics(stats), nil
}
