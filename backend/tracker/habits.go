package tracker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ascentapp/ascent/backend/engine"
	"github.com/ascentapp/ascent/backend/models"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// HabitView is a habit together with its ledger-derived state, which is what
// the API returns: clients never see the raw ledger.
type HabitView struct {
	models.Habit
	CompletedToday bool `json:"completed_today"`
}

// CreateHabit validates and stores a new habit for the user.
func (t *Tracker) CreateHabit(ctx context.Context, userID primitive.ObjectID, title, category string, reminderHour *int, now time.Time) (*models.Habit, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Msg: "habit title is required"}
	}
	if reminderHour != nil && (*reminderHour < 0 || *reminderHour > 23) {
		return nil, &ValidationError{Msg: "reminder hour must be between 0 and 23"}
	}

	habit := &models.Habit{
		UserID:       userID,
		Title:        title,
		Category:     category,
		ReminderHour: reminderHour,
		CreatedAt:    now,
	}
	return t.store.AddHabit(ctx, habit)
}

// ToggleHabit flips today's completion for a habit and returns the habit with
// its streaks recomputed from the ledger. "Today" is resolved against the
// owner's day boundary.
func (t *Tracker) ToggleHabit(ctx context.Context, userID, habitID primitive.ObjectID, now time.Time) (*HabitView, error) {
	habit, err := t.findOwnedHabit(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := engine.DayKey(now, loc)

	completed := true
	if existing, err := t.store.FindCompletion(ctx, habitID, today); err == nil {
		completed = !existing.Completed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if _, err := t.store.UpsertCompletion(ctx, habitID, today, completed); err != nil {
		return nil, err
	}

	return t.habitView(ctx, habit, today)
}

// ListHabits returns the user's habits with ledger-derived state.
func (t *Tracker) ListHabits(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]HabitView, error) {
	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := engine.DayKey(now, loc)

	habits, err := t.store.FindHabitsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]HabitView, 0, len(habits))
	for i := range habits {
		view, err := t.habitView(ctx, &habits[i], today)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// HabitHistory returns the habit's completion records, most-recent-first.
func (t *Tracker) HabitHistory(ctx context.Context, userID, habitID primitive.ObjectID) ([]models.CompletionRecord, error) {
	if _, err := t.findOwnedHabit(ctx, userID, habitID); err != nil {
		return nil, err
	}
	return t.store.ListCompletions(ctx, habitID)
}

// DeleteHabit removes a habit and its completion records.
func (t *Tracker) DeleteHabit(ctx context.Context, userID, habitID primitive.ObjectID) error {
	if _, err := t.findOwnedHabit(ctx, userID, habitID); err != nil {
		return err
	}
	_, err := t.store.DeleteHabit(ctx, habitID)
	return err
}

// habitView derives the habit's current state from the ledger and reconciles
// the stored streak counters when they have drifted. The ledger is
// authoritative; the counters on the habit are only a cache.
func (t *Tracker) habitView(ctx context.Context, habit *models.Habit, today string) (*HabitView, error) {
	records, err := t.store.ListCompletions(ctx, habit.ID)
	if err != nil {
		return nil, err
	}

	current := engine.CurrentStreak(records, today)
	longest := engine.LongestStreak(records)

	if habit.CurrentStreak != current || habit.LongestStreak != longest {
		if _, err := t.store.UpdateHabitStreaks(ctx, habit.ID, current, longest); err != nil {
			return nil, err
		}
		habit.CurrentStreak = current
		habit.LongestStreak = longest
	}

	completedToday := false
	for _, r := range records {
		if r.Day == today {
			completedToday = r.Completed
			break
		}
	}

	return &HabitView{Habit: *habit, CompletedToday: completedToday}, nil
}

func (t *Tracker) findOwnedHabit(ctx context.Context, userID, habitID primitive.ObjectID) (*models.Habit, error) {
	habit, err := t.store.FindHabit(ctx, habitID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "habit"}
		}
		return nil, err
	}
	if habit.UserID != userID {
		return nil, &ForbiddenError{Resource: "habit"}
	}
	return habit, nil
}
