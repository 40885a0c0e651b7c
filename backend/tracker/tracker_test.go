package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestTracker(t *testing.T) (*Tracker, storage.StorageInterface, *models.User) {
	t.Helper()
	store := storage.NewMemoryStorage()
	user, err := store.AddUser(context.Background(), &models.User{
		Username:     "tester",
		Email:        "tester@example.com",
		PasswordHash: "irrelevant",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to add test user: %v", err)
	}
	return New(store), store, user
}

// seedCompletions writes completed records for the given day keys directly
// into the ledger.
func seedCompletions(t *testing.T, store storage.StorageInterface, entityID primitive.ObjectID, days ...string) {
	t.Helper()
	for _, day := range days {
		if _, err := store.UpsertCompletion(context.Background(), entityID, day, true); err != nil {
			t.Fatalf("Failed to seed completion: %v", err)
		}
	}
}

func TestCreateHabitValidation(t *testing.T) {
	tr, _, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	_, err := tr.CreateHabit(context.Background(), user.ID, "  ", "", nil, now)
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)

	badHour := 24
	_, err = tr.CreateHabit(context.Background(), user.ID, "Read", "", &badHour, now)
	assert.ErrorAs(t, err, &vErr)

	habit, err := tr.CreateHabit(context.Background(), user.ID, "Read", "learning", nil, now)
	assert.NoError(t, err)
	assert.Equal(t, "Read", habit.Title)
}

func TestToggleHabitRoundTrip(t *testing.T) {
	tr, store, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	habit, err := tr.CreateHabit(context.Background(), user.ID, "Meditate", "", nil, now)
	if err != nil {
		t.Fatalf("Failed to create habit: %v", err)
	}
	seedCompletions(t, store, habit.ID, "2024-03-08", "2024-03-09")

	before, err := tr.ListHabits(context.Background(), user.ID, now)
	assert.NoError(t, err)
	assert.Equal(t, 2, before[0].CurrentStreak)

	// Toggle on: today joins the run.
	view, err := tr.ToggleHabit(context.Background(), user.ID, habit.ID, now)
	assert.NoError(t, err)
	assert.True(t, view.CompletedToday)
	assert.Equal(t, 3, view.CurrentStreak)

	// Toggle off again: the streak is recomputed from history, returning to
	// its pre-toggle value rather than being blindly decremented.
	view, err = tr.ToggleHabit(context.Background(), user.ID, habit.ID, now)
	assert.NoError(t, err)
	assert.False(t, view.CompletedToday)
	assert.Equal(t, before[0].CurrentStreak, view.CurrentStreak)
}

func TestToggleHabitStreakInvariant(t *testing.T) {
	tr, _, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	habit, err := tr.CreateHabit(context.Background(), user.ID, "Stretch", "", nil, now)
	assert.NoError(t, err)

	// Any sequence of toggles preserves currentStreak <= longestStreak.
	for i := 0; i < 5; i++ {
		view, err := tr.ToggleHabit(context.Background(), user.ID, habit.ID, now)
		assert.NoError(t, err)
		assert.LessOrEqual(t, view.CurrentStreak, view.LongestStreak)
	}
}

func TestHabitStreakReconciledOnRead(t *testing.T) {
	tr, store, user := newTestTracker(t)
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)

	habit, err := tr.CreateHabit(context.Background(), user.ID, "Journal", "", nil, now)
	assert.NoError(t, err)

	// Drift the stored counter away from what the ledger supports.
	_, err = store.UpdateHabitStreaks(context.Background(), habit.ID, 99, 99)
	assert.NoError(t, err)
	seedCompletions(t, store, habit.ID, "2024-03-01", "2024-03-02", "2024-03-03", "2024-03-05", "2024-03-06")

	views, err := tr.ListHabits(context.Background(), user.ID, now)
	assert.NoError(t, err)
	assert.Equal(t, 2, views[0].CurrentStreak, "stored streak must be reconciled from the ledger")
	assert.Equal(t, 3, views[0].LongestStreak)

	// The reconciled values are written back to the cache.
	stored, err := store.FindHabit(context.Background(), habit.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, stored.CurrentStreak)
	assert.Equal(t, 3, stored.LongestStreak)
}

func TestHabitOwnership(t *testing.T) {
	tr, store, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	other, err := store.AddUser(context.Background(), &models.User{
		Username: "other", Email: "other@example.com",
	})
	assert.NoError(t, err)

	habit, err := tr.CreateHabit(context.Background(), user.ID, "Run", "", nil, now)
	assert.NoError(t, err)

	var nfErr *NotFoundError
	_, err = tr.ToggleHabit(context.Background(), user.ID, primitive.NewObjectID(), now)
	assert.ErrorAs(t, err, &nfErr)

	var fErr *ForbiddenError
	_, err = tr.ToggleHabit(context.Background(), other.ID, habit.ID, now)
	assert.ErrorAs(t, err, &fErr)
}

func TestToggleHabitUserTimezoneBoundary(t *testing.T) {
	tr, store, _ := newTestTracker(t)

	// 01:00 UTC on March 11 is still the evening of March 10 in New York.
	nyUser, err := store.AddUser(context.Background(), &models.User{
		Username: "ny", Email: "ny@example.com", Timezone: "America/New_York",
	})
	assert.NoError(t, err)

	now := time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC)
	habit, err := tr.CreateHabit(context.Background(), nyUser.ID, "Wind down", "", nil, now)
	assert.NoError(t, err)

	_, err = tr.ToggleHabit(context.Background(), nyUser.ID, habit.ID, now)
	assert.NoError(t, err)

	record, err := store.FindCompletion(context.Background(), habit.ID, "2024-03-10")
	assert.NoError(t, err)
	assert.True(t, record.Completed)
}

func TestBreakRuleCooldown(t *testing.T) {
	tr, _, user := newTestTracker(t)
	t0 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	rule, err := tr.CreateRule(context.Background(), user.ID, "No sugar", "health", t0)
	if err != nil {
		t.Fatalf("Failed to create rule: %v", err)
	}

	// First break succeeds and resets the streak.
	view, err := tr.BreakRule(context.Background(), user.ID, rule.ID, t0)
	assert.NoError(t, err)
	assert.Equal(t, 0, view.CurrentStreak)
	assert.True(t, view.LastViolationAt.Equal(t0))

	// One hour later: rejected, ~23 hours left.
	_, err = tr.BreakRule(context.Background(), user.ID, rule.ID, t0.Add(time.Hour))
	var cdErr *CooldownActiveError
	assert.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 23, cdErr.RemainingHours())

	// 25 hours later the window has passed.
	view, err = tr.BreakRule(context.Background(), user.ID, rule.ID, t0.Add(25*time.Hour))
	assert.NoError(t, err)
	assert.True(t, view.LastViolationAt.Equal(t0.Add(25*time.Hour)))
}

func TestBreakRuleRemainingRoundsUp(t *testing.T) {
	tr, _, user := newTestTracker(t)
	t0 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	rule, err := tr.CreateRule(context.Background(), user.ID, "No late snacks", "", t0)
	assert.NoError(t, err)

	_, err = tr.BreakRule(context.Background(), user.ID, rule.ID, t0)
	assert.NoError(t, err)

	// 30 minutes in, 23.5 hours remain: displayed as 24.
	_, err = tr.BreakRule(context.Background(), user.ID, rule.ID, t0.Add(30*time.Minute))
	var cdErr *CooldownActiveError
	assert.ErrorAs(t, err, &cdErr)
	assert.Equal(t, 24, cdErr.RemainingHours())
}

func TestBreakRuleZeroesStreakForTheDay(t *testing.T) {
	tr, store, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	rule, err := tr.CreateRule(context.Background(), user.ID, "No doomscrolling", "", now)
	assert.NoError(t, err)
	seedCompletions(t, store, rule.ID, "2024-03-08", "2024-03-09")

	view, err := tr.BreakRule(context.Background(), user.ID, rule.ID, now)
	assert.NoError(t, err)
	assert.Equal(t, 0, view.CurrentStreak, "a violation today zeroes the current streak")
	assert.Equal(t, 2, view.LongestStreak, "a broken run never lowers the longest streak")
}

func TestCheckOffDayBounds(t *testing.T) {
	tr, _, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// A 40-day challenge started 10 days ago is on elapsed day 11.
	start := now.AddDate(0, 0, -10)
	challenge, err := tr.CreateChallenge(context.Background(), user.ID, "40 days of writing", 40, start, now)
	if err != nil {
		t.Fatalf("Failed to create challenge: %v", err)
	}

	// Day 15 is still in the future.
	_, err = tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 15, true, now)
	var dayErr *InvalidDayError
	assert.ErrorAs(t, err, &dayErr)

	// Day 5 has elapsed.
	view, err := tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 5, true, now)
	assert.NoError(t, err)
	assert.Equal(t, []int{5}, view.CompletedDays)
	assert.Equal(t, 11, view.ElapsedDay)

	// Day numbers outside [1, duration] are always invalid.
	_, err = tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 0, true, now)
	assert.ErrorAs(t, err, &dayErr)
	_, err = tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 41, true, now)
	assert.ErrorAs(t, err, &dayErr)
}

func TestCheckOffDayUncheck(t *testing.T) {
	tr, _, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	challenge, err := tr.CreateChallenge(context.Background(), user.ID, "Cold showers", 70, now.AddDate(0, 0, -20), now)
	assert.NoError(t, err)

	_, err = tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 12, true, now)
	assert.NoError(t, err)
	view, err := tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 12, false, now)
	assert.NoError(t, err)
	assert.Empty(t, view.CompletedDays)
	assert.Equal(t, 0, view.ProgressPercent)
}

func TestChallengeProgressPercent(t *testing.T) {
	tr, _, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	challenge, err := tr.CreateChallenge(context.Background(), user.ID, "Pushups", 40, now.AddDate(0, 0, -39), now)
	assert.NoError(t, err)

	for day := 1; day <= 10; day++ {
		_, err = tr.CheckOffDay(context.Background(), user.ID, challenge.ID, day, true, now)
		assert.NoError(t, err)
	}

	views, err := tr.ListChallenges(context.Background(), user.ID, now)
	assert.NoError(t, err)
	assert.Equal(t, 25, views[0].ProgressPercent)
	assert.Equal(t, 40, views[0].ElapsedDay)
}

func TestSummaryEmpty(t *testing.T) {
	tr, _, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	summary, err := tr.Summary(context.Background(), user.ID, now)
	assert.NoError(t, err)
	assert.Equal(t, 0.0, summary.CompletionRate)
	assert.Equal(t, 0.0, summary.AverageStreak)
	assert.Equal(t, 0.0, summary.ConsistencyScore)
}

func TestSummary(t *testing.T) {
	tr, store, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	habit, err := tr.CreateHabit(context.Background(), user.ID, "Read", "", nil, now)
	assert.NoError(t, err)
	// Eight straight days through today: consistent and completed today.
	seedCompletions(t, store, habit.ID,
		"2024-03-03", "2024-03-04", "2024-03-05", "2024-03-06",
		"2024-03-07", "2024-03-08", "2024-03-09", "2024-03-10")

	_, err = tr.CreateRule(context.Background(), user.ID, "No sugar", "", now)
	assert.NoError(t, err)

	summary, err := tr.Summary(context.Background(), user.ID, now)
	assert.NoError(t, err)
	// One of the two entities completed today, one meets the 7-day threshold.
	assert.Equal(t, 50.0, summary.CompletionRate)
	assert.Equal(t, 4.0, summary.AverageStreak)
	assert.Equal(t, 50.0, summary.ConsistencyScore)
}

func TestDeleteChallengeCascades(t *testing.T) {
	tr, store, user := newTestTracker(t)
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	challenge, err := tr.CreateChallenge(context.Background(), user.ID, "100 days of code", 100, now.AddDate(0, 0, -5), now)
	assert.NoError(t, err)
	_, err = tr.CheckOffDay(context.Background(), user.ID, challenge.ID, 3, true, now)
	assert.NoError(t, err)

	assert.NoError(t, tr.DeleteChallenge(context.Background(), user.ID, challenge.ID))

	logs, err := store.ListChallengeDays(context.Background(), challenge.ID)
	assert.NoError(t, err)
	assert.Empty(t, logs)

	var nfErr *NotFoundError
	err = tr.DeleteChallenge(context.Background(), user.ID, challenge.ID)
	assert.ErrorAs(t, err, &nfErr)
}
