package storage

import (
	"context"
	"testing"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// The invariants below (one completion record per entity-day, conditional
// violation stamping, cascades) are enforced by unique indexes and conditional
// updates in the MongoDB backend; the in-memory backend replicates them and is
// what these tests run against.

func newTestUser(t *testing.T, store StorageInterface, username string) *models.User {
	t.Helper()
	user, err := store.AddUser(context.Background(), &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "irrelevant",
		CreatedAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to add test user: %v", err)
	}
	return user
}

func TestAddUserRejectsDuplicates(t *testing.T) {
	store := NewMemoryStorage()
	newTestUser(t, store, "casey")

	_, err := store.AddUser(context.Background(), &models.User{
		Username: "casey",
		Email:    "other@example.com",
	})
	assert.Error(t, err, "Should reject a duplicate username")

	_, err = store.AddUser(context.Background(), &models.User{
		Username: "someone",
		Email:    "casey@example.com",
	})
	assert.Error(t, err, "Should reject a duplicate email")
}

func TestUpsertCompletionIdempotent(t *testing.T) {
	store := NewMemoryStorage()
	entityID := primitive.NewObjectID()

	first, err := store.UpsertCompletion(context.Background(), entityID, "2024-03-10", true)
	if err != nil {
		t.Fatalf("Failed to upsert completion: %v", err)
	}

	// Writing the same (entity, day) again must mutate the existing record,
	// not create a second one.
	second, err := store.UpsertCompletion(context.Background(), entityID, "2024-03-10", true)
	if err != nil {
		t.Fatalf("Failed to upsert completion twice: %v", err)
	}
	assert.Equal(t, first.ID, second.ID)

	records, err := store.ListCompletions(context.Background(), entityID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(records))
	assert.True(t, records[0].Completed)
}

func TestUpsertCompletionToggleOff(t *testing.T) {
	store := NewMemoryStorage()
	entityID := primitive.NewObjectID()

	_, err := store.UpsertCompletion(context.Background(), entityID, "2024-03-10", true)
	assert.NoError(t, err)

	record, err := store.UpsertCompletion(context.Background(), entityID, "2024-03-10", false)
	assert.NoError(t, err)
	assert.False(t, record.Completed)

	found, err := store.FindCompletion(context.Background(), entityID, "2024-03-10")
	assert.NoError(t, err)
	assert.False(t, found.Completed)
}

func TestListCompletionsMostRecentFirst(t *testing.T) {
	store := NewMemoryStorage()
	entityID := primitive.NewObjectID()

	for _, day := range []string{"2024-03-08", "2024-03-10", "2024-03-09"} {
		_, err := store.UpsertCompletion(context.Background(), entityID, day, true)
		assert.NoError(t, err)
	}

	records, err := store.ListCompletions(context.Background(), entityID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10", "2024-03-09", "2024-03-08"},
		[]string{records[0].Day, records[1].Day, records[2].Day})
}

func TestFindCompletionAbsent(t *testing.T) {
	store := NewMemoryStorage()

	_, err := store.FindCompletion(context.Background(), primitive.NewObjectID(), "2024-03-10")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordRuleViolationCondition(t *testing.T) {
	store := NewMemoryStorage()
	user := newTestUser(t, store, "rulebreaker")

	rule, err := store.AddRule(context.Background(), &models.Rule{
		UserID:        user.ID,
		Title:         "No sugar",
		CurrentStreak: 5,
	})
	if err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	t0 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// First violation: no prior timestamp, write applies.
	result, err := store.RecordRuleViolation(context.Background(), rule.ID, t0, t0.Add(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.MatchedCount)

	updated, err := store.FindRule(context.Background(), rule.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, updated.CurrentStreak)
	assert.True(t, updated.LastViolationAt.Equal(t0))

	// One hour later the cutoff precedes the stored violation: rejected,
	// state untouched.
	t1 := t0.Add(time.Hour)
	result, err = store.RecordRuleViolation(context.Background(), rule.ID, t1, t1.Add(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.MatchedCount)

	unchanged, err := store.FindRule(context.Background(), rule.ID)
	assert.NoError(t, err)
	assert.True(t, unchanged.LastViolationAt.Equal(t0), "A rejected violation must not modify the rule")

	// 25 hours later the window has elapsed.
	t2 := t0.Add(25 * time.Hour)
	result, err = store.RecordRuleViolation(context.Background(), rule.ID, t2, t2.Add(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.MatchedCount)
}

func TestRecordRuleViolationMissingRule(t *testing.T) {
	store := NewMemoryStorage()
	now := time.Now()

	result, err := store.RecordRuleViolation(context.Background(), primitive.NewObjectID(), now, now.Add(-24*time.Hour))
	assert.NoError(t, err)
	assert.Equal(t, int64(0), result.MatchedCount)
}

func TestSetChallengeDayIdempotent(t *testing.T) {
	store := NewMemoryStorage()
	challengeID := primitive.NewObjectID()

	assert.NoError(t, store.SetChallengeDay(context.Background(), challengeID, 3, true))
	assert.NoError(t, store.SetChallengeDay(context.Background(), challengeID, 3, true))
	assert.NoError(t, store.SetChallengeDay(context.Background(), challengeID, 1, true))

	logs, err := store.ListChallengeDays(context.Background(), challengeID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(logs))
	assert.Equal(t, 1, logs[0].DayNumber)
	assert.Equal(t, 3, logs[1].DayNumber)

	// Unmarking removes the log; unmarking again is a no-op.
	assert.NoError(t, store.SetChallengeDay(context.Background(), challengeID, 3, false))
	assert.NoError(t, store.SetChallengeDay(context.Background(), challengeID, 3, false))

	logs, err = store.ListChallengeDays(context.Background(), challengeID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(logs))
}

func TestDeleteHabitDeletesCompletions(t *testing.T) {
	store := NewMemoryStorage()
	user := newTestUser(t, store, "runner")

	habit, err := store.AddHabit(context.Background(), &models.Habit{UserID: user.ID, Title: "Run"})
	if err != nil {
		t.Fatalf("Failed to add habit: %v", err)
	}
	_, err = store.UpsertCompletion(context.Background(), habit.ID, "2024-03-10", true)
	assert.NoError(t, err)

	result, err := store.DeleteHabit(context.Background(), habit.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.DeletedCount)

	records, err := store.ListCompletions(context.Background(), habit.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(records), "Deleting a habit should delete its completion records")
}

func TestDeleteChallengeDeletesDayLogs(t *testing.T) {
	store := NewMemoryStorage()
	user := newTestUser(t, store, "challenger")

	challenge, err := store.AddChallenge(context.Background(), &models.Challenge{
		UserID:    user.ID,
		Title:     "75 Hard",
		Duration:  75,
		StartDate: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to add challenge: %v", err)
	}
	assert.NoError(t, store.SetChallengeDay(context.Background(), challenge.ID, 1, true))

	result, err := store.DeleteChallenge(context.Background(), challenge.ID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), result.DeletedCount)

	logs, err := store.ListChallengeDays(context.Background(), challenge.ID)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(logs), "Deleting a challenge should delete its day logs")
}

func TestDeleteUserCascades(t *testing.T) {
	store := NewMemoryStorage()
	user := newTestUser(t, store, "leaver")

	habit, _ := store.AddHabit(context.Background(), &models.Habit{UserID: user.ID, Title: "Read"})
	rule, _ := store.AddRule(context.Background(), &models.Rule{UserID: user.ID, Title: "No phone in bed"})
	challenge, _ := store.AddChallenge(context.Background(), &models.Challenge{UserID: user.ID, Title: "40 days", Duration: 40, StartDate: time.Now()})

	_, err := store.DeleteUser(context.Background(), user.ID)
	assert.NoError(t, err)

	_, err = store.FindHabit(context.Background(), habit.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindRule(context.Background(), rule.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.FindChallenge(context.Background(), challenge.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
