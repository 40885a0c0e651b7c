package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNotFound is returned by lookups when no document matches. Callers decide
// whether that means a missing entity or one owned by someone else.
var ErrNotFound = errors.New("not found")

// DeleteResult represents the result of a deletion operation,
// specifically the count of documents deleted.
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult represents the result of an update operation,
// specifically the count of documents matched and modified.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error

	// Adds a new user to the storage backend.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user by id.
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// Finds a user by username.
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	// Finds a user by email.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	// Deletes a user along with all habits, rules, challenges and their
	// subordinate records.
	DeleteUser(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error)

	// Adds a new habit.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// Finds a habit by id.
	FindHabit(ctx context.Context, id primitive.ObjectID) (*models.Habit, error)
	// Lists all habits belonging to a user.
	FindHabitsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error)
	// Lists all habits with a reminder configured for the given local hour.
	FindHabitsByReminderHour(ctx context.Context, hour int) ([]models.Habit, error)
	// Overwrites the cached streak counters on a habit.
	UpdateHabitStreaks(ctx context.Context, id primitive.ObjectID, current, longest int) (*UpdateResult, error)
	// Deletes a habit together with its completion records.
	DeleteHabit(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error)

	// Adds a new rule.
	AddRule(ctx context.Context, rule *models.Rule) (*models.Rule, error)
	// Finds a rule by id.
	FindRule(ctx context.Context, id primitive.ObjectID) (*models.Rule, error)
	// Lists all rules belonging to a user.
	FindRulesByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Rule, error)
	// Overwrites the cached streak counters on a rule.
	UpdateRuleStreaks(ctx context.Context, id primitive.ObjectID, current, longest int) (*UpdateResult, error)
	// RecordRuleViolation conditionally stamps a violation: the write applies
	// only when the rule has no prior violation or the prior one is at or
	// before cutoff. On success the violation time is set to now and the
	// current streak is reset to 0, in one atomic update. MatchedCount is 0
	// when the condition did not hold (missing rule or active cooldown).
	RecordRuleViolation(ctx context.Context, id primitive.ObjectID, now, cutoff time.Time) (*UpdateResult, error)
	// Deletes a rule together with its completion records.
	DeleteRule(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error)

	// UpsertCompletion writes the authoritative completion record for
	// (entityID, day) in a single conditional update-or-insert, so concurrent
	// toggles for the same day cannot produce duplicates or lost updates.
	UpsertCompletion(ctx context.Context, entityID primitive.ObjectID, day string, completed bool) (*models.CompletionRecord, error)
	// FindCompletion is a point lookup for (entityID, day).
	FindCompletion(ctx context.Context, entityID primitive.ObjectID, day string) (*models.CompletionRecord, error)
	// ListCompletions returns the entity's full completion history,
	// most-recent-first.
	ListCompletions(ctx context.Context, entityID primitive.ObjectID) ([]models.CompletionRecord, error)

	// Adds a new challenge.
	AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error)
	// Finds a challenge by id.
	FindChallenge(ctx context.Context, id primitive.ObjectID) (*models.Challenge, error)
	// Lists all challenges belonging to a user.
	FindChallengesByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Challenge, error)
	// SetChallengeDay marks or unmarks one day number within a challenge.
	// Marking is idempotent; unmarking a day that was never marked is a no-op.
	SetChallengeDay(ctx context.Context, challengeID primitive.ObjectID, dayNumber int, completed bool) error
	// ListChallengeDays returns the completed day logs of a challenge in day
	// order.
	ListChallengeDays(ctx context.Context, challengeID primitive.ObjectID) ([]models.ChallengeDayLog, error)
	// DeleteChallenge removes the challenge's day logs first, then the
	// challenge itself.
	DeleteChallenge(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error)

	// Adds a refresh token record.
	AddRefreshToken(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error)
	// Finds a refresh token record by token string.
	FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	// Deletes all refresh tokens issued to a user.
	DeleteRefreshTokensByUser(ctx context.Context, userID primitive.ObjectID) (*DeleteResult, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	storage := NewMongoStorage()
	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}
