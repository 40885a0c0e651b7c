package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username     string             `bson:"username" json:"username"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	Email        string             `bson:"email" json:"email"`
	// Timezone is an IANA zone name ("America/New_York"). It fixes the user's
	// day boundary: every day key is resolved against this zone. Empty means UTC.
	Timezone  string    `bson:"timezone,omitempty" json:"timezone"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// Habit is a daily recurring commitment. CurrentStreak and LongestStreak are
// caches of values derivable from the habit's completion records; readers must
// treat the ledger as authoritative and reconcile stale counters.
type Habit struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title         string             `bson:"title" json:"title"`
	Category      string             `bson:"category,omitempty" json:"category"`
	CurrentStreak int                `bson:"current_streak" json:"current_streak"`
	LongestStreak int                `bson:"longest_streak" json:"longest_streak"`
	// ReminderHour is the local hour of day (0-23) at which a reminder email is
	// sent if the habit has not been completed yet. Nil disables reminders.
	ReminderHour *int      `bson:"reminder_hour,omitempty" json:"reminder_hour,omitempty"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// Rule is a daily adherence commitment ("no sugar", "no doomscrolling").
// Breaking a rule records LastViolationAt and resets the streak; a second
// break inside 24h of the last one is rejected outright.
type Rule struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title           string             `bson:"title" json:"title"`
	Category        string             `bson:"category,omitempty" json:"category"`
	CurrentStreak   int                `bson:"current_streak" json:"current_streak"`
	LongestStreak   int                `bson:"longest_streak" json:"longest_streak"`
	LastViolationAt *time.Time         `bson:"last_violation_at,omitempty" json:"last_violation_at,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"created_at"`
}

// CompletionRecord is one entity's disposition on one calendar day. The pair
// (entity_id, day) is unique: a toggle overwrites the existing record rather
// than creating a second one. Day is a canonical "YYYY-MM-DD" day key.
type CompletionRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EntityID  primitive.ObjectID `bson:"entity_id" json:"entity_id"`
	Day       string             `bson:"day" json:"day"`
	Completed bool               `bson:"completed" json:"completed"`
}

// Challenge is a fixed-duration day-by-day commitment (40/70/100-day
// programs). Days are counted by position from StartDate, not calendar date.
type Challenge struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Title     string             `bson:"title" json:"title"`
	Duration  int                `bson:"duration" json:"duration"`
	StartDate time.Time          `bson:"start_date" json:"start_date"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// ChallengeDayLog marks a single day number within a challenge as completed.
// The pair (challenge_id, day_number) is unique.
type ChallengeDayLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChallengeID primitive.ObjectID `bson:"challenge_id" json:"challenge_id"`
	DayNumber   int                `bson:"day_number" json:"day_number"`
}

// RefreshToken pairs a user with an issued refresh token so the token can be
// revoked server-side.
type RefreshToken struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"user_id"`
	Token  string             `bson:"token" json:"token"`
	Expiry time.Time          `bson:"expiry" json:"expiry"`
}
