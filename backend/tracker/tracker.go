// Package tracker is the commitment-tracking service: habits, rules and
// challenges share one conceptual model of per-day completion state, with
// streaks and aggregate metrics derived from the completion ledger on read.
// Every operation takes "now" explicitly; nothing in this package reads a
// wall clock, so tests drive time directly.
package tracker

import (
	"context"
	"errors"
	"time"

	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CooldownWindow is the minimum real elapsed time between two violations of
// the same rule. It is measured against the clock, not calendar-day aligned.
const CooldownWindow = 24 * time.Hour

// Tracker exposes the operation set of the commitment engine over a storage
// backend.
type Tracker struct {
	store storage.StorageInterface
}

// New creates a Tracker on top of the given storage backend.
func New(store storage.StorageInterface) *Tracker {
	return &Tracker{store: store}
}

// userLocation resolves the user's day-boundary location from their
// configured IANA timezone. An empty or unknown zone falls back to UTC.
func (t *Tracker) userLocation(ctx context.Context, userID primitive.ObjectID) (*time.Location, error) {
	user, err := t.store.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "user"}
		}
		return nil, err
	}

	if user.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return time.UTC, nil
	}
	return loc, nil
}
