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

// ChallengeView is a challenge with its derived progress: which day numbers
// are done, how far the clock has advanced, and the completion percentage.
type ChallengeView struct {
	models.Challenge
	CompletedDays   []int `json:"completed_days"`
	ElapsedDay      int   `json:"elapsed_day"`
	ProgressPercent int   `json:"progress_percent"`
}

// CreateChallenge validates and stores a new fixed-duration challenge. The
// start date is fixed at creation and never changes afterwards.
func (t *Tracker) CreateChallenge(ctx context.Context, userID primitive.ObjectID, title string, duration int, startDate, now time.Time) (*models.Challenge, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Msg: "challenge title is required"}
	}
	if duration < 1 {
		return nil, &ValidationError{Msg: "challenge duration must be at least 1 day"}
	}
	if startDate.IsZero() {
		startDate = now
	}

	challenge := &models.Challenge{
		UserID:    userID,
		Title:     title,
		Duration:  duration,
		StartDate: startDate,
		CreatedAt: now,
	}
	return t.store.AddChallenge(ctx, challenge)
}

// CheckOffDay marks or unmarks one day number within a challenge. Day numbers
// beyond the elapsed day are in the future and cannot be completed; such a
// call is rejected with InvalidDayError and changes nothing.
func (t *Tracker) CheckOffDay(ctx context.Context, userID, challengeID primitive.ObjectID, dayNumber int, completed bool, now time.Time) (*ChallengeView, error) {
	challenge, err := t.findOwnedChallenge(ctx, userID, challengeID)
	if err != nil {
		return nil, err
	}

	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}

	elapsed := engine.ElapsedDay(challenge.StartDate, now, loc, challenge.Duration)
	if dayNumber < 1 || dayNumber > challenge.Duration || dayNumber > elapsed {
		return nil, &InvalidDayError{Day: dayNumber, Elapsed: elapsed}
	}

	if err := t.store.SetChallengeDay(ctx, challengeID, dayNumber, completed); err != nil {
		return nil, err
	}

	return t.challengeView(ctx, challenge, elapsed)
}

// ListChallenges returns the user's challenges with derived progress.
func (t *Tracker) ListChallenges(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]ChallengeView, error) {
	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}

	challenges, err := t.store.FindChallengesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]ChallengeView, 0, len(challenges))
	for i := range challenges {
		elapsed := engine.ElapsedDay(challenges[i].StartDate, now, loc, challenges[i].Duration)
		view, err := t.challengeView(ctx, &challenges[i], elapsed)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// DeleteChallenge removes a challenge; its day logs go first so no orphaned
// logs survive the parent.
func (t *Tracker) DeleteChallenge(ctx context.Context, userID, challengeID primitive.ObjectID) error {
	if _, err := t.findOwnedChallenge(ctx, userID, challengeID); err != nil {
		return err
	}
	_, err := t.store.DeleteChallenge(ctx, challengeID)
	return err
}

func (t *Tracker) challengeView(ctx context.Context, challenge *models.Challenge, elapsed int) (*ChallengeView, error) {
	logs, err := t.store.ListChallengeDays(ctx, challenge.ID)
	if err != nil {
		return nil, err
	}

	days := make([]int, 0, len(logs))
	for _, dayLog := range logs {
		days = append(days, dayLog.DayNumber)
	}

	return &ChallengeView{
		Challenge:       *challenge,
		CompletedDays:   days,
		ElapsedDay:      elapsed,
		ProgressPercent: engine.ProgressPercent(len(days), challenge.Duration),
	}, nil
}

func (t *Tracker) findOwnedChallenge(ctx context.Context, userID, challengeID primitive.ObjectID) (*models.Challenge, error) {
	challenge, err := t.store.FindChallenge(ctx, challengeID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "challenge"}
		}
		return nil, err
	}
	if challenge.UserID != userID {
		return nil, &ForbiddenError{Resource: "challenge"}
	}
	return challenge, nil
}
