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

// RuleView is a rule together with its ledger-derived state.
type RuleView struct {
	models.Rule
	CompletedToday bool `json:"completed_today"`
}

// CreateRule validates and stores a new rule for the user.
func (t *Tracker) CreateRule(ctx context.Context, userID primitive.ObjectID, title, category string, now time.Time) (*models.Rule, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &ValidationError{Msg: "rule title is required"}
	}

	rule := &models.Rule{
		UserID:    userID,
		Title:     title,
		Category:  category,
		CreatedAt: now,
	}
	return t.store.AddRule(ctx, rule)
}

// ToggleRule flips today's adherence check-in for a rule, the same ledger
// operation habits use.
func (t *Tracker) ToggleRule(ctx context.Context, userID, ruleID primitive.ObjectID, now time.Time) (*RuleView, error) {
	rule, err := t.findOwnedRule(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}

	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := engine.DayKey(now, loc)

	completed := true
	if existing, err := t.store.FindCompletion(ctx, ruleID, today); err == nil {
		completed = !existing.Completed
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	if _, err := t.store.UpsertCompletion(ctx, ruleID, today, completed); err != nil {
		return nil, err
	}

	return t.ruleView(ctx, rule, today)
}

// BreakRule records a violation of the rule at now. A violation inside
// CooldownWindow of the previous one is rejected with CooldownActiveError and
// leaves the rule unmodified; this is a rate limit, not a queue, so repeated
// attempts inside the window fail every time. On success the violation time
// is stamped, the streak resets to 0 and today's adherence is marked broken
// in the ledger.
func (t *Tracker) BreakRule(ctx context.Context, userID, ruleID primitive.ObjectID, now time.Time) (*RuleView, error) {
	rule, err := t.findOwnedRule(ctx, userID, ruleID)
	if err != nil {
		return nil, err
	}

	cutoff := now.Add(-CooldownWindow)
	result, err := t.store.RecordRuleViolation(ctx, ruleID, now, cutoff)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		// The rule exists (fetched above), so the conditional write can only
		// have missed because a violation is already inside the window.
		remaining := CooldownWindow
		if rule.LastViolationAt != nil {
			remaining = CooldownWindow - now.Sub(*rule.LastViolationAt)
		}
		return nil, &CooldownActiveError{Remaining: remaining}
	}

	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := engine.DayKey(now, loc)
	if _, err := t.store.UpsertCompletion(ctx, ruleID, today, false); err != nil {
		return nil, err
	}

	updated, err := t.store.FindRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	return t.ruleView(ctx, updated, today)
}

// ListRules returns the user's rules with ledger-derived state.
func (t *Tracker) ListRules(ctx context.Context, userID primitive.ObjectID, now time.Time) ([]RuleView, error) {
	loc, err := t.userLocation(ctx, userID)
	if err != nil {
		return nil, err
	}
	today := engine.DayKey(now, loc)

	rules, err := t.store.FindRulesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]RuleView, 0, len(rules))
	for i := range rules {
		view, err := t.ruleView(ctx, &rules[i], today)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// DeleteRule removes a rule and its completion records.
func (t *Tracker) DeleteRule(ctx context.Context, userID, ruleID primitive.ObjectID) error {
	if _, err := t.findOwnedRule(ctx, userID, ruleID); err != nil {
		return err
	}
	_, err := t.store.DeleteRule(ctx, ruleID)
	return err
}

// ruleView derives the rule's streaks from the ledger, with one rule-specific
// clamp: a violation recorded today forces the current streak to 0 even
// though the not-yet-elapsed-day policy would otherwise count from yesterday.
// Stored counters are reconciled when they drift, as for habits.
func (t *Tracker) ruleView(ctx context.Context, rule *models.Rule, today string) (*RuleView, error) {
	records, err := t.store.ListCompletions(ctx, rule.ID)
	if err != nil {
		return nil, err
	}

	current := engine.CurrentStreak(records, today)
	longest := engine.LongestStreak(records)

	if rule.LastViolationAt != nil {
		// The violation day key is resolved against the owner's zone.
		loc, err := t.userLocation(ctx, rule.UserID)
		if err != nil {
			return nil, err
		}
		if engine.DayKey(*rule.LastViolationAt, loc) == today {
			current = 0
		}
	}

	if rule.CurrentStreak != current || rule.LongestStreak != longest {
		if _, err := t.store.UpdateRuleStreaks(ctx, rule.ID, current, longest); err != nil {
			return nil, err
		}
		rule.CurrentStreak = current
		rule.LongestStreak = longest
	}

	completedToday := false
	for _, r := range records {
		if r.Day == today {
			completedToday = r.Completed
			break
		}
	}

	return &RuleView{Rule: *rule, CompletedToday: completedToday}, nil
}

func (t *Tracker) findOwnedRule(ctx context.Context, userID, ruleID primitive.ObjectID) (*models.Rule, error) {
	rule, err := t.store.FindRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &NotFoundError{Resource: "rule"}
		}
		return nil, err
	}
	if rule.UserID != userID {
		return nil, &ForbiddenError{Resource: "rule"}
	}
	return rule, nil
}
