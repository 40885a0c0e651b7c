package client

import (
	"errors"
	"fmt"
	"time"
)

// Habit mirrors the habit resource the server returns.
type Habit struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Category       string `json:"category"`
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	ReminderHour   *int   `json:"reminder_hour,omitempty"`
	CompletedToday bool   `json:"completed_today"`
}

// Rule mirrors the rule resource the server returns.
type Rule struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Category        string     `json:"category"`
	CurrentStreak   int        `json:"current_streak"`
	LongestStreak   int        `json:"longest_streak"`
	LastViolationAt *time.Time `json:"last_violation_at,omitempty"`
	CompletedToday  bool       `json:"completed_today"`
}

// Challenge mirrors the challenge resource the server returns.
type Challenge struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Duration        int       `json:"duration"`
	StartDate       time.Time `json:"start_date"`
	CompletedDays   []int     `json:"completed_days"`
	ElapsedDay      int       `json:"elapsed_day"`
	ProgressPercent int       `json:"progress_percent"`
}

// Completion is one day of a habit's or rule's history.
type Completion struct {
	Day       string `json:"day"`
	Completed bool   `json:"completed"`
}

// Summary holds the aggregate metrics the server computes across all of the
// user's habits and rules.
type Summary struct {
	CompletionRate   float64 `json:"completion_rate"`
	AverageStreak    float64 `json:"average_streak"`
	ConsistencyScore float64 `json:"consistency_score"`
}

// authedToken returns the current access token or an error when no user is
// signed in.
func authedToken() (string, error) {
	token, err := IsUserAuthenticated()
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("no user is currently signed in")
	}
	return token, nil
}

// ListHabits fetches all of the user's habits with their current streaks.
func ListHabits() ([]Habit, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var habits []Habit
	if err := sendRequest("GET", "/habits", &token, nil, &habits); err != nil {
		return nil, err
	}
	return habits, nil
}

// CreateHabit creates a new habit. reminderHour may be nil when no reminder
// email is wanted.
func CreateHabit(title, category string, reminderHour *int) (*Habit, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"title":    title,
		"category": category,
	}
	if reminderHour != nil {
		body["reminderHour"] = *reminderHour
	}

	var habit Habit
	if err := sendRequest("POST", "/habits", &token, body, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// ToggleHabit flips today's completion for the habit and returns its
// refreshed state.
func ToggleHabit(id string) (*Habit, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var habit Habit
	if err := sendRequest("POST", "/habits/"+id+"/toggle", &token, nil, &habit); err != nil {
		return nil, err
	}
	return &habit, nil
}

// HabitHistory fetches the habit's completion history, most recent day
// first.
func HabitHistory(id string) ([]Completion, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var history []Completion
	if err := sendRequest("GET", "/habits/"+id+"/history", &token, nil, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// DeleteHabit deletes the habit and its history.
func DeleteHabit(id string) error {
	token, err := authedToken()
	if err != nil {
		return err
	}
	return sendRequest("DELETE", "/habits/"+id, &token, nil, nil)
}

// ListRules fetches all of the user's rules with their current streaks.
func ListRules() ([]Rule, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var rules []Rule
	if err := sendRequest("GET", "/rules", &token, nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// CreateRule creates a new rule.
func CreateRule(title, category string) (*Rule, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var rule Rule
	err = sendRequest("POST", "/rules", &token, map[string]string{
		"title":    title,
		"category": category,
	}, &rule)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// ToggleRule flips today's adherence record for the rule and returns its
// refreshed state.
func ToggleRule(id string) (*Rule, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var rule Rule
	if err := sendRequest("POST", "/rules/"+id+"/toggle", &token, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// BreakRule records a slip-up on the rule, resetting its streak. The server
// rejects a second slip-up within 24 hours.
func BreakRule(id string) (*Rule, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var rule Rule
	if err := sendRequest("POST", "/rules/"+id+"/break", &token, nil, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// DeleteRule deletes the rule and its history.
func DeleteRule(id string) error {
	token, err := authedToken()
	if err != nil {
		return err
	}
	return sendRequest("DELETE", "/rules/"+id, &token, nil, nil)
}

// ListChallenges fetches all of the user's challenges with their progress.
func ListChallenges() ([]Challenge, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var challenges []Challenge
	if err := sendRequest("GET", "/challenges", &token, nil, &challenges); err != nil {
		return nil, err
	}
	return challenges, nil
}

// CreateChallenge creates a new fixed-duration challenge starting today.
func CreateChallenge(title string, duration int) (*Challenge, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var challenge Challenge
	err = sendRequest("POST", "/challenges", &token, map[string]interface{}{
		"title":    title,
		"duration": duration,
	}, &challenge)
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// CheckOffDay marks or unmarks one day of the challenge and returns its
// refreshed progress.
func CheckOffDay(id string, day int, completed bool) (*Challenge, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var challenge Challenge
	path := fmt.Sprintf("/challenges/%s/days/%d", id, day)
	err = sendRequest("PATCH", path, &token, map[string]bool{"completed": completed}, &challenge)
	if err != nil {
		return nil, err
	}
	return &challenge, nil
}

// DeleteChallenge deletes the challenge and its day logs.
func DeleteChallenge(id string) error {
	token, err := authedToken()
	if err != nil {
		return err
	}
	return sendRequest("DELETE", "/challenges/"+id, &token, nil, nil)
}

// GetSummary fetches the aggregate metrics for the user's commitments.
func GetSummary() (*Summary, error) {
	token, err := authedToken()
	if err != nil {
		return nil, err
	}

	var summary Summary
	if err := sendRequest("GET", "/summary", &token, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}
