package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStorage is an in-memory implementation of StorageInterface. It honors
// the same invariants as the MongoDB backend (unique usernames/emails, at most
// one completion record per entity-day, one day log per challenge-day,
// conditional violation stamping) behind a single mutex, which makes every
// operation atomic. It backs the service and engine tests and is not meant
// for production use.
type MemoryStorage struct {
	mu sync.Mutex

	users         map[primitive.ObjectID]models.User
	habits        map[primitive.ObjectID]models.Habit
	rules         map[primitive.ObjectID]models.Rule
	completions   map[primitive.ObjectID]map[string]models.CompletionRecord
	challenges    map[primitive.ObjectID]models.Challenge
	challengeDays map[primitive.ObjectID]map[int]models.ChallengeDayLog
	refreshTokens map[string]models.RefreshToken
}

// NewMemoryStorage creates an empty, ready-to-use MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:         make(map[primitive.ObjectID]models.User),
		habits:        make(map[primitive.ObjectID]models.Habit),
		rules:         make(map[primitive.ObjectID]models.Rule),
		completions:   make(map[primitive.ObjectID]map[string]models.CompletionRecord),
		challenges:    make(map[primitive.ObjectID]models.Challenge),
		challengeDays: make(map[primitive.ObjectID]map[int]models.ChallengeDayLog),
		refreshTokens: make(map[string]models.RefreshToken),
	}
}

// Connect is a no-op for the in-memory backend.
func (m *MemoryStorage) Connect(dbName, uri string) error { return nil }

// Disconnect is a no-op for the in-memory backend.
func (m *MemoryStorage) Disconnect() error { return nil }

func (m *MemoryStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Username == user.Username {
			return nil, errors.New("username already exists")
		}
		if existing.Email == user.Email {
			return nil, errors.New("email already exists")
		}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	m.users[user.ID] = *user
	return user, nil
}

func (m *MemoryStorage) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (m *MemoryStorage) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStorage) DeleteUser(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[id]; !ok {
		return nil, ErrNotFound
	}

	for habitID, habit := range m.habits {
		if habit.UserID == id {
			delete(m.completions, habitID)
			delete(m.habits, habitID)
		}
	}
	for ruleID, rule := range m.rules {
		if rule.UserID == id {
			delete(m.completions, ruleID)
			delete(m.rules, ruleID)
		}
	}
	for challengeID, challenge := range m.challenges {
		if challenge.UserID == id {
			delete(m.challengeDays, challengeID)
			delete(m.challenges, challengeID)
		}
	}
	for token, record := range m.refreshTokens {
		if record.UserID == id {
			delete(m.refreshTokens, token)
		}
	}

	delete(m.users, id)
	return &DeleteResult{DeletedCount: 1}, nil
}

func (m *MemoryStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if habit.ID.IsZero() {
		habit.ID = primitive.NewObjectID()
	}
	m.habits[habit.ID] = *habit
	return habit, nil
}

func (m *MemoryStorage) FindHabit(ctx context.Context, id primitive.ObjectID) (*models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	habit, ok := m.habits[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &habit, nil
}

func (m *MemoryStorage) FindHabitsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var habits []models.Habit
	for _, habit := range m.habits {
		if habit.UserID == userID {
			habits = append(habits, habit)
		}
	}
	sort.Slice(habits, func(i, j int) bool { return habits[i].CreatedAt.Before(habits[j].CreatedAt) })
	return habits, nil
}

func (m *MemoryStorage) FindHabitsByReminderHour(ctx context.Context, hour int) ([]models.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var habits []models.Habit
	for _, habit := range m.habits {
		if habit.ReminderHour != nil && *habit.ReminderHour == hour {
			habits = append(habits, habit)
		}
	}
	return habits, nil
}

func (m *MemoryStorage) UpdateHabitStreaks(ctx context.Context, id primitive.ObjectID, current, longest int) (*UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	habit, ok := m.habits[id]
	if !ok {
		return nil, ErrNotFound
	}

	modified := int64(0)
	if habit.CurrentStreak != current || habit.LongestStreak != longest {
		habit.CurrentStreak = current
		habit.LongestStreak = longest
		m.habits[id] = habit
		modified = 1
	}
	return &UpdateResult{MatchedCount: 1, ModifiedCount: modified}, nil
}

func (m *MemoryStorage) DeleteHabit(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.completions, id)
	if _, ok := m.habits[id]; !ok {
		return &DeleteResult{DeletedCount: 0}, nil
	}
	delete(m.habits, id)
	return &DeleteResult{DeletedCount: 1}, nil
}

func (m *MemoryStorage) AddRule(ctx context.Context, rule *models.Rule) (*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rule.ID.IsZero() {
		rule.ID = primitive.NewObjectID()
	}
	m.rules[rule.ID] = *rule
	return rule, nil
}

func (m *MemoryStorage) FindRule(ctx context.Context, id primitive.ObjectID) (*models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rule, nil
}

func (m *MemoryStorage) FindRulesByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rules []models.Rule
	for _, rule := range m.rules {
		if rule.UserID == userID {
			rules = append(rules, rule)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].CreatedAt.Before(rules[j].CreatedAt) })
	return rules, nil
}

func (m *MemoryStorage) UpdateRuleStreaks(ctx context.Context, id primitive.ObjectID, current, longest int) (*UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.rules[id]
	if !ok {
		return nil, ErrNotFound
	}

	modified := int64(0)
	if rule.CurrentStreak != current || rule.LongestStreak != longest {
		rule.CurrentStreak = current
		rule.LongestStreak = longest
		m.rules[id] = rule
		modified = 1
	}
	return &UpdateResult{MatchedCount: 1, ModifiedCount: modified}, nil
}

func (m *MemoryStorage) RecordRuleViolation(ctx context.Context, id primitive.ObjectID, now, cutoff time.Time) (*UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rule, ok := m.rules[id]
	if !ok {
		return &UpdateResult{}, nil
	}
	if rule.LastViolationAt != nil && rule.LastViolationAt.After(cutoff) {
		return &UpdateResult{}, nil
	}

	violationAt := now
	rule.LastViolationAt = &violationAt
	rule.CurrentStreak = 0
	m.rules[id] = rule
	return &UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil
}

func (m *MemoryStorage) DeleteRule(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.completions, id)
	if _, ok := m.rules[id]; !ok {
		return &DeleteResult{DeletedCount: 0}, nil
	}
	delete(m.rules, id)
	return &DeleteResult{DeletedCount: 1}, nil
}

func (m *MemoryStorage) UpsertCompletion(ctx context.Context, entityID primitive.ObjectID, day string, completed bool) (*models.CompletionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDay, ok := m.completions[entityID]
	if !ok {
		byDay = make(map[string]models.CompletionRecord)
		m.completions[entityID] = byDay
	}

	record, ok := byDay[day]
	if !ok {
		record = models.CompletionRecord{
			ID:       primitive.NewObjectID(),
			EntityID: entityID,
			Day:      day,
		}
	}
	record.Completed = completed
	byDay[day] = record
	return &record, nil
}

func (m *MemoryStorage) FindCompletion(ctx context.Context, entityID primitive.ObjectID, day string) (*models.CompletionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.completions[entityID][day]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (m *MemoryStorage) ListCompletions(ctx context.Context, entityID primitive.ObjectID) ([]models.CompletionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []models.CompletionRecord
	for _, record := range m.completions[entityID] {
		records = append(records, record)
	}
	// Most-recent-first; day keys sort lexicographically in date order.
	sort.Slice(records, func(i, j int) bool { return records[i].Day > records[j].Day })
	return records, nil
}

func (m *MemoryStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if challenge.ID.IsZero() {
		challenge.ID = primitive.NewObjectID()
	}
	m.challenges[challenge.ID] = *challenge
	return challenge, nil
}

func (m *MemoryStorage) FindChallenge(ctx context.Context, id primitive.ObjectID) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	challenge, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &challenge, nil
}

func (m *MemoryStorage) FindChallengesByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var challenges []models.Challenge
	for _, challenge := range m.challenges {
		if challenge.UserID == userID {
			challenges = append(challenges, challenge)
		}
	}
	sort.Slice(challenges, func(i, j int) bool { return challenges[i].CreatedAt.Before(challenges[j].CreatedAt) })
	return challenges, nil
}

func (m *MemoryStorage) SetChallengeDay(ctx context.Context, challengeID primitive.ObjectID, dayNumber int, completed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byDay, ok := m.challengeDays[challengeID]
	if !ok {
		byDay = make(map[int]models.ChallengeDayLog)
		m.challengeDays[challengeID] = byDay
	}

	if !completed {
		delete(byDay, dayNumber)
		return nil
	}

	if _, ok := byDay[dayNumber]; !ok {
		byDay[dayNumber] = models.ChallengeDayLog{
			ID:          primitive.NewObjectID(),
			ChallengeID: challengeID,
			DayNumber:   dayNumber,
		}
	}
	return nil
}

func (m *MemoryStorage) ListChallengeDays(ctx context.Context, challengeID primitive.ObjectID) ([]models.ChallengeDayLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var logs []models.ChallengeDayLog
	for _, dayLog := range m.challengeDays[challengeID] {
		logs = append(logs, dayLog)
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].DayNumber < logs[j].DayNumber })
	return logs, nil
}

func (m *MemoryStorage) DeleteChallenge(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.challengeDays, id)
	if _, ok := m.challenges[id]; !ok {
		return &DeleteResult{DeletedCount: 0}, nil
	}
	delete(m.challenges, id)
	return &DeleteResult{DeletedCount: 1}, nil
}

func (m *MemoryStorage) AddRefreshToken(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token.ID.IsZero() {
		token.ID = primitive.NewObjectID()
	}
	m.refreshTokens[token.Token] = *token
	return token, nil
}

func (m *MemoryStorage) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.refreshTokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (m *MemoryStorage) DeleteRefreshTokensByUser(ctx context.Context, userID primitive.ObjectID) (*DeleteResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for token, record := range m.refreshTokens {
		if record.UserID == userID {
			delete(m.refreshTokens, token)
			deleted++
		}
	}
	return &DeleteResult{DeletedCount: deleted}, nil
}
