package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingProducer records every published body instead of talking to a
// broker.
type capturingProducer struct {
	published [][]byte
}

func (p *capturingProducer) Publish(body []byte) error {
	p.published = append(p.published, body)
	return nil
}

func (p *capturingProducer) messages(t *testing.T) []ReminderMessage {
	t.Helper()
	out := make([]ReminderMessage, 0, len(p.published))
	for _, body := range p.published {
		var msg ReminderMessage
		require.NoError(t, json.Unmarshal(body, &msg))
		out = append(out, msg)
	}
	return out
}

func newTestScheduler(t *testing.T) (*ReminderScheduler, storage.StorageInterface, *capturingProducer) {
	t.Helper()
	store := storage.NewMemoryStorage()
	producer := &capturingProducer{}
	q := &Queue{Producers: []Producer{producer}}
	return NewReminderScheduler(store, q), store, producer
}

func addUser(t *testing.T, store storage.StorageInterface, timezone string) *models.User {
	t.Helper()
	user, err := store.AddUser(context.Background(), &models.User{
		Username: "casey",
		Email:    "casey@example.com",
		Timezone: timezone,
	})
	require.NoError(t, err)
	return user
}

func TestTickPublishesDueReminder(t *testing.T) {
	scheduler, store, producer := newTestScheduler(t)
	user := addUser(t, store, "")

	hour := 9
	habit, err := store.AddHabit(context.Background(), &models.Habit{
		UserID:        user.ID,
		Title:         "Meditate",
		ReminderHour:  &hour,
		CurrentStreak: 4,
	})
	require.NoError(t, err)

	now := time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, scheduler.Tick(context.Background(), now))

	msgs := producer.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, habit.ID.Hex()+"_2024-05-14", msgs[0].Id)
	assert.Equal(t, "casey@example.com", msgs[0].To)
	assert.Equal(t, "Meditate", msgs[0].HabitTitle)
	assert.Equal(t, 4, msgs[0].Streak)
}

func TestTickSkipsCompletedHabit(t *testing.T) {
	scheduler, store, producer := newTestScheduler(t)
	user := addUser(t, store, "")

	hour := 9
	habit, err := store.AddHabit(context.Background(), &models.Habit{
		UserID:       user.ID,
		Title:        "Meditate",
		ReminderHour: &hour,
	})
	require.NoError(t, err)

	_, err = store.UpsertCompletion(context.Background(), habit.ID, "2024-05-14", true)
	require.NoError(t, err)

	now := time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, scheduler.Tick(context.Background(), now))
	assert.Empty(t, producer.published)
}

func TestTickRemindersFollowUserTimezone(t *testing.T) {
	scheduler, store, producer := newTestScheduler(t)
	user := addUser(t, store, "America/New_York")

	hour := 21
	habit, err := store.AddHabit(context.Background(), &models.Habit{
		UserID:       user.ID,
		Title:        "Journal",
		ReminderHour: &hour,
	})
	require.NoError(t, err)

	// 01:30 UTC on Mar 11 is 21:30 on Mar 10 in New York, so the reminder
	// fires and its day key is the New York date.
	now := time.Date(2024, 3, 11, 1, 30, 0, 0, time.UTC)
	require.NoError(t, scheduler.Tick(context.Background(), now))

	msgs := producer.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, habit.ID.Hex()+"_2024-03-10", msgs[0].Id)

	// At 21:30 UTC the user's local hour is 17, so nothing new fires.
	producer.published = nil
	now = time.Date(2024, 3, 11, 21, 30, 0, 0, time.UTC)
	require.NoError(t, scheduler.Tick(context.Background(), now))
	assert.Empty(t, producer.published)
}

func TestTickIgnoresHabitsWithoutReminder(t *testing.T) {
	scheduler, store, producer := newTestScheduler(t)
	user := addUser(t, store, "")

	_, err := store.AddHabit(context.Background(), &models.Habit{
		UserID: user.ID,
		Title:  "Read",
	})
	require.NoError(t, err)

	now := time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)
	require.NoError(t, scheduler.Tick(context.Background(), now))
	assert.Empty(t, producer.published)
}

func TestPublishReminderRoundRobin(t *testing.T) {
	first := &capturingProducer{}
	second := &capturingProducer{}
	q := &Queue{Producers: []Producer{first, second}}

	for i := 0; i < 4; i++ {
		err := PublishReminder(&ReminderMessage{Id: "m"}, q)
		require.NoError(t, err)
	}

	assert.Len(t, first.published, 2)
	assert.Len(t, second.published, 2)
}

func TestPublishReminderNoProducers(t *testing.T) {
	err := PublishReminder(&ReminderMessage{Id: "m"}, &Queue{})
	assert.Error(t, err)
}
