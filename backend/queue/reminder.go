package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/ascentapp/ascent/backend/engine"
	"github.com/ascentapp/ascent/backend/server/notifications/email"
	"github.com/ascentapp/ascent/backend/storage/cache"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/streadway/amqp"
)

// reminderDedupeTTL is how long a processed reminder id stays in the cache.
// It only needs to outlive the day it belongs to.
const reminderDedupeTTL = 48 * time.Hour

// globalCount is used in the round robin algorithm that assigns a producer
// to each reminder message.
var globalCount int

// ReminderProducerFactory creates new ReminderProducer instances.
type ReminderProducerFactory struct{}

// ReminderConsumerFactory creates new ReminderConsumer instances. It holds
// the cache the consumers use to deduplicate messages.
type ReminderConsumerFactory struct {
	Cache cache.CacheInterface
}

// ReminderProducer publishes reminder messages to the broker.
type ReminderProducer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
}

// ReminderConsumer consumes reminder messages and sends the reminder
// emails. Processed message ids are recorded in the cache so a redelivered
// message is not emailed twice.
type ReminderConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   *amqp.Queue
	cache   cache.CacheInterface
}

// ReminderMessage is the payload published for each habit reminder. Id is
// the habit id joined with the day the reminder belongs to, so publishing
// the same reminder twice in one day deduplicates at the consumer.
type ReminderMessage struct {
	Id         string `json:"id"`
	To         string `json:"to"`
	HabitTitle string `json:"habitTitle"`
	Streak     int    `json:"streak"`
}

// CreateProducer builds a ReminderProducer bound to the given connection,
// channel and queue.
func (f *ReminderProducerFactory) CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error) {
	return &ReminderProducer{
		conn:    conn,
		channel: ch,
		queue:   queue,
	}, nil
}

// CreateConsumer builds a ReminderConsumer bound to the given connection,
// channel and queue, using the factory's cache for deduplication.
func (f *ReminderConsumerFactory) CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error) {
	return &ReminderConsumer{
		conn:    conn,
		channel: ch,
		queue:   queue,
		cache:   f.Cache,
	}, nil
}

// Publish sends the message body to the reminder queue.
func (rp *ReminderProducer) Publish(body []byte) error {
	err := rp.channel.Publish(
		"",            // exchange
		rp.queue.Name, // routing key
		false,         // mandatory
		false,         // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
	if err != nil {
		return errors.New("failed to publish a message: " + err.Error())
	}
	return nil
}

// Consume sets up a consumer on the reminder queue and launches a worker
// goroutine that reads from it. Each message is unmarshaled, checked against
// the cache, and either emailed and acked or discarded. Transient failures
// nack with requeue.
func (rc *ReminderConsumer) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	msgs, err := rc.channel.Consume(
		rc.queue.Name,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case d, ok := <-msgs:
				if !ok {
					return
				}

				message := &ReminderMessage{}
				if err := json.Unmarshal(d.Body, message); err != nil {
					log.Printf("failed to unmarshal reminder message: %v", err)
					d.Nack(false, true)
					continue
				}

				processed, err := rc.cache.Get(ctx, "reminder_"+message.Id)
				if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
					log.Printf("error checking cache: %v", err)
					d.Nack(false, true)
					continue
				}

				if processed != nil {
					d.Ack(false)
					continue
				}

				if err := email.SendReminder(message.To, message.HabitTitle, message.Streak); err != nil {
					log.Printf("failed to send reminder email: %v", err)
					d.Nack(false, true)
				} else {
					d.Ack(false)
					if err := rc.cache.Set(ctx, "reminder_"+message.Id, true, reminderDedupeTTL); err != nil {
						log.Printf("failed to set key in cache: %v", err)
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return msgs, nil
}

// BuildReminderQueue initializes a Queue for habit reminders with the given
// number of producers and consumers. Every consumer shares the given cache
// for deduplication.
func BuildReminderQueue(rabbitMQURL string, numProducers, numConsumers int, reminderCache cache.CacheInterface) *Queue {
	prodFactories := make([]ProducerFactory, numProducers)
	for i := 0; i < numProducers; i++ {
		prodFactories[i] = &ReminderProducerFactory{}
	}

	consFactories := make([]ConsumerFactory, numConsumers)
	for i := 0; i < numConsumers; i++ {
		consFactories[i] = &ReminderConsumerFactory{Cache: reminderCache}
	}

	return InitQueue(rabbitMQURL, "reminderQueue", prodFactories, consFactories)
}

// InitReminderCache initializes the cache used to deduplicate reminder
// messages. Exits the process when the cache server cannot be reached.
func InitReminderCache(url string) cache.CacheInterface {
	c, err := cache.NewCache(url)
	if err != nil {
		log.Fatalf("Error connecting to cache: %v", err)
	}
	return c
}

// PublishReminder serializes the reminder message and publishes it onto the
// queue using one of the producers in a round-robin manner.
func PublishReminder(msg *ReminderMessage, q *Queue) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.New("failed to marshal reminder message: " + err.Error())
	}

	producerCount := len(q.Producers)
	if producerCount == 0 {
		return errors.New("no producers available")
	}

	producer := q.Producers[globalCount%producerCount]
	globalCount++

	if err := producer.Publish(body); err != nil {
		return errors.New("failed to publish reminder message: " + err.Error())
	}

	return nil
}

// ReminderScheduler periodically scans for habits whose reminder hour has
// arrived in their owner's timezone and publishes a reminder for each one
// not yet completed today.
type ReminderScheduler struct {
	store storage.StorageInterface
	queue *Queue
}

// NewReminderScheduler creates a scheduler over the given storage backend
// and reminder queue.
func NewReminderScheduler(store storage.StorageInterface, q *Queue) *ReminderScheduler {
	return &ReminderScheduler{store: store, queue: q}
}

// Run ticks at the given interval until the context is cancelled. An
// interval of one hour matches the reminder hour granularity; shorter
// intervals are safe because consumers deduplicate by message id.
func (s *ReminderScheduler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Tick(ctx, time.Now()); err != nil {
				log.Printf("reminder scheduler tick failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Tick publishes a reminder for every habit whose reminder hour equals the
// current hour in its owner's timezone and that has no completed record for
// the owner's current day.
func (s *ReminderScheduler) Tick(ctx context.Context, now time.Time) error {
	for hour := 0; hour < 24; hour++ {
		habits, err := s.store.FindHabitsByReminderHour(ctx, hour)
		if err != nil {
			return err
		}

		for i := range habits {
			habit := &habits[i]

			user, err := s.store.FindUserByID(ctx, habit.UserID)
			if err != nil {
				log.Printf("reminder: owner of habit %s not found: %v", habit.ID.Hex(), err)
				continue
			}

			loc := time.UTC
			if user.Timezone != "" {
				if l, err := time.LoadLocation(user.Timezone); err == nil {
					loc = l
				}
			}

			if now.In(loc).Hour() != hour {
				continue
			}

			day := engine.DayKey(now, loc)
			record, err := s.store.FindCompletion(ctx, habit.ID, day)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				log.Printf("reminder: completion lookup for habit %s failed: %v", habit.ID.Hex(), err)
				continue
			}
			if record != nil && record.Completed {
				continue
			}

			msg := &ReminderMessage{
				Id:         habit.ID.Hex() + "_" + day,
				To:         user.Email,
				HabitTitle: habit.Title,
				Streak:     habit.CurrentStreak,
			}
			if err := PublishReminder(msg, s.queue); err != nil {
				log.Printf("reminder: publish for habit %s failed: %v", habit.ID.Hex(), err)
			}
		}
	}

	return nil
}
