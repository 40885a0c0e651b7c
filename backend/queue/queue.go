package queue

import (
	"context"
	"log"
	"sync"

	"github.com/streadway/amqp"
)

// Producer publishes a message body to the broker. Returns an error if the
// message could not be published.
type Producer interface {
	Publish(body []byte) error
}

// Consumer listens to messages from the broker and handles the message
// stream. Returns the stream of deliveries and an error if the consumer
// could not be set up.
type Consumer interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
}

// ProducerFactory instantiates a Producer bound to a connection, channel
// and queue.
type ProducerFactory interface {
	CreateProducer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Producer, error)
}

// ConsumerFactory instantiates a Consumer bound to a connection, channel
// and queue.
type ConsumerFactory interface {
	CreateConsumer(conn *amqp.Connection, ch *amqp.Channel, queue *amqp.Queue) (Consumer, error)
}

// Queue holds the producers and consumers bound to a single declared queue.
type Queue struct {
	Producers []Producer
	Consumers []Consumer
}

// connect dials RabbitMQ, opens a channel in confirm mode, and installs a
// watcher that aborts the process if the broker connection drops.
func connect(url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}

	if err = ch.Confirm(false); err != nil {
		return nil, nil, err
	}

	notifyClose := make(chan *amqp.Error)
	conn.NotifyClose(notifyClose)

	go func() {
		err := <-notifyClose
		if err != nil {
			log.Fatalf("RabbitMQ connection closed: %v", err)
		}
	}()

	return conn, ch, nil
}

// InitQueue connects to RabbitMQ at the given URL, declares a durable queue
// with the given name, and builds one producer and consumer per factory.
// Any failure during setup is fatal since the process cannot do useful work
// without its queue.
func InitQueue(url string, queueName string, prodFactories []ProducerFactory, consFactories []ConsumerFactory) *Queue {
	conn, ch, err := connect(url)
	if err != nil {
		log.Fatalf("error connecting to RabbitMQ: %v", err)
	}

	queue, err := ch.QueueDeclare(
		queueName,
		true,  // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	)
	if err != nil {
		log.Fatalf("error declaring queue: %v", err)
	}

	var producers []Producer
	var consumers []Consumer

	for _, prodFactory := range prodFactories {
		producer, err := prodFactory.CreateProducer(conn, ch, &queue)
		if err != nil {
			log.Fatalf("error creating producer: %v", err)
		}
		producers = append(producers, producer)
	}

	for _, consFactory := range consFactories {
		consumer, err := consFactory.CreateConsumer(conn, ch, &queue)
		if err != nil {
			log.Fatalf("error creating consumer: %v", err)
		}
		consumers = append(consumers, consumer)
	}

	return &Queue{
		Producers: producers,
		Consumers: consumers,
	}
}

// StartConsumers starts every consumer in its own goroutine so they process
// messages concurrently. Consumers stop when the context is cancelled. The
// returned WaitGroup can be used to wait for all consumers to finish.
func (q *Queue) StartConsumers(ctx context.Context) *sync.WaitGroup {
	var wg sync.WaitGroup

	for _, consumer := range q.Consumers {
		wg.Add(1)

		go func(c Consumer) {
			defer wg.Done()

			if _, err := c.Consume(ctx); err != nil {
				log.Printf("Error starting consumer: %v", err)
			}
		}(consumer)
	}

	return &wg
}
