package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ascentapp/ascent/backend/queue"
	"github.com/ascentapp/ascent/backend/server"
	"github.com/ascentapp/ascent/backend/server/auth"
	"github.com/ascentapp/ascent/backend/server/notifications/email"
	storage "github.com/ascentapp/ascent/backend/storage/persistent"
	"github.com/joho/godotenv"
)

// RunBackend sets up storage, the reminder pipeline and the REST server,
// then blocks until the process receives an interrupt.
func RunBackend() {
	if err := godotenv.Load("backend/.env"); err != nil {
		fmt.Println("Error loading backend .env file")
	}

	signingKey := os.Getenv("JWT_SIGNING_KEY") // JWT signing key for token generation
	serverURL := os.Getenv("SERVER_URL")       // The URL where the server is running
	dbURI := os.Getenv("MONGODB_URI")          // MongoDB database URI
	dbName := os.Getenv("DB_NAME")             // The name of the MongoDB database
	smtpEmail := os.Getenv("SMTP_EMAIL")       // The email address used for sending reminders
	smtpPassword := os.Getenv("SMTP_PASS")     // The password for the email account
	redisURL := os.Getenv("REDIS_URL")         // The Redis URL for deduplicating reminders
	rabbitMQURL := os.Getenv("RABBITMQ_URL")   // The URL for the RabbitMQ message broker
	numReminderProducers := 1
	numReminderConsumers := 2
	ctx := context.Background()

	store, err := storage.NewStorage(dbName, dbURI)
	if err != nil {
		log.Fatalf("error connecting to storage: %v", err)
	}

	if _, err := email.InitEmailService(smtpEmail, smtpPassword); err != nil {
		log.Printf("email service unavailable, reminders will not be delivered: %v", err)
	}

	reminderCache := queue.InitReminderCache(redisURL)
	reminderQueue := queue.BuildReminderQueue(rabbitMQURL, numReminderProducers, numReminderConsumers, reminderCache)
	reminderQueue.StartConsumers(ctx)

	scheduler := queue.NewReminderScheduler(store, reminderQueue)
	go scheduler.Run(ctx, time.Hour)

	auth.InitAuth(store, signingKey)

	go server.Start(serverURL, signingKey, store)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigs
	fmt.Println()
	fmt.Println(sig)
	store.Disconnect()
	reminderCache.Disconnect()
}
