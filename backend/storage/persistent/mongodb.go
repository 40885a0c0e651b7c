package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ascentapp/ascent/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on various collections in the MongoDB database.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and a database name.
// Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	// Set a timeout for the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Create the client options for the connection
	clientOptions := options.Client().ApplyURI(uri)
	// Connect to the MongoDB server
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	// Every user has a unique email and a unique username.
	usersCollection := m.collection("users")
	for _, field := range []string{"email", "username"} {
		indexModel := mongo.IndexModel{
			Keys:    bson.M{field: 1},
			Options: options.Index().SetUnique(true),
		}
		if _, err = usersCollection.Indexes().CreateOne(ctx, indexModel); err != nil {
			return fmt.Errorf("error creating %s index: %v", field, err)
		}
	}

	// Habits, rules and challenges are always queried per user.
	userIdIndexModel := mongo.IndexModel{
		Keys:    bson.M{"user_id": 1},
		Options: options.Index(),
	}
	for _, name := range []string{"habits", "rules", "challenges"} {
		if _, err = m.collection(name).Indexes().CreateOne(ctx, userIdIndexModel); err != nil {
			return fmt.Errorf("error creating user_id index on %s: %v", name, err)
		}
	}

	// The completion ledger holds at most one record per (entity, day); the
	// unique compound index is what makes the upsert race-free.
	completionIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "entity_id", Value: 1},
			{Key: "day", Value: -1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err = m.collection("completions").Indexes().CreateOne(ctx, completionIndexModel); err != nil {
		return fmt.Errorf("error creating entity_id and day index on completions: %v", err)
	}

	// Same shape for challenge day logs: one log per (challenge, day number).
	challengeDayIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "challenge_id", Value: 1},
			{Key: "day_number", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	if _, err = m.collection("challengeDays").Indexes().CreateOne(ctx, challengeDayIndexModel); err != nil {
		return fmt.Errorf("error creating challenge_id and day_number index on challengeDays: %v", err)
	}

	// Refresh tokens are looked up by token string and revoked per user.
	refreshTokensCollection := m.collection("refreshTokens")
	tokenIndexModel := mongo.IndexModel{
		Keys:    bson.M{"token": 1},
		Options: options.Index(),
	}
	if _, err = refreshTokensCollection.Indexes().CreateOne(ctx, tokenIndexModel); err != nil {
		return fmt.Errorf("error creating token index: %v", err)
	}
	if _, err = refreshTokensCollection.Indexes().CreateOne(ctx, userIdIndexModel); err != nil {
		return fmt.Errorf("error creating user_id index on refreshTokens: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
// Returns an error if the disconnection process fails.
func (m *MongoStorage) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := m.client.Disconnect(ctx)
	if err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}

	return nil
}

func (m *MongoStorage) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// AddUser adds a new user document to the 'users' collection.
// Returns the added user instance and an error if the insert operation fails.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	result, err := m.collection("users").InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUserByID finds a user document by its id.
func (m *MongoStorage) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

// FindUserByUsername finds a user document by username.
func (m *MongoStorage) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"username": username})
}

// FindUserByEmail finds a user document by email.
func (m *MongoStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *MongoStorage) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	user := &models.User{}
	err := m.collection("users").FindOne(ctx, filter).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// DeleteUser deletes a user document from the 'users' collection together with
// every habit, rule and challenge the user owns, and all records subordinate
// to those entities. Returns the result of the delete operation as a
// DeleteResult instance and an error if the delete operation fails.
func (m *MongoStorage) DeleteUser(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	user, err := m.FindUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	habits, err := m.FindHabitsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, habit := range habits {
		if _, err = m.DeleteHabit(ctx, habit.ID); err != nil {
			return nil, err
		}
	}

	rules, err := m.FindRulesByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if _, err = m.DeleteRule(ctx, rule.ID); err != nil {
			return nil, err
		}
	}

	challenges, err := m.FindChallengesByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, challenge := range challenges {
		if _, err = m.DeleteChallenge(ctx, challenge.ID); err != nil {
			return nil, err
		}
	}

	if _, err = m.DeleteRefreshTokensByUser(ctx, user.ID); err != nil {
		return nil, err
	}

	result, err := m.collection("users").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}

	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// AddHabit adds a new habit document to the 'habits' collection.
// Returns the added habit instance and an error if the insert operation fails.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	result, err := m.collection("habits").InsertOne(ctx, habit)
	if err != nil {
		return nil, err
	}

	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// FindHabit finds a habit document by its id.
func (m *MongoStorage) FindHabit(ctx context.Context, id primitive.ObjectID) (*models.Habit, error) {
	habit := &models.Habit{}
	err := m.collection("habits").FindOne(ctx, bson.M{"_id": id}).Decode(habit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return habit, nil
}

// FindHabitsByUser finds all habit documents belonging to a user.
func (m *MongoStorage) FindHabitsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error) {
	return m.findHabits(ctx, bson.M{"user_id": userID})
}

// FindHabitsByReminderHour finds all habit documents whose reminder is
// configured for the given local hour.
func (m *MongoStorage) FindHabitsByReminderHour(ctx context.Context, hour int) ([]models.Habit, error) {
	return m.findHabits(ctx, bson.M{"reminder_hour": hour})
}

func (m *MongoStorage) findHabits(ctx context.Context, filter bson.M) ([]models.Habit, error) {
	cursor, err := m.collection("habits").Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var habits []models.Habit
	for cursor.Next(ctx) {
		var habit models.Habit
		if err := cursor.Decode(&habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}

	return habits, cursor.Err()
}

// UpdateHabitStreaks overwrites the cached streak counters on a habit.
func (m *MongoStorage) UpdateHabitStreaks(ctx context.Context, id primitive.ObjectID, current, longest int) (*UpdateResult, error) {
	result, err := m.collection("habits").UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"current_streak": current,
			"longest_streak": longest,
		},
	})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// DeleteHabit deletes a habit document and the habit's completion records.
// Returns the result of the delete operation as a DeleteResult instance and an error if the delete operation fails.
func (m *MongoStorage) DeleteHabit(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	// Remove subordinate records first so a failure never orphans them
	// without their parent.
	if _, err := m.collection("completions").DeleteMany(ctx, bson.M{"entity_id": id}); err != nil {
		return nil, err
	}

	result, err := m.collection("habits").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// AddRule adds a new rule document to the 'rules' collection.
// Returns the added rule instance and an error if the insert operation fails.
func (m *MongoStorage) AddRule(ctx context.Context, rule *models.Rule) (*models.Rule, error) {
	result, err := m.collection("rules").InsertOne(ctx, rule)
	if err != nil {
		return nil, err
	}

	rule.ID = result.InsertedID.(primitive.ObjectID)
	return rule, nil
}

// FindRule finds a rule document by its id.
func (m *MongoStorage) FindRule(ctx context.Context, id primitive.ObjectID) (*models.Rule, error) {
	rule := &models.Rule{}
	err := m.collection("rules").FindOne(ctx, bson.M{"_id": id}).Decode(rule)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rule, nil
}

// FindRulesByUser finds all rule documents belonging to a user.
func (m *MongoStorage) FindRulesByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Rule, error) {
	cursor, err := m.collection("rules").Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rules []models.Rule
	for cursor.Next(ctx) {
		var rule models.Rule
		if err := cursor.Decode(&rule); err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, cursor.Err()
}

// UpdateRuleStreaks overwrites the cached streak counters on a rule.
func (m *MongoStorage) UpdateRuleStreaks(ctx context.Context, id primitive.ObjectID, current, longest int) (*UpdateResult, error) {
	result, err := m.collection("rules").UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"current_streak": current,
			"longest_streak": longest,
		},
	})
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// RecordRuleViolation stamps a violation on a rule in a single conditional
// update: the filter only matches when the rule has no prior violation or the
// prior one is at or before cutoff, so two concurrent break attempts cannot
// both get through the cooldown window. A MatchedCount of 0 means the
// condition did not hold; the caller distinguishes a missing rule from an
// active cooldown.
func (m *MongoStorage) RecordRuleViolation(ctx context.Context, id primitive.ObjectID, now, cutoff time.Time) (*UpdateResult, error) {
	filter := bson.M{
		"_id": id,
		"$or": []bson.M{
			{"last_violation_at": bson.M{"$exists": false}},
			{"last_violation_at": nil},
			{"last_violation_at": bson.M{"$lte": cutoff}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"last_violation_at": now,
			"current_streak":    0,
		},
	}

	result, err := m.collection("rules").UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{MatchedCount: result.MatchedCount, ModifiedCount: result.ModifiedCount}, nil
}

// DeleteRule deletes a rule document and the rule's completion records.
func (m *MongoStorage) DeleteRule(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	if _, err := m.collection("completions").DeleteMany(ctx, bson.M{"entity_id": id}); err != nil {
		return nil, err
	}

	result, err := m.collection("rules").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// UpsertCompletion writes the authoritative completion record for
// (entityID, day). The write is a single update-or-insert against the unique
// (entity_id, day) index, so it is atomic per entity-day: concurrent toggles
// converge on one record with the last writer's completed flag.
func (m *MongoStorage) UpsertCompletion(ctx context.Context, entityID primitive.ObjectID, day string, completed bool) (*models.CompletionRecord, error) {
	filter := bson.M{"entity_id": entityID, "day": day}
	update := bson.M{
		"$set":         bson.M{"completed": completed},
		"$setOnInsert": bson.M{"entity_id": entityID, "day": day},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	record := &models.CompletionRecord{}
	err := m.collection("completions").FindOneAndUpdate(ctx, filter, update, opts).Decode(record)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// FindCompletion is a point lookup for (entityID, day).
func (m *MongoStorage) FindCompletion(ctx context.Context, entityID primitive.ObjectID, day string) (*models.CompletionRecord, error) {
	record := &models.CompletionRecord{}
	err := m.collection("completions").FindOne(ctx, bson.M{"entity_id": entityID, "day": day}).Decode(record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// ListCompletions returns the entity's full completion history, most-recent-first.
func (m *MongoStorage) ListCompletions(ctx context.Context, entityID primitive.ObjectID) ([]models.CompletionRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "day", Value: -1}})
	cursor, err := m.collection("completions").Find(ctx, bson.M{"entity_id": entityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.CompletionRecord
	for cursor.Next(ctx) {
		var record models.CompletionRecord
		if err := cursor.Decode(&record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, cursor.Err()
}

// AddChallenge adds a new challenge document to the 'challenges' collection.
func (m *MongoStorage) AddChallenge(ctx context.Context, challenge *models.Challenge) (*models.Challenge, error) {
	result, err := m.collection("challenges").InsertOne(ctx, challenge)
	if err != nil {
		return nil, err
	}

	challenge.ID = result.InsertedID.(primitive.ObjectID)
	return challenge, nil
}

// FindChallenge finds a challenge document by its id.
func (m *MongoStorage) FindChallenge(ctx context.Context, id primitive.ObjectID) (*models.Challenge, error) {
	challenge := &models.Challenge{}
	err := m.collection("challenges").FindOne(ctx, bson.M{"_id": id}).Decode(challenge)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return challenge, nil
}

// FindChallengesByUser finds all challenge documents belonging to a user.
func (m *MongoStorage) FindChallengesByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Challenge, error) {
	cursor, err := m.collection("challenges").Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var challenges []models.Challenge
	for cursor.Next(ctx) {
		var challenge models.Challenge
		if err := cursor.Decode(&challenge); err != nil {
			return nil, err
		}
		challenges = append(challenges, challenge)
	}

	return challenges, cursor.Err()
}

// SetChallengeDay marks or unmarks one day number within a challenge. Marking
// upserts against the unique (challenge_id, day_number) index so repeated
// check-offs stay idempotent; unmarking deletes the log if present.
func (m *MongoStorage) SetChallengeDay(ctx context.Context, challengeID primitive.ObjectID, dayNumber int, completed bool) error {
	filter := bson.M{"challenge_id": challengeID, "day_number": dayNumber}

	if !completed {
		_, err := m.collection("challengeDays").DeleteOne(ctx, filter)
		return err
	}

	update := bson.M{"$setOnInsert": filter}
	opts := options.Update().SetUpsert(true)
	_, err := m.collection("challengeDays").UpdateOne(ctx, filter, update, opts)
	return err
}

// ListChallengeDays returns the completed day logs of a challenge in day order.
func (m *MongoStorage) ListChallengeDays(ctx context.Context, challengeID primitive.ObjectID) ([]models.ChallengeDayLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "day_number", Value: 1}})
	cursor, err := m.collection("challengeDays").Find(ctx, bson.M{"challenge_id": challengeID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []models.ChallengeDayLog
	for cursor.Next(ctx) {
		var dayLog models.ChallengeDayLog
		if err := cursor.Decode(&dayLog); err != nil {
			return nil, err
		}
		logs = append(logs, dayLog)
	}

	return logs, cursor.Err()
}

// DeleteChallenge removes the challenge's day logs first, then the challenge
// record itself.
func (m *MongoStorage) DeleteChallenge(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	if _, err := m.collection("challengeDays").DeleteMany(ctx, bson.M{"challenge_id": id}); err != nil {
		return nil, err
	}

	result, err := m.collection("challenges").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}

// AddRefreshToken adds a refresh token record to the 'refreshTokens' collection.
func (m *MongoStorage) AddRefreshToken(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	result, err := m.collection("refreshTokens").InsertOne(ctx, token)
	if err != nil {
		return nil, err
	}

	token.ID = result.InsertedID.(primitive.ObjectID)
	return token, nil
}

// FindRefreshToken finds a refresh token record by token string.
func (m *MongoStorage) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	record := &models.RefreshToken{}
	err := m.collection("refreshTokens").FindOne(ctx, bson.M{"token": token}).Decode(record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return record, nil
}

// DeleteRefreshTokensByUser deletes all refresh tokens issued to a user.
func (m *MongoStorage) DeleteRefreshTokensByUser(ctx context.Context, userID primitive.ObjectID) (*DeleteResult, error) {
	result, err := m.collection("refreshTokens").DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	return &DeleteResult{DeletedCount: result.DeletedCount}, nil
}
