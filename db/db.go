package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"geminijoust/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names. Messages live in a single collection keyed by sessionId
// rather than a per-session subcollection.
const (
	topicsCollection   = "topics"
	roomsCollection    = "debateRooms"
	messagesCollection = "debateMessages"
)

// maxTxnAttempts bounds optimistic retries before a conflict is surfaced to
// the caller.
const maxTxnAttempts = 3

// ErrTxnConflict is returned when a transaction keeps aborting on concurrent
// writes and the retry budget is exhausted.
var ErrTxnConflict = errors.New("transaction aborted after retries")

// Store wraps the MongoDB client and database handles. It is constructed once
// at startup and passed to every component that needs persistence; there is no
// package-level client.
type Store struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// extractDBName parses the database name from the URI, defaulting to "geminijoust"
func extractDBName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "geminijoust"
	}
	if u.Path != "" && u.Path != "/" {
		return u.Path[1:] // Trim leading '/'
	}
	return "geminijoust"
}

// Connect establishes a connection to MongoDB using the provided URI.
func Connect(ctx context.Context, uri string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection with a ping
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dbName := extractDBName(uri)
	log.Printf("Using database: %s", dbName)

	return &Store{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// Topics returns the topics collection.
func (s *Store) Topics() *mongo.Collection {
	return s.Database.Collection(topicsCollection)
}

// Sessions returns the debate rooms collection.
func (s *Store) Sessions() *mongo.Collection {
	return s.Database.Collection(roomsCollection)
}

// Messages returns the messages collection.
func (s *Store) Messages() *mongo.Collection {
	return s.Database.Collection(messagesCollection)
}

// RunTxn executes fn inside a MongoDB transaction. The body observes a
// snapshot of the documents it reads; conflicting concurrent commits abort
// the transaction, and RunTxn retries up to maxTxnAttempts times before
// surfacing ErrTxnConflict. Non-transient errors from fn propagate unchanged.
func (s *Store) RunTxn(ctx context.Context, fn func(sc mongo.SessionContext) (interface{}, error)) (interface{}, error) {
	sess, err := s.Client.StartSession()
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	var lastErr error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		result, err := sess.WithTransaction(ctx, fn)
		if err == nil {
			return result, nil
		}
		if !isTransient(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrTxnConflict, lastErr)
}

func isTransient(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.HasErrorLabel("TransientTransactionError") ||
			cmdErr.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}

// TopicByID fetches a topic by its hex id. Returns mongo.ErrNoDocuments when
// absent or when the id does not parse.
func (s *Store) TopicByID(ctx context.Context, topicID string) (*models.Topic, error) {
	oid, err := primitive.ObjectIDFromHex(topicID)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}
	var topic models.Topic
	if err := s.Topics().FindOne(ctx, bson.M{"_id": oid}).Decode(&topic); err != nil {
		return nil, err
	}
	return &topic, nil
}

// CreateTopic inserts a new topic and returns its generated id.
func (s *Store) CreateTopic(ctx context.Context, topic *models.Topic) (primitive.ObjectID, error) {
	topic.CreatedAt = time.Now().UTC()
	if topic.Status == "" {
		topic.Status = models.TopicStatusOpen
	}
	if topic.InterestedUsers == nil {
		topic.InterestedUsers = []string{}
	}
	res, err := s.Topics().InsertOne(ctx, topic)
	if err != nil {
		return primitive.NilObjectID, err
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid, nil
}

// ListTopics returns all topics, newest first.
func (s *Store) ListTopics(ctx context.Context) ([]models.Topic, error) {
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	cursor, err := s.Topics().Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var topics []models.Topic
	if err := cursor.All(ctx, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

// SessionByID fetches a debate session by its hex id.
func (s *Store) SessionByID(ctx context.Context, sessionID string) (*models.DebateSession, error) {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}
	var session models.DebateSession
	if err := s.Sessions().FindOne(ctx, bson.M{"_id": oid}).Decode(&session); err != nil {
		return nil, err
	}
	return &session, nil
}

// ActiveSessionsFor returns the active sessions the user participates in.
func (s *Store) ActiveSessionsFor(ctx context.Context, userID string) ([]models.DebateSession, error) {
	filter := bson.M{
		"participants": userID,
		"status":       models.StatusActive,
	}
	cursor, err := s.Sessions().Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var sessions []models.DebateSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionMessages returns a session's transcript ordered by timestamp, with
// insertion order breaking ties.
func (s *Store) SessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, mongo.ErrNoDocuments
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.Messages().Find(ctx, bson.M{"sessionId": oid}, opts)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// InsertMessage appends a message to the transcript. The messages collection
// is append-only.
func (s *Store) InsertMessage(ctx context.Context, msg *models.Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	res, err := s.Messages().InsertOne(ctx, msg)
	if err != nil {
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}
