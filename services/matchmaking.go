package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"geminijoust/db"
	"geminijoust/models"
	"geminijoust/notifier"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MatchmakingService pairs waiting users into debate sessions. All waiting-set
// mutations happen inside a single store transaction, so two users racing to
// join can never both consume the same waiter.
type MatchmakingService struct {
	store     *db.Store
	publisher notifier.Publisher
}

// NewMatchmakingService wires the engine to its store and change publisher.
// publisher may be nil.
func NewMatchmakingService(store *db.Store, publisher notifier.Publisher) *MatchmakingService {
	return &MatchmakingService{store: store, publisher: publisher}
}

type pairingDecision int

const (
	decideWait pairingDecision = iota // add caller to the waiting pool
	decideNoop                        // nothing to do, caller keeps waiting
	decidePair                        // create a session with the opponent
)

// decidePairing applies the matchmaking rules to a topic snapshot. The waiting
// pool is insertion-ordered, so "first waiting user" means oldest waiter; when
// the caller is already in the pool the oldest waiter other than the caller is
// chosen. A pool that somehow only offers the caller itself is a no-op.
func decidePairing(topic *models.Topic, userID string) (pairingDecision, string) {
	if topic.IsWaiting(userID) {
		for _, other := range topic.InterestedUsers {
			if other != userID {
				return decidePair, other
			}
		}
		return decideNoop, ""
	}
	if len(topic.InterestedUsers) > 0 {
		opponent := topic.InterestedUsers[0]
		if opponent == userID {
			return decideNoop, ""
		}
		return decidePair, opponent
	}
	return decideWait, ""
}

type pairingResult struct {
	sessionID    string
	participants []string
	joinedPool   bool
}

// SignalInterest registers userID's interest in a topic. If another user is
// waiting, both are paired into a new active session and the new session id
// is returned; otherwise the caller joins the waiting pool and "" is returned.
// The read-pair-create-update sequence is one atomic transaction: either the
// full pairing effect applies or none of it does.
func (s *MatchmakingService) SignalInterest(ctx context.Context, topicID, userID string) (string, error) {
	oid, err := primitive.ObjectIDFromHex(topicID)
	if err != nil {
		return "", ErrTopicNotFound
	}

	result, err := s.store.RunTxn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var topic models.Topic
		if err := s.store.Topics().FindOne(sc, bson.M{"_id": oid}).Decode(&topic); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrTopicNotFound
			}
			return nil, err
		}

		decision, opponent := decidePairing(&topic, userID)
		switch decision {
		case decideNoop:
			return pairingResult{}, nil

		case decideWait:
			_, err := s.store.Topics().UpdateOne(sc,
				bson.M{"_id": oid},
				bson.M{"$addToSet": bson.M{"interestedUsers": userID}})
			if err != nil {
				return nil, err
			}
			return pairingResult{joinedPool: true}, nil

		default: // decidePair
			now := time.Now().UTC()
			participants := []string{opponent, userID}
			session := models.DebateSession{
				TopicID:      oid,
				TopicName:    topic.Name,
				Participants: participants,
				ParticipantInfo: map[string]models.ParticipantState{
					opponent: {},
					userID:   {},
				},
				Status:    models.StatusActive,
				Turn:      participants[rand.Intn(len(participants))],
				CreatedAt: now,
				UpdatedAt: now,
			}
			res, err := s.store.Sessions().InsertOne(sc, session)
			if err != nil {
				return nil, err
			}
			_, err = s.store.Topics().UpdateOne(sc,
				bson.M{"_id": oid},
				bson.M{"$pull": bson.M{"interestedUsers": bson.M{"$in": participants}}})
			if err != nil {
				return nil, err
			}
			sessionOID, _ := res.InsertedID.(primitive.ObjectID)
			return pairingResult{sessionID: sessionOID.Hex(), participants: participants}, nil
		}
	})
	if err != nil {
		if errors.Is(err, db.ErrTxnConflict) {
			return "", fmt.Errorf("%w: %v", ErrJoinFailed, err)
		}
		return "", err
	}

	outcome := result.(pairingResult)
	s.announce(ctx, topicID, outcome)
	return outcome.sessionID, nil
}

func (s *MatchmakingService) announce(ctx context.Context, topicID string, outcome pairingResult) {
	if s.publisher == nil {
		return
	}
	if outcome.joinedPool || outcome.sessionID != "" {
		s.publisher.Publish(ctx, notifier.ChangeEvent{
			Kind:    notifier.KindTopicUpdated,
			TopicID: topicID,
		})
	}
	if outcome.sessionID != "" {
		log.Printf("Paired %v into session %s", outcome.participants, outcome.sessionID)
		s.publisher.Publish(ctx, notifier.ChangeEvent{
			Kind:      notifier.KindSessionCreated,
			SessionID: outcome.sessionID,
			TopicID:   topicID,
			UserIDs:   outcome.participants,
		})
	}
}
