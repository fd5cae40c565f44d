package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"geminijoust/db"
	"geminijoust/models"
	"geminijoust/notifier"
	"geminijoust/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// DebateService is the turn-taking state machine. Message acceptance and exit
// handling are each one atomic transaction over the session document plus the
// transcript, so a partially applied turn can never be observed.
type DebateService struct {
	store      *db.Store
	publisher  notifier.Publisher
	moderation *ModerationService
}

// NewDebateService wires the state machine to its store, change publisher and
// moderation pipeline. publisher and moderation may be nil.
func NewDebateService(store *db.Store, publisher notifier.Publisher, moderation *ModerationService) *DebateService {
	return &DebateService{store: store, publisher: publisher, moderation: moderation}
}

// validateSubmission checks every precondition for accepting a message.
// It never mutates the session; a violation yields a stable reason code, so
// repeating an invalid call is rejected identically.
func validateSubmission(session *models.DebateSession, userID string, wordCount int) *RejectedError {
	if !session.HasParticipant(userID) {
		return &RejectedError{Reason: RejectNotParticipant}
	}
	if session.IsConcluded() {
		return &RejectedError{Reason: RejectSessionClosed}
	}
	if session.Turn != userID {
		return &RejectedError{Reason: RejectNotYourTurn}
	}
	info := session.ParticipantInfo[userID]
	if info.HasExited {
		return &RejectedError{Reason: RejectAlreadyExited}
	}
	if wordCount < 1 {
		return &RejectedError{Reason: RejectEmptyMessage}
	}
	if wordCount > models.MaxWordsPerReply {
		return &RejectedError{Reason: RejectReplyTooLong}
	}
	if info.WordsUsed+wordCount > models.MaxWordsPerDebateTotal {
		return &RejectedError{Reason: RejectBudgetExceeded}
	}
	return nil
}

// applySubmission records an accepted message on the session: word accounting,
// turn flip, and the word-limit termination check. The turn flips even when
// the session concludes, for record consistency; the status precondition stops
// any further messages.
func applySubmission(session *models.DebateSession, userID string, wordCount int, now time.Time) {
	info := session.ParticipantInfo[userID]
	info.WordsUsed += wordCount
	session.ParticipantInfo[userID] = info

	other := session.OtherParticipant(userID)
	otherInfo := session.ParticipantInfo[other]
	session.Turn = other
	session.UpdatedAt = now

	senderCapped := info.WordsUsed >= models.MaxWordsPerDebateTotal
	otherCapped := otherInfo.WordsUsed >= models.MaxWordsPerDebateTotal
	if (senderCapped && otherCapped) ||
		(senderCapped && otherInfo.HasExited) ||
		(otherCapped && info.HasExited) {
		session.Status = models.StatusConcludedWordLimit
	}
}

// validateExit checks that the caller can still exit the session.
func validateExit(session *models.DebateSession, userID string) *RejectedError {
	if !session.HasParticipant(userID) {
		return &RejectedError{Reason: RejectNotParticipant}
	}
	if session.IsConcluded() {
		return &RejectedError{Reason: RejectSessionClosed}
	}
	if session.ParticipantInfo[userID].HasExited {
		return &RejectedError{Reason: RejectAlreadyExited}
	}
	return nil
}

// applyExit marks the caller as exited and concludes the session. A single
// exit ends the whole debate: the remaining participant does not continue
// solo, only the concluded status distinguishes how the session ended.
func applyExit(session *models.DebateSession, userID string, now time.Time) {
	info := session.ParticipantInfo[userID]
	info.HasExited = true
	session.ParticipantInfo[userID] = info

	other := session.OtherParticipant(userID)
	otherInfo := session.ParticipantInfo[other]
	switch {
	case otherInfo.HasExited:
		session.Status = models.StatusConcludedBothExited
	case otherInfo.WordsUsed >= models.MaxWordsPerDebateTotal:
		session.Status = models.StatusConcludedOneExitOneLim
	default:
		session.Turn = other
		session.Status = models.StatusConcludedOneExited
	}
	session.UpdatedAt = now
}

type submitResult struct {
	session models.DebateSession
	message models.Message
}

// SubmitMessage applies one turn: it verifies the caller holds the turn and
// the word budgets allow the text, then appends the message and updates the
// session in a single transaction. Accepted messages feed the moderation
// pipeline asynchronously; rejections mutate nothing.
func (d *DebateService) SubmitMessage(ctx context.Context, sessionID, userID, text string) (*models.Message, error) {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, ErrSessionNotFound
	}
	wordCount := utils.CountWords(text)

	result, err := d.store.RunTxn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var session models.DebateSession
		if err := d.store.Sessions().FindOne(sc, bson.M{"_id": oid}).Decode(&session); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if rej := validateSubmission(&session, userID, wordCount); rej != nil {
			return nil, rej
		}

		now := time.Now().UTC()
		msg := models.Message{
			SessionID: oid,
			SenderID:  userID,
			Text:      text,
			Timestamp: now,
			WordCount: wordCount,
		}
		res, err := d.store.Messages().InsertOne(sc, msg)
		if err != nil {
			return nil, err
		}
		if msgID, ok := res.InsertedID.(primitive.ObjectID); ok {
			msg.ID = msgID
		}

		applySubmission(&session, userID, wordCount, now)
		_, err = d.store.Sessions().UpdateOne(sc,
			bson.M{"_id": oid},
			bson.M{"$set": bson.M{
				"participantInfo": session.ParticipantInfo,
				"turn":            session.Turn,
				"status":          session.Status,
				"updatedAt":       session.UpdatedAt,
			}})
		if err != nil {
			return nil, err
		}
		return submitResult{session: session, message: msg}, nil
	})
	if err != nil {
		if errors.Is(err, db.ErrTxnConflict) {
			return nil, fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		return nil, err
	}

	outcome := result.(submitResult)
	d.announceTurn(ctx, sessionID, &outcome.session)
	if d.moderation != nil {
		go d.moderation.Review(outcome.session, outcome.message)
	}
	return &outcome.message, nil
}

// Exit withdraws the caller from the session and concludes it atomically.
func (d *DebateService) Exit(ctx context.Context, sessionID, userID string) error {
	oid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	result, err := d.store.RunTxn(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var session models.DebateSession
		if err := d.store.Sessions().FindOne(sc, bson.M{"_id": oid}).Decode(&session); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrSessionNotFound
			}
			return nil, err
		}
		if rej := validateExit(&session, userID); rej != nil {
			return nil, rej
		}

		applyExit(&session, userID, time.Now().UTC())
		_, err := d.store.Sessions().UpdateOne(sc,
			bson.M{"_id": oid},
			bson.M{"$set": bson.M{
				"participantInfo": session.ParticipantInfo,
				"turn":            session.Turn,
				"status":          session.Status,
				"updatedAt":       session.UpdatedAt,
			}})
		if err != nil {
			return nil, err
		}
		return session, nil
	})
	if err != nil {
		if errors.Is(err, db.ErrTxnConflict) {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		return err
	}

	session := result.(models.DebateSession)
	d.announceSession(ctx, sessionID, &session)
	return nil
}

func (d *DebateService) announceTurn(ctx context.Context, sessionID string, session *models.DebateSession) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(ctx, notifier.ChangeEvent{
		Kind:      notifier.KindMessageCreated,
		SessionID: sessionID,
	})
	d.announceSession(ctx, sessionID, session)
}

func (d *DebateService) announceSession(ctx context.Context, sessionID string, session *models.DebateSession) {
	if d.publisher == nil {
		return
	}
	d.publisher.Publish(ctx, notifier.ChangeEvent{
		Kind:      notifier.KindSessionUpdated,
		SessionID: sessionID,
		UserIDs:   session.Participants,
	})
}
