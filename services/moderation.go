package services

import (
	"context"
	"log"
	"strings"
	"time"

	"geminijoust/db"
	"geminijoust/models"
	"geminijoust/notifier"
	"geminijoust/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	// NoFallaciesSentinel suppresses the fallacy alert when the model returns
	// it (compared case-insensitively after trimming).
	NoFallaciesSentinel = "NO_FALLACIES_DETECTED"
	// MentionToken marks a message addressed to the assistant.
	MentionToken = "@gemini"
)

const fallacyInstruction = `You are the moderator of a one-on-one debate. Analyze the following debate message for logical fallacies (ad hominem, straw man, false dilemma, slippery slope, appeal to authority, and similar). If the message contains fallacies, name each one and briefly quote the offending passage. If the message contains no logical fallacies, respond with exactly NO_FALLACIES_DETECTED and nothing else.

Message:
`

const questionInstruction = `You are a helpful assistant embedded in a debate room. A participant has asked you the following question mid-debate. Answer it concisely and factually.

Question:
`

// ModerationService reviews accepted messages out of band: a fallacy analysis
// for every message, plus a Q&A answer when the sender addressed the
// assistant. It only ever appends moderator messages; a failing or timed-out
// completion call is logged and produces nothing. The turn that triggered the
// review is already committed and is never rolled back.
type ModerationService struct {
	store     *db.Store
	completer Completer
	publisher notifier.Publisher
	timeout   time.Duration
}

// NewModerationService wires the pipeline. timeout bounds each completion
// call. publisher may be nil.
func NewModerationService(store *db.Store, completer Completer, publisher notifier.Publisher, timeout time.Duration) *ModerationService {
	return &ModerationService{store: store, completer: completer, publisher: publisher, timeout: timeout}
}

// Review runs the full moderation pass for one accepted message. It is meant
// to run in its own goroutine.
func (m *ModerationService) Review(session models.DebateSession, msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.reviewFallacies(ctx, msg)
	if question, ok := ExtractAssistantQuestion(msg.Text); ok {
		m.answerQuestion(ctx, msg.SessionID, question)
	}
}

// analyzeFallacies asks the completer for a fallacy analysis and reports
// whether an alert should be appended.
func analyzeFallacies(ctx context.Context, completer Completer, text string) (string, bool, error) {
	analysis, err := completer.Complete(ctx, fallacyInstruction+text)
	if err != nil {
		return "", false, err
	}
	if IsNoFallacies(analysis) {
		return analysis, false, nil
	}
	return analysis, true, nil
}

func (m *ModerationService) reviewFallacies(ctx context.Context, msg models.Message) {
	analysis, alert, err := analyzeFallacies(ctx, m.completer, msg.Text)
	if err != nil {
		log.Printf("moderation: fallacy check failed for message %s: %v", msg.ID.Hex(), err)
		return
	}
	if !alert {
		return
	}
	m.appendModeratorMessage(ctx, msg.SessionID, analysis, true, false)
}

func (m *ModerationService) answerQuestion(ctx context.Context, sessionID primitive.ObjectID, question string) {
	answer, err := m.completer.Complete(ctx, questionInstruction+question)
	if err != nil {
		log.Printf("moderation: question answering failed in session %s: %v", sessionID.Hex(), err)
		return
	}
	m.appendModeratorMessage(ctx, sessionID, answer, false, true)
}

func (m *ModerationService) appendModeratorMessage(ctx context.Context, sessionID primitive.ObjectID, text string, fallacyAlert, geminiResponse bool) {
	msg := models.Message{
		SessionID:        sessionID,
		SenderID:         models.ModeratorSenderID,
		Text:             text,
		Timestamp:        time.Now().UTC(),
		WordCount:        utils.CountWords(text),
		IsFallacyAlert:   fallacyAlert,
		IsGeminiResponse: geminiResponse,
	}
	if err := m.store.InsertMessage(ctx, &msg); err != nil {
		log.Printf("moderation: failed to append moderator message to session %s: %v", sessionID.Hex(), err)
		return
	}
	if m.publisher != nil {
		m.publisher.Publish(ctx, notifier.ChangeEvent{
			Kind:      notifier.KindMessageCreated,
			SessionID: sessionID.Hex(),
		})
	}
}

// IsNoFallacies reports whether the analysis is the sentinel that suppresses
// a fallacy alert.
func IsNoFallacies(analysis string) bool {
	return strings.EqualFold(strings.TrimSpace(analysis), NoFallaciesSentinel)
}

// ExtractAssistantQuestion strips the assistant mention token from a message.
// It returns the remaining question text and whether the message was
// addressed to the assistant with a non-empty question.
func ExtractAssistantQuestion(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < len(MentionToken) {
		return "", false
	}
	if !strings.EqualFold(trimmed[:len(MentionToken)], MentionToken) {
		return "", false
	}
	question := strings.TrimSpace(trimmed[len(MentionToken):])
	if question == "" {
		return "", false
	}
	return question, true
}
