package notifier

import (
	"context"
	"encoding/json"

	"geminijoust/models"
)

// Kind labels a change event published after a committed write.
type Kind string

const (
	KindTopicUpdated   Kind = "topic_updated"
	KindSessionCreated Kind = "session_created"
	KindSessionUpdated Kind = "session_updated"
	KindMessageCreated Kind = "message_created"
)

// ChangeEvent describes a committed change to a topic, session or transcript.
// Events carry identifiers only; subscribers always re-read the current state,
// so delivery is at-least-once and latest-wins.
type ChangeEvent struct {
	Kind      Kind     `json:"kind"`
	TopicID   string   `json:"topicId,omitempty"`
	SessionID string   `json:"sessionId,omitempty"`
	UserIDs   []string `json:"userIds,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// MarshalEvent serializes an event for the Redis channel.
func MarshalEvent(ev ChangeEvent) (string, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UnmarshalEvent deserializes an event received from the Redis channel.
func UnmarshalEvent(data string) (ChangeEvent, error) {
	var ev ChangeEvent
	err := json.Unmarshal([]byte(data), &ev)
	return ev, err
}

// Snapshot is one full-state update delivered to a subscriber. Exactly one of
// the fields is populated, matching the subscription variant.
type Snapshot struct {
	Sessions []models.DebateSession `json:"sessions,omitempty"`
	Messages []models.Message       `json:"messages,omitempty"`
	Topic    *models.Topic          `json:"topic,omitempty"`
}

// Publisher is the write-side half of the notifier: services publish a change
// event after every committed mutation.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent)
}
