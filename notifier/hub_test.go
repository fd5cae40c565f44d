package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"geminijoust/models"
)

type fakeLoader struct {
	mu       sync.Mutex
	sessions map[string][]models.DebateSession
	messages map[string][]models.Message
	topics   map[string]*models.Topic
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		sessions: make(map[string][]models.DebateSession),
		messages: make(map[string][]models.Message),
		topics:   make(map[string]*models.Topic),
	}
}

func (f *fakeLoader) ActiveSessionsFor(ctx context.Context, userID string) ([]models.DebateSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[userID], nil
}

func (f *fakeLoader) SessionMessages(ctx context.Context, sessionID string) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[sessionID], nil
}

func (f *fakeLoader) TopicByID(ctx context.Context, topicID string) (*models.Topic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	topic, ok := f.topics[topicID]
	if !ok {
		return nil, errors.New("topic not found")
	}
	return topic, nil
}

func TestSubscribeSessionsDeliversInitialSnapshot(t *testing.T) {
	loader := newFakeLoader()
	loader.sessions["A"] = []models.DebateSession{{TopicName: "T1", Status: models.StatusActive}}
	hub := NewHub(loader, nil)

	sub, err := hub.SubscribeSessions(context.Background(), "A")
	if err != nil {
		t.Fatalf("SubscribeSessions failed: %v", err)
	}
	defer sub.Cancel()

	snap := <-sub.C
	if len(snap.Sessions) != 1 || snap.Sessions[0].TopicName != "T1" {
		t.Errorf("Expected initial snapshot with one session, got %+v", snap)
	}
}

func TestPublishRefreshesSessionWatchers(t *testing.T) {
	loader := newFakeLoader()
	hub := NewHub(loader, nil)

	sub, err := hub.SubscribeSessions(context.Background(), "A")
	if err != nil {
		t.Fatalf("SubscribeSessions failed: %v", err)
	}
	defer sub.Cancel()
	<-sub.C // drain the empty initial snapshot

	loader.mu.Lock()
	loader.sessions["A"] = []models.DebateSession{{TopicName: "T1", Status: models.StatusActive}}
	loader.mu.Unlock()

	hub.Publish(context.Background(), ChangeEvent{
		Kind:    KindSessionCreated,
		UserIDs: []string{"A", "B"},
	})

	snap := <-sub.C
	if len(snap.Sessions) != 1 {
		t.Errorf("Expected fresh snapshot after publish, got %+v", snap)
	}
}

func TestPublishRefreshesMessageWatchers(t *testing.T) {
	loader := newFakeLoader()
	loader.messages["S1"] = []models.Message{{Text: "opening statement"}}
	hub := NewHub(loader, nil)

	sub, err := hub.SubscribeMessages(context.Background(), "S1")
	if err != nil {
		t.Fatalf("SubscribeMessages failed: %v", err)
	}
	defer sub.Cancel()
	<-sub.C

	loader.mu.Lock()
	loader.messages["S1"] = append(loader.messages["S1"], models.Message{Text: "rebuttal"})
	loader.mu.Unlock()

	hub.Publish(context.Background(), ChangeEvent{Kind: KindMessageCreated, SessionID: "S1"})

	snap := <-sub.C
	if len(snap.Messages) != 2 {
		t.Errorf("Expected two messages in fresh snapshot, got %d", len(snap.Messages))
	}
}

func TestSubscribeTopicAndCancel(t *testing.T) {
	loader := newFakeLoader()
	loader.topics["T1"] = &models.Topic{Name: "Remote Work"}
	hub := NewHub(loader, nil)

	sub, err := hub.SubscribeTopic(context.Background(), "T1")
	if err != nil {
		t.Fatalf("SubscribeTopic failed: %v", err)
	}

	snap := <-sub.C
	if snap.Topic == nil || snap.Topic.Name != "Remote Work" {
		t.Errorf("Expected topic snapshot, got %+v", snap)
	}

	sub.Cancel()
	if _, ok := <-sub.C; ok {
		t.Error("Expected channel closed after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	hub.Publish(context.Background(), ChangeEvent{Kind: KindTopicUpdated, TopicID: "T1"})
}

func TestLatestWinsDelivery(t *testing.T) {
	loader := newFakeLoader()
	hub := NewHub(loader, nil)

	sub, err := hub.SubscribeMessages(context.Background(), "S1")
	if err != nil {
		t.Fatalf("SubscribeMessages failed: %v", err)
	}
	defer sub.Cancel()

	// Without draining, pile up several updates; the subscriber must end up
	// holding the newest state only.
	for i := 0; i < 3; i++ {
		loader.mu.Lock()
		loader.messages["S1"] = append(loader.messages["S1"], models.Message{Text: "msg"})
		loader.mu.Unlock()
		hub.Publish(context.Background(), ChangeEvent{Kind: KindMessageCreated, SessionID: "S1"})
	}

	snap := <-sub.C
	if len(snap.Messages) != 3 {
		t.Errorf("Expected latest snapshot with 3 messages, got %d", len(snap.Messages))
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	ev := ChangeEvent{Kind: KindSessionCreated, SessionID: "S1", UserIDs: []string{"A", "B"}, Timestamp: 42}
	payload, err := MarshalEvent(ev)
	if err != nil {
		t.Fatalf("MarshalEvent failed: %v", err)
	}
	got, err := UnmarshalEvent(payload)
	if err != nil {
		t.Fatalf("UnmarshalEvent failed: %v", err)
	}
	if got.Kind != ev.Kind || got.SessionID != ev.SessionID || len(got.UserIDs) != 2 {
		t.Errorf("Round trip mismatch: %+v", got)
	}
}
