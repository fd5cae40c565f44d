package notifier

import (
	"context"
	"log"
	"sync"
	"time"

	"geminijoust/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// changeChannel is the Redis pub/sub channel bridging server instances.
const changeChannel = "geminijoust:changes"

// snapshotTimeout bounds each snapshot re-read triggered by a change event.
const snapshotTimeout = 5 * time.Second

// SnapshotLoader reads the current state a subscription is watching. The hub
// re-queries through this interface on every change event, so subscribers
// always see full fresh snapshots rather than deltas.
type SnapshotLoader interface {
	ActiveSessionsFor(ctx context.Context, userID string) ([]models.DebateSession, error)
	SessionMessages(ctx context.Context, sessionID string) ([]models.Message, error)
	TopicByID(ctx context.Context, topicID string) (*models.Topic, error)
}

// Subscription is a cancellable handle on an infinite snapshot stream. The
// current matching set arrives first, then a fresh snapshot per change.
// Delivery is latest-wins: a slow consumer skips intermediate snapshots but
// never observes stale state last. Restart by re-subscribing.
type Subscription struct {
	ID string
	C  <-chan Snapshot

	cancel func()
}

// Cancel detaches the subscription and closes its channel.
func (s *Subscription) Cancel() {
	s.cancel()
}

type subscriber struct {
	id   string
	ch   chan Snapshot
	load func(ctx context.Context) (Snapshot, error)

	mu     sync.Mutex
	closed bool
}

// push delivers a snapshot without blocking: if the subscriber has not drained
// the previous snapshot it is replaced.
func (s *subscriber) push(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- snap:
	default:
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- snap:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub fans committed change events out to snapshot subscriptions. Writers call
// Publish after each commit; the hub re-reads the affected state through the
// SnapshotLoader and pushes full snapshots to the watchers it concerns.
// With a Redis client the events travel over pub/sub so every server instance
// sees writes committed by its peers; without one the hub delivers in-process
// only.
type Hub struct {
	loader SnapshotLoader
	rdb    *redis.Client

	mu          sync.RWMutex
	sessionSubs map[string]map[string]*subscriber // userID -> subID -> sub
	messageSubs map[string]map[string]*subscriber // sessionID -> subID -> sub
	topicSubs   map[string]map[string]*subscriber // topicID -> subID -> sub
}

// NewHub creates a hub. rdb may be nil for single-process deployments.
func NewHub(loader SnapshotLoader, rdb *redis.Client) *Hub {
	return &Hub{
		loader:      loader,
		rdb:         rdb,
		sessionSubs: make(map[string]map[string]*subscriber),
		messageSubs: make(map[string]map[string]*subscriber),
		topicSubs:   make(map[string]map[string]*subscriber),
	}
}

// Run consumes the Redis change channel until ctx is cancelled. It is a no-op
// when the hub has no Redis client, since Publish then dispatches directly.
func (h *Hub) Run(ctx context.Context) {
	if h.rdb == nil {
		<-ctx.Done()
		return
	}
	pubsub := h.rdb.Subscribe(ctx, changeChannel)
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			ev, err := UnmarshalEvent(msg.Payload)
			if err != nil {
				log.Printf("notifier: dropping malformed change event: %v", err)
				continue
			}
			h.dispatch(ev)
		}
	}
}

// Publish fans out a change event. With Redis the event round-trips through
// the channel, so the local dispatch happens in Run; otherwise it dispatches
// in-process immediately. Publish never fails the write it announces.
func (h *Hub) Publish(ctx context.Context, ev ChangeEvent) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	if h.rdb == nil {
		h.dispatch(ev)
		return
	}
	payload, err := MarshalEvent(ev)
	if err != nil {
		log.Printf("notifier: failed to marshal change event: %v", err)
		return
	}
	if err := h.rdb.Publish(ctx, changeChannel, payload).Err(); err != nil {
		log.Printf("notifier: failed to publish change event: %v", err)
		// Fall back to local delivery so this instance's watchers still hear it.
		h.dispatch(ev)
	}
}

func (h *Hub) dispatch(ev ChangeEvent) {
	h.mu.RLock()
	var targets []*subscriber
	switch ev.Kind {
	case KindMessageCreated:
		for _, sub := range h.messageSubs[ev.SessionID] {
			targets = append(targets, sub)
		}
	case KindSessionCreated, KindSessionUpdated:
		for _, userID := range ev.UserIDs {
			for _, sub := range h.sessionSubs[userID] {
				targets = append(targets, sub)
			}
		}
	case KindTopicUpdated:
		for _, sub := range h.topicSubs[ev.TopicID] {
			targets = append(targets, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range targets {
		h.refresh(sub)
	}
}

// refresh re-reads a subscriber's state and pushes the resulting snapshot.
func (h *Hub) refresh(sub *subscriber) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	snap, err := sub.load(ctx)
	if err != nil {
		log.Printf("notifier: failed to load snapshot for %s: %v", sub.id, err)
		return
	}
	sub.push(snap)
}

// SubscribeSessions watches the set of active sessions the user participates
// in.
func (h *Hub) SubscribeSessions(ctx context.Context, userID string) (*Subscription, error) {
	load := func(ctx context.Context) (Snapshot, error) {
		sessions, err := h.loader.ActiveSessionsFor(ctx, userID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Sessions: sessions}, nil
	}
	return h.attach(ctx, h.sessionSubs, userID, load)
}

// SubscribeMessages watches a session's transcript.
func (h *Hub) SubscribeMessages(ctx context.Context, sessionID string) (*Subscription, error) {
	load := func(ctx context.Context) (Snapshot, error) {
		messages, err := h.loader.SessionMessages(ctx, sessionID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Messages: messages}, nil
	}
	return h.attach(ctx, h.messageSubs, sessionID, load)
}

// SubscribeTopic watches a single topic document.
func (h *Hub) SubscribeTopic(ctx context.Context, topicID string) (*Subscription, error) {
	load := func(ctx context.Context) (Snapshot, error) {
		topic, err := h.loader.TopicByID(ctx, topicID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Topic: topic}, nil
	}
	return h.attach(ctx, h.topicSubs, topicID, load)
}

// attach registers a subscriber under the given key and delivers the initial
// snapshot before returning.
func (h *Hub) attach(ctx context.Context, registry map[string]map[string]*subscriber, key string, load func(ctx context.Context) (Snapshot, error)) (*Subscription, error) {
	initial, err := load(ctx)
	if err != nil {
		return nil, err
	}

	sub := &subscriber{
		id:   uuid.NewString(),
		ch:   make(chan Snapshot, 1),
		load: load,
	}

	h.mu.Lock()
	if registry[key] == nil {
		registry[key] = make(map[string]*subscriber)
	}
	registry[key][sub.id] = sub
	h.mu.Unlock()

	sub.push(initial)

	cancel := func() {
		h.mu.Lock()
		if subs, ok := registry[key]; ok {
			delete(subs, sub.id)
			if len(subs) == 0 {
				delete(registry, key)
			}
		}
		h.mu.Unlock()
		sub.close()
	}

	return &Subscription{ID: sub.id, C: sub.ch, cancel: cancel}, nil
}
