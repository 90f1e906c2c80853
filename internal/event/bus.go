// Package event provides the in-process publish/subscribe channel used to
// broadcast player change events to live subscribers. Events are transient:
// no replay, no durability. A subscriber only sees events published after it
// subscribed.
package event

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leaderboard-api/internal/domain"
)

// Topic identifies a change-event stream
type Topic string

const (
	TopicUpsertPlayer Topic = "upsertPlayer"
	TopicDeletePlayer Topic = "deletePlayer"
)

// Operation describes what happened to the entity
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// PlayerEvent is broadcast after a successful persistence write. Player
// carries the record as written; for deletes it is the record as it stood
// before removal.
type PlayerEvent struct {
	Topic     Topic         `json:"topic"`
	Operation Operation     `json:"operation"`
	Player    domain.Player `json:"player"`
	Timestamp time.Time     `json:"timestamp"`
}

// subscriberBuffer bounds each subscriber's pending events. Delivery is
// non-blocking: a subscriber that falls this far behind loses events.
const subscriberBuffer = 256

// Subscription is a live listener handle. Receive on C until it is closed
// by Cancel or Bus.Close.
type Subscription struct {
	C      chan PlayerEvent
	topics map[Topic]bool
	bus    *Bus
	id     uint64
}

// Cancel removes the subscription from the bus and closes C
func (s *Subscription) Cancel() {
	s.bus.cancel(s)
}

// Bus is an explicitly constructed pub/sub component. It is safe for
// concurrent subscribe, cancel, and publish.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
	logger *slog.Logger
}

// NewBus creates a new event bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]*Subscription),
		logger: logger,
	}
}

// Subscribe registers a listener for the given topics. Subscribing to no
// topics means all topics.
func (b *Bus) Subscribe(topics ...Topic) *Subscription {
	sub := &Subscription{
		C:      make(chan PlayerEvent, subscriberBuffer),
		topics: make(map[Topic]bool, len(topics)),
		bus:    b,
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.C)
		return sub
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers an event to every current subscriber of its topic
func (b *Bus) Publish(ev PlayerEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if len(sub.topics) > 0 && !sub.topics[ev.Topic] {
			continue
		}
		select {
		case sub.C <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event", "topic", ev.Topic)
		}
	}
}

// SubscriberCount returns the number of active subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close cancels every subscription and rejects further publishes
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		close(sub.C)
		delete(b.subs, id)
	}
}

func (b *Bus) cancel(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.C)
}
