package event

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderboard-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishReachesSubscriber(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	sub := bus.Subscribe(TopicUpsertPlayer)

	ann := domain.Player{ID: "p1", Name: "Ann", Score: 10}
	bus.Publish(PlayerEvent{Topic: TopicUpsertPlayer, Operation: OpCreate, Player: ann})

	select {
	case ev := <-sub.C:
		assert.Equal(t, TopicUpsertPlayer, ev.Topic)
		assert.Equal(t, OpCreate, ev.Operation)
		assert.Equal(t, ann, ev.Player)
		assert.False(t, ev.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestTopicFiltering(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	upserts := bus.Subscribe(TopicUpsertPlayer)
	deletes := bus.Subscribe(TopicDeletePlayer)
	all := bus.Subscribe()

	bus.Publish(PlayerEvent{Topic: TopicDeletePlayer, Operation: OpDelete})

	select {
	case ev := <-deletes.C:
		assert.Equal(t, TopicDeletePlayer, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("delete subscriber should receive the event")
	}

	select {
	case <-all.C:
	case <-time.After(time.Second):
		t.Fatal("unfiltered subscriber should receive the event")
	}

	select {
	case <-upserts.C:
		t.Fatal("upsert subscriber should not receive a delete event")
	default:
	}
}

func TestNoEventsBeforeSubscribe(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	bus.Publish(PlayerEvent{Topic: TopicUpsertPlayer})

	sub := bus.Subscribe(TopicUpsertPlayer)
	select {
	case <-sub.C:
		t.Fatal("no replay expected")
	default:
	}
}

func TestCancelClosesChannel(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	sub := bus.Subscribe(TopicUpsertPlayer)
	require.Equal(t, 1, bus.SubscriberCount())

	sub.Cancel()
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-sub.C
	assert.False(t, open)

	// Cancelling twice is harmless.
	sub.Cancel()
}

func TestSlowSubscriberDropsWithoutBlocking(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	sub := bus.Subscribe(TopicUpsertPlayer)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Publish(PlayerEvent{Topic: TopicUpsertPlayer})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	assert.Equal(t, subscriberBuffer, len(sub.C))
}

func TestConcurrentSubscribePublishCancel(t *testing.T) {
	bus := NewBus(testLogger())
	defer bus.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := bus.Subscribe(TopicUpsertPlayer)
				bus.Publish(PlayerEvent{Topic: TopicUpsertPlayer})
				sub.Cancel()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, bus.SubscriberCount())
}

func TestCloseRejectsPublish(t *testing.T) {
	bus := NewBus(testLogger())
	sub := bus.Subscribe(TopicUpsertPlayer)

	bus.Close()

	_, open := <-sub.C
	assert.False(t, open)

	// Publishing after close must not panic.
	bus.Publish(PlayerEvent{Topic: TopicUpsertPlayer})

	late := bus.Subscribe(TopicUpsertPlayer)
	_, open = <-late.C
	assert.False(t, open)
}
