package kafka

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leaderboard-api/internal/config"
	"github.com/leaderboard-api/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler captures every batch handed to the ingestion path
type recordingHandler struct {
	mu      sync.Mutex
	batches []domain.BatchScoreSubmission
}

func (h *recordingHandler) IngestScore(ctx context.Context, sub domain.ScoreSubmission) error {
	return nil
}

func (h *recordingHandler) IngestScoreBatch(ctx context.Context, batch domain.BatchScoreSubmission) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	copied := make([]domain.ScoreSubmission, len(batch.Scores))
	copy(copied, batch.Scores)
	h.batches = append(h.batches, domain.BatchScoreSubmission{Scores: copied})
	return nil
}

func (h *recordingHandler) recorded() []domain.BatchScoreSubmission {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.BatchScoreSubmission, len(h.batches))
	copy(out, h.batches)
	return out
}

// stubSession implements sarama.ConsumerGroupSession for claim tests
type stubSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *stubSession) Claims() map[string][]int32                               { return nil }
func (s *stubSession) MemberID() string                                         { return "test-member" }
func (s *stubSession) GenerationID() int32                                      { return 1 }
func (s *stubSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {}
func (s *stubSession) Commit()                                                  {}
func (s *stubSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {}
func (s *stubSession) Context() context.Context                                 { return s.ctx }

func (s *stubSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *stubSession) markedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marked)
}

// stubClaim implements sarama.ConsumerGroupClaim over an in-memory channel
type stubClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *stubClaim) Topic() string                              { return "player-scores" }
func (c *stubClaim) Partition() int32                           { return 0 }
func (c *stubClaim) InitialOffset() int64                       { return 0 }
func (c *stubClaim) HighWaterMarkOffset() int64                 { return 0 }
func (c *stubClaim) Messages() <-chan *sarama.ConsumerMessage   { return c.messages }

func newClaimHandler(cfg *config.KafkaConfig, h ScoreHandler) *consumerGroupHandler {
	return &consumerGroupHandler{
		consumer: &Consumer{
			config:  cfg,
			handler: h,
			logger:  testLogger(),
		},
		ready: make(chan bool),
	}
}

func scoreMessage(t *testing.T, offset int64, name string, score int64) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(domain.ScoreSubmission{Name: name, Score: score})
	require.NoError(t, err)
	return &sarama.ConsumerMessage{Topic: "player-scores", Offset: offset, Value: value}
}

func TestConsumeClaimFlushesOnBatchSize(t *testing.T) {
	handler := &recordingHandler{}
	claimHandler := newClaimHandler(&config.KafkaConfig{
		BatchSize:    2,
		BatchTimeout: time.Hour,
	}, handler)

	session := &stubSession{ctx: context.Background()}
	claim := &stubClaim{messages: make(chan *sarama.ConsumerMessage, 8)}
	claim.messages <- scoreMessage(t, 1, "Ann", 10)
	claim.messages <- scoreMessage(t, 2, "Bob", 20)
	claim.messages <- scoreMessage(t, 3, "Cal", 30)
	close(claim.messages)

	require.NoError(t, claimHandler.ConsumeClaim(session, claim))

	batches := handler.recorded()
	require.Len(t, batches, 2)
	assert.Len(t, batches[0].Scores, 2, "first batch flushes when the size limit is hit")
	assert.Len(t, batches[1].Scores, 1, "remainder flushes when the claim drains")
	assert.Equal(t, "Cal", batches[1].Scores[0].Name)
	assert.Equal(t, 3, session.markedCount())
}

func TestConsumeClaimFlushesOnTimeout(t *testing.T) {
	handler := &recordingHandler{}
	claimHandler := newClaimHandler(&config.KafkaConfig{
		BatchSize:    100,
		BatchTimeout: 50 * time.Millisecond,
	}, handler)

	ctx, cancel := context.WithCancel(context.Background())
	session := &stubSession{ctx: ctx}
	claim := &stubClaim{messages: make(chan *sarama.ConsumerMessage, 8)}

	done := make(chan struct{})
	go func() {
		defer close(done)
		claimHandler.ConsumeClaim(session, claim)
	}()

	claim.messages <- scoreMessage(t, 1, "Ann", 10)

	require.Eventually(t, func() bool {
		return len(handler.recorded()) == 1
	}, 2*time.Second, 10*time.Millisecond, "partial batch should flush on timeout")
	assert.Equal(t, "Ann", handler.recorded()[0].Scores[0].Name)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("claim loop did not exit on session cancellation")
	}
}

func TestConsumeClaimSkipsInvalidMessages(t *testing.T) {
	handler := &recordingHandler{}
	claimHandler := newClaimHandler(&config.KafkaConfig{
		BatchSize:    2,
		BatchTimeout: time.Hour,
	}, handler)

	session := &stubSession{ctx: context.Background()}
	claim := &stubClaim{messages: make(chan *sarama.ConsumerMessage, 8)}
	claim.messages <- &sarama.ConsumerMessage{Topic: "player-scores", Offset: 1, Value: []byte("not json")}
	claim.messages <- scoreMessage(t, 2, "", 10)
	claim.messages <- scoreMessage(t, 3, "Ann", 10)
	claim.messages <- scoreMessage(t, 4, "Bob", 20)
	close(claim.messages)

	require.NoError(t, claimHandler.ConsumeClaim(session, claim))

	batches := handler.recorded()
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Scores, 2)
	assert.Equal(t, "Ann", batches[0].Scores[0].Name)
	assert.Equal(t, "Bob", batches[0].Scores[1].Name)

	// Bad messages are still marked so the group does not re-consume them.
	assert.Equal(t, 4, session.markedCount())
}
