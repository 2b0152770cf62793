package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"twitch-chat-bot/model"
)

type stubSender struct {
	mu      sync.Mutex
	batches [][]*pgx.QueuedQuery
}

type stubBatchResults struct{}

func (s *stubSender) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	s.mu.Lock()
	defer s.mu.Unlock()

	copyQueries := append([]*pgx.QueuedQuery(nil), b.QueuedQueries...)
	s.batches = append(s.batches, copyQueries)
	return &stubBatchResults{}
}

func (s *stubSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *stubBatchResults) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, nil }
func (s *stubBatchResults) Query() (pgx.Rows, error)         { return nil, nil }
func (s *stubBatchResults) QueryRow() pgx.Row                { return nil }
func (s *stubBatchResults) Close() error                     { return nil }

func testMessage(id string) model.ChatMessage {
	return model.ChatMessage{ID: id, Channel: "ch", UserID: "u", Username: "name", DisplayName: "disp", Text: "!hello", BotCommand: "hello", SentAt: time.Now()}
}

func TestBatcherFlushesOnMaxBatch(t *testing.T) {
	sender := &stubSender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batcher := newBatcher(ctx, sender, BatchConfig{
		MaxBatch:      2,
		FlushEvery:    time.Hour,
		ChanBuffer:    10,
		StatsLogEvery: time.Hour,
		FlushTimeout:  time.Second,
	}, zap.NewNop())

	batcher.Enqueue(testMessage("1"))
	batcher.Enqueue(testMessage("2"))

	waitForBatches(t, sender, 1)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.batches[0], 2)
	assert.Contains(t, sender.batches[0][0].SQL, "chat_archive")
}

func TestBatcherFlushesOnTimer(t *testing.T) {
	sender := &stubSender{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batcher := newBatcher(ctx, sender, BatchConfig{
		MaxBatch:      10,
		FlushEvery:    50 * time.Millisecond,
		ChanBuffer:    10,
		StatsLogEvery: time.Hour,
		FlushTimeout:  time.Second,
	}, zap.NewNop())

	batcher.Enqueue(testMessage("3"))

	waitForBatches(t, sender, 1)
}

func TestBatcherFlushesOnCancel(t *testing.T) {
	sender := &stubSender{}
	ctx, cancel := context.WithCancel(context.Background())

	batcher := newBatcher(ctx, sender, BatchConfig{
		MaxBatch:      10,
		FlushEvery:    time.Hour,
		ChanBuffer:    10,
		StatsLogEvery: time.Hour,
		FlushTimeout:  time.Second,
	}, zap.NewNop())

	batcher.Enqueue(testMessage("4"))
	// даём горутине забрать сообщение из канала до отмены
	deadline := time.Now().Add(2 * time.Second)
	for len(batcher.input) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-batcher.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("batcher did not stop")
	}
	assert.Equal(t, 1, sender.count(), "final flush")
}

func TestBatcherDropsWhenFull(t *testing.T) {
	b := &Batcher{
		input:  make(chan model.ChatMessage, 1),
		config: BatchConfig{MaxBatch: 1},
		sender: &stubSender{},
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	assert.True(t, b.Enqueue(testMessage("5")))
	assert.False(t, b.Enqueue(testMessage("6")))
	assert.EqualValues(t, 1, b.Dropped())
}

func waitForBatches(t *testing.T, sender *stubSender, expected int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sender.count() >= expected {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected at least %d batches, got %d", expected, sender.count())
}
