package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// recordingQueue — in-memory outbox для тестов воркера.
type recordingQueue struct {
	mu      sync.Mutex
	pending []domain.OutboxMessage
	sent    map[string]bool
	failed  map[string]bool
}

func newRecordingQueue(msgs ...domain.OutboxMessage) *recordingQueue {
	return &recordingQueue{
		pending: msgs,
		sent:    make(map[string]bool),
		failed:  make(map[string]bool),
	}
}

func (q *recordingQueue) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, msg)
	return msg, nil
}

func (q *recordingQueue) PullPending(limit int) ([]domain.OutboxMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]domain.OutboxMessage, 0, limit)
	for _, msg := range q.pending {
		if q.sent[msg.ID] || q.failed[msg.ID] {
			continue
		}
		result = append(result, msg)
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (q *recordingQueue) Stats() (domain.OutboxStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, msg := range q.pending {
		if !q.sent[msg.ID] && !q.failed[msg.ID] {
			count++
		}
	}
	return domain.OutboxStats{PendingCount: count}, nil
}

func (q *recordingQueue) MarkSent(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sent[id] = true
	return nil
}

func (q *recordingQueue) MarkFailed(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[id] = true
	return nil
}

// flakyBroker проваливает первые failures публикаций, остальные принимает.
type flakyBroker struct {
	mu       sync.Mutex
	failures int
	accepted []domain.OutboxMessage
}

func (b *flakyBroker) Publish(msg domain.OutboxMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("broker unavailable")
	}
	b.accepted = append(b.accepted, msg)
	return nil
}

func (b *flakyBroker) messages() []domain.OutboxMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.OutboxMessage(nil), b.accepted...)
}

func statusChangedEvent(id, orderID string) domain.OutboxMessage {
	return domain.OutboxMessage{
		ID:            id,
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     "order.status_changed",
		Payload:       []byte(`{"order_id":` + orderID + `,"status":"OK"}`),
	}
}

func TestWorker_DrainDeliversOrderEvents(t *testing.T) {
	queue := newRecordingQueue(
		statusChangedEvent("msg-1", "1"),
		statusChangedEvent("msg-2", "2"),
	)
	broker := &flakyBroker{}

	worker := NewWorker(queue, broker, nil, nil, Config{RetryBaseDelay: time.Millisecond})

	delivered, buried := worker.Drain(context.Background())
	require.Equal(t, 2, delivered)
	assert.Zero(t, buried)

	msgs := broker.messages()
	require.Len(t, msgs, 2)
	// Порядок публикации совпадает с порядком постановки.
	assert.Equal(t, "1", msgs[0].AggregateID)
	assert.Equal(t, "2", msgs[1].AggregateID)
	assert.True(t, queue.sent["msg-1"])
	assert.True(t, queue.sent["msg-2"])
}

func TestWorker_DrainRecoversAfterTransientError(t *testing.T) {
	queue := newRecordingQueue(statusChangedEvent("msg-1", "7"))
	broker := &flakyBroker{failures: 1}

	worker := NewWorker(queue, broker, nil, nil, Config{
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	})

	delivered, buried := worker.Drain(context.Background())
	require.Equal(t, 1, delivered)
	assert.Zero(t, buried)
	assert.True(t, queue.sent["msg-1"])
	assert.Empty(t, queue.failed)
}

func TestWorker_DrainBuriesUndeliverableEvent(t *testing.T) {
	queue := newRecordingQueue(statusChangedEvent("msg-1", "42"))
	broker := &flakyBroker{failures: 100}
	dlq := &flakyBroker{}

	worker := NewWorker(queue, broker, dlq, nil, Config{
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
	})

	delivered, buried := worker.Drain(context.Background())
	assert.Zero(t, delivered)
	require.Equal(t, 1, buried)
	assert.True(t, queue.failed["msg-1"])
	assert.False(t, queue.sent["msg-1"])

	dead := dlq.messages()
	require.Len(t, dead, 1)

	var letter struct {
		OutboxID  string          `json:"outboxId"`
		OrderID   string          `json:"orderId"`
		EventType string          `json:"eventType"`
		Event     json.RawMessage `json:"event"`
		Reason    string          `json:"reason"`
	}
	require.NoError(t, json.Unmarshal(dead[0].Payload, &letter))
	assert.Equal(t, "msg-1", letter.OutboxID)
	assert.Equal(t, "42", letter.OrderID)
	assert.Equal(t, "order.status_changed", letter.EventType)
	assert.JSONEq(t, `{"order_id":42,"status":"OK"}`, string(letter.Event))
	assert.Contains(t, letter.Reason, "broker unavailable")
}

func TestWorker_DrainWithoutDLQStillMarksFailed(t *testing.T) {
	queue := newRecordingQueue(statusChangedEvent("msg-1", "3"))
	broker := &flakyBroker{failures: 100}

	worker := NewWorker(queue, broker, nil, nil, Config{
		MaxAttempts:    2,
		RetryBaseDelay: time.Millisecond,
	})

	delivered, buried := worker.Drain(context.Background())
	assert.Zero(t, delivered)
	assert.Zero(t, buried)
	assert.True(t, queue.failed["msg-1"])
}

func TestWorker_RunStopsOnContextCancel(t *testing.T) {
	queue := newRecordingQueue(statusChangedEvent("msg-1", "5"))
	broker := &flakyBroker{}

	worker := NewWorker(queue, broker, nil, nil, Config{
		PollInterval:   5 * time.Millisecond,
		RetryBaseDelay: time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return len(broker.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancel")
	}
}
