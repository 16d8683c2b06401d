package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// Worker доводит события жизненного цикла заказа из transactional outbox до
// брокера. Сервис заказов пишет событие в ту же БД, что и сам заказ; воркер
// опрашивает backlog и публикует каждое событие, при исчерпании попыток
// хоронит его в DLQ.

const (
	defaultPollInterval   = 1 * time.Second
	defaultBatchSize      = 100
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 50 * time.Millisecond
)

var (
	publishResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_outbox_publish_attempts_total",
		Help: "Publish attempts for order lifecycle events grouped by result and event type.",
	}, []string{"result", "event_type"})
	pendingBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orders_outbox_pending_records",
		Help: "Order events awaiting publication in the transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "orders_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest unpublished order event.",
	})
)

// Config задаёт параметры опроса outbox. Нулевые поля заменяются значениями
// по умолчанию.
type Config struct {
	PollInterval   time.Duration
	BatchSize      int
	MaxAttempts    int
	RetryBaseDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryBaseDelay < 0 {
		c.RetryBaseDelay = defaultRetryBaseDelay
	}
	return c
}

// deadLetter — конверт недоставленного события заказа для ручного разбора.
type deadLetter struct {
	OutboxID  string          `json:"outboxId"`
	OrderID   string          `json:"orderId"`
	EventType string          `json:"eventType"`
	Event     json.RawMessage `json:"event"`
	Reason    string          `json:"reason"`
	FailedAt  time.Time       `json:"failedAt"`
}

// Worker публикует pending-события заказов из outbox.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	dlq       domain.OutboxPublisher
	logger    *log.Entry
	cfg       Config
}

// NewWorker создаёт воркер публикации. dlq может быть nil, тогда
// недоставленные события только помечаются failed в outbox.
func NewWorker(
	repo domain.OutboxRepository,
	publisher domain.OutboxPublisher,
	dlq domain.OutboxPublisher,
	logger *log.Entry,
	cfg Config,
) *Worker {
	if logger == nil {
		logger = log.WithField("component", "outbox-worker")
	}
	return &Worker{
		repo:      repo,
		publisher: publisher,
		dlq:       dlq,
		logger:    logger,
		cfg:       cfg.withDefaults(),
	}
}

// Run опрашивает outbox до отмены контекста.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain публикует накопившиеся pending-события одним проходом.
// Возвращает число доставленных и похороненных в DLQ сообщений.
func (w *Worker) Drain(ctx context.Context) (delivered, buried int) {
	if ctx.Err() != nil {
		return 0, 0
	}

	w.observeBacklog()

	events, err := w.repo.PullPending(w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending order events")
		return 0, 0
	}

	for _, event := range events {
		if ctx.Err() != nil {
			break
		}

		entry := w.logger.WithFields(log.Fields{
			"outbox_id":  event.ID,
			"order_id":   event.AggregateID,
			"event_type": event.EventType,
		})

		err := w.deliver(ctx, event)
		if err == nil {
			if markErr := w.repo.MarkSent(event.ID); markErr != nil {
				entry.WithError(markErr).Warn("failed to mark order event as sent")
			}
			delivered++
			continue
		}

		entry.WithError(err).Error("order event undeliverable, moving to dead letter queue")
		publishResults.WithLabelValues("failed", event.EventType).Inc()
		if w.bury(event, err) {
			buried++
		}
		if markErr := w.repo.MarkFailed(event.ID); markErr != nil {
			entry.WithError(markErr).Warn("failed to mark order event as failed")
		}
	}

	w.observeBacklog()
	return delivered, buried
}

// deliver пытается опубликовать событие с exponential backoff между попытками.
func (w *Worker) deliver(ctx context.Context, event domain.OutboxMessage) error {
	delay := w.cfg.RetryBaseDelay
	var lastErr error

	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if attempt > 1 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		if err := w.publisher.Publish(event); err != nil {
			lastErr = err
			publishResults.WithLabelValues("retry_error", event.EventType).Inc()
			continue
		}

		publishResults.WithLabelValues("sent", event.EventType).Inc()
		return nil
	}

	return fmt.Errorf("publish order event after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

// bury отправляет недоставленное событие в DLQ. Возвращает true при успехе.
func (w *Worker) bury(event domain.OutboxMessage, cause error) bool {
	if w.dlq == nil {
		return false
	}

	payload, err := json.Marshal(deadLetter{
		OutboxID:  event.ID,
		OrderID:   event.AggregateID,
		EventType: event.EventType,
		Event:     json.RawMessage(event.Payload),
		Reason:    cause.Error(),
		FailedAt:  time.Now().UTC(),
	})
	if err != nil {
		w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to marshal dead letter")
		return false
	}

	dead := event
	dead.Payload = payload
	if err := w.dlq.Publish(dead); err != nil {
		w.logger.WithError(err).WithField("outbox_id", event.ID).Warn("failed to publish dead letter")
		publishResults.WithLabelValues("dlq_failed", event.EventType).Inc()
		return false
	}

	return true
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingBacklog.Set(float64(stats.PendingCount))

	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if since := time.Since(stats.OldestPendingAt).Seconds(); since > 0 {
			age = since
		}
	}
	oldestPendingAge.Set(age)
}
