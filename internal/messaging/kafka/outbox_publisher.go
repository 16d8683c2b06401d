package kafka

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// ErrProducerNotReady возвращается при публикации без живого producer.
var ErrProducerNotReady = errors.New("kafka producer is not initialized")

// EventEnvelope — внешний формат события заказа в топике брокера.
// Имена полей повторяют стиль HTTP API (camelCase).
type EventEnvelope struct {
	MessageID   string          `json:"messageId"`
	OrderID     string          `json:"orderId"`
	EventType   string          `json:"eventType"`
	Event       json.RawMessage `json:"event"`
	PublishedAt time.Time       `json:"publishedAt"`
}

// orderEventPublisher заворачивает outbox-сообщения в EventEnvelope
// и отправляет их в заданный topic.
type orderEventPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт Kafka-паблишер событий заказов.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &orderEventPublisher{producer: producer, topic: topic}
}

func (p *orderEventPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return ErrProducerNotReady
	}

	// Ключ партиционирования — id заказа: все события одного заказа
	// попадают в одну партицию и сохраняют порядок.
	key := msg.AggregateID
	if key == "" {
		key = msg.ID
	}

	return p.producer.PublishEvent(p.topic, key, EventEnvelope{
		MessageID:   msg.ID,
		OrderID:     msg.AggregateID,
		EventType:   msg.EventType,
		Event:       json.RawMessage(msg.Payload),
		PublishedAt: time.Now().UTC(),
	})
}

var _ domain.OutboxPublisher = (*orderEventPublisher)(nil)
