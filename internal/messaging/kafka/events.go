package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// События жизненного цикла заказа
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderUpdated       EventType = "order.updated"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderDeleted       EventType = "order.deleted"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "orders.order.events"
	TopicDeadLetterQueue = "orders.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    int64                  `json:"order_id"`
	CustomerID int64                  `json:"customer_id"`
	Status     string                 `json:"status"`
	Version    int64                  `json:"version"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID int64, status string, version int64) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		Version:    version,
		Timestamp:  time.Now(),
	}
}
