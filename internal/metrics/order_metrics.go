package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций над заказами.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated  prometheus.Counter
	ordersReplaced prometheus.Counter
	ordersDeleted  prometheus.Counter

	// Переходы статусов и конфликты записи
	statusTransitions *prometheus.CounterVec
	versionConflicts  prometheus.Counter

	// Гистограмма времени операций хранилища
	opDuration *prometheus.HistogramVec

	// Счётчик событий outbox
	outboxEvents prometheus.Counter
}

// NewOrderMetrics создаёт новый экземпляр метрик заказов.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		ordersReplaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_replaced_total",
			Help: "Total number of order replace operations applied",
		}),
		ordersDeleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_deleted_total",
			Help: "Total number of orders deleted",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_status_transitions_total",
			Help: "Total number of order status transitions grouped by target status",
		}, []string{"status"}),
		versionConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_version_conflicts_total",
			Help: "Total number of optimistic locking conflicts on order writes",
		}),
		opDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_operation_duration_seconds",
			Help:    "Duration of order storage operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"operation"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_outbox_events_total",
			Help: "Total number of outbox events enqueued",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderCreated увеличивает счётчик созданных заказов.
func (m *OrderMetrics) RecordOrderCreated() {
	m.ordersCreated.Inc()
}

// RecordOrderReplaced увеличивает счётчик перезаписей заказа.
func (m *OrderMetrics) RecordOrderReplaced() {
	m.ordersReplaced.Inc()
}

// RecordOrderDeleted увеличивает счётчик удалённых заказов.
func (m *OrderMetrics) RecordOrderDeleted() {
	m.ordersDeleted.Inc()
}

// RecordStatusTransition фиксирует переход заказа в целевой статус.
func (m *OrderMetrics) RecordStatusTransition(status string) {
	m.statusTransitions.WithLabelValues(status).Inc()
}

// RecordVersionConflict увеличивает счётчик конфликтов optimistic locking.
func (m *OrderMetrics) RecordVersionConflict() {
	m.versionConflicts.Inc()
}

// RecordOperationDuration записывает время операции хранилища.
func (m *OrderMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.opDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
