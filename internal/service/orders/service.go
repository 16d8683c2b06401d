package orders

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/orders/internal/metrics"
)

// Service реализует сценарии жизненного цикла заказа поверх репозиториев.
// Транспорт не дублирует его проверки: вся валидация и политика
// конкурентной записи живут здесь и ниже.
type Service struct {
	orders    domain.OrderRepository
	items     domain.ItemRepository
	customers domain.CustomerRepository
	outbox    domain.OutboxRepository // опциональный transactional outbox
	logger    *log.Entry
	metrics   *metrics.OrderMetrics
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	orders domain.OrderRepository,
	items domain.ItemRepository,
	customers domain.CustomerRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		items:     items,
		customers: customers,
		logger:    logger,
		metrics:   metrics.NewOrderMetrics(),
	}
}

// NewServiceWithOutbox создаёт сервис, публикующий события жизненного цикла
// через transactional outbox.
func NewServiceWithOutbox(
	orders domain.OrderRepository,
	items domain.ItemRepository,
	customers domain.CustomerRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	svc := NewService(orders, items, customers, logger)
	svc.outbox = outbox
	return svc
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	items domain.ItemRepository,
	customers domain.CustomerRepository,
	outbox domain.OutboxRepository,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "order-service")
	}
	return &Service{
		orders:    orders,
		items:     items,
		customers: customers,
		outbox:    outbox,
		logger:    logger,
	}
}

// List возвращает все заказы; клиент загружен, строки нет.
func (s *Service) List(_ context.Context) ([]domain.Order, error) {
	return s.orders.ListAll()
}

// ListByStatus валидирует статус и возвращает заказы с точным совпадением.
func (s *Service) ListByStatus(_ context.Context, status string) ([]domain.Order, error) {
	parsed, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	return s.orders.ListByStatus(parsed)
}

// Get возвращает полный агрегат заказа.
func (s *Service) Get(_ context.Context, id int64) (domain.Order, error) {
	return s.orders.GetByID(id)
}

// Create валидирует и сохраняет новый заказ вместе со строками.
func (s *Service) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	start := time.Now()

	order.NormalizeLines()
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	created, err := s.orders.Create(order)
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
		s.metrics.RecordOperationDuration("create", time.Since(start))
	}
	s.enqueueOrderEvent(kafka.EventTypeOrderCreated, created)

	s.logger.WithFields(log.Fields{
		"order_id": created.ID,
		"status":   string(created.Status),
	}).Info("order created")

	return created, nil
}

// Replace перезаписывает скалярные поля заказа с optimistic locking.
// Конфликт версий отдаётся вызывающему как есть, без повторных попыток.
func (s *Service) Replace(_ context.Context, id int64, order domain.Order) (domain.Order, error) {
	return s.replace(id, order, kafka.EventTypeOrderUpdated)
}

// replace — общий путь записи для Replace и SetStatus. Каждая запись
// публикует ровно одно событие; его тип задаёт вызывающий.
func (s *Service) replace(id int64, order domain.Order, eventType kafka.EventType) (domain.Order, error) {
	start := time.Now()

	// Тело обязано называть тот же заказ, что и путь; нулевой id тоже расхождение.
	if order.ID != id {
		return domain.Order{}, domain.ErrOrderIDMismatch
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errors.Join(errs...)
	}

	replaced, err := s.orders.Replace(id, order)
	if err != nil {
		if s.metrics != nil && domain.IsVersionConflict(err) {
			s.metrics.RecordVersionConflict()
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderReplaced()
		s.metrics.RecordOperationDuration("replace", time.Since(start))
	}
	s.enqueueOrderEvent(eventType, replaced)

	return replaced, nil
}

// SetStatus переводит заказ в целевой статус тем же путём записи, что и
// Replace, наследуя все его исходы, включая конфликт версий. Публикуется
// одно событие order.status_changed, без отдельного order.updated.
func (s *Service) SetStatus(_ context.Context, id int64, order domain.Order, target domain.OrderStatus) (domain.Order, error) {
	order.Status = target

	replaced, err := s.replace(id, order, kafka.EventTypeOrderStatusChanged)
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordStatusTransition(string(target))
	}

	return replaced, nil
}

// SetStatusOK переводит заказ в статус OK.
func (s *Service) SetStatusOK(ctx context.Context, id int64, order domain.Order) (domain.Order, error) {
	return s.SetStatus(ctx, id, order, domain.OrderStatusOK)
}

// SetStatusBackorder переводит заказ в статус BACKORDER.
func (s *Service) SetStatusBackorder(ctx context.Context, id int64, order domain.Order) (domain.Order, error) {
	return s.SetStatus(ctx, id, order, domain.OrderStatusBackorder)
}

// SetStatusClosed переводит заказ в статус CLOSED.
func (s *Service) SetStatusClosed(ctx context.Context, id int64, order domain.Order) (domain.Order, error) {
	return s.SetStatus(ctx, id, order, domain.OrderStatusClosed)
}

// Delete удаляет заказ; строки удаляются каскадно.
func (s *Service) Delete(_ context.Context, id int64) error {
	start := time.Now()

	if err := s.orders.Delete(id); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderDeleted()
		s.metrics.RecordOperationDuration("delete", time.Since(start))
	}
	s.enqueueOrderEvent(kafka.EventTypeOrderDeleted, domain.Order{ID: id})

	s.logger.WithField("order_id", id).Info("order deleted")

	return nil
}

// CreateItem валидирует и сохраняет товар каталога.
func (s *Service) CreateItem(_ context.Context, item domain.Item) (domain.Item, error) {
	if errs := item.ValidateInvariants(); len(errs) > 0 {
		return domain.Item{}, errors.Join(errs...)
	}
	return s.items.Create(item)
}

// GetItem возвращает товар каталога.
func (s *Service) GetItem(_ context.Context, id int64) (domain.Item, error) {
	return s.items.Get(id)
}

// ListItems возвращает весь каталог.
func (s *Service) ListItems(_ context.Context) ([]domain.Item, error) {
	return s.items.List()
}

// DeleteItem удаляет товар; ссылки из строк заказов обнуляются.
func (s *Service) DeleteItem(_ context.Context, id int64) error {
	return s.items.Delete(id)
}

// CreateCustomer сохраняет клиента.
func (s *Service) CreateCustomer(_ context.Context, customer domain.Customer) (domain.Customer, error) {
	return s.customers.Create(customer)
}

// GetCustomer возвращает клиента.
func (s *Service) GetCustomer(_ context.Context, id int64) (domain.Customer, error) {
	return s.customers.Get(id)
}

// ListCustomers возвращает всех клиентов.
func (s *Service) ListCustomers(_ context.Context) ([]domain.Customer, error) {
	return s.customers.List()
}

// enqueueOrderEvent кладёт событие жизненного цикла в outbox.
// Ошибка постановки не валит основную операцию: запись уже зафиксирована,
// событие просто не попадёт в брокер.
func (s *Service) enqueueOrderEvent(eventType kafka.EventType, order domain.Order) {
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(kafka.NewOrderEvent(
		eventType, order.ID, order.CustomerID, string(order.Status), order.Version,
	))
	if err != nil {
		s.logger.WithError(err).WithField("event_type", string(eventType)).Warn("failed to marshal outbox event")
		return
	}

	_, err = s.outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   strconv.FormatInt(order.ID, 10),
		EventType:     string(eventType),
		Payload:       payload,
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id":   order.ID,
			"event_type": string(eventType),
		}).Warn("failed to enqueue outbox event")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
