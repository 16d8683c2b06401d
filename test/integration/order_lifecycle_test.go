package integration

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/service/orders"
	"github.com/vladislavdragonenkov/orders/internal/service/outbox"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

// collectingPublisher копит опубликованные outbox-сообщения.
type collectingPublisher struct {
	published []domain.OutboxMessage
}

func (p *collectingPublisher) Publish(msg domain.OutboxMessage) error {
	p.published = append(p.published, msg)
	return nil
}

// OrderLifecycleTestSuite тестирует полный жизненный цикл заказов
// на in-memory стеке: сервис, outbox и его worker.
type OrderLifecycleTestSuite struct {
	suite.Suite
	svc       *orders.Service
	worker    *outbox.Worker
	publisher *collectingPublisher
	customer  domain.Customer
	item      domain.Item
}

func (suite *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	store := memory.NewStore()
	outboxRepo := memory.NewOutboxRepository()

	suite.svc = orders.NewServiceWithoutMetrics(
		memory.NewOrderRepository(store),
		memory.NewItemRepository(store),
		memory.NewCustomerRepository(store),
		outboxRepo,
		logger,
	)

	suite.publisher = &collectingPublisher{}
	suite.worker = outbox.NewWorker(outboxRepo, suite.publisher, nil, logger, outbox.Config{})

	ctx := context.Background()
	customer, err := suite.svc.CreateCustomer(ctx, domain.Customer{Name: "Kurtis Weissnat", Email: "kurtis@example.com"})
	require.NoError(suite.T(), err)
	suite.customer = customer

	item, err := suite.svc.CreateItem(ctx, domain.Item{Name: "Laptop stand", PriceCents: 8999})
	require.NoError(suite.T(), err)
	suite.item = item
}

func (suite *OrderLifecycleTestSuite) TestSuccessfulOrderLifecycle() {
	ctx := context.Background()

	// 1. Создаём заказ
	created, err := suite.svc.Create(ctx, domain.Order{
		CustomerID: suite.customer.ID,
		Status:     domain.OrderStatusBackorder,
		Orderlines: []domain.Orderline{
			{ItemID: &suite.item.ID, Quantity: 1},
			{ItemID: &suite.item.ID, Quantity: 2},
		},
	})
	suite.Require().NoError(err)
	suite.Require().NotZero(created.ID)
	suite.Equal(int64(0), created.Version)

	// 2. Товар поступил, заказ переходит в OK
	confirmed, err := suite.svc.SetStatusOK(ctx, created.ID, created)
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusOK, confirmed.Status)
	suite.Equal(int64(1), confirmed.Version)

	// 3. Заказ закрывается
	closed, err := suite.svc.SetStatusClosed(ctx, confirmed.ID, confirmed)
	suite.Require().NoError(err)
	suite.Equal(domain.OrderStatusClosed, closed.Status)
	suite.Equal(int64(2), closed.Version)

	// 4. Агрегат читается целиком
	got, err := suite.svc.Get(ctx, created.ID)
	suite.Require().NoError(err)
	suite.Len(got.Orderlines, 2)
	suite.Require().NotNil(got.Customer)
	suite.Equal(suite.customer.Name, got.Customer.Name)

	// 5. Worker доставляет накопленные события по порядку,
	// одна смена статуса даёт одно событие
	delivered, buried := suite.worker.Drain(ctx)
	suite.Equal(3, delivered)
	suite.Zero(buried)
	suite.Require().Len(suite.publisher.published, 3)
	suite.Equal("order.created", suite.publisher.published[0].EventType)
	suite.Equal("order.status_changed", suite.publisher.published[2].EventType)
}

func (suite *OrderLifecycleTestSuite) TestConcurrentEditLosesRace() {
	ctx := context.Background()

	created, err := suite.svc.Create(ctx, domain.Order{
		CustomerID: suite.customer.ID,
		Status:     domain.OrderStatusBackorder,
	})
	suite.Require().NoError(err)

	// Первый редактор успевает раньше.
	_, err = suite.svc.SetStatusOK(ctx, created.ID, created)
	suite.Require().NoError(err)

	// Второй работает с устаревшей версией и проигрывает.
	_, err = suite.svc.SetStatusClosed(ctx, created.ID, created)
	suite.Require().ErrorIs(err, domain.ErrOrderVersionConflict)

	// Конфликт не публикует событий смены статуса сверх успешного.
	suite.worker.Drain(ctx)
	for _, msg := range suite.publisher.published {
		suite.NotEqual("order.updated", msg.EventType)
	}
}

func (suite *OrderLifecycleTestSuite) TestDeletedOrderWinsOverConflict() {
	ctx := context.Background()

	created, err := suite.svc.Create(ctx, domain.Order{
		CustomerID: suite.customer.ID,
		Status:     domain.OrderStatusOK,
	})
	suite.Require().NoError(err)
	suite.Require().NoError(suite.svc.Delete(ctx, created.ID))

	stale := created
	stale.Version = 42
	_, err = suite.svc.Replace(ctx, created.ID, stale)
	suite.Require().ErrorIs(err, domain.ErrOrderNotFound)
}

func (suite *OrderLifecycleTestSuite) TestItemRemovalKeepsOrderHistory() {
	ctx := context.Background()

	created, err := suite.svc.Create(ctx, domain.Order{
		CustomerID: suite.customer.ID,
		Status:     domain.OrderStatusBackorder,
		Orderlines: []domain.Orderline{{ItemID: &suite.item.ID, Quantity: 1}},
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.svc.DeleteItem(ctx, suite.item.ID))

	got, err := suite.svc.Get(ctx, created.ID)
	suite.Require().NoError(err)
	suite.Require().Len(got.Orderlines, 1)
	suite.Nil(got.Orderlines[0].ItemID)
}

func TestOrderLifecycleSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
