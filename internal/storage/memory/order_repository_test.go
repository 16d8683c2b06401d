package memory_test

import (
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/orders/internal/domain"
	"github.com/vladislavdragonenkov/orders/internal/storage/memory"
)

// fixture создаёт хранилище с одним клиентом и одним товаром.
func fixture(t *testing.T) (*memory.Store, domain.Customer, domain.Item) {
	t.Helper()

	store := memory.NewStore()
	customer, err := memory.NewCustomerRepository(store).Create(domain.Customer{Name: "Leanne Graham", Email: "leanne@example.com"})
	if err != nil {
		t.Fatalf("create customer failed: %v", err)
	}
	item, err := memory.NewItemRepository(store).Create(domain.Item{Name: "Thinkpad", PriceCents: 99999})
	if err != nil {
		t.Fatalf("create item failed: %v", err)
	}
	return store, customer, item
}

func newOrder(customerID int64, itemID *int64) domain.Order {
	return domain.Order{
		CustomerID: customerID,
		Status:     domain.OrderStatusBackorder,
		Orderlines: []domain.Orderline{
			{ItemID: itemID, Quantity: 2},
		},
	}
}

func TestOrderRepository_CreateAssignsIDs(t *testing.T) {
	store, customer, item := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, &item.ID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected assigned order id")
	}
	if created.Version != 0 {
		t.Fatalf("expected version 0, got %d", created.Version)
	}
	if created.Orderlines[0].ID == 0 {
		t.Fatal("expected assigned orderline id")
	}
	if created.Orderlines[0].OrderID != created.ID {
		t.Fatalf("orderline must reference owning order, got %d", created.Orderlines[0].OrderID)
	}
}

func TestOrderRepository_CreateUnknownReferences(t *testing.T) {
	store, customer, _ := fixture(t)
	repo := memory.NewOrderRepository(store)

	if _, err := repo.Create(newOrder(999, nil)); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	missing := int64(999)
	if _, err := repo.Create(newOrder(customer.ID, &missing)); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestOrderRepository_GetByIDLoadsAggregate(t *testing.T) {
	store, customer, item := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, &item.ID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Customer == nil || got.Customer.Name != customer.Name {
		t.Fatal("expected eager customer on GetByID")
	}
	if len(got.Orderlines) != 1 {
		t.Fatalf("expected 1 orderline, got %d", len(got.Orderlines))
	}
	if got.Orderlines[0].Item == nil || got.Orderlines[0].Item.Name != item.Name {
		t.Fatal("expected eager item on orderline")
	}
}

func TestOrderRepository_GetByIDNotFound(t *testing.T) {
	store, _, _ := fixture(t)
	repo := memory.NewOrderRepository(store)

	if _, err := repo.GetByID(404); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_ListShapes(t *testing.T) {
	store, customer, item := fixture(t)
	repo := memory.NewOrderRepository(store)

	first, err := repo.Create(newOrder(customer.ID, &item.ID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second := newOrder(customer.ID, nil)
	second.Status = domain.OrderStatusOK
	if _, err := repo.Create(second); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	all, err := repo.ListAll()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
	if all[0].ID != first.ID {
		t.Fatalf("expected ascending id order, got %d first", all[0].ID)
	}
	// Списки подтягивают клиента, но не строки заказов.
	if all[0].Customer == nil {
		t.Fatal("expected eager customer in list")
	}
	if all[0].Orderlines != nil {
		t.Fatal("lists must not load orderlines")
	}

	ok, err := repo.ListByStatus(domain.OrderStatusOK)
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if len(ok) != 1 || ok[0].Status != domain.OrderStatusOK {
		t.Fatalf("expected single OK order, got %v", ok)
	}

	closed, err := repo.ListByStatus(domain.OrderStatusClosed)
	if err != nil {
		t.Fatalf("list by status failed: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("expected empty list for CLOSED, got %d", len(closed))
	}
}

func TestOrderRepository_Replace(t *testing.T) {
	store, customer, item := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, &item.ID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	update := created
	update.Status = domain.OrderStatusOK
	replaced, err := repo.Replace(created.ID, update)
	if err != nil {
		t.Fatalf("replace failed: %v", err)
	}
	if replaced.Version != created.Version+1 {
		t.Fatalf("expected version increment, got %d", replaced.Version)
	}

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != domain.OrderStatusOK {
		t.Fatalf("expected status OK, got %s", got.Status)
	}
	// Строки заказа перезапись не затрагивает.
	if len(got.Orderlines) != 1 {
		t.Fatalf("expected orderlines untouched, got %d", len(got.Orderlines))
	}
}

func TestOrderRepository_ReplaceIDMismatch(t *testing.T) {
	store, customer, _ := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	update := created
	update.ID = created.ID + 1
	if _, err := repo.Replace(created.ID, update); !errors.Is(err, domain.ErrOrderIDMismatch) {
		t.Fatalf("expected ErrOrderIDMismatch, got %v", err)
	}
}

func TestOrderRepository_ReplaceZeroIDBody(t *testing.T) {
	store, customer, _ := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// Нулевой id в теле не совпадает с id из пути и не должен ничего менять.
	update := domain.Order{CustomerID: customer.ID, Status: domain.OrderStatusClosed, Version: created.Version}
	if _, err := repo.Replace(created.ID, update); !errors.Is(err, domain.ErrOrderIDMismatch) {
		t.Fatalf("expected ErrOrderIDMismatch, got %v", err)
	}

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != created.Status {
		t.Fatalf("order must stay untouched after rejected replace, got status %s", got.Status)
	}
	if got.Version != created.Version {
		t.Fatalf("version must stay untouched after rejected replace, got %d", got.Version)
	}
}

func TestOrderRepository_ReplaceVersionConflict(t *testing.T) {
	store, customer, _ := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stale := created
	if _, err := repo.Replace(created.ID, stale); err != nil {
		t.Fatalf("first replace failed: %v", err)
	}
	// Вторая запись с той же версией проигрывает гонку.
	if _, err := repo.Replace(created.ID, stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}
}

func TestOrderRepository_ReplaceGoneOrder(t *testing.T) {
	store, customer, _ := fixture(t)
	repo := memory.NewOrderRepository(store)

	created, err := repo.Create(newOrder(customer.ID, nil))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Delete(created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// Исчезнувшая запись даёт NotFound, а не конфликт версий.
	if _, err := repo.Replace(created.ID, created); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_Delete(t *testing.T) {
	store, customer, item := fixture(t)
	repo := memory.NewOrderRepository(store)
	items := memory.NewItemRepository(store)

	created, err := repo.Create(newOrder(customer.ID, &item.ID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := repo.Delete(created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetByID(created.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound after delete, got %v", err)
	}
	// Каскад не трогает каталог.
	if _, err := items.Get(item.ID); err != nil {
		t.Fatalf("item must survive order delete: %v", err)
	}

	if err := repo.Delete(created.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on second delete, got %v", err)
	}
}

func TestItemRepository_DeleteClearsOrderlineRefs(t *testing.T) {
	store, customer, item := fixture(t)
	orders := memory.NewOrderRepository(store)
	items := memory.NewItemRepository(store)

	created, err := orders.Create(newOrder(customer.ID, &item.ID))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := items.Delete(item.ID); err != nil {
		t.Fatalf("delete item failed: %v", err)
	}

	got, err := orders.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Orderlines) != 1 {
		t.Fatalf("orderline must survive item delete, got %d lines", len(got.Orderlines))
	}
	if got.Orderlines[0].ItemID != nil {
		t.Fatal("expected orderline item reference to be cleared")
	}
}
