package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

func TestOrderRepository_PostgresCreateGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customer, item := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store)

	created, err := repo.Create(sampleOrderForIntegrationTest(customer, item))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected store-assigned order id")
	}
	if created.Version != 0 {
		t.Fatalf("expected version 0, got %d", created.Version)
	}
	if created.Orderlines[0].ID == 0 {
		t.Fatal("expected store-assigned orderline id")
	}

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if got.Customer == nil || got.Customer.Name != customer.Name {
		t.Fatalf("expected eager customer, got %+v", got.Customer)
	}
	if len(got.Orderlines) != 1 {
		t.Fatalf("expected 1 orderline, got %d", len(got.Orderlines))
	}
	if got.Orderlines[0].Item == nil || got.Orderlines[0].Item.PriceCents != item.PriceCents {
		t.Fatalf("expected eager item on orderline, got %+v", got.Orderlines[0].Item)
	}

	all, err := repo.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 order, got %d", len(all))
	}
	// Списки не загружают строки заказов.
	if len(all[0].Orderlines) != 0 {
		t.Fatalf("lists must not load orderlines, got %d", len(all[0].Orderlines))
	}
	if all[0].Customer == nil {
		t.Fatal("lists must load the customer")
	}

	backorders, err := repo.ListByStatus(domain.OrderStatusBackorder)
	if err != nil {
		t.Fatalf("list by status: %v", err)
	}
	if len(backorders) != 1 {
		t.Fatalf("expected 1 backorder, got %d", len(backorders))
	}

	closed, err := repo.ListByStatus(domain.OrderStatusClosed)
	if err != nil {
		t.Fatalf("list closed: %v", err)
	}
	if len(closed) != 0 {
		t.Fatalf("expected no closed orders, got %d", len(closed))
	}
}

func TestOrderRepository_PostgresReplace(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customer, item := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store)

	created, err := repo.Create(sampleOrderForIntegrationTest(customer, item))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	update := created
	update.Status = domain.OrderStatusOK
	replaced, err := repo.Replace(created.ID, update)
	if err != nil {
		t.Fatalf("replace order: %v", err)
	}
	if replaced.Version != created.Version+1 {
		t.Fatalf("expected version %d, got %d", created.Version+1, replaced.Version)
	}

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get replaced order: %v", err)
	}
	if got.Status != domain.OrderStatusOK {
		t.Fatalf("expected status OK, got %s", got.Status)
	}
	// Replace перезаписывает только скалярные поля, строки остаются.
	if len(got.Orderlines) != 1 {
		t.Fatalf("replace must not touch orderlines, got %d", len(got.Orderlines))
	}

	// Повтор со старой версией проигрывает гонку.
	if _, err := repo.Replace(created.ID, update); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}

	mismatched := got
	mismatched.ID = got.ID + 1
	if _, err := repo.Replace(got.ID, mismatched); !errors.Is(err, domain.ErrOrderIDMismatch) {
		t.Fatalf("expected ErrOrderIDMismatch, got %v", err)
	}

	// Нулевой id в теле тоже расхождение.
	zeroID := got
	zeroID.ID = 0
	if _, err := repo.Replace(got.ID, zeroID); !errors.Is(err, domain.ErrOrderIDMismatch) {
		t.Fatalf("expected ErrOrderIDMismatch for zero body id, got %v", err)
	}

	ghost := got
	ghost.CustomerID = customer.ID + 999
	if _, err := repo.Replace(got.ID, ghost); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestOrderRepository_PostgresNotFoundBeatsConflict(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customer, item := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store)

	created, err := repo.Create(sampleOrderForIntegrationTest(customer, item))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := repo.Delete(created.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}

	// Исчезнувший заказ важнее гонки версий даже при заведомо чужой версии.
	stale := created
	stale.Version = 42
	if _, err := repo.Replace(created.ID, stale); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_PostgresDeleteCascades(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customer, item := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store)

	created, err := repo.Create(sampleOrderForIntegrationTest(customer, item))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := repo.Delete(created.ID); err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if err := repo.Delete(created.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on repeated delete, got %v", err)
	}

	var lineCount int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM orderlines`).Scan(&lineCount); err != nil {
		t.Fatalf("count orderlines: %v", err)
	}
	if lineCount != 0 {
		t.Fatalf("expected cascade to remove orderlines, got %d", lineCount)
	}

	// Каталог удаление заказа не трогает.
	if _, err := NewItemRepository(store).Get(item.ID); err != nil {
		t.Fatalf("item must survive order delete: %v", err)
	}
	if _, err := NewCustomerRepository(store).Get(customer.ID); err != nil {
		t.Fatalf("customer must survive order delete: %v", err)
	}
}

func TestOrderRepository_PostgresUnknownReferences(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customer, item := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store)

	ghostCustomer := sampleOrderForIntegrationTest(customer, item)
	ghostCustomer.CustomerID = customer.ID + 999
	if _, err := repo.Create(ghostCustomer); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}

	missingItem := item.ID + 999
	ghostItem := sampleOrderForIntegrationTest(customer, item)
	ghostItem.Orderlines[0].ItemID = &missingItem
	if _, err := repo.Create(ghostItem); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	// Откат транзакции не оставляет заказа-сироты.
	all, err := repo.ListAll()
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no orders after failed creates, got %d", len(all))
	}
}

func TestItemRepository_PostgresDeleteClearsOrderlineRefs(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	customer, item := seedCatalogForIntegrationTest(t, store)
	repo := NewOrderRepository(store)

	created, err := repo.Create(sampleOrderForIntegrationTest(customer, item))
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if err := NewItemRepository(store).Delete(item.ID); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	got, err := repo.GetByID(created.ID)
	if err != nil {
		t.Fatalf("get order after item delete: %v", err)
	}
	if len(got.Orderlines) != 1 {
		t.Fatalf("orderline must survive item delete, got %d lines", len(got.Orderlines))
	}
	if got.Orderlines[0].ItemID != nil {
		t.Fatalf("expected item reference to be cleared, got %v", *got.Orderlines[0].ItemID)
	}
	if got.Orderlines[0].Item != nil {
		t.Fatal("expected no eager item after delete")
	}
}

func TestRefViolation(t *testing.T) {
	if err := refViolation(&pgconn.PgError{Code: "23503", ConstraintName: "orders_customer_id_fkey"}); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if err := refViolation(&pgconn.PgError{Code: "23503", ConstraintName: "orderlines_item_id_fkey"}); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if err := refViolation(&pgconn.PgError{Code: "23505"}); err != nil {
		t.Fatalf("non-fk code must not map, got %v", err)
	}
	if err := refViolation(errors.New("plain error")); err != nil {
		t.Fatalf("plain error must not map, got %v", err)
	}
}
