package memory

import (
	"sort"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// orderRepositoryInMemory повторяет семантику PostgreSQL-реализации:
// те же формы выборки, тот же optimistic locking, те же доменные ошибки.
type orderRepositoryInMemory struct {
	store *Store
}

// NewOrderRepository возвращает in-memory репозиторий заказов поверх общего хранилища.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepositoryInMemory{store: store}
}

func (r *orderRepositoryInMemory) ListAll() ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listLocked(func(domain.Order) bool { return true }), nil
}

func (r *orderRepositoryInMemory) ListByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	return r.listLocked(func(order domain.Order) bool { return order.Status == status }), nil
}

func (r *orderRepositoryInMemory) GetByID(id int64) (domain.Order, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	stored, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	order := cloneOrder(stored)
	r.attachCustomerLocked(&order)
	for i := range order.Orderlines {
		line := &order.Orderlines[i]
		if line.ItemID == nil {
			continue
		}
		if item, ok := r.store.items[*line.ItemID]; ok {
			itemCopy := item
			line.Item = &itemCopy
		}
	}

	return order, nil
}

func (r *orderRepositoryInMemory) Create(order domain.Order) (domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.customers[order.CustomerID]; !ok {
		return domain.Order{}, domain.ErrCustomerNotFound
	}
	for _, line := range order.Orderlines {
		if line.ItemID == nil {
			continue
		}
		if _, ok := r.store.items[*line.ItemID]; !ok {
			return domain.Order{}, domain.ErrItemNotFound
		}
	}

	now := time.Now().UTC()
	created := cloneOrder(order)
	created.ID = r.store.nextOrderID()
	created.Version = 0
	created.CreatedAt = now
	created.UpdatedAt = now
	for i := range created.Orderlines {
		created.Orderlines[i].ID = r.store.nextLineID()
		created.Orderlines[i].OrderID = created.ID
	}

	r.store.orders[created.ID] = created

	return cloneOrder(created), nil
}

func (r *orderRepositoryInMemory) Replace(id int64, order domain.Order) (domain.Order, error) {
	// Тело обязано называть тот же заказ, что и путь; нулевой id тоже расхождение.
	if order.ID != id {
		return domain.Order{}, domain.ErrOrderIDMismatch
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.Order{}, domain.ErrOrderVersionConflict
	}
	if _, ok := r.store.customers[order.CustomerID]; !ok {
		return domain.Order{}, domain.ErrCustomerNotFound
	}

	// Перезаписываются только скалярные поля; строки заказа не затрагиваются.
	current.CustomerID = order.CustomerID
	current.Status = order.Status
	current.Version++
	current.UpdatedAt = time.Now().UTC()
	r.store.orders[id] = current

	replaced := order
	replaced.ID = id
	replaced.Version = current.Version
	replaced.UpdatedAt = current.UpdatedAt

	return replaced, nil
}

func (r *orderRepositoryInMemory) Delete(id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.orders[id]; !ok {
		return domain.ErrOrderNotFound
	}
	// Строки живут внутри агрегата, отдельной очистки не требуется.
	delete(r.store.orders, id)
	return nil
}

func (r *orderRepositoryInMemory) Exists(id int64) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.orders[id]
	return ok, nil
}

// listLocked собирает заказы под уже взятым мьютексом: клиент подтягивается,
// строки в списках не загружаются.
func (r *orderRepositoryInMemory) listLocked(match func(domain.Order) bool) []domain.Order {
	result := make([]domain.Order, 0, len(r.store.orders))
	for _, stored := range r.store.orders {
		if !match(stored) {
			continue
		}
		order := stored
		order.Orderlines = nil
		r.attachCustomerLocked(&order)
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result
}

func (r *orderRepositoryInMemory) attachCustomerLocked(order *domain.Order) {
	if customer, ok := r.store.customers[order.CustomerID]; ok {
		customerCopy := customer
		order.Customer = &customerCopy
	}
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
