package memory

import (
	"sort"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

type itemRepositoryInMemory struct {
	store *Store
}

// NewItemRepository возвращает in-memory репозиторий каталога товаров.
func NewItemRepository(store *Store) domain.ItemRepository {
	return &itemRepositoryInMemory{store: store}
}

func (r *itemRepositoryInMemory) Create(item domain.Item) (domain.Item, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	item.ID = r.store.nextItemID()
	r.store.items[item.ID] = item
	return item, nil
}

func (r *itemRepositoryInMemory) Get(id int64) (domain.Item, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	item, ok := r.store.items[id]
	if !ok {
		return domain.Item{}, domain.ErrItemNotFound
	}
	return item, nil
}

func (r *itemRepositoryInMemory) List() ([]domain.Item, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Item, 0, len(r.store.items))
	for _, item := range r.store.items {
		result = append(result, item)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

func (r *itemRepositoryInMemory) Delete(id int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(r.store.items, id)

	// Обнуляем ссылки из строк заказов, сами строки остаются.
	for orderID, order := range r.store.orders {
		changed := false
		for i := range order.Orderlines {
			line := &order.Orderlines[i]
			if line.ItemID != nil && *line.ItemID == id {
				line.ItemID = nil
				line.Item = nil
				changed = true
			}
		}
		if changed {
			r.store.orders[orderID] = order
		}
	}

	return nil
}

type customerRepositoryInMemory struct {
	store *Store
}

// NewCustomerRepository возвращает in-memory репозиторий клиентов.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepositoryInMemory{store: store}
}

func (r *customerRepositoryInMemory) Create(customer domain.Customer) (domain.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	customer.ID = r.store.nextCustomerID()
	r.store.customers[customer.ID] = customer
	return customer, nil
}

func (r *customerRepositoryInMemory) Get(id int64) (domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

func (r *customerRepositoryInMemory) Exists(id int64) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	_, ok := r.store.customers[id]
	return ok, nil
}

func (r *customerRepositoryInMemory) List() ([]domain.Customer, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	result := make([]domain.Customer, 0, len(r.store.customers))
	for _, customer := range r.store.customers {
		result = append(result, customer)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })

	return result, nil
}

var (
	_ domain.ItemRepository     = (*itemRepositoryInMemory)(nil)
	_ domain.CustomerRepository = (*customerRepositoryInMemory)(nil)
)
