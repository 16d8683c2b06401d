package memory

import (
	"sync"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// Store держит все таблицы in-memory хранилища под одним мьютексом.
// Репозитории делят состояние, потому что ссылочная целостность
// проверяется между сущностями: заказ ссылается на клиента,
// строка заказа на товар каталога.
type Store struct {
	mu sync.RWMutex

	orders    map[int64]domain.Order
	items     map[int64]domain.Item
	customers map[int64]domain.Customer

	orderSeq    int64
	lineSeq     int64
	itemSeq     int64
	customerSeq int64
}

// NewStore создаёт пустое in-memory хранилище для локальной разработки и тестов.
func NewStore() *Store {
	return &Store{
		orders:    make(map[int64]domain.Order),
		items:     make(map[int64]domain.Item),
		customers: make(map[int64]domain.Customer),
	}
}

// nextOrderID выдаёт следующий идентификатор заказа; вызывается под мьютексом.
func (s *Store) nextOrderID() int64 {
	s.orderSeq++
	return s.orderSeq
}

func (s *Store) nextLineID() int64 {
	s.lineSeq++
	return s.lineSeq
}

func (s *Store) nextItemID() int64 {
	s.itemSeq++
	return s.itemSeq
}

func (s *Store) nextCustomerID() int64 {
	s.customerSeq++
	return s.customerSeq
}

// cloneOrder копирует заказ вместе со строками, чтобы мутации снаружи
// не доставали до канонического состояния хранилища.
func cloneOrder(order domain.Order) domain.Order {
	clone := order
	clone.Customer = nil
	clone.Orderlines = make([]domain.Orderline, len(order.Orderlines))
	for i, line := range order.Orderlines {
		lineCopy := line
		lineCopy.Item = nil
		if line.ItemID != nil {
			id := *line.ItemID
			lineCopy.ItemID = &id
		}
		clone.Orderlines[i] = lineCopy
	}
	return clone
}
