package domain

import "time"

// OrderStatus описывает фиксированный набор статусов заказа.
type OrderStatus string

const (
	// OrderStatusOK — заказ в нормальном состоянии, все позиции доступны.
	OrderStatusOK OrderStatus = "OK"
	// OrderStatusBackorder — заказ ожидает поставки части позиций.
	OrderStatusBackorder OrderStatus = "BACKORDER"
	// OrderStatusClosed — заказ закрыт, дальнейшее исполнение не предполагается.
	OrderStatusClosed OrderStatus = "CLOSED"
)

// ParseOrderStatus валидирует строковое представление статуса.
// Множество статусов закрытое: произвольные значения не поддерживаются.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case OrderStatusOK, OrderStatusBackorder, OrderStatusClosed:
		return status, nil
	default:
		return "", ErrStatusInvalid
	}
}

// Valid сообщает, входит ли статус в допустимое множество.
func (s OrderStatus) Valid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

// Orderline представляет одну строку заказа.
type Orderline struct {
	// ID назначается хранилищем при создании.
	ID int64
	// OrderID — заказ-владелец; строка удаляется каскадно вместе с ним.
	OrderID int64
	// ItemID ссылается на товар каталога; nil означает, что товар ещё не назначен.
	// Удаление товара обнуляет ссылку, но не трогает саму строку.
	ItemID *int64
	// Quantity — количество единиц, всегда >= 1 (по умолчанию 1).
	Quantity int32
	// Item заполняется при жадной выборке GetByID и в записи не участвует.
	Item *Item
}

// Order агрегирует заказ и его строки; агрегат — единица атомарности для записи.
type Order struct {
	ID         int64
	CustomerID int64
	Status     OrderStatus
	Orderlines []Orderline
	// Version обеспечивает optimistic locking: запись со старой версией отклоняется.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	// Customer заполняется при жадной выборке; агрегату он не принадлежит.
	Customer *Customer
}

// NormalizeLines проставляет количество по умолчанию для строк, где оно не задано.
func (o *Order) NormalizeLines() {
	for i := range o.Orderlines {
		if o.Orderlines[i].Quantity == 0 {
			o.Orderlines[i].Quantity = 1
		}
	}
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == 0 {
		errs = append(errs, ErrCustomerRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	for _, line := range o.Orderlines {
		if line.Quantity < 1 {
			errs = append(errs, ErrQuantityInvalid)
		}
	}

	return errs
}
