package domain

import "errors"

var (
	// ErrOrderNotFound возвращается, если заказ не найден в хранилище
	// (в том числе когда он исчез между чтением и записью).
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при перезаписи:
	// запись всё ещё существует, но её успел изменить другой писатель.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOrderIDMismatch — идентификатор в пути и в теле запроса не совпадают.
	ErrOrderIDMismatch = errors.New("order id mismatch")
	// ErrCustomerNotFound — заказ ссылается на несуществующего клиента.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrItemNotFound — строка заказа ссылается на несуществующий товар каталога.
	ErrItemNotFound = errors.New("item not found")
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка статуса вне множества {OK, BACKORDER, CLOSED}.
	ErrStatusInvalid = errors.New("order status is invalid")
	// Ошибка количества меньше единицы в строке заказа.
	ErrQuantityInvalid = errors.New("orderline quantity must be at least 1")
	// Ошибка отсутствующего названия товара.
	ErrItemNameRequired = errors.New("item name is required")
	// Ошибка слишком длинного названия товара.
	ErrItemNameTooLong = errors.New("item name exceeds 40 characters")
	// Ошибка цены вне диапазона decimal(7,2).
	ErrItemPriceInvalid = errors.New("item price is out of range")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsReferentialViolation проверяет, является ли ошибка нарушением
// ссылочной целостности (несуществующий клиент или товар).
func IsReferentialViolation(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) || errors.Is(err, ErrItemNotFound)
}

// IsValidationError проверяет, относится ли ошибка к нарушению инвариантов полей.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrCustomerRequired) ||
		errors.Is(err, ErrStatusInvalid) ||
		errors.Is(err, ErrQuantityInvalid) ||
		errors.Is(err, ErrItemNameRequired) ||
		errors.Is(err, ErrItemNameTooLong) ||
		errors.Is(err, ErrItemPriceInvalid)
}
