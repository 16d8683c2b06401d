package domain

// OrderRepository описывает требования к хранилищу заказов.
// Формы выборки фиксированные: списки подтягивают клиента,
// GetByID — полный агрегат со строками и товарами строк.
type OrderRepository interface {
	// ListAll возвращает все заказы с клиентом; строки заказов не загружаются.
	// Пустое хранилище — это пустой список, а не ошибка.
	ListAll() ([]Order, error)
	// ListByStatus возвращает заказы с точным совпадением статуса; форма как у ListAll.
	ListByStatus(status OrderStatus) ([]Order, error)
	// GetByID возвращает заказ с клиентом, строками и товарами строк
	// или ErrOrderNotFound, если заказа нет.
	GetByID(id int64) (Order, error)
	// Create сохраняет заказ вместе со строками в одной транзакции и возвращает
	// агрегат с назначенными хранилищем идентификаторами. Ссылки на
	// несуществующего клиента или товар дают ErrCustomerNotFound / ErrItemNotFound.
	Create(order Order) (Order, error)
	// Replace перезаписывает скалярные поля заказа с учётом optimistic locking;
	// строки заказа не затрагиваются. Возвращает ErrOrderIDMismatch при
	// расхождении id, ErrOrderNotFound если запись исчезла и
	// ErrOrderVersionConflict если её изменил другой писатель.
	// Повторная попытка — ответственность вызывающего.
	Replace(id int64, order Order) (Order, error)
	// Delete удаляет заказ; строки удаляются каскадно, товары каталога не трогаются.
	Delete(id int64) error
	// Exists сообщает, существует ли заказ. Нужен, чтобы отличить исчезнувшую
	// запись от настоящего конфликта версий.
	Exists(id int64) (bool, error)
}

// ItemRepository описывает хранилище каталога товаров.
type ItemRepository interface {
	Create(item Item) (Item, error)
	Get(id int64) (Item, error)
	List() ([]Item, error)
	// Delete удаляет товар; ссылки из строк заказов обнуляются, строки остаются.
	Delete(id int64) error
}

// CustomerRepository описывает хранилище клиентов. Внутреннее устройство
// клиента ядро заказов не интересует — только существование идентификатора.
type CustomerRepository interface {
	Create(customer Customer) (Customer, error)
	Get(id int64) (Customer, error)
	Exists(id int64) (bool, error)
	List() ([]Customer, error)
}
