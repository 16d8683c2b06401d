package domain

// Ограничения каталога повторяют ограничения схемы хранилища.
const (
	// MaxItemNameLen — предел длины названия товара (varchar(40)).
	MaxItemNameLen = 40
	// MaxItemPriceCents — предел цены: decimal(7,2) вмещает не больше 99999.99.
	MaxItemPriceCents = 9_999_999
)

// Item — товар каталога. На него ссылаются строки заказов; сам он о ссылках не знает.
type Item struct {
	ID   int64
	Name string
	// PriceCents — цена в минорных единицах (центах); наружу отдаётся как decimal(7,2).
	PriceCents int64
}

// ValidateInvariants проверяет ограничения каталога до обращения к хранилищу.
func (i *Item) ValidateInvariants() []error {
	var errs []error

	if i.Name == "" {
		errs = append(errs, ErrItemNameRequired)
	}
	if len(i.Name) > MaxItemNameLen {
		errs = append(errs, ErrItemNameTooLong)
	}
	if i.PriceCents < 0 || i.PriceCents > MaxItemPriceCents {
		errs = append(errs, ErrItemPriceInvalid)
	}

	return errs
}

// Customer — внешняя сущность; ядру заказов важен только стабильный идентификатор.
type Customer struct {
	ID    int64
	Name  string
	Email string
}
