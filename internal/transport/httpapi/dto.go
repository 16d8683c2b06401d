package httpapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// Price хранит цену в центах, но сериализуется как десятичное
// число с двумя знаками: схема каталога использует decimal(7,2).
type Price int64

// MarshalJSON отдаёт цену как JSON-число вида 129.99.
func (p Price) MarshalJSON() ([]byte, error) {
	cents := int64(p)
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return []byte(fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)), nil
}

// UnmarshalJSON принимает число или строку с точностью до двух знаков.
func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if raw == "" || raw == "null" {
		*p = 0
		return nil
	}

	sign := int64(1)
	if strings.HasPrefix(raw, "-") {
		sign = -1
		raw = raw[1:]
	}

	whole, frac, _ := strings.Cut(raw, ".")
	if whole == "" {
		whole = "0"
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid price: %s", raw)
	}

	var cents int64
	switch len(frac) {
	case 0:
	case 1:
		frac += "0"
		fallthrough
	case 2:
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid price: %s", raw)
		}
	default:
		return fmt.Errorf("price precision exceeds two decimal places: %s", raw)
	}

	*p = Price(sign * (units*100 + cents))
	return nil
}

type customerDTO struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type itemDTO struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	Price Price  `json:"price"`
}

type orderlineDTO struct {
	ID       int64    `json:"id,omitempty"`
	OrderID  int64    `json:"orderId,omitempty"`
	ItemID   *int64   `json:"itemId"`
	Quantity int32    `json:"quantity,omitempty"`
	Item     *itemDTO `json:"item,omitempty"`
}

type orderDTO struct {
	ID         int64          `json:"id,omitempty"`
	CustomerID int64          `json:"customerId"`
	Status     string         `json:"status"`
	Version    int64          `json:"version"`
	Orderlines []orderlineDTO `json:"orderlines"`
	CreatedAt  *time.Time     `json:"createdAt,omitempty"`
	UpdatedAt  *time.Time     `json:"updatedAt,omitempty"`
	Customer   *customerDTO   `json:"customer,omitempty"`
}

type errorDTO struct {
	Error string `json:"error"`
}

func toCustomerDTO(customer domain.Customer) customerDTO {
	return customerDTO{ID: customer.ID, Name: customer.Name, Email: customer.Email}
}

func toItemDTO(item domain.Item) itemDTO {
	return itemDTO{ID: item.ID, Name: item.Name, Price: Price(item.PriceCents)}
}

func toOrderlineDTO(line domain.Orderline) orderlineDTO {
	dto := orderlineDTO{
		ID:       line.ID,
		OrderID:  line.OrderID,
		ItemID:   line.ItemID,
		Quantity: line.Quantity,
	}
	if line.Item != nil {
		item := toItemDTO(*line.Item)
		dto.Item = &item
	}
	return dto
}

func toOrderDTO(order domain.Order) orderDTO {
	dto := orderDTO{
		ID:         order.ID,
		CustomerID: order.CustomerID,
		Status:     string(order.Status),
		Version:    order.Version,
		Orderlines: make([]orderlineDTO, 0, len(order.Orderlines)),
	}
	for _, line := range order.Orderlines {
		dto.Orderlines = append(dto.Orderlines, toOrderlineDTO(line))
	}
	if !order.CreatedAt.IsZero() {
		createdAt := order.CreatedAt
		dto.CreatedAt = &createdAt
	}
	if !order.UpdatedAt.IsZero() {
		updatedAt := order.UpdatedAt
		dto.UpdatedAt = &updatedAt
	}
	if order.Customer != nil {
		customer := toCustomerDTO(*order.Customer)
		dto.Customer = &customer
	}
	return dto
}

func toOrderDTOs(orders []domain.Order) []orderDTO {
	result := make([]orderDTO, 0, len(orders))
	for _, order := range orders {
		result = append(result, toOrderDTO(order))
	}
	return result
}

func (d orderDTO) toDomain() domain.Order {
	order := domain.Order{
		ID:         d.ID,
		CustomerID: d.CustomerID,
		Status:     domain.OrderStatus(d.Status),
		Version:    d.Version,
		Orderlines: make([]domain.Orderline, 0, len(d.Orderlines)),
	}
	for _, line := range d.Orderlines {
		order.Orderlines = append(order.Orderlines, domain.Orderline{
			ID:       line.ID,
			OrderID:  line.OrderID,
			ItemID:   line.ItemID,
			Quantity: line.Quantity,
		})
	}
	return order
}

func (d itemDTO) toDomain() domain.Item {
	return domain.Item{ID: d.ID, Name: d.Name, PriceCents: int64(d.Price)}
}

func (d customerDTO) toDomain() domain.Customer {
	return domain.Customer{ID: d.ID, Name: d.Name, Email: d.Email}
}
