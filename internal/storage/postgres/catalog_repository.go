package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

type itemRepository struct {
	db *sql.DB
}

// NewItemRepository создаёт PostgreSQL-реализацию ItemRepository.
func NewItemRepository(store *Store) domain.ItemRepository {
	return &itemRepository{db: store.DB()}
}

func (r *itemRepository) Create(item domain.Item) (domain.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	created := item
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO items (name, price_cents)
		VALUES ($1, $2)
		RETURNING id
	`, item.Name, item.PriceCents).Scan(&created.ID)
	if err != nil {
		return domain.Item{}, fmt.Errorf("insert item: %w", err)
	}

	return created, nil
}

func (r *itemRepository) Get(id int64) (domain.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var item domain.Item
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price_cents
		FROM items
		WHERE id = $1
	`, id).Scan(&item.ID, &item.Name, &item.PriceCents)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, domain.ErrItemNotFound
		}
		return domain.Item{}, fmt.Errorf("select item: %w", err)
	}

	return item, nil
}

func (r *itemRepository) List() ([]domain.Item, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price_cents
		FROM items
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.Name, &item.PriceCents); err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate item rows: %w", err)
	}

	return items, nil
}

func (r *itemRepository) Delete(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Ссылки из строк заказов обнуляет ON DELETE SET NULL, строки остаются.
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrItemNotFound
	}

	return nil
}

type customerRepository struct {
	db *sql.DB
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{db: store.DB()}
}

func (r *customerRepository) Create(customer domain.Customer) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	created := customer
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO customers (name, email)
		VALUES ($1, $2)
		RETURNING id
	`, customer.Name, customer.Email).Scan(&created.ID)
	if err != nil {
		return domain.Customer{}, fmt.Errorf("insert customer: %w", err)
	}

	return created, nil
}

func (r *customerRepository) Get(id int64) (domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var customer domain.Customer
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	return customer, nil
}

func (r *customerRepository) Exists(id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM customers WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check customer exists: %w", err)
}

func (r *customerRepository) List() ([]domain.Customer, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email
		FROM customers
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		var customer domain.Customer
		if err := rows.Scan(&customer.ID, &customer.Name, &customer.Email); err != nil {
			return nil, fmt.Errorf("scan customer row: %w", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customer rows: %w", err)
	}

	return customers, nil
}

var (
	_ domain.ItemRepository     = (*itemRepository)(nil)
	_ domain.CustomerRepository = (*customerRepository)(nil)
)
