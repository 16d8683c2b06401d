package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/orders/internal/domain"
)

// orderListQuery — общая форма выборки списков: заказ плюс клиент,
// строки заказов не загружаются.
const orderListQuery = `
	SELECT o.id, o.customer_id, o.status, o.version, o.created_at, o.updated_at,
	       c.name, c.email
	FROM orders o
	JOIN customers c ON c.id = o.customer_id
`

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{db: store.DB()}
}

func (r *orderRepository) ListAll() ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, orderListQuery+` ORDER BY o.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	return scanOrderRows(rows)
}

func (r *orderRepository) ListByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, orderListQuery+`
		WHERE o.status = $1
		ORDER BY o.id ASC
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list orders by status: %w", err)
	}
	defer rows.Close()

	return scanOrderRows(rows)
}

func (r *orderRepository) GetByID(id int64) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var (
		order    domain.Order
		status   string
		customer domain.Customer
	)
	err := r.db.QueryRowContext(ctx, orderListQuery+` WHERE o.id = $1`, id).Scan(
		&order.ID, &order.CustomerID, &status, &order.Version,
		&order.CreatedAt, &order.UpdatedAt,
		&customer.Name, &customer.Email,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}
	order.Status = domain.OrderStatus(status)
	customer.ID = order.CustomerID
	order.Customer = &customer

	lines, err := r.loadLines(ctx, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Orderlines = lines

	return order, nil
}

func (r *orderRepository) Create(order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	created := order
	created.Version = 0
	created.CreatedAt = now
	created.UpdatedAt = now

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (customer_id, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`,
		created.CustomerID, string(created.Status), created.Version,
		created.CreatedAt, created.UpdatedAt,
	).Scan(&created.ID)
	if err != nil {
		if refErr := refViolation(err); refErr != nil {
			err = refErr
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for i := range created.Orderlines {
		line := &created.Orderlines[i]
		line.OrderID = created.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO orderlines (order_id, item_id, quantity)
			VALUES ($1, $2, $3)
			RETURNING id
		`,
			line.OrderID, line.ItemID, line.Quantity,
		).Scan(&line.ID)
		if err != nil {
			if refErr := refViolation(err); refErr != nil {
				err = refErr
				return domain.Order{}, err
			}
			return domain.Order{}, fmt.Errorf("insert orderline: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order: %w", err)
	}

	return created, nil
}

func (r *orderRepository) Replace(id int64, order domain.Order) (domain.Order, error) {
	// Тело обязано называть тот же заказ, что и путь; нулевой id тоже расхождение.
	if order.ID != id {
		return domain.Order{}, domain.ErrOrderIDMismatch
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	updatedAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $1,
		    status = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
	`,
		order.CustomerID, string(order.Status), updatedAt, id, order.Version,
	)
	if err != nil {
		if refErr := refViolation(err); refErr != nil {
			err = refErr
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Order{}, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Ноль строк значит либо гонку версий, либо исчезнувший заказ.
		// Различаем их повторной проверкой в той же транзакции.
		exists, checkErr := r.orderExistsTx(ctx, tx, id)
		if checkErr != nil {
			err = checkErr
			return domain.Order{}, err
		}
		if !exists {
			err = domain.ErrOrderNotFound
			return domain.Order{}, err
		}
		err = domain.ErrOrderVersionConflict
		return domain.Order{}, err
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit replace order: %w", err)
	}

	replaced := order
	replaced.ID = id
	replaced.Version = order.Version + 1
	replaced.UpdatedAt = updatedAt

	return replaced, nil
}

func (r *orderRepository) Delete(id int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Строки заказа удаляет каскад на уровне схемы.
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}

	return nil
}

func (r *orderRepository) Exists(id int64) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var found int64
	err := r.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func (r *orderRepository) loadLines(ctx context.Context, orderID int64) ([]domain.Orderline, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT l.id, l.order_id, l.item_id, l.quantity,
		       i.name, i.price_cents
		FROM orderlines l
		LEFT JOIN items i ON i.id = l.item_id
		WHERE l.order_id = $1
		ORDER BY l.id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load orderlines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.Orderline, 0)
	for rows.Next() {
		var (
			line       domain.Orderline
			itemID     sql.NullInt64
			itemName   sql.NullString
			priceCents sql.NullInt64
		)
		if err := rows.Scan(&line.ID, &line.OrderID, &itemID, &line.Quantity, &itemName, &priceCents); err != nil {
			return nil, fmt.Errorf("scan orderline: %w", err)
		}
		if itemID.Valid {
			id := itemID.Int64
			line.ItemID = &id
			line.Item = &domain.Item{
				ID:         id,
				Name:       itemName.String,
				PriceCents: priceCents.Int64,
			}
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orderlines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExistsTx(ctx context.Context, tx *sql.Tx, orderID int64) (bool, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func scanOrderRows(rows *sql.Rows) ([]domain.Order, error) {
	orders := make([]domain.Order, 0)
	for rows.Next() {
		var (
			order    domain.Order
			status   string
			customer domain.Customer
		)
		if err := rows.Scan(
			&order.ID, &order.CustomerID, &status, &order.Version,
			&order.CreatedAt, &order.UpdatedAt,
			&customer.Name, &customer.Email,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		order.Status = domain.OrderStatus(status)
		customer.ID = order.CustomerID
		order.Customer = &customer
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

// refViolation переводит нарушение внешнего ключа (23503) в доменную ошибку.
// Имя ограничения указывает, какая именно ссылка оборвана.
func refViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23503" {
		return nil
	}
	constraint := strings.ToLower(pgErr.ConstraintName)
	switch {
	case strings.Contains(constraint, "customer"):
		return domain.ErrCustomerNotFound
	case strings.Contains(constraint, "item"):
		return domain.ErrItemNotFound
	default:
		return fmt.Errorf("foreign key violation: %w", err)
	}
}

var _ domain.OrderRepository = (*orderRepository)(nil)
