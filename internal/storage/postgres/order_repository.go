package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type orderRepository struct {
	store *Store
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{store: store}
}

const orderColumns = `
	id, customer_id, status, total_minor, payment_method,
	shipping_address, billing_address, notes, version,
	created_at, updated_at, deleted_at
`

func (r *orderRepository) Create(ctx context.Context, tx domain.Tx, order domain.Order) error {
	q, err := r.store.q(tx)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO orders (
			id, customer_id, status, total_minor, payment_method,
			shipping_address, billing_address, notes, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		order.ID, order.CustomerID, string(order.Status), order.TotalMinor, order.PaymentMethod,
		order.ShippingAddress, order.BillingAddress, order.Notes, order.Version,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrOrderVersionConflict
		}
		return fmt.Errorf("insert order: %w", err)
	}

	// line_no фиксирует порядок позиций из запроса: created_at у всех строк
	// одинаковый, а UUID порядок вставки не сохраняет.
	for i, line := range order.Lines {
		if _, err = q.ExecContext(ctx, `
			INSERT INTO order_lines (
				id, order_id, line_no, product_id, product_name, unit_price_minor, qty, subtotal_minor, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`,
			line.ID, order.ID, i, line.ProductID, line.ProductName,
			line.UnitPriceMinor, line.Qty, line.SubtotalMinor, line.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	return r.getWhere(ctx, r.store.db, `WHERE id = $1 AND deleted_at IS NULL`, id)
}

// GetForUpdate захватывает строку заказа до конца транзакции: обработка
// событий одного заказа сериализуется этим захватом.
func (r *orderRepository) GetForUpdate(ctx context.Context, tx domain.Tx, id string) (domain.Order, error) {
	q, err := r.store.q(tx)
	if err != nil {
		return domain.Order{}, err
	}
	return r.getWhere(ctx, q, `WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
}

func (r *orderRepository) getWhere(ctx context.Context, q querier, where, id string) (domain.Order, error) {
	order, err := scanOrder(q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders `+where, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	lines, err := r.loadLines(ctx, q, order.ID)
	if err != nil {
		return domain.Order{}, err
	}
	order.Lines = lines

	return order, nil
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE customer_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = r.store.db.QueryContext(ctx, query+" LIMIT $2", customerID, limit)
	} else {
		rows, err = r.store.db.QueryContext(ctx, query, customerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}

		lines, err := r.loadLines(ctx, r.store.db, order.ID)
		if err != nil {
			return nil, err
		}
		order.Lines = lines
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) Save(ctx context.Context, tx domain.Tx, order domain.Order) error {
	q, err := r.store.q(tx)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET status = $1,
		    payment_method = $2,
		    version = version + 1,
		    updated_at = $3
		WHERE id = $4
		  AND version = $5
		  AND deleted_at IS NULL
	`,
		string(order.Status),
		order.PaymentMethod,
		order.UpdatedAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.orderExists(ctx, q, order.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrOrderNotFound
		}
		return domain.ErrOrderVersionConflict
	}

	return nil
}

func (r *orderRepository) SoftDelete(ctx context.Context, tx domain.Tx, id string, at time.Time) error {
	q, err := r.store.q(tx)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE orders
		SET deleted_at = $1,
		    updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`, at, id)
	if err != nil {
		return fmt.Errorf("soft delete order: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		order     domain.Order
		status    string
		deletedAt sql.NullTime
	)
	err := row.Scan(
		&order.ID, &order.CustomerID, &status, &order.TotalMinor, &order.PaymentMethod,
		&order.ShippingAddress, &order.BillingAddress, &order.Notes, &order.Version,
		&order.CreatedAt, &order.UpdatedAt, &deletedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	order.Status = domain.OrderStatus(status)
	if deletedAt.Valid {
		at := deletedAt.Time.UTC()
		order.DeletedAt = &at
	}
	return order, nil
}

func (r *orderRepository) loadLines(ctx context.Context, q querier, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price_minor, qty, subtotal_minor, created_at
		FROM order_lines
		WHERE order_id = $1
		ORDER BY line_no ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.OrderLine, 0)
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(
			&line.ID, &line.OrderID, &line.ProductID, &line.ProductName,
			&line.UnitPriceMinor, &line.Qty, &line.SubtotalMinor, &line.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order lines: %w", err)
	}

	return lines, nil
}

func (r *orderRepository) orderExists(ctx context.Context, q querier, orderID string) (bool, error) {
	var id string
	err := q.QueryRowContext(ctx, `SELECT id FROM orders WHERE id = $1`, orderID).Scan(&id)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check order exists: %w", err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
