package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shopcore/internal/domain"
)

type stockRepository struct {
	store *Store
}

// NewStockRepository создаёт PostgreSQL-реализацию StockRepository.
func NewStockRepository(store *Store) domain.StockRepository {
	return &stockRepository{store: store}
}

func (r *stockRepository) ActiveBatches(ctx context.Context, tx domain.Tx, productID string) ([]domain.StockBatch, error) {
	q, err := r.store.q(tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, product_id, price_minor, quantity, expires_at, created_at, deleted_at
		FROM stock_batches
		WHERE product_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("select stock batches: %w", err)
	}
	defer rows.Close()

	batches := make([]domain.StockBatch, 0)
	for rows.Next() {
		var (
			batch     domain.StockBatch
			deletedAt sql.NullTime
		)
		if err := rows.Scan(
			&batch.ID, &batch.ProductID, &batch.PriceMinor, &batch.Quantity,
			&batch.ExpiresAt, &batch.CreatedAt, &deletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan stock batch: %w", err)
		}
		if deletedAt.Valid {
			at := deletedAt.Time.UTC()
			batch.DeletedAt = &at
		}
		batches = append(batches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stock batches: %w", err)
	}

	return batches, nil
}

// ReserveBatch — условное списание: проверка остатка и декремент в одном
// UPDATE, гонки за последние единицы разрешает база.
func (r *stockRepository) ReserveBatch(ctx context.Context, tx domain.Tx, batchID string, qty int32) error {
	if qty <= 0 {
		return domain.ErrReservationQtyInvalid
	}

	q, err := r.store.q(tx)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE stock_batches
		SET quantity = quantity - $2
		WHERE id = $1
		  AND deleted_at IS NULL
		  AND quantity >= $2
	`, batchID, qty)
	if err != nil {
		return fmt.Errorf("reserve stock batch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrInsufficientStock
	}

	return nil
}

func (r *stockRepository) RestoreBatch(ctx context.Context, tx domain.Tx, batchID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrReservationQtyInvalid
	}

	q, err := r.store.q(tx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE stock_batches
		SET quantity = quantity + $2
		WHERE id = $1 AND deleted_at IS NULL
	`, batchID, qty)
	if err != nil {
		return false, fmt.Errorf("restore stock batch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *stockRepository) RestoreAny(ctx context.Context, tx domain.Tx, productID string, qty int32) (bool, error) {
	if qty <= 0 {
		return false, domain.ErrReservationQtyInvalid
	}

	q, err := r.store.q(tx)
	if err != nil {
		return false, err
	}

	res, err := q.ExecContext(ctx, `
		UPDATE stock_batches
		SET quantity = quantity + $2
		WHERE id = (
			SELECT id
			FROM stock_batches
			WHERE product_id = $1 AND deleted_at IS NULL
			ORDER BY created_at ASC, id ASC
			LIMIT 1
			FOR UPDATE
		)
	`, productID, qty)
	if err != nil {
		return false, fmt.Errorf("restore stock to any batch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *stockRepository) InsertBatch(ctx context.Context, batch domain.StockBatch) (domain.StockBatch, error) {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	_, err := r.store.db.ExecContext(ctx, `
		INSERT INTO stock_batches (id, product_id, price_minor, quantity, expires_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, batch.ID, batch.ProductID, batch.PriceMinor, batch.Quantity, batch.ExpiresAt, batch.CreatedAt)
	if err != nil {
		return domain.StockBatch{}, fmt.Errorf("insert stock batch: %w", err)
	}

	return batch, nil
}

var _ domain.StockRepository = (*stockRepository)(nil)
