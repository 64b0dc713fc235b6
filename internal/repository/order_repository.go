package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/repository/common"
)

var ErrOrderNotFound = errors.New("order not found")

type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create сохраняет новый заказ в статусе поиска исполнителя.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (author_id, title, description, max_amount, status, starts_on, ends_on)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowxContext(ctx, query,
		order.AuthorID, order.Title, order.Description, order.MaxAmount, order.Status, order.StartsOn, order.EndsOn,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
}

// GetByID возвращает заказ по ID.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.GetContext(ctx, &order, `SELECT * FROM orders WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("order repository: get by id: %w", err)
	}
	return &order, nil
}

// ListByAuthor возвращает заказы заказчика, скрывая удалённые.
func (r *OrderRepository) ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.SelectContext(ctx, &orders, `
		SELECT * FROM orders
		WHERE author_id = $1 AND status <> $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4
	`, authorID, models.OrderStatusDeleted, limit, offset)
	return orders, err
}

// UpdateStatus выполняет compare-and-swap статуса: перевод применяется только
// если заказ всё ещё в ожидаемом исходном статусе. Возвращает false, если
// строка не была изменена (гонка или повторная доставка).
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, from, to)
	if err != nil {
		return false, fmt.Errorf("order repository: update status: %w", err)
	}
	return affected(res)
}

// UpdateStatusReleasing выполняет CAS статуса и в той же транзакции снимает
// квотную атрибуцию со всех откликов по заказу (отмена и отклонение
// возвращают исполнителям занятые слоты).
func (r *OrderRepository) UpdateStatusReleasing(ctx context.Context, orderID uuid.UUID, from, to string) (bool, error) {
	var applied bool
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE orders SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, orderID, from, to)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		applied, err = affected(res)
		if err != nil || !applied {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE order_responses SET released = TRUE WHERE order_id = $1 AND released = FALSE
		`, orderID); err != nil {
			return fmt.Errorf("release responses: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("order repository: update status releasing: %w", err)
	}
	return applied, nil
}

// SetExecutor переводит заказ в статус выбранного исполнителя и фиксирует
// executor_id тем же оператором.
func (r *OrderRepository) SetExecutor(ctx context.Context, orderID uuid.UUID, from string, executorID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, executor_id = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, from, models.OrderStatusExecutorSelected, executorID)
	if err != nil {
		return false, fmt.Errorf("order repository: set executor: %w", err)
	}
	return affected(res)
}

// SetMediator переводит заказ на посредническую ветку и фиксирует mediator_id.
func (r *OrderRepository) SetMediator(ctx context.Context, orderID uuid.UUID, from string, mediatorID uuid.UUID) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = $3, mediator_id = $4, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, orderID, from, models.OrderStatusMediatorStep1, mediatorID)
	if err != nil {
		return false, fmt.Errorf("order repository: set mediator: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
