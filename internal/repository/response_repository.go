package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/remstroy/orders-backend/internal/models"
)

type ResponseRepository struct {
	db *sqlx.DB
}

func NewResponseRepository(db *sqlx.DB) *ResponseRepository {
	return &ResponseRepository{db: db}
}

// HasActiveResponse проверяет, есть ли у исполнителя действующий отклик на заказ.
func (r *ResponseRepository) HasActiveResponse(ctx context.Context, orderID, executorID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM order_responses
		WHERE order_id = $1 AND executor_id = $2 AND released = FALSE
	`, orderID, executorID)
	if err != nil {
		return false, fmt.Errorf("response repository: has active response: %w", err)
	}
	return count > 0, nil
}

// ListByOrder возвращает действующие отклики по заказу.
func (r *ResponseRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error) {
	var responses []models.OrderResponse
	err := r.db.SelectContext(ctx, &responses, `
		SELECT * FROM order_responses
		WHERE order_id = $1 AND released = FALSE
		ORDER BY created_at ASC
	`, orderID)
	return responses, err
}
