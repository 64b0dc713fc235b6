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

var ErrDuplicateReview = errors.New("review already exists for this order")

// ReviewRepository хранит отзывы обеих сторон и несёт completion gate:
// сохранение отзыва, проверка наличия встречного и перевод заказа в
// завершённый статус выполняются одной транзакцией.
type ReviewRepository struct {
	db *sqlx.DB
}

func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func reviewTable(kind string) (own, other string, err error) {
	switch kind {
	case models.ReviewKindExecutor:
		return "executor_reviews", "customer_reviews", nil
	case models.ReviewKindCustomer:
		return "customer_reviews", "executor_reviews", nil
	default:
		return "", "", fmt.Errorf("unknown review kind %q", kind)
	}
}

// CreateWithCompletionCheck сохраняет отзыв и, если встречный отзыв уже есть,
// завершает заказ переходом из ожидания подтверждения. Транзакция начинается
// с блокировки строки заказа: отзывы сторон лежат в разных таблицах, и без
// общей блокировки две конкурентные подачи не видят незакоммиченный отзыв
// друг друга — обе сочли бы пару несобранной и заказ остался бы
// незавершённым. Под блокировкой проверку пары проходит ровно одна подача.
func (r *ReviewRepository) CreateWithCompletionCheck(ctx context.Context, kind string, review *models.Review) (*models.CompletionCheck, error) {
	own, other, err := reviewTable(kind)
	if err != nil {
		return nil, err
	}

	check := &models.CompletionCheck{}
	err = common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &check.OrderStatus,
			`SELECT status FROM orders WHERE id = $1 FOR UPDATE`, review.OrderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		insert := fmt.Sprintf(`
			INSERT INTO %s (order_id, customer_id, executor_id, rating, comment)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, own)
		err = tx.QueryRowxContext(ctx, insert,
			review.OrderID, review.CustomerID, review.ExecutorID, review.Rating, review.Comment,
		).Scan(&review.ID, &review.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return ErrDuplicateReview
			}
			return fmt.Errorf("insert review: %w", err)
		}

		var otherCount int
		exists := fmt.Sprintf(`
			SELECT COUNT(*) FROM %s
			WHERE order_id = $1 AND customer_id = $2 AND executor_id = $3
		`, other)
		if err := tx.GetContext(ctx, &otherCount, exists, review.OrderID, review.CustomerID, review.ExecutorID); err != nil {
			return fmt.Errorf("check opposite review: %w", err)
		}
		check.BothReviewsExist = otherCount > 0

		if !check.BothReviewsExist || check.OrderStatus != models.OrderStatusAwaitingConfirmation {
			return nil
		}

		// Строка заказа заблокирована, статус измениться не мог.
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET
				status = $2,
				completed_by_executor = TRUE,
				completed_by_customer = TRUE,
				updated_at = NOW()
			WHERE id = $1
		`, review.OrderID, models.OrderStatusCompleted); err != nil {
			return fmt.Errorf("complete order: %w", err)
		}
		check.OrderCompleted = true
		check.OrderStatus = models.OrderStatusCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return check, nil
}

// GetByOrder возвращает отзыв заданного вида по заказу, nil если его нет.
func (r *ReviewRepository) GetByOrder(ctx context.Context, kind string, orderID uuid.UUID) (*models.Review, error) {
	own, _, err := reviewTable(kind)
	if err != nil {
		return nil, err
	}

	var review models.Review
	query := fmt.Sprintf(`SELECT * FROM %s WHERE order_id = $1`, own)
	if err := r.db.GetContext(ctx, &review, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("review repository: get by order: %w", err)
	}
	return &review, nil
}

// ListAboutUser возвращает отзывы, оставленные о пользователе как об
// исполнителе либо как о заказчике.
func (r *ReviewRepository) ListAboutUser(ctx context.Context, kind string, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	own, _, err := reviewTable(kind)
	if err != nil {
		return nil, err
	}

	// Отзыв исполнителя описывает заказчика и наоборот.
	column := "customer_id"
	if kind == models.ReviewKindCustomer {
		column = "executor_id"
	}

	var reviews []models.Review
	query := fmt.Sprintf(`
		SELECT * FROM %s WHERE %s = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, own, column)
	if err := r.db.SelectContext(ctx, &reviews, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("review repository: list about user: %w", err)
	}
	return reviews, nil
}
