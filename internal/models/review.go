package models

import (
	"time"

	"github.com/google/uuid"
)

// Виды отзывов: исполнитель о заказчике и заказчик об исполнителе.
const (
	ReviewKindExecutor = "executor"
	ReviewKindCustomer = "customer"
)

// Review — отзыв одной из сторон по завершаемому заказу. Обе таблицы отзывов
// имеют одинаковую форму и уникальны по тройке (order_id, customer_id, executor_id).
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	OrderID    uuid.UUID `db:"order_id" json:"order_id"`
	CustomerID uuid.UUID `db:"customer_id" json:"customer_id"`
	ExecutorID uuid.UUID `db:"executor_id" json:"executor_id"`
	Rating     int       `db:"rating" json:"rating"`
	Comment    *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// CompletionCheck — итог атомарной проверки пары отзывов после сохранения.
type CompletionCheck struct {
	BothReviewsExist bool
	OrderCompleted   bool
	OrderStatus      string
}
