package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order описывает заявку на строительные или ремонтные работы.
type Order struct {
	ID                  uuid.UUID       `db:"id" json:"id"`
	AuthorID            uuid.UUID       `db:"author_id" json:"author_id"`
	ExecutorID          *uuid.UUID      `db:"executor_id" json:"executor_id,omitempty"`
	MediatorID          *uuid.UUID      `db:"mediator_id" json:"mediator_id,omitempty"`
	Title               string          `db:"title" json:"title"`
	Description         string          `db:"description" json:"description"`
	MaxAmount           decimal.Decimal `db:"max_amount" json:"max_amount"`
	Status              string          `db:"status" json:"status"`
	StartsOn            *time.Time      `db:"starts_on" json:"starts_on,omitempty"`
	EndsOn              *time.Time      `db:"ends_on" json:"ends_on,omitempty"`
	CompletedByExecutor bool            `db:"completed_by_executor" json:"completed_by_executor"`
	CompletedByCustomer bool            `db:"completed_by_customer" json:"completed_by_customer"`
	CreatedAt           time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time       `db:"updated_at" json:"updated_at"`
}

// IsOwnedBy проверяет, принадлежит ли заказ пользователю.
func (o *Order) IsOwnedBy(userID uuid.UUID) bool {
	return o.AuthorID == userID
}

// IsAssignedExecutor проверяет, назначен ли пользователь исполнителем заказа.
func (o *Order) IsAssignedExecutor(userID uuid.UUID) bool {
	return o.ExecutorID != nil && *o.ExecutorID == userID
}

// IsAssignedMediator проверяет, назначен ли пользователь посредником заказа.
func (o *Order) IsAssignedMediator(userID uuid.UUID) bool {
	return o.MediatorID != nil && *o.MediatorID == userID
}

// AcceptsResponses сообщает, принимает ли заказ отклики исполнителей.
func (o *Order) AcceptsResponses() bool {
	return o.Status == OrderStatusSearchingExecutor || o.Status == OrderStatusSelectingExecutor
}

// OrderResponse представляет отклик исполнителя на заказ.
type OrderResponse struct {
	ID         uuid.UUID `db:"id" json:"id"`
	OrderID    uuid.UUID `db:"order_id" json:"order_id"`
	ExecutorID uuid.UUID `db:"executor_id" json:"executor_id"`
	Released   bool      `db:"released" json:"released"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
