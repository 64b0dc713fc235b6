package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Commission вычисляет заработок посредника по бюджету заказа и его
// комиссионной конфигурации: max_amount * margin/100 + fixed_fee.
// Чистая функция, входы предполагаются неотрицательными — валидация
// выполняется на границе в ComputeCommission.
func Commission(maxAmount, marginPercentage, fixedFee decimal.Decimal) decimal.Decimal {
	return maxAmount.Mul(marginPercentage).Div(hundred).Add(fixedFee)
}

type OrderRepoForCommission interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type MediatorRepoForCommission interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Mediator, error)
}

type CommissionService struct {
	orders    OrderRepoForCommission
	mediators MediatorRepoForCommission
}

func NewCommissionService(orders OrderRepoForCommission, mediators MediatorRepoForCommission) *CommissionService {
	return &CommissionService{orders: orders, mediators: mediators}
}

// ComputeCommission загружает заказ и посредника, проверяет входы и считает
// комиссию. Отрицательный бюджет или отрицательная конфигурация посредника
// отклоняются до вызова чистой функции.
func (s *CommissionService) ComputeCommission(ctx context.Context, orderID, mediatorID uuid.UUID) (decimal.Decimal, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if err == repository.ErrOrderNotFound {
			return decimal.Zero, apperror.ErrOrderNotFound
		}
		return decimal.Zero, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить заказ")
	}

	mediator, err := s.mediators.GetByUserID(ctx, mediatorID)
	if err != nil {
		if err == repository.ErrMediatorNotFound {
			return decimal.Zero, apperror.ErrMediatorNotFound
		}
		return decimal.Zero, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить посредника")
	}

	if order.MediatorID == nil || *order.MediatorID != mediator.UserID {
		return decimal.Zero, apperror.New(apperror.ErrCodeInvalidInput, "заказ не ведётся этим посредником")
	}

	if order.MaxAmount.IsNegative() {
		return decimal.Zero, apperror.New(apperror.ErrCodeInvalidInput, "бюджет заказа не может быть отрицательным")
	}

	margin := mediator.Margin()
	fee := mediator.Fee()
	if margin.IsNegative() || margin.GreaterThan(hundred) {
		return decimal.Zero, apperror.New(apperror.ErrCodeInvalidInput, "процент комиссии должен быть в пределах 0-100")
	}
	if fee.IsNegative() {
		return decimal.Zero, apperror.New(apperror.ErrCodeInvalidInput, "фиксированная ставка не может быть отрицательной")
	}

	return Commission(order.MaxAmount, margin, fee), nil
}
