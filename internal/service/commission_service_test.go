package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

type mockOrderRepoForCommission struct {
	mock.Mock
}

func (m *mockOrderRepoForCommission) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

type mockMediatorRepo struct {
	mock.Mock
}

func (m *mockMediatorRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Mediator, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mediator), args.Error(1)
}

func decimalPtr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func TestCommission(t *testing.T) {
	// 1 220 000 * 5% + 100 = 61 100
	got := Commission(decimal.NewFromInt(1220000), decimal.NewFromInt(5), decimal.NewFromInt(100))
	assert.True(t, decimal.NewFromInt(61100).Equal(got), "ожидалось 61100, получено %s", got)
}

func TestCommission_ZeroConfiguration(t *testing.T) {
	got := Commission(decimal.NewFromInt(1220000), decimal.Zero, decimal.Zero)
	assert.True(t, got.IsZero(), "нулевая конфигурация должна давать нулевую комиссию, получено %s", got)
}

func TestCommission_FractionalMargin(t *testing.T) {
	// 10 000 * 2.5% + 50 = 300
	got := Commission(decimal.NewFromInt(10000), decimal.NewFromFloat(2.5), decimal.NewFromInt(50))
	assert.True(t, decimal.NewFromInt(300).Equal(got))
}

func newCommissionFixture(t *testing.T) (*CommissionService, *mockOrderRepoForCommission, *mockMediatorRepo) {
	t.Helper()
	orders := new(mockOrderRepoForCommission)
	mediators := new(mockMediatorRepo)
	return NewCommissionService(orders, mediators), orders, mediators
}

func TestComputeCommission_Success(t *testing.T) {
	svc, orders, mediators := newCommissionFixture(t)
	ctx := context.Background()

	orderID := uuid.New()
	mediatorID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:         orderID,
		MediatorID: &mediatorID,
		MaxAmount:  decimal.NewFromInt(1220000),
		Status:     models.OrderStatusMediatorStep1,
	}, nil)
	mediators.On("GetByUserID", ctx, mediatorID).Return(&models.Mediator{
		UserID:           mediatorID,
		MarginPercentage: decimalPtr(decimal.NewFromInt(5)),
		FixedFee:         decimalPtr(decimal.NewFromInt(100)),
	}, nil)

	got, err := svc.ComputeCommission(ctx, orderID, mediatorID)
	assert.NoError(t, err)
	assert.True(t, decimal.NewFromInt(61100).Equal(got))
}

func TestComputeCommission_NilConfigurationAsZero(t *testing.T) {
	svc, orders, mediators := newCommissionFixture(t)
	ctx := context.Background()

	orderID := uuid.New()
	mediatorID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:         orderID,
		MediatorID: &mediatorID,
		MaxAmount:  decimal.NewFromInt(500000),
	}, nil)
	// Процент и ставка не заданы.
	mediators.On("GetByUserID", ctx, mediatorID).Return(&models.Mediator{UserID: mediatorID}, nil)

	got, err := svc.ComputeCommission(ctx, orderID, mediatorID)
	assert.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestComputeCommission_NegativeBudget(t *testing.T) {
	svc, orders, mediators := newCommissionFixture(t)
	ctx := context.Background()

	orderID := uuid.New()
	mediatorID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:         orderID,
		MediatorID: &mediatorID,
		MaxAmount:  decimal.NewFromInt(-1),
	}, nil)
	mediators.On("GetByUserID", ctx, mediatorID).Return(&models.Mediator{UserID: mediatorID}, nil)

	_, err := svc.ComputeCommission(ctx, orderID, mediatorID)
	assert.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidInput))
}

func TestComputeCommission_MarginOutOfRange(t *testing.T) {
	svc, orders, mediators := newCommissionFixture(t)
	ctx := context.Background()

	orderID := uuid.New()
	mediatorID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:         orderID,
		MediatorID: &mediatorID,
		MaxAmount:  decimal.NewFromInt(1000),
	}, nil)
	mediators.On("GetByUserID", ctx, mediatorID).Return(&models.Mediator{
		UserID:           mediatorID,
		MarginPercentage: decimalPtr(decimal.NewFromInt(150)),
	}, nil)

	_, err := svc.ComputeCommission(ctx, orderID, mediatorID)
	assert.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidInput))
}

func TestComputeCommission_WrongMediator(t *testing.T) {
	svc, orders, mediators := newCommissionFixture(t)
	ctx := context.Background()

	orderID := uuid.New()
	assigned := uuid.New()
	other := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{
		ID:         orderID,
		MediatorID: &assigned,
		MaxAmount:  decimal.NewFromInt(1000),
	}, nil)
	mediators.On("GetByUserID", ctx, other).Return(&models.Mediator{UserID: other}, nil)

	_, err := svc.ComputeCommission(ctx, orderID, other)
	assert.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeInvalidInput))
}

func TestComputeCommission_MediatorNotFound(t *testing.T) {
	svc, orders, mediators := newCommissionFixture(t)
	ctx := context.Background()

	orderID := uuid.New()
	mediatorID := uuid.New()

	orders.On("GetByID", ctx, orderID).Return(&models.Order{ID: orderID}, nil)
	mediators.On("GetByUserID", ctx, mediatorID).Return(nil, repository.ErrMediatorNotFound)

	_, err := svc.ComputeCommission(ctx, orderID, mediatorID)
	assert.ErrorIs(t, err, apperror.ErrMediatorNotFound)
}
