package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

type mockReviewStore struct {
	mock.Mock
}

func (m *mockReviewStore) CreateWithCompletionCheck(ctx context.Context, kind string, review *models.Review) (*models.CompletionCheck, error) {
	args := m.Called(ctx, kind, review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if args.Error(1) == nil {
		review.ID = uuid.New()
	}
	return args.Get(0).(*models.CompletionCheck), args.Error(1)
}

func (m *mockReviewStore) GetByOrder(ctx context.Context, kind string, orderID uuid.UUID) (*models.Review, error) {
	args := m.Called(ctx, kind, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

func (m *mockReviewStore) ListAboutUser(ctx context.Context, kind string, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	args := m.Called(ctx, kind, userID, limit, offset)
	return args.Get(0).([]models.Review), args.Error(1)
}

func newReviewFixture(t *testing.T) (*ReviewService, *mockReviewStore, *mockOrderRepoForCommission, *mockNotifier) {
	t.Helper()
	reviews := new(mockReviewStore)
	orders := new(mockOrderRepoForCommission)
	notifier := new(mockNotifier)
	return NewReviewService(reviews, orders, notifier), reviews, orders, notifier
}

func awaitingOrder(customerID, executorID uuid.UUID) *models.Order {
	return &models.Order{
		ID:         uuid.New(),
		AuthorID:   customerID,
		ExecutorID: &executorID,
		Status:     models.OrderStatusAwaitingConfirmation,
	}
}

func TestSubmitExecutorReview_FirstOfPair(t *testing.T) {
	svc, reviews, orders, notifier := newReviewFixture(t)
	ctx := context.Background()

	customerID := uuid.New()
	executorID := uuid.New()
	order := awaitingOrder(customerID, executorID)

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	// Второго отзыва ещё нет: заказ остаётся в ожидании подтверждения.
	reviews.On("CreateWithCompletionCheck", ctx, models.ReviewKindExecutor, mock.AnythingOfType("*models.Review")).
		Return(&models.CompletionCheck{BothReviewsExist: false, OrderStatus: models.OrderStatusAwaitingConfirmation}, nil)

	review, err := svc.SubmitExecutorReview(ctx, executorID, order.ID, 5, nil)
	assert.NoError(t, err)
	assert.Equal(t, customerID, review.CustomerID)
	assert.Equal(t, executorID, review.ExecutorID)
	notifier.AssertNotCalled(t, "NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitCustomerReview_ClosesPairAndCompletes(t *testing.T) {
	svc, reviews, orders, notifier := newReviewFixture(t)
	ctx := context.Background()

	customerID := uuid.New()
	executorID := uuid.New()
	order := awaitingOrder(customerID, executorID)

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	// Отзыв исполнителя уже существует: пара закрывается, CAS завершает заказ.
	reviews.On("CreateWithCompletionCheck", ctx, models.ReviewKindCustomer, mock.AnythingOfType("*models.Review")).
		Return(&models.CompletionCheck{
			BothReviewsExist: true,
			OrderCompleted:   true,
			OrderStatus:      models.OrderStatusCompleted,
		}, nil)
	notifier.On("NotifyUser", ctx, customerID, models.NotificationOrderCompleted, mock.Anything).Return(&models.Notification{}, nil).Once()
	notifier.On("NotifyUser", ctx, executorID, models.NotificationOrderCompleted, mock.Anything).Return(&models.Notification{}, nil).Once()

	_, err := svc.SubmitCustomerReview(ctx, customerID, order.ID, 4, nil)
	assert.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestSubmitReviews_OrderIndependentCompletion(t *testing.T) {
	// Завершение наступает на втором отзыве независимо от порядка сторон.
	for _, firstKind := range []string{models.ReviewKindExecutor, models.ReviewKindCustomer} {
		svc, reviews, orders, notifier := newReviewFixture(t)
		ctx := context.Background()

		customerID := uuid.New()
		executorID := uuid.New()
		order := awaitingOrder(customerID, executorID)
		orders.On("GetByID", ctx, order.ID).Return(order, nil)

		secondKind := models.ReviewKindCustomer
		if firstKind == models.ReviewKindCustomer {
			secondKind = models.ReviewKindExecutor
		}

		reviews.On("CreateWithCompletionCheck", ctx, firstKind, mock.AnythingOfType("*models.Review")).
			Return(&models.CompletionCheck{BothReviewsExist: false, OrderStatus: models.OrderStatusAwaitingConfirmation}, nil)
		reviews.On("CreateWithCompletionCheck", ctx, secondKind, mock.AnythingOfType("*models.Review")).
			Return(&models.CompletionCheck{BothReviewsExist: true, OrderCompleted: true, OrderStatus: models.OrderStatusCompleted}, nil)
		notifier.On("NotifyUser", ctx, mock.Anything, models.NotificationOrderCompleted, mock.Anything).Return(&models.Notification{}, nil)

		submitByKind := func(kind string) error {
			if kind == models.ReviewKindExecutor {
				_, err := svc.SubmitExecutorReview(ctx, executorID, order.ID, 5, nil)
				return err
			}
			_, err := svc.SubmitCustomerReview(ctx, customerID, order.ID, 5, nil)
			return err
		}

		assert.NoError(t, submitByKind(firstKind))
		assert.NoError(t, submitByKind(secondKind))
		notifier.AssertNumberOfCalls(t, "NotifyUser", 2)
	}
}

// lockedGateStore воспроизводит семантику хранилища отзывов: блокировка
// строки заказа сериализует конкурентные подачи, поэтому вторая по порядку
// видит отзыв первой.
type lockedGateStore struct {
	mu          sync.Mutex
	reviews     map[string]bool
	orderStatus string
	completions int
}

func (s *lockedGateStore) CreateWithCompletionCheck(ctx context.Context, kind string, review *models.Review) (*models.CompletionCheck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reviews[kind] {
		return nil, repository.ErrDuplicateReview
	}
	s.reviews[kind] = true
	review.ID = uuid.New()

	other := models.ReviewKindCustomer
	if kind == models.ReviewKindCustomer {
		other = models.ReviewKindExecutor
	}

	check := &models.CompletionCheck{
		BothReviewsExist: s.reviews[other],
		OrderStatus:      s.orderStatus,
	}
	if check.BothReviewsExist && s.orderStatus == models.OrderStatusAwaitingConfirmation {
		s.orderStatus = models.OrderStatusCompleted
		s.completions++
		check.OrderCompleted = true
		check.OrderStatus = s.orderStatus
	}
	return check, nil
}

func (s *lockedGateStore) GetByOrder(ctx context.Context, kind string, orderID uuid.UUID) (*models.Review, error) {
	return nil, nil
}

func (s *lockedGateStore) ListAboutUser(ctx context.Context, kind string, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	return nil, nil
}

func TestSubmitReviews_SimultaneousPairCompletesOnce(t *testing.T) {
	ctx := context.Background()

	customerID := uuid.New()
	executorID := uuid.New()
	order := awaitingOrder(customerID, executorID)

	orders := new(mockOrderRepoForCommission)
	orders.On("GetByID", mock.Anything, order.ID).Return(order, nil)

	store := &lockedGateStore{
		reviews:     map[string]bool{},
		orderStatus: models.OrderStatusAwaitingConfirmation,
	}
	notifier := new(mockNotifier)
	notifier.On("NotifyUser", mock.Anything, mock.Anything, models.NotificationOrderCompleted, mock.Anything).
		Return(&models.Notification{}, nil)

	svc := NewReviewService(store, orders, notifier)

	// Обе стороны подают отзыв одновременно: заказ должен завершиться ровно
	// один раз, а не остаться в ожидании из-за того, что каждая подача не
	// увидела отзыв второй стороны.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, err := svc.SubmitExecutorReview(ctx, executorID, order.ID, 5, nil)
		assert.NoError(t, err)
	}()
	go func() {
		defer wg.Done()
		_, err := svc.SubmitCustomerReview(ctx, customerID, order.ID, 4, nil)
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.Equal(t, 1, store.completions)
	assert.Equal(t, models.OrderStatusCompleted, store.orderStatus)
	notifier.AssertNumberOfCalls(t, "NotifyUser", 2)
}

func TestSubmitExecutorReview_NotAssigned(t *testing.T) {
	svc, reviews, orders, _ := newReviewFixture(t)
	ctx := context.Background()

	order := awaitingOrder(uuid.New(), uuid.New())
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.SubmitExecutorReview(ctx, uuid.New(), order.ID, 5, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsForbidden(err))
	reviews.AssertNotCalled(t, "CreateWithCompletionCheck", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitReview_InvalidRating(t *testing.T) {
	svc, _, _, _ := newReviewFixture(t)
	ctx := context.Background()

	_, err := svc.SubmitCustomerReview(ctx, uuid.New(), uuid.New(), 0, nil)
	assert.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	_, err = svc.SubmitCustomerReview(ctx, uuid.New(), uuid.New(), 6, nil)
	assert.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestSubmitReview_WrongOrderStatus(t *testing.T) {
	svc, _, orders, _ := newReviewFixture(t)
	ctx := context.Background()

	customerID := uuid.New()
	executorID := uuid.New()
	order := awaitingOrder(customerID, executorID)
	order.Status = models.OrderStatusInWork

	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	_, err := svc.SubmitCustomerReview(ctx, customerID, order.ID, 5, nil)
	assert.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
}

func TestSubmitReview_Duplicate(t *testing.T) {
	svc, reviews, orders, _ := newReviewFixture(t)
	ctx := context.Background()

	customerID := uuid.New()
	executorID := uuid.New()
	order := awaitingOrder(customerID, executorID)

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	reviews.On("CreateWithCompletionCheck", ctx, models.ReviewKindCustomer, mock.AnythingOfType("*models.Review")).
		Return(nil, repository.ErrDuplicateReview)

	_, err := svc.SubmitCustomerReview(ctx, customerID, order.ID, 5, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsConflict(err))
}

func TestSubmitReview_PairInUnexpectedStatus(t *testing.T) {
	svc, reviews, orders, notifier := newReviewFixture(t)
	ctx := context.Background()

	customerID := uuid.New()
	executorID := uuid.New()
	order := awaitingOrder(customerID, executorID)

	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	// Пара собрана, но CAS не сработал и заказ не завершён: нарушение
	// консистентности логируется, переход не форсируется.
	reviews.On("CreateWithCompletionCheck", ctx, models.ReviewKindCustomer, mock.AnythingOfType("*models.Review")).
		Return(&models.CompletionCheck{
			BothReviewsExist: true,
			OrderCompleted:   false,
			OrderStatus:      models.OrderStatusClosed,
		}, nil)

	review, err := svc.SubmitCustomerReview(ctx, customerID, order.ID, 5, nil)
	assert.NoError(t, err)
	assert.NotNil(t, review)
	notifier.AssertNotCalled(t, "NotifyUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
