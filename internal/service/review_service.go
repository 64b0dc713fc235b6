package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/remstroy/orders-backend/internal/logger"
	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

// ReviewStore описывает хранилище отзывов с атомарной проверкой пары.
type ReviewStore interface {
	CreateWithCompletionCheck(ctx context.Context, kind string, review *models.Review) (*models.CompletionCheck, error)
	GetByOrder(ctx context.Context, kind string, orderID uuid.UUID) (*models.Review, error)
	ListAboutUser(ctx context.Context, kind string, userID uuid.UUID, limit, offset int) ([]models.Review, error)
}

type OrderRepoForReview interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// ReviewService принимает отзывы сторон и несёт completion gate: заказ
// завершается ровно один раз, когда существуют оба отзыва, независимо от
// порядка их подачи.
type ReviewService struct {
	reviews  ReviewStore
	orders   OrderRepoForReview
	notifier Notifier
}

func NewReviewService(reviews ReviewStore, orders OrderRepoForReview, notifier Notifier) *ReviewService {
	return &ReviewService{reviews: reviews, orders: orders, notifier: notifier}
}

// SubmitExecutorReview сохраняет отзыв исполнителя о заказчике.
func (s *ReviewService) SubmitExecutorReview(ctx context.Context, executorID, orderID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	order, err := s.loadOrder(ctx, orderID, rating)
	if err != nil {
		return nil, err
	}

	if !order.IsAssignedExecutor(executorID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не участник этого заказа")
	}

	return s.submit(ctx, models.ReviewKindExecutor, order, rating, comment)
}

// SubmitCustomerReview сохраняет отзыв заказчика об исполнителе.
func (s *ReviewService) SubmitCustomerReview(ctx context.Context, customerID, orderID uuid.UUID, rating int, comment *string) (*models.Review, error) {
	order, err := s.loadOrder(ctx, orderID, rating)
	if err != nil {
		return nil, err
	}

	if !order.IsOwnedBy(customerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "вы не участник этого заказа")
	}

	return s.submit(ctx, models.ReviewKindCustomer, order, rating, comment)
}

// OrderReviews — пара отзывов одного заказа; отсутствующая сторона — nil.
type OrderReviews struct {
	ExecutorReview *models.Review `json:"executor_review,omitempty"`
	CustomerReview *models.Review `json:"customer_review,omitempty"`
}

// ReviewsForOrder возвращает оба отзыва по заказу.
func (s *ReviewService) ReviewsForOrder(ctx context.Context, orderID uuid.UUID) (*OrderReviews, error) {
	executorReview, err := s.reviews.GetByOrder(ctx, models.ReviewKindExecutor, orderID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить отзывы")
	}
	customerReview, err := s.reviews.GetByOrder(ctx, models.ReviewKindCustomer, orderID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить отзывы")
	}
	return &OrderReviews{ExecutorReview: executorReview, CustomerReview: customerReview}, nil
}

// ListReviewsAboutUser возвращает отзывы о пользователе в заданной роли.
// kind = executor: отзывы о нём как о заказчике; kind = customer: как об
// исполнителе.
func (s *ReviewService) ListReviewsAboutUser(ctx context.Context, kind string, userID uuid.UUID, limit, offset int) ([]models.Review, error) {
	if kind != models.ReviewKindExecutor && kind != models.ReviewKindCustomer {
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "неизвестный вид отзыва")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	reviews, err := s.reviews.ListAboutUser(ctx, kind, userID, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить отзывы")
	}
	return reviews, nil
}

func (s *ReviewService) loadOrder(ctx context.Context, orderID uuid.UUID, rating int) (*models.Order, error) {
	if rating < 1 || rating > 5 {
		return nil, apperror.New(apperror.ErrCodeValidation, "рейтинг должен быть от 1 до 5")
	}

	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить заказ")
	}

	if order.ExecutorID == nil {
		return nil, apperror.New(apperror.ErrCodeValidation, "исполнитель не назначен на заказ")
	}
	if order.Status != models.OrderStatusAwaitingConfirmation && order.Status != models.OrderStatusCompleted {
		return nil, apperror.New(apperror.ErrCodeValidation, "отзыв можно оставить только после сдачи работ")
	}

	return order, nil
}

func (s *ReviewService) submit(ctx context.Context, kind string, order *models.Order, rating int, comment *string) (*models.Review, error) {
	review := &models.Review{
		OrderID:    order.ID,
		CustomerID: order.AuthorID,
		ExecutorID: *order.ExecutorID,
		Rating:     rating,
		Comment:    comment,
	}

	check, err := s.reviews.CreateWithCompletionCheck(ctx, kind, review)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReview) {
			return nil, apperror.New(apperror.ErrCodeConflict, "вы уже оставили отзыв на этот заказ")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить отзыв")
	}

	s.handleCompletion(ctx, order, check)
	return review, nil
}

// handleCompletion реагирует на итог проверки пары отзывов. Заказ завершает
// только победитель CAS-перехода; пара отзывов при неожиданном статусе —
// нарушение консистентности, переход не форсируется.
func (s *ReviewService) handleCompletion(ctx context.Context, order *models.Order, check *models.CompletionCheck) {
	if !check.BothReviewsExist {
		return
	}

	log := logger.WithComponent("completion-gate")

	if check.OrderCompleted {
		data := map[string]interface{}{"order_id": order.ID}
		if _, err := s.notifier.NotifyUser(ctx, order.AuthorID, models.NotificationOrderCompleted, data); err != nil {
			log.WithField("order_id", order.ID).WithError(err).Error("не удалось создать уведомление о завершении")
		}
		if order.ExecutorID != nil {
			if _, err := s.notifier.NotifyUser(ctx, *order.ExecutorID, models.NotificationOrderCompleted, data); err != nil {
				log.WithField("order_id", order.ID).WithError(err).Error("не удалось создать уведомление о завершении")
			}
		}
		return
	}

	if check.OrderStatus != models.OrderStatusCompleted {
		log.WithFields(logrus.Fields{
			"order_id": order.ID,
			"status":   check.OrderStatus,
		}).Error("оба отзыва существуют, но заказ не в ожидании подтверждения")
	}
}
