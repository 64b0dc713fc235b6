package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/remstroy/orders-backend/internal/logger"
	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

// Actor — действующий принципал операции над заказом.
type Actor struct {
	ID   uuid.UUID
	Role string
}

// IsAdmin сообщает, действует ли принципал с правами администратора.
func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// OrderRepo описывает хранилище заказов с compare-and-swap переходами.
type OrderRepo interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByAuthor(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to string) (bool, error)
	UpdateStatusReleasing(ctx context.Context, orderID uuid.UUID, from, to string) (bool, error)
	SetExecutor(ctx context.Context, orderID uuid.UUID, from string, executorID uuid.UUID) (bool, error)
	SetMediator(ctx context.Context, orderID uuid.UUID, from string, mediatorID uuid.UUID) (bool, error)
}

type ResponseRepo interface {
	HasActiveResponse(ctx context.Context, orderID, executorID uuid.UUID) (bool, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.OrderResponse, error)
}

type MediatorRepo interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Mediator, error)
}

// QuotaReserver — квотная проверка перед откликом, см. SubscriptionService.
type QuotaReserver interface {
	ReserveResponseSlot(ctx context.Context, executorID, orderID uuid.UUID) (*models.QuotaReservation, error)
}

// Параметры повторов проигранных CAS-гонок.
const (
	transitionAttempts = 3
	transitionBackoff  = 25 * time.Millisecond
)

// OrderService ведёт заказ по машине состояний. Легальность переходов и
// роли проверяются централизованно по таблице из models, запись выполняется
// compare-and-swap обновлением, проигранная гонка перечитывает заказ и
// повторяет попытку.
type OrderService struct {
	orders    OrderRepo
	responses ResponseRepo
	mediators MediatorRepo
	quota     QuotaReserver
}

func NewOrderService(orders OrderRepo, responses ResponseRepo, mediators MediatorRepo, quota QuotaReserver) *OrderService {
	return &OrderService{orders: orders, responses: responses, mediators: mediators, quota: quota}
}

// CreateOrderInput — данные новой заявки.
type CreateOrderInput struct {
	Title       string
	Description string
	MaxAmount   decimal.Decimal
	StartsOn    *time.Time
	EndsOn      *time.Time
}

// CreateOrder создаёт заявку заказчика в статусе поиска исполнителя.
func (s *OrderService) CreateOrder(ctx context.Context, authorID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if input.Title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название заказа обязательно")
	}
	if input.MaxAmount.IsNegative() {
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "бюджет не может быть отрицательным")
	}
	if input.StartsOn != nil && input.EndsOn != nil && input.EndsOn.Before(*input.StartsOn) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дата окончания не может быть раньше даты начала")
	}

	order := &models.Order{
		AuthorID:    authorID,
		Title:       input.Title,
		Description: input.Description,
		MaxAmount:   input.MaxAmount,
		Status:      models.OrderStatusSearchingExecutor,
		StartsOn:    input.StartsOn,
		EndsOn:      input.EndsOn,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать заказ")
	}

	return order, nil
}

// GetOrder возвращает заказ по ID.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.getOrder(ctx, id)
}

// ListMyOrders возвращает заказы заказчика.
func (s *OrderService) ListMyOrders(ctx context.Context, authorID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.orders.ListByAuthor(ctx, authorID, limit, offset)
}

// SubmitResponse — отклик исполнителя на заказ. Квота проверяется и
// занимается атомарно; первый отклик переводит заказ в выбор исполнителя.
func (s *OrderService) SubmitResponse(ctx context.Context, executorID, orderID uuid.UUID) (*models.QuotaReservation, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.IsOwnedBy(executorID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "нельзя откликнуться на собственный заказ")
	}
	if !order.AcceptsResponses() {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "заказ не принимает отклики в текущем статусе")
	}

	reservation, err := s.quota.ReserveResponseSlot(ctx, executorID, orderID)
	if err != nil {
		return nil, err
	}

	// Первый отклик двигает заказ из поиска в выбор исполнителя. Гонка двух
	// первых откликов безобидна: проигравший увидит уже применённый переход.
	// Сбой перехода не отменяет уже закоммиченный отклик: заказ остаётся в
	// поиске и принимает отклики, следующий отклик повторит переход.
	if order.Status == models.OrderStatusSearchingExecutor {
		if _, err := s.orders.UpdateStatus(ctx, orderID, models.OrderStatusSearchingExecutor, models.OrderStatusSelectingExecutor); err != nil {
			logger.WithComponent("orders").WithFields(logrus.Fields{
				"order_id": orderID,
				"error":    err,
			}).Error("не удалось перевести заказ в выбор исполнителя")
		}
	}

	return reservation, nil
}

// ListResponses возвращает действующие отклики по заказу. Доступно
// владельцу заказа и администратору.
func (s *OrderService) ListResponses(ctx context.Context, actor Actor, orderID uuid.UUID) ([]models.OrderResponse, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && !order.IsOwnedBy(actor.ID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отклики видны только владельцу заказа")
	}

	responses, err := s.responses.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить отклики")
	}
	return responses, nil
}

// Advance применяет именованное событие к заказу. Повторная доставка уже
// применённого события возвращает текущее состояние без ошибки.
func (s *OrderService) Advance(ctx context.Context, actor Actor, orderID uuid.UUID, event string) (*models.Order, error) {
	if !models.IsKnownEvent(event) {
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "неизвестное событие")
	}
	switch event {
	case models.EventSelectExecutor, models.EventAssignMediator, models.EventFirstResponse:
		// Выбор исполнителя и назначение посредника требуют участника, переход
		// первого отклика идёт только через подачу отклика с квотной проверкой.
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "событие применяется профильной операцией")
	}

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(order, actor, event); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		target, ok := models.NextStatus(order.Status, event)
		if !ok {
			if models.IsEventTarget(order.Status, event) {
				// Повторная доставка: событие уже применено.
				return order, nil
			}
			return nil, apperror.New(apperror.ErrCodeInvalidTransition, "событие недопустимо в текущем статусе заказа")
		}

		var applied bool
		if models.ReleasesQuota(target) {
			applied, err = s.orders.UpdateStatusReleasing(ctx, orderID, order.Status, target)
		} else {
			applied, err = s.orders.UpdateStatus(ctx, orderID, order.Status, target)
		}
		if err != nil {
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось применить переход")
		}
		if applied {
			order.Status = target
			return order, nil
		}

		// Проигранная гонка: перечитываем и пробуем ещё раз.
		time.Sleep(transitionBackoff * time.Duration(attempt+1))
		order, err = s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == target {
			return order, nil
		}
	}

	return nil, apperror.New(apperror.ErrCodeConflict, "заказ изменён конкурентной операцией, повторите позже")
}

// SelectExecutor фиксирует выбранного заказчиком исполнителя. Исполнитель
// должен иметь действующий отклик на заказ.
func (s *OrderService) SelectExecutor(ctx context.Context, actor Actor, orderID, executorID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(order, actor, models.EventSelectExecutor); err != nil {
		return nil, err
	}

	// Повторная доставка того же выбора — no-op.
	if order.Status == models.OrderStatusExecutorSelected && order.IsAssignedExecutor(executorID) {
		return order, nil
	}

	if _, ok := models.NextStatus(order.Status, models.EventSelectExecutor); !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "выбор исполнителя недоступен в текущем статусе")
	}

	responded, err := s.responses.HasActiveResponse(ctx, orderID, executorID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить отклик исполнителя")
	}
	if !responded {
		return nil, apperror.New(apperror.ErrCodeInvalidInput, "исполнитель не откликался на этот заказ")
	}

	applied, err := s.orders.SetExecutor(ctx, orderID, order.Status, executorID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось зафиксировать исполнителя")
	}
	if !applied {
		order, err = s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == models.OrderStatusExecutorSelected && order.IsAssignedExecutor(executorID) {
			return order, nil
		}
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ изменён конкурентной операцией, повторите позже")
	}

	order.Status = models.OrderStatusExecutorSelected
	order.ExecutorID = &executorID
	return order, nil
}

// AssignMediator переводит заказ на посредническую ветку.
func (s *OrderService) AssignMediator(ctx context.Context, actor Actor, orderID, mediatorID uuid.UUID) (*models.Order, error) {
	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(order, actor, models.EventAssignMediator); err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusMediatorStep1 && order.IsAssignedMediator(mediatorID) {
		return order, nil
	}

	if _, ok := models.NextStatus(order.Status, models.EventAssignMediator); !ok {
		return nil, apperror.New(apperror.ErrCodeInvalidTransition, "назначение посредника недоступно в текущем статусе")
	}

	if _, err := s.mediators.GetByUserID(ctx, mediatorID); err != nil {
		if errors.Is(err, repository.ErrMediatorNotFound) {
			return nil, apperror.ErrMediatorNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить посредника")
	}

	applied, err := s.orders.SetMediator(ctx, orderID, order.Status, mediatorID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось назначить посредника")
	}
	if !applied {
		order, err = s.getOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.Status == models.OrderStatusMediatorStep1 && order.IsAssignedMediator(mediatorID) {
			return order, nil
		}
		return nil, apperror.New(apperror.ErrCodeConflict, "заказ изменён конкурентной операцией, повторите позже")
	}

	order.Status = models.OrderStatusMediatorStep1
	order.MediatorID = &mediatorID
	return order, nil
}

// authorize проверяет роль события и принадлежность действующего лица заказу.
func (s *OrderService) authorize(order *models.Order, actor Actor, event string) error {
	if !models.EventAllowedFor(event, actor.Role) {
		return apperror.ErrForbidden
	}
	if actor.IsAdmin() || actor.Role == models.RoleSystem {
		return nil
	}

	switch actor.Role {
	case models.RoleCustomer:
		if !order.IsOwnedBy(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "заказ принадлежит другому заказчику")
		}
	case models.RoleExecutor:
		if !order.IsAssignedExecutor(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "вы не назначены исполнителем этого заказа")
		}
	case models.RoleMediator:
		if !order.IsAssignedMediator(actor.ID) {
			return apperror.New(apperror.ErrCodeForbidden, "вы не назначены посредником этого заказа")
		}
	default:
		return apperror.ErrForbidden
	}
	return nil
}

func (s *OrderService) getOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			return nil, apperror.ErrOrderNotFound
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить заказ")
	}
	return order, nil
}
