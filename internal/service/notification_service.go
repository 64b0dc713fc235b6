package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/remstroy/orders-backend/internal/models"
)

// NotificationRepository описывает взаимодействие сервиса с хранилищем уведомлений.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) error
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
}

// Notifier — то, что нужно остальным сервисам от уведомлений. Доставка
// (push, почта) выполняется внешним коллаборатором, движок только сохраняет
// события.
type Notifier interface {
	NotifyUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) (*models.Notification, error)
	NotifyAdmins(ctx context.Context, event string, data interface{}) (*models.Notification, error)
}

// NotificationService содержит бизнес-логику работы с уведомлениями.
type NotificationService struct {
	repo NotificationRepository
}

// NewNotificationService создаёт новый сервис уведомлений.
func NewNotificationService(repo NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo}
}

// NotifyUser сохраняет уведомление для пользователя.
func (s *NotificationService) NotifyUser(ctx context.Context, userID uuid.UUID, event string, data interface{}) (*models.Notification, error) {
	return s.create(ctx, &userID, models.AudienceUser, event, data)
}

// NotifyAdmins сохраняет служебное уведомление для администраторов.
func (s *NotificationService) NotifyAdmins(ctx context.Context, event string, data interface{}) (*models.Notification, error) {
	return s.create(ctx, nil, models.AudienceAdmin, event, data)
}

func (s *NotificationService) create(ctx context.Context, userID *uuid.UUID, audience, event string, data interface{}) (*models.Notification, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal payload %w", err)
	}

	notification := &models.Notification{
		UserID:   userID,
		Audience: audience,
		Event:    event,
		Payload:  payload,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, err
	}

	return notification, nil
}

// ListUserNotifications возвращает уведомления пользователя.
func (s *NotificationService) ListUserNotifications(ctx context.Context, userID uuid.UUID, limit, offset int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListForUser(ctx, userID, limit, offset, unreadOnly)
}

// MarkAsRead отмечает уведомление прочитанным.
func (s *NotificationService) MarkAsRead(ctx context.Context, id uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, id)
}

// CountUnread возвращает количество непрочитанных уведомлений.
func (s *NotificationService) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
