package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/remstroy/orders-backend/internal/logger"
	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

// SubscriptionStore описывает атомарные операции над подписочным состоянием
// пользователя. Реализация держит каждую операцию в собственной транзакции.
type SubscriptionStore interface {
	ReserveResponseSlot(ctx context.Context, executorID, orderID uuid.UUID) (*models.QuotaReservation, error)
	CurrentEntitlement(ctx context.Context, executorID uuid.UUID) (*models.QuotaReservation, error)
	ExpireOne(ctx context.Context, userID uuid.UUID) (*models.ExpirationResult, error)
	ListExpiredUserIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	ListExpiringUsers(ctx context.Context, now, until time.Time, limit int) ([]models.User, error)
	MarkExpiryWarned(ctx context.Context, userID uuid.UUID) error
}

// SweepSummary — итог одного прохода фоновой обработки подписок.
type SweepSummary struct {
	Advanced   int `json:"advanced"`
	Downgraded int `json:"downgraded"`
	Warned     int `json:"warned"`
	Failed     int `json:"failed"`
}

// SubscriptionService отвечает за квоты откликов и жизненный цикл подписок.
type SubscriptionService struct {
	store     SubscriptionStore
	notifier  Notifier
	warnDays  int
	batchSize int
}

func NewSubscriptionService(store SubscriptionStore, notifier Notifier, warnDays, batchSize int) *SubscriptionService {
	if warnDays < 1 {
		warnDays = 3
	}
	if batchSize < 1 {
		batchSize = 500
	}
	return &SubscriptionService{store: store, notifier: notifier, warnDays: warnDays, batchSize: batchSize}
}

// ReserveResponseSlot занимает слот квоты откликом исполнителя. Квота и
// вставка отклика проверяются атомарно в хранилище; здесь ошибки хранилища
// переводятся в доменные, а лениво произошедший даунгрейд подписки
// сопровождается уведомлениями.
func (s *SubscriptionService) ReserveResponseSlot(ctx context.Context, executorID, orderID uuid.UUID) (*models.QuotaReservation, error) {
	reservation, err := s.store.ReserveResponseSlot(ctx, executorID, orderID)
	if reservation != nil {
		s.emitExpirationEvents(ctx, reservation.Expiration)
	}
	if err != nil {
		return nil, s.mapStoreError(err, reservation)
	}
	return reservation, nil
}

// CanRespond сообщает, может ли исполнитель оставить отклик, и возвращает
// контекст текущей квоты.
func (s *SubscriptionService) CanRespond(ctx context.Context, executorID uuid.UUID) (*models.Entitlement, bool, error) {
	reservation, err := s.store.CurrentEntitlement(ctx, executorID)
	if err != nil {
		return nil, false, s.mapStoreError(err, nil)
	}
	s.emitExpirationEvents(ctx, reservation.Expiration)

	ent := reservation.Entitlement
	return ent, ent.Remaining() > 0, nil
}

// ExpireSubscriptions — периодический проход по пользователям с истёкшей
// подпиской: активация следующего тарифа из очереди либо перевод на
// бесплатный тариф. Каждый пользователь обрабатывается независимо, ошибка
// конфигурации логируется и не прерывает проход.
func (s *SubscriptionService) ExpireSubscriptions(ctx context.Context) (*SweepSummary, error) {
	log := logger.WithComponent("subscription-sweep")
	summary := &SweepSummary{}

	ids, err := s.store.ListExpiredUserIDs(ctx, time.Now(), s.batchSize)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователей с истёкшей подпиской")
	}

	for _, userID := range ids {
		result, err := s.store.ExpireOne(ctx, userID)
		if err != nil {
			summary.Failed++
			if errors.Is(err, repository.ErrFreeTariffMissing) {
				// Фатальная ошибка конфигурации: дефолтный тариф отсутствует.
				// Пользователь пропускается, проход продолжается.
				log.WithField("user_id", userID).Error("дефолтный бесплатный тариф не настроен, пользователь пропущен")
				continue
			}
			log.WithFields(logrus.Fields{"user_id": userID, "error": err}).Error("не удалось обработать истечение подписки")
			continue
		}

		switch result.Outcome {
		case models.SubscriptionOutcomeAdvanced:
			summary.Advanced++
		case models.SubscriptionOutcomeDowngraded:
			summary.Downgraded++
		}
		s.emitExpirationEvents(ctx, result)
	}

	log.WithFields(logrus.Fields{
		"advanced":   summary.Advanced,
		"downgraded": summary.Downgraded,
		"failed":     summary.Failed,
	}).Info("проход по истёкшим подпискам завершён")

	return summary, nil
}

// WarnExpiring отправляет предупреждения пользователям, чья подписка истекает
// в ближайшие дни. Состояние подписки не меняется, повторные предупреждения
// в одном периоде не отправляются.
func (s *SubscriptionService) WarnExpiring(ctx context.Context) (*SweepSummary, error) {
	log := logger.WithComponent("subscription-sweep")
	summary := &SweepSummary{}

	now := time.Now()
	until := now.AddDate(0, 0, s.warnDays)

	users, err := s.store.ListExpiringUsers(ctx, now, until, s.batchSize)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось получить пользователей с истекающей подпиской")
	}

	for _, user := range users {
		if _, err := s.notifier.NotifyUser(ctx, user.ID, models.NotificationSubscriptionExpiring, map[string]interface{}{
			"ends_at": user.SubscriptionEndsAt,
		}); err != nil {
			summary.Failed++
			log.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("не удалось создать предупреждение об истечении")
			continue
		}
		if err := s.store.MarkExpiryWarned(ctx, user.ID); err != nil {
			summary.Failed++
			log.WithFields(logrus.Fields{"user_id": user.ID, "error": err}).Error("не удалось отметить предупреждение")
			continue
		}
		summary.Warned++
	}

	return summary, nil
}

// emitExpirationEvents создаёт уведомления о даунгрейде подписки: одно
// пользователю и одно служебное администраторам. Ошибки записи уведомлений
// не прерывают основную операцию.
func (s *SubscriptionService) emitExpirationEvents(ctx context.Context, result *models.ExpirationResult) {
	if result == nil || result.Outcome != models.SubscriptionOutcomeDowngraded {
		return
	}

	log := logger.WithComponent("subscription")
	data := map[string]interface{}{
		"user_id":     result.UserID,
		"tariff_id":   result.TariffID,
		"tariff_name": result.TariffName,
	}
	if _, err := s.notifier.NotifyUser(ctx, result.UserID, models.NotificationSubscriptionDowngraded, data); err != nil {
		log.WithField("user_id", result.UserID).WithError(err).Error("не удалось создать уведомление о даунгрейде")
	}
	if _, err := s.notifier.NotifyAdmins(ctx, models.NotificationSubscriptionDowngraded, data); err != nil {
		log.WithField("user_id", result.UserID).WithError(err).Error("не удалось создать служебное уведомление")
	}
}

func (s *SubscriptionService) mapStoreError(err error, reservation *models.QuotaReservation) error {
	switch {
	case errors.Is(err, repository.ErrQuotaExhausted):
		appErr := apperror.New(apperror.ErrCodeQuotaExceeded, "исчерпан лимит откликов по тарифу")
		if reservation != nil && reservation.Entitlement != nil {
			ent := reservation.Entitlement
			appErr.WithDetails(map[string]interface{}{
				"tariff":    ent.TariffName,
				"used":      ent.Used,
				"limit":     ent.Limit,
				"remaining": ent.Remaining(),
			})
		}
		return appErr
	case errors.Is(err, repository.ErrDuplicateResponse):
		return apperror.New(apperror.ErrCodeConflict, "вы уже откликнулись на этот заказ")
	case errors.Is(err, repository.ErrUserNotFound):
		return apperror.ErrUserNotFound
	case errors.Is(err, repository.ErrFreeTariffMissing):
		return apperror.Wrap(err, apperror.ErrCodeConfiguration, "дефолтный бесплатный тариф не настроен")
	case errors.Is(err, repository.ErrTariffNotFound):
		return apperror.Wrap(err, apperror.ErrCodeConfiguration, "тариф пользователя отсутствует в каталоге")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось проверить квоту")
	}
}
