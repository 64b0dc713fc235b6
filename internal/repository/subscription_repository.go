package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/repository/common"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrTariffNotFound    = errors.New("tariff not found")
	ErrFreeTariffMissing = errors.New("default free tariff is not configured")
	ErrQuotaExhausted    = errors.New("response quota exhausted")
	ErrDuplicateResponse = errors.New("executor already responded to this order")
)

// SubscriptionRepository владеет подписочными полями пользователя, очередью
// купленных тарифов и атомарным занятием слота квоты откликом. Все операции
// чтения-проверки-записи выполняются в одной транзакции с блокировкой строки
// пользователя, поэтому два конкурентных отклика не могут оба пройти при
// одном оставшемся слоте.
type SubscriptionRepository struct {
	db *sqlx.DB
}

func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// ReserveResponseSlot атомарно проверяет квоту исполнителя и создаёт отклик:
// блокировка строки пользователя FOR UPDATE, ленивое разрешение истечения
// подписки, подсчёт откликов текущего периода, сравнение с лимитом тарифа,
// вставка отклика и инкремент счётчика. При отказе по квоте Entitlement
// в результате всё равно заполнен, чтобы вернуть вызывающему остаток.
func (r *SubscriptionRepository) ReserveResponseSlot(ctx context.Context, executorID, orderID uuid.UUID) (*models.QuotaReservation, error) {
	reservation := &models.QuotaReservation{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		user, err := lockUser(ctx, tx, executorID)
		if err != nil {
			return err
		}

		tariff, expiration, err := resolveCurrentTariff(ctx, tx, user, time.Now())
		if err != nil {
			return err
		}
		reservation.Expiration = expiration

		used, err := countPeriodResponses(ctx, tx, user)
		if err != nil {
			return err
		}

		reservation.Entitlement = &models.Entitlement{
			TariffID:     tariff.ID,
			TariffName:   tariff.Name,
			Used:         used,
			Limit:        tariff.MaxOrders,
			PeriodEndsAt: user.SubscriptionEndsAt,
		}

		if used >= tariff.MaxOrders {
			return ErrQuotaExhausted
		}

		resp := &models.OrderResponse{OrderID: orderID, ExecutorID: executorID}
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO order_responses (order_id, executor_id)
			VALUES ($1, $2)
			RETURNING id, created_at
		`, orderID, executorID).Scan(&resp.ID, &resp.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return ErrDuplicateResponse
			}
			return fmt.Errorf("insert response: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET used_orders_count = $2, updated_at = NOW() WHERE id = $1
		`, executorID, used+1); err != nil {
			return fmt.Errorf("update usage counter: %w", err)
		}

		reservation.Response = resp
		reservation.Entitlement.Used = used + 1
		return nil
	})
	if err != nil {
		return reservation, err
	}
	return reservation, nil
}

// CurrentEntitlement возвращает действующий тариф и использование квоты,
// предварительно лениво разрешив истечение подписки.
func (r *SubscriptionRepository) CurrentEntitlement(ctx context.Context, executorID uuid.UUID) (*models.QuotaReservation, error) {
	reservation := &models.QuotaReservation{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		user, err := lockUser(ctx, tx, executorID)
		if err != nil {
			return err
		}

		tariff, expiration, err := resolveCurrentTariff(ctx, tx, user, time.Now())
		if err != nil {
			return err
		}
		reservation.Expiration = expiration

		used, err := countPeriodResponses(ctx, tx, user)
		if err != nil {
			return err
		}

		reservation.Entitlement = &models.Entitlement{
			TariffID:     tariff.ID,
			TariffName:   tariff.Name,
			Used:         used,
			Limit:        tariff.MaxOrders,
			PeriodEndsAt: user.SubscriptionEndsAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservation, nil
}

// ExpireOne обрабатывает истечение подписки одного пользователя в собственной
// транзакции, чтобы сбой на одном пользователе не задевал остальных.
func (r *SubscriptionRepository) ExpireOne(ctx context.Context, userID uuid.UUID) (*models.ExpirationResult, error) {
	var result *models.ExpirationResult
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		if !subscriptionExpired(user, now) {
			result = &models.ExpirationResult{UserID: userID, Outcome: models.SubscriptionOutcomeUnchanged}
			return nil
		}

		result, err = activateNext(ctx, tx, user, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListExpiredUserIDs возвращает пользователей с истёкшей подпиской.
func (r *SubscriptionRepository) ListExpiredUserIDs(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT id FROM users
		WHERE subscription_ends_at IS NOT NULL AND subscription_ends_at <= $1
		ORDER BY subscription_ends_at ASC
		LIMIT $2
	`, now, limit)
	return ids, err
}

// ListExpiringUsers возвращает пользователей, чья подписка истекает в окне
// (now, until] и кто ещё не получал предупреждение в текущем периоде.
func (r *SubscriptionRepository) ListExpiringUsers(ctx context.Context, now, until time.Time, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `
		SELECT * FROM users
		WHERE subscription_ends_at IS NOT NULL
		  AND subscription_ends_at > $1
		  AND subscription_ends_at <= $2
		  AND expiry_warned_at IS NULL
		ORDER BY subscription_ends_at ASC
		LIMIT $3
	`, now, until, limit)
	return users, err
}

// MarkExpiryWarned отмечает, что предупреждение об истечении отправлено.
func (r *SubscriptionRepository) MarkExpiryWarned(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET expiry_warned_at = NOW(), updated_at = NOW() WHERE id = $1
	`, userID)
	return err
}

func lockUser(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := tx.GetContext(ctx, &user, `SELECT * FROM users WHERE id = $1 FOR UPDATE`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lock user: %w", err)
	}
	return &user, nil
}

// periodStart возвращает начало текущего периода подписки; у строки без
// отметки начала период начинается сейчас.
func periodStart(user *models.User, now time.Time) time.Time {
	if user.SubscriptionStartedAt == nil {
		return now
	}
	return *user.SubscriptionStartedAt
}

func subscriptionExpired(user *models.User, now time.Time) bool {
	if user.CurrentTariffID == nil {
		return true
	}
	return user.SubscriptionEndsAt != nil && !now.Before(*user.SubscriptionEndsAt)
}

// resolveCurrentTariff лениво переключает истёкший период и возвращает
// действующий тариф. user обновляется по месту, чтобы последующий подсчёт
// откликов шёл от нового начала периода.
func resolveCurrentTariff(ctx context.Context, tx *sqlx.Tx, user *models.User, now time.Time) (*models.Tariff, *models.ExpirationResult, error) {
	if !subscriptionExpired(user, now) {
		if user.SubscriptionStartedAt == nil {
			// Засеянная вручную строка: тариф назначен, отметки начала периода
			// нет. Сравнение created_at с NULL обнулило бы подсчёт откликов,
			// поэтому период фиксируется с первого обращения.
			start := periodStart(user, now)
			if _, err := tx.ExecContext(ctx, `
				UPDATE users SET subscription_started_at = $2, updated_at = NOW() WHERE id = $1
			`, user.ID, start); err != nil {
				return nil, nil, fmt.Errorf("set period start: %w", err)
			}
			user.SubscriptionStartedAt = &start
		}

		tariff, err := getTariff(ctx, tx, *user.CurrentTariffID)
		if err != nil {
			return nil, nil, err
		}
		return tariff, nil, nil
	}

	result, err := activateNext(ctx, tx, user, now)
	if err != nil {
		return nil, nil, err
	}

	tariff, err := getTariff(ctx, tx, result.TariffID)
	if err != nil {
		return nil, nil, err
	}
	return tariff, result, nil
}

// activateNext активирует следующий тариф из очереди либо переводит
// пользователя на дефолтный бесплатный тариф. Счётчик использования и отметка
// предупреждения сбрасываются с началом нового периода.
func activateNext(ctx context.Context, tx *sqlx.Tx, user *models.User, now time.Time) (*models.ExpirationResult, error) {
	var queued models.QueuedTariff
	err := tx.GetContext(ctx, &queued, `
		SELECT * FROM user_tariff_queue
		WHERE user_id = $1
		ORDER BY position ASC, created_at ASC
		LIMIT 1
	`, user.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("read tariff queue: %w", err)
	}

	if err == nil {
		tariff, terr := getTariff(ctx, tx, queued.TariffID)
		if terr != nil {
			return nil, terr
		}

		if _, derr := tx.ExecContext(ctx, `DELETE FROM user_tariff_queue WHERE id = $1`, queued.ID); derr != nil {
			return nil, fmt.Errorf("pop tariff queue: %w", derr)
		}

		endsAt := now.AddDate(0, 0, tariff.DurationDays)
		if uerr := applyTariff(ctx, tx, user, tariff, now, &endsAt); uerr != nil {
			return nil, uerr
		}

		return &models.ExpirationResult{
			UserID:     user.ID,
			Outcome:    models.SubscriptionOutcomeAdvanced,
			TariffID:   tariff.ID,
			TariffName: tariff.Name,
			EndsAt:     user.SubscriptionEndsAt,
		}, nil
	}

	// Очередь пуста: откат на дефолтный бесплатный тариф, без даты окончания.
	var tariff models.Tariff
	err = tx.GetContext(ctx, &tariff, `
		SELECT * FROM tariffs WHERE is_default = TRUE AND is_active = TRUE LIMIT 1
	`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFreeTariffMissing
		}
		return nil, fmt.Errorf("read default tariff: %w", err)
	}

	if err := applyTariff(ctx, tx, user, &tariff, now, nil); err != nil {
		return nil, err
	}

	return &models.ExpirationResult{
		UserID:     user.ID,
		Outcome:    models.SubscriptionOutcomeDowngraded,
		TariffID:   tariff.ID,
		TariffName: tariff.Name,
	}, nil
}

func applyTariff(ctx context.Context, tx *sqlx.Tx, user *models.User, tariff *models.Tariff, startedAt time.Time, endsAt *time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE users SET
			current_tariff_id = $2,
			subscription_started_at = $3,
			subscription_ends_at = $4,
			used_orders_count = 0,
			expiry_warned_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, user.ID, tariff.ID, startedAt, endsAt)
	if err != nil {
		return fmt.Errorf("apply tariff: %w", err)
	}

	user.CurrentTariffID = &tariff.ID
	user.SubscriptionStartedAt = &startedAt
	user.SubscriptionEndsAt = endsAt
	user.UsedOrdersCount = 0
	user.ExpiryWarnedAt = nil
	return nil
}

func countPeriodResponses(ctx context.Context, tx *sqlx.Tx, user *models.User) (int, error) {
	var used int
	err := tx.GetContext(ctx, &used, `
		SELECT COUNT(*) FROM order_responses
		WHERE executor_id = $1 AND released = FALSE AND created_at >= $2
	`, user.ID, user.SubscriptionStartedAt)
	if err != nil {
		return 0, fmt.Errorf("count period responses: %w", err)
	}
	return used, nil
}

func getTariff(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Tariff, error) {
	var tariff models.Tariff
	err := tx.GetContext(ctx, &tariff, `SELECT * FROM tariffs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTariffNotFound
		}
		return nil, fmt.Errorf("get tariff: %w", err)
	}
	return &tariff, nil
}
