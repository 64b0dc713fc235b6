package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Tariff — неизменяемая запись каталога тарифов.
type Tariff struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	DurationDays int             `db:"duration_days" json:"duration_days"`
	MaxOrders    int             `db:"max_orders" json:"max_orders"`
	MaxContacts  int             `db:"max_contacts" json:"max_contacts"`
	Price        decimal.Decimal `db:"price" json:"price"`
	IsDefault    bool            `db:"is_default" json:"is_default"`
	IsActive     bool            `db:"is_active" json:"is_active"`
	IsTest       bool            `db:"is_test" json:"is_test"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// QueuedTariff — купленный тариф, ожидающий активации после окончания текущего.
type QueuedTariff struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	TariffID  uuid.UUID `db:"tariff_id" json:"tariff_id"`
	Position  int       `db:"position" json:"position"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Entitlement описывает действующий тариф пользователя и остаток квоты в нём.
type Entitlement struct {
	TariffID     uuid.UUID  `json:"tariff_id"`
	TariffName   string     `json:"tariff_name"`
	Used         int        `json:"used"`
	Limit        int        `json:"limit"`
	PeriodEndsAt *time.Time `json:"period_ends_at,omitempty"`
}

// Remaining возвращает остаток квоты откликов.
func (e *Entitlement) Remaining() int {
	if e.Limit <= e.Used {
		return 0
	}
	return e.Limit - e.Used
}

// Итоги переключения подписочного периода
const (
	SubscriptionOutcomeUnchanged  = "unchanged"
	SubscriptionOutcomeAdvanced   = "advanced"
	SubscriptionOutcomeDowngraded = "downgraded"
)

// ExpirationResult описывает итог обработки истечения подписки одного пользователя.
type ExpirationResult struct {
	UserID     uuid.UUID  `json:"user_id"`
	Outcome    string     `json:"outcome"`
	TariffID   uuid.UUID  `json:"tariff_id"`
	TariffName string     `json:"tariff_name"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
}

// QuotaReservation — результат атомарной попытки занять слот квоты откликом.
// Entitlement заполняется и при отказе по квоте, чтобы вернуть вызывающему
// контекст остатка; Expiration non-nil, если период был переключён лениво.
type QuotaReservation struct {
	Response    *OrderResponse    `json:"response,omitempty"`
	Entitlement *Entitlement      `json:"entitlement"`
	Expiration  *ExpirationResult `json:"-"`
}
