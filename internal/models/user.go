package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User хранит профиль участника и поля текущего подписочного периода.
type User struct {
	ID                    uuid.UUID  `db:"id" json:"id"`
	Role                  string     `db:"role" json:"role"`
	Name                  string     `db:"name" json:"name"`
	CurrentTariffID       *uuid.UUID `db:"current_tariff_id" json:"current_tariff_id,omitempty"`
	SubscriptionStartedAt *time.Time `db:"subscription_started_at" json:"subscription_started_at,omitempty"`
	SubscriptionEndsAt    *time.Time `db:"subscription_ends_at" json:"subscription_ends_at,omitempty"`
	UsedOrdersCount       int        `db:"used_orders_count" json:"used_orders_count"`
	ExpiryWarnedAt        *time.Time `db:"expiry_warned_at" json:"-"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// Mediator хранит комиссионную конфигурацию посредника.
// Отсутствующие процент или фиксированная ставка трактуются как ноль.
type Mediator struct {
	UserID           uuid.UUID        `db:"user_id" json:"user_id"`
	MarginPercentage *decimal.Decimal `db:"margin_percentage" json:"margin_percentage,omitempty"`
	FixedFee         *decimal.Decimal `db:"fixed_fee" json:"fixed_fee,omitempty"`
}

// Margin возвращает процент комиссии, ноль если не задан.
func (m *Mediator) Margin() decimal.Decimal {
	if m.MarginPercentage == nil {
		return decimal.Zero
	}
	return *m.MarginPercentage
}

// Fee возвращает фиксированную ставку, ноль если не задана.
func (m *Mediator) Fee() decimal.Decimal {
	if m.FixedFee == nil {
		return decimal.Zero
	}
	return *m.FixedFee
}
