package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Аудитории уведомлений
const (
	AudienceUser  = "user"
	AudienceAdmin = "admin"
)

// События уведомлений
const (
	NotificationSubscriptionDowngraded = "subscription_downgraded"
	NotificationSubscriptionExpiring   = "subscription_expiring"
	NotificationOrderCompleted         = "order_completed"
)

// Notification — запись для внешнего механизма доставки. Движок только
// сохраняет события, транспорт (push, почта) — внешний коллаборатор.
type Notification struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	UserID    *uuid.UUID      `db:"user_id" json:"user_id,omitempty"`
	Audience  string          `db:"audience" json:"audience"`
	Event     string          `db:"event" json:"event"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	IsRead    bool            `db:"is_read" json:"is_read"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
