package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remstroy/orders-backend/internal/http/handlers/common"
	"github.com/remstroy/orders-backend/internal/service"
)

type SubscriptionHandler struct {
	subscriptions *service.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *service.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// Entitlement GET /subscriptions/me — текущие лимиты пользователя.
func (h *SubscriptionHandler) Entitlement(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	entitlement, allowed, err := h.subscriptions.CanRespond(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"entitlement": entitlement,
		"can_respond": allowed,
	})
}

// ExpireSweep POST /admin/subscriptions/expire — ручной запуск обработки
// истёкших подписок. Тот же код, что и у планировщика.
func (h *SubscriptionHandler) ExpireSweep(c *gin.Context) {
	summary, err := h.subscriptions.ExpireSubscriptions(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// WarnSweep POST /admin/subscriptions/warn — ручной запуск предупреждений
// об истекающих подписках.
func (h *SubscriptionHandler) WarnSweep(c *gin.Context) {
	summary, err := h.subscriptions.WarnExpiring(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
