package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/remstroy/orders-backend/internal/http/handlers/common"
	"github.com/remstroy/orders-backend/internal/service"
)

type OrderHandler struct {
	orders     *service.OrderService
	commission *service.CommissionService
}

func NewOrderHandler(orders *service.OrderService, commission *service.CommissionService) *OrderHandler {
	return &OrderHandler{orders: orders, commission: commission}
}

// CreateOrder POST /orders
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req struct {
		Title       string          `json:"title" binding:"required"`
		Description string          `json:"description"`
		MaxAmount   decimal.Decimal `json:"max_amount"`
		StartsOn    *time.Time      `json:"starts_on"`
		EndsOn      *time.Time      `json:"ends_on"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "некорректное тело запроса")
		return
	}

	order, err := h.orders.CreateOrder(c.Request.Context(), userID, service.CreateOrderInput{
		Title:       req.Title,
		Description: req.Description,
		MaxAmount:   req.MaxAmount,
		StartsOn:    req.StartsOn,
		EndsOn:      req.EndsOn,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// GetOrder GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// ListMyOrders GET /orders/my
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := pagination(c)
	orders, err := h.orders.ListMyOrders(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// Advance POST /orders/:id/advance
func (h *OrderHandler) Advance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	var req struct {
		Event string `json:"event" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "событие обязательно")
		return
	}

	order, err := h.orders.Advance(c.Request.Context(), actor, orderID, req.Event)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": order.Status, "order": order})
}

// SubmitResponse POST /orders/:id/responses
func (h *OrderHandler) SubmitResponse(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	reservation, err := h.orders.SubmitResponse(c.Request.Context(), userID, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// ListResponses GET /orders/:id/responses
func (h *OrderHandler) ListResponses(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	responses, err := h.orders.ListResponses(c.Request.Context(), actor, orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"responses": responses})
}

// SelectExecutor POST /orders/:id/select-executor
func (h *OrderHandler) SelectExecutor(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	var req struct {
		ExecutorID string `json:"executor_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "executor_id обязателен")
		return
	}
	executorID := mustUUID(req.ExecutorID)

	order, err := h.orders.SelectExecutor(c.Request.Context(), actor, orderID, executorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// AssignMediator POST /orders/:id/mediator
func (h *OrderHandler) AssignMediator(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	var req struct {
		MediatorID string `json:"mediator_id" binding:"required,uuid"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "mediator_id обязателен")
		return
	}
	mediatorID := mustUUID(req.MediatorID)

	order, err := h.orders.AssignMediator(c.Request.Context(), actor, orderID, mediatorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// Commission GET /orders/:id/commission?mediator_id=...
func (h *OrderHandler) Commission(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	mediatorParam := c.Query("mediator_id")
	mediatorID, err := parseUUID(mediatorParam)
	if err != nil {
		common.RespondBadRequest(c, "неверный mediator_id")
		return
	}

	amount, err := h.commission.ComputeCommission(c.Request.Context(), orderID, mediatorID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"commission": amount})
}
