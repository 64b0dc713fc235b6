package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remstroy/orders-backend/internal/http/handlers/common"
	"github.com/remstroy/orders-backend/internal/models"
	"github.com/remstroy/orders-backend/internal/service"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type submitReviewRequest struct {
	Rating  int     `json:"rating" binding:"required,min=1,max=5"`
	Comment *string `json:"comment"`
}

// SubmitExecutorReview POST /orders/:id/reviews/executor — отзыв исполнителя о заказчике.
func (h *ReviewHandler) SubmitExecutorReview(c *gin.Context) {
	h.submit(c, h.reviews.SubmitExecutorReview)
}

// SubmitCustomerReview POST /orders/:id/reviews/customer — отзыв заказчика об исполнителе.
func (h *ReviewHandler) SubmitCustomerReview(c *gin.Context) {
	h.submit(c, h.reviews.SubmitCustomerReview)
}

// OrderReviews GET /orders/:id/reviews — пара отзывов по заказу.
func (h *ReviewHandler) OrderReviews(c *gin.Context) {
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный order_id")
		return
	}

	reviews, err := h.reviews.ReviewsForOrder(c.Request.Context(), orderID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reviews)
}

// ListUserReviews GET /users/:id/reviews?as=executor|customer
func (h *ReviewHandler) ListUserReviews(c *gin.Context) {
	userID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный user_id")
		return
	}

	// Отзывы об исполнителе оставляют заказчики.
	kind := models.ReviewKindCustomer
	if c.DefaultQuery("as", "executor") == "customer" {
		kind = models.ReviewKindExecutor
	}

	limit, offset := pagination(c)
	reviews, err := h.reviews.ListReviewsAboutUser(c.Request.Context(), kind, userID, limit, offset)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

type submitFunc func(ctx context.Context, authorID, orderID uuid.UUID, rating int, comment *string) (*models.Review, error)

func (h *ReviewHandler) submit(c *gin.Context, fn submitFunc) {
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

	var req submitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "оценка от 1 до 5 обязательна")
		return
	}

	review, err := fn(c.Request.Context(), userID, orderID, req.Rating, req.Comment)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, review)
}
