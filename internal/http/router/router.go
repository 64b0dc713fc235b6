package router

import (
	"github.com/gin-gonic/gin"

	"github.com/remstroy/orders-backend/internal/config"
	"github.com/remstroy/orders-backend/internal/http/handlers"
	"github.com/remstroy/orders-backend/internal/http/middleware"
	"github.com/remstroy/orders-backend/internal/service"
)

func SetupRouter(
	cfg *config.Config,
	orderHandler *handlers.OrderHandler,
	reviewHandler *handlers.ReviewHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	tariffHandler *handlers.TariffHandler,
	notificationHandler *handlers.NotificationHandler,
	healthHandler *handlers.HealthHandler,
	tokenManager *service.TokenManager,
) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.GET("/health", healthHandler.Check)

	api := r.Group("/api")

	// Публичные маршруты
	api.GET("/orders/:id", orderHandler.GetOrder)
	api.GET("/orders/:id/commission", orderHandler.Commission)
	api.GET("/orders/:id/reviews", reviewHandler.OrderReviews)
	api.GET("/users/:id/reviews", reviewHandler.ListUserReviews)
	api.GET("/tariffs", tariffHandler.List)
	api.GET("/tariffs/:id", tariffHandler.Get)

	// Защищённые маршруты
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokenManager))
	{
		writeRateLimit := middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod)

		protected.GET("/orders/my", orderHandler.ListMyOrders)
		protected.POST("/orders", writeRateLimit, orderHandler.CreateOrder)
		protected.POST("/orders/:id/advance", writeRateLimit, orderHandler.Advance)
		protected.POST("/orders/:id/responses", writeRateLimit, orderHandler.SubmitResponse)
		protected.GET("/orders/:id/responses", orderHandler.ListResponses)
		protected.POST("/orders/:id/select-executor", writeRateLimit, orderHandler.SelectExecutor)
		protected.POST("/orders/:id/mediator", writeRateLimit, orderHandler.AssignMediator)

		protected.POST("/orders/:id/reviews/executor", writeRateLimit, reviewHandler.SubmitExecutorReview)
		protected.POST("/orders/:id/reviews/customer", writeRateLimit, reviewHandler.SubmitCustomerReview)

		protected.GET("/subscriptions/me", subscriptionHandler.Entitlement)

		protected.GET("/notifications", notificationHandler.List)
		protected.POST("/notifications/:id/read", notificationHandler.MarkAsRead)
	}

	// Администрирование
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokenManager), middleware.RequireAdmin())
	{
		admin.POST("/subscriptions/expire", subscriptionHandler.ExpireSweep)
		admin.POST("/subscriptions/warn", subscriptionHandler.WarnSweep)
	}

	return r
}
