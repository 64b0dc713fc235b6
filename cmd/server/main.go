package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/remstroy/orders-backend/internal/config"
	"github.com/remstroy/orders-backend/internal/db"
	httpHandlers "github.com/remstroy/orders-backend/internal/http/handlers"
	httpRouter "github.com/remstroy/orders-backend/internal/http/router"
	"github.com/remstroy/orders-backend/internal/logger"
	"github.com/remstroy/orders-backend/internal/repository"
	"github.com/remstroy/orders-backend/internal/service"
)

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	if cfg.Env == "development" {
		logger.Init("debug")
		logger.SetTextFormatter()
	} else {
		logger.Init("info")
	}

	// Подключение к базе и миграции.
	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("main: ошибка подключения к базе: %v", err)
	}
	defer safeClose(dbConn)

	if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
		log.Fatalf("main: ошибка миграций: %v", err)
	}

	tokenManager := service.NewTokenManager(cfg.JWTSecret)

	// Репозитории.
	orderRepo := repository.NewOrderRepository(dbConn)
	responseRepo := repository.NewResponseRepository(dbConn)
	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)
	reviewRepo := repository.NewReviewRepository(dbConn)
	mediatorRepo := repository.NewMediatorRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	tariffRepo := repository.NewTariffRepository(dbConn)

	// Сервисы.
	notificationService := service.NewNotificationService(notificationRepo)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, notificationService, cfg.ExpiryWarnDays, cfg.SweepBatchSize)
	orderService := service.NewOrderService(orderRepo, responseRepo, mediatorRepo, subscriptionService)
	reviewService := service.NewReviewService(reviewRepo, orderRepo, notificationService)
	commissionService := service.NewCommissionService(orderRepo, mediatorRepo)

	// HTTP хэндлеры.
	orderHandler := httpHandlers.NewOrderHandler(orderService, commissionService)
	reviewHandler := httpHandlers.NewReviewHandler(reviewService)
	subscriptionHandler := httpHandlers.NewSubscriptionHandler(subscriptionService)
	tariffHandler := httpHandlers.NewTariffHandler(tariffRepo)
	notificationHandler := httpHandlers.NewNotificationHandler(notificationService)
	healthHandler := httpHandlers.NewHealthHandler(dbConn)

	engine := httpRouter.SetupRouter(cfg, orderHandler, reviewHandler, subscriptionHandler, tariffHandler, notificationHandler, healthHandler, tokenManager)

	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: engine,
	}

	// Завершаем сервер при получении сигнала.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("main: ошибка остановки http сервера: %v", err)
		}
	}()

	log.Printf("main: HTTP сервер запущен на порту %s", cfg.HTTPPort)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
