package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"github.com/remstroy/orders-backend/internal/config"
	"github.com/remstroy/orders-backend/internal/db"
	"github.com/remstroy/orders-backend/internal/logger"
	"github.com/remstroy/orders-backend/internal/repository"
	"github.com/remstroy/orders-backend/internal/service"
)

// Отдельный процесс фонового обслуживания подписок: перевод истёкших
// пользователей на следующий тариф из очереди либо на бесплатный по
// умолчанию, и рассылка предупреждений о скором окончании.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("sweeper: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init("info")
	if cfg.Env == "development" {
		logger.SetTextFormatter()
	}
	logEntry := logger.WithComponent("sweeper")

	dbConn, err := db.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("sweeper: ошибка подключения к базе: %v", err)
	}
	defer dbConn.Close()

	subscriptionRepo := repository.NewSubscriptionRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	notificationService := service.NewNotificationService(notificationRepo)
	subscriptionService := service.NewSubscriptionService(subscriptionRepo, notificationService, cfg.ExpiryWarnDays, cfg.SweepBatchSize)

	scheduler := cron.New()

	if _, err := scheduler.AddFunc(cfg.ExpireSweepSchedule, func() {
		summary, err := subscriptionService.ExpireSubscriptions(ctx)
		if err != nil {
			logEntry.WithError(err).Error("обработка истёкших подписок завершилась с ошибкой")
			return
		}
		logEntry.WithFields(map[string]interface{}{
			"advanced":   summary.Advanced,
			"downgraded": summary.Downgraded,
			"failed":     summary.Failed,
		}).Info("обработка истёкших подписок завершена")
	}); err != nil {
		log.Fatalf("sweeper: неверное расписание EXPIRE_SWEEP_SCHEDULE: %v", err)
	}

	if _, err := scheduler.AddFunc(cfg.WarnSweepSchedule, func() {
		summary, err := subscriptionService.WarnExpiring(ctx)
		if err != nil {
			logEntry.WithError(err).Error("рассылка предупреждений завершилась с ошибкой")
			return
		}
		logEntry.WithFields(map[string]interface{}{
			"warned": summary.Warned,
			"failed": summary.Failed,
		}).Info("рассылка предупреждений завершена")
	}); err != nil {
		log.Fatalf("sweeper: неверное расписание WARN_SWEEP_SCHEDULE: %v", err)
	}

	scheduler.Start()
	logEntry.WithFields(map[string]interface{}{
		"expire_schedule": cfg.ExpireSweepSchedule,
		"warn_schedule":   cfg.WarnSweepSchedule,
	}).Info("планировщик запущен")

	<-ctx.Done()

	// Дожидаемся завершения уже запущенных задач.
	<-scheduler.Stop().Done()
	logEntry.Info("планировщик остановлен")
}
