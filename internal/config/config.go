package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все параметры запуска приложения.
type Config struct {
	Env             string
	HTTPPort        string
	DatabaseURL     string
	JWTSecret       string
	MigrationsPath  string
	AllowedOrigins  []string
	RateLimitLimit  int64
	RateLimitPeriod time.Duration

	// Параметры фонового обслуживания подписок.
	ExpireSweepSchedule string
	WarnSweepSchedule   string
	ExpiryWarnDays      int
	SweepBatchSize      int
}

// Load читает переменные окружения и возвращает готовую конфигурацию.
func Load() (*Config, error) {
	// Загружаем .env только если он существует, иначе используем системные переменные.
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("config: .env не найден, используем переменные окружения: %v", err)
	}

	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:                 env,
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		DatabaseURL:         getDatabaseURL(),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "./migrations"),
		AllowedOrigins:      splitList(getEnv("ALLOWED_ORIGINS", "*")),
		RateLimitLimit:      getEnvInt64("RATE_LIMIT_LIMIT", 30),
		RateLimitPeriod:     getEnvDuration("RATE_LIMIT_PERIOD", time.Minute),
		ExpireSweepSchedule: getEnv("EXPIRE_SWEEP_SCHEDULE", "@every 10m"),
		WarnSweepSchedule:   getEnv("WARN_SWEEP_SCHEDULE", "@daily"),
		ExpiryWarnDays:      getEnvInt("EXPIRY_WARN_DAYS", 3),
		SweepBatchSize:      getEnvInt("SWEEP_BATCH_SIZE", 500),
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if env == "production" {
		if len(jwtSecret) < 32 {
			return nil, fmt.Errorf("config: JWT_SECRET обязателен и должен быть не менее 32 символов в production")
		}
	} else if jwtSecret == "" {
		jwtSecret = "super-secret-development-only-change-in-production"
		log.Printf("config: WARNING - используется дефолтный JWT_SECRET, измените в production!")
	}
	cfg.JWTSecret = jwtSecret

	if cfg.ExpiryWarnDays < 1 {
		cfg.ExpiryWarnDays = 3
	}

	return cfg, nil
}

// getDatabaseURL возвращает DSN напрямую либо собирает его из отдельных переменных.
func getDatabaseURL() string {
	if dsn := getEnv("DATABASE_URL", ""); dsn != "" {
		return dsn
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	password := getEnv("DB_PASSWORD", "postgres")
	name := getEnv("DB_NAME", "orders")
	sslmode := getEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
