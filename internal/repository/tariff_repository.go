package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/remstroy/orders-backend/internal/models"
)

type TariffRepository struct {
	db *sqlx.DB
}

func NewTariffRepository(db *sqlx.DB) *TariffRepository {
	return &TariffRepository{db: db}
}

// GetByID возвращает тариф по ID.
func (r *TariffRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Tariff, error) {
	var tariff models.Tariff
	err := r.db.GetContext(ctx, &tariff, `SELECT * FROM tariffs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTariffNotFound
		}
		return nil, fmt.Errorf("tariff repository: get by id: %w", err)
	}
	return &tariff, nil
}

// ListActive возвращает активные тарифы каталога без тестовых.
func (r *TariffRepository) ListActive(ctx context.Context) ([]models.Tariff, error) {
	var tariffs []models.Tariff
	err := r.db.SelectContext(ctx, &tariffs, `
		SELECT * FROM tariffs
		WHERE is_active = TRUE AND is_test = FALSE
		ORDER BY price ASC
	`)
	return tariffs, err
}
