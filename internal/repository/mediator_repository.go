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

var ErrMediatorNotFound = errors.New("mediator not found")

type MediatorRepository struct {
	db *sqlx.DB
}

func NewMediatorRepository(db *sqlx.DB) *MediatorRepository {
	return &MediatorRepository{db: db}
}

// GetByUserID возвращает комиссионную конфигурацию посредника.
func (r *MediatorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Mediator, error) {
	var mediator models.Mediator
	err := r.db.GetContext(ctx, &mediator, `SELECT * FROM mediators WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMediatorNotFound
		}
		return nil, fmt.Errorf("mediator repository: get by user id: %w", err)
	}
	return &mediator, nil
}
