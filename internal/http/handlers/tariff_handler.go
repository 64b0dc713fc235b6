package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/remstroy/orders-backend/internal/http/handlers/common"
	"github.com/remstroy/orders-backend/internal/pkg/apperror"
	"github.com/remstroy/orders-backend/internal/repository"
)

// TariffHandler отдаёт публичный каталог тарифов.
type TariffHandler struct {
	tariffs *repository.TariffRepository
}

func NewTariffHandler(tariffs *repository.TariffRepository) *TariffHandler {
	return &TariffHandler{tariffs: tariffs}
}

// List GET /tariffs
func (h *TariffHandler) List(c *gin.Context) {
	tariffs, err := h.tariffs.ListActive(c.Request.Context())
	if err != nil {
		c.Error(apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить каталог тарифов"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"tariffs": tariffs})
}

// Get GET /tariffs/:id
func (h *TariffHandler) Get(c *gin.Context) {
	tariffID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, "неверный tariff_id")
		return
	}

	tariff, err := h.tariffs.GetByID(c.Request.Context(), tariffID)
	if err != nil {
		if errors.Is(err, repository.ErrTariffNotFound) {
			c.Error(apperror.ErrTariffNotFound)
			return
		}
		c.Error(apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось загрузить тариф"))
		return
	}

	c.JSON(http.StatusOK, tariff)
}
