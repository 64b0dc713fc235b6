package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/remstroy/orders-backend/internal/http/handlers/common"
	"github.com/remstroy/orders-backend/internal/service"
)

// currentActor собирает Actor из контекста запроса; при отсутствии
// авторизации сам отвечает 401 и возвращает ok=false.
func currentActor(c *gin.Context) (service.Actor, bool) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return service.Actor{}, false
	}

	role, err := common.CurrentUserRole(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return service.Actor{}, false
	}

	return service.Actor{ID: userID, Role: role}, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	return limit, offset
}

func parseUUID(raw string) (uuid.UUID, error) {
	return uuid.Parse(raw)
}

// mustUUID разбирает UUID, уже прошедший binding-валидацию.
func mustUUID(raw string) uuid.UUID {
	parsed, _ := uuid.Parse(raw)
	return parsed
}
