package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/response"
)

// ParamUUID parses a path parameter as a UUID. Malformed ids answer 404 like missing ones.
func ParamUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.NotFound(c, apperr.ErrNotFound.Error())
		return uuid.Nil, false
	}
	return id, true
}
