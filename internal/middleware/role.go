package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/apperr"
	"github.com/nexusesi/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		roleVal, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := roleVal.(models.Role)
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, apperr.ErrForbidden.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePermission returns a middleware that allows only roles granted p.
func RequirePermission(p policy.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorVal, ok := c.Get(ContextActor)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		if actor, _ := actorVal.(policy.Actor); !actor.Can(p) {
			response.Forbidden(c, apperr.ErrForbidden.Error())
			c.Abort()
			return
		}
		c.Next()
	}
}
