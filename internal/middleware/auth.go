package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexusesi/backend/internal/models"
	"github.com/nexusesi/backend/internal/policy"
	"github.com/nexusesi/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
	// ContextUser is the key for the loaded *models.User.
	ContextUser = "user"
	// ContextActor is the key for the policy.Actor built from the user.
	ContextActor = "actor"
)

// TokenParser validates a bearer token and returns the user it was issued to.
type TokenParser interface {
	ParseUserID(token string) (uuid.UUID, error)
}

// UserLoader loads the user behind a token.
type UserLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// JWT returns a middleware that validates the bearer token, loads the user and
// rejects inactive accounts.
func JWT(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		authenticate(c, tokens, users, parts[1])
	}
}

// JWTQuery authenticates with the token query parameter. Browsers cannot set
// headers on websocket upgrades.
func JWTQuery(tokens TokenParser, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			response.Unauthorized(c, "missing token")
			c.Abort()
			return
		}
		authenticate(c, tokens, users, token)
	}
}

func authenticate(c *gin.Context, tokens TokenParser, users UserLoader, token string) {
	userID, err := tokens.ParseUserID(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		c.Abort()
		return
	}
	user, err := users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil || !user.IsActive {
		response.Unauthorized(c, "invalid or expired token")
		c.Abort()
		return
	}
	c.Set(ContextUserID, user.ID)
	c.Set(ContextUserRole, user.Role)
	c.Set(ContextUser, user)
	c.Set(ContextActor, policy.ActorFromUser(user))
	c.Next()
}

// ActorFrom returns the authenticated actor. Only valid behind JWT or JWTQuery.
func ActorFrom(c *gin.Context) policy.Actor {
	return c.MustGet(ContextActor).(policy.Actor)
}

// UserFrom returns the authenticated user. Only valid behind JWT or JWTQuery.
func UserFrom(c *gin.Context) *models.User {
	return c.MustGet(ContextUser).(*models.User)
}
