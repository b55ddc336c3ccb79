package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/genialityco/gen-live-web-sub001/pkg/response"
	"github.com/genialityco/gen-live-web-sub001/pkg/token"
)

const (
	UserIDKey     = "user_id"
	NameKey       = "name"
	RoleKey       = "role"
	EventIDKey    = "token_event_id"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// AuthMiddleware validates participant access tokens locally.
type AuthMiddleware struct {
	tokens *token.Manager
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(tokens *token.Manager) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth returns a Gin middleware that validates access tokens and
// stores the claims on the request context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		claims, err := m.tokens.Validate(strings.TrimPrefix(authHeader, BearerPrefix))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		// Tokens are minted per event; one event's token grants nothing on
		// another event's routes.
		if eventID := c.Param("id"); eventID != "" && claims.EventID != eventID {
			response.Forbidden(c, "token is not valid for this event")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UID)
		c.Set(NameKey, claims.Name)
		c.Set(RoleKey, claims.Role)
		c.Set(EventIDKey, claims.EventID)

		c.Next()
	}
}

// RequireHost gates host-only moderation and transmission endpoints. It
// must run after RequireAuth.
func (m *AuthMiddleware) RequireHost() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != token.RoleHost {
			response.Forbidden(c, "host role required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID extracts the participant uid from Gin context.
func GetUserID(c *gin.Context) string {
	if id, exists := c.Get(UserIDKey); exists {
		return id.(string)
	}
	return ""
}

// GetName extracts the display name from Gin context.
func GetName(c *gin.Context) string {
	if name, exists := c.Get(NameKey); exists {
		return name.(string)
	}
	return ""
}

// GetRole extracts the participant role from Gin context.
func GetRole(c *gin.Context) string {
	if role, exists := c.Get(RoleKey); exists {
		return role.(string)
	}
	return ""
}
