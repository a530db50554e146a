package middleware

import (
	"context"
	"strings"

	"codeduel/internal/gateway/service"
	pkgerrors "codeduel/pkg/errors"
	"codeduel/pkg/utils/contextkey"
	"codeduel/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

const (
	ModePublic = "public"
	ModeJWT    = "jwt"

	playerIDKey = "player_id"
)

type AuthPolicy struct {
	Mode string `yaml:"mode"`
}

// AuthMiddleware verifies the bearer token in jwt mode and records the player id.
// In public mode requests pass through and carry their own playerId.
func AuthMiddleware(authService *service.AuthService, policy AuthPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.ToLower(policy.Mode) != ModeJWT {
			c.Next()
			return
		}
		if authService == nil {
			response.AbortWithErrorCode(c, pkgerrors.ServiceUnavailable, "auth service unavailable")
			return
		}

		token := extractBearerToken(c.GetHeader("Authorization"))
		info, err := authService.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.AbortWithError(c, err)
			return
		}

		c.Set(playerIDKey, info.ID)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, info.ID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthenticatedPlayer returns the player id set by AuthMiddleware.
func AuthenticatedPlayer(c *gin.Context) (string, bool) {
	v, ok := c.Get(playerIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// ResolvePlayerID picks the acting player. An authenticated request defaults to its
// token subject and may not act for anyone else; a public request must name the player.
func ResolvePlayerID(c *gin.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	authed, ok := AuthenticatedPlayer(c)
	if !ok {
		if requested == "" {
			return "", pkgerrors.ValidationError("playerId", "required")
		}
		return requested, nil
	}
	if requested != "" && requested != authed {
		return "", pkgerrors.ForbiddenError("cannot act for another player")
	}
	return authed, nil
}

func extractBearerToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
