package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/khaledamrr/ServiceProjectUpdated/internal/apperr"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/auth"
	"github.com/khaledamrr/ServiceProjectUpdated/internal/rpc"
)

const claimsKey = "claims"

// TokenValidator checks a bearer token with the auth service.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's claims on the context.
func RequireAuth(tokens TokenValidator, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			rpc.WriteError(c, logger, apperr.Unauthorized("No token provided"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			rpc.WriteError(c, logger, err)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole must run after RequireAuth.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsOf(c)
		if claims == nil || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, rpc.Envelope{Success: false, Message: "Access denied. Insufficient permissions."})
			return
		}
		c.Next()
	}
}

func claimsOf(c *gin.Context) *auth.Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// callerOwns reports whether the caller is userID or an admin.
func callerOwns(c *gin.Context, userID string) bool {
	claims := claimsOf(c)
	if claims == nil {
		return false
	}
	return claims.Role == auth.RoleAdmin || claims.Subject == userID
}
