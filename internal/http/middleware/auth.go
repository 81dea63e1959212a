// README: Firebase ID-token auth middleware and caller identity helpers.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ridecore/internal/infra"
)

const (
	ctxCallerUID  = "auth.uid"
	ctxCallerRole = "auth.role"
)

// Auth verifies the Bearer token on every request and stores the caller's
// UID and role claim in the gin context. A nil verifier disables auth.
func Auth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if verifier == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		token, err := verifier.VerifyIDToken(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ctxCallerUID, token.UID)
		c.Set(ctxCallerRole, token.Role())
		c.Next()
	}
}

// RequireRole rejects authenticated callers whose role claim differs.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if Authenticated(c) && CallerRole(c) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "requires role " + role})
			return
		}
		c.Next()
	}
}

// Authenticated reports whether Auth verified a token for this request.
func Authenticated(c *gin.Context) bool {
	_, ok := c.Get(ctxCallerUID)
	return ok
}

func CallerUID(c *gin.Context) string {
	return c.GetString(ctxCallerUID)
}

func CallerRole(c *gin.Context) string {
	return c.GetString(ctxCallerRole)
}
