package api

import (
	"net/http"
	"strings"

	"storefront/internal/identity"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// resolveIdentity attaches the caller's identity when a bearer token is
// sent. Requests without one pass through anonymously; bad tokens are
// rejected.
func (h *Handler) resolveIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			return
		}

		id, err := h.auth.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(statusFor(err), gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

func currentIdentity(c *gin.Context) *identity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(*identity.Identity); ok {
			return id
		}
	}
	return nil
}

func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentIdentity(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return
		}
		c.Next()
	}
}

func requireRole(allowed func(*identity.Identity) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := currentIdentity(c)
		if id == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token required"})
			return
		}
		if !allowed(id) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

// cartID keys signed-in carts by user id and anonymous carts by the
// X-Cart-ID header, in separate namespaces so a header value can never
// address a user's cart.
func cartID(c *gin.Context) string {
	if id := currentIdentity(c); id != nil {
		return "user:" + id.UserID
	}
	if session := c.GetHeader("X-Cart-ID"); session != "" {
		return "anon:" + session
	}
	return ""
}
