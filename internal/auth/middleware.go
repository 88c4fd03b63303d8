// file: internal/auth/middleware.go
// version: 1.1.0
// guid: a70d49a0-84ff-44d2-a9cb-d6cfda82d2a7

package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const contextUserKey = "auth_user"

// TokenFromRequest extracts the bearer token from the Authorization header.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[len("bearer "):])
	}
	return ""
}

// CurrentUser fetches the authenticated username from the Gin context.
func CurrentUser(c *gin.Context) (string, bool) {
	value, ok := c.Get(contextUserKey)
	if !ok {
		return "", false
	}
	user, ok := value.(string)
	return user, ok && user != ""
}

// RequireAuth rejects requests without a valid bearer token. No state
// changes happen on rejection; handlers behind this middleware can rely
// on CurrentUser being set.
func (g *Gate) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := TokenFromRequest(c.Request)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}
		user, err := g.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credential"})
			c.Abort()
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}
