package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TokenKey is the gin context key holding the raw bearer token.
const TokenKey = "identity_token"

// BearerToken requires an Authorization bearer header and stores the raw
// token for handlers. Verification is left to the identity resolver.
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := FromHeader(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		c.Set(TokenKey, token)
		c.Next()
	}
}

// FromHeader extracts the token from an Authorization header value.
func FromHeader(authz string) string {
	if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("bearer "):])
}
