package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/liteclass/liteclass/internal/auth"
)

// IdentityKey is the gin context key holding the verified identity.
const IdentityKey = "identity"

// JWTAuth creates middleware that validates the identity credential.
// The token is read from the Authorization header or, for browser
// clients, from the "token" cookie.
func JWTAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := tokenFromRequest(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization required",
			})
			return
		}

		identity, err := auth.VerifyToken(jwtSecret, tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token",
			})
			return
		}

		c.Set(IdentityKey, identity)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	if cookie, err := c.Cookie("token"); err == nil {
		return cookie
	}
	return ""
}
