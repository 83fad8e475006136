package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"prepstock-system/internal/identity"
	"prepstock-system/internal/utils"
)

const IdentityKey = "identity"
const TokenKey = "token"

// JWTAuth resolves the session from the Authorization header and stores the
// Identity in the request context. Every protected route sits behind it.
func JWTAuth(secret []byte, denylisted func(c *gin.Context, token string) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Authorization header is missing"})
			c.Abort()
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := utils.ParseToken(tokenStr, secret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			c.Abort()
			return
		}

		if denylisted != nil && denylisted(c, tokenStr) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Session has been signed out"})
			c.Abort()
			return
		}

		c.Set(IdentityKey, identity.Identity{UserID: claims.UserID, Email: claims.Email})
		c.Set(TokenKey, tokenStr)
		c.Next()
	}
}

// IdentityFrom extracts the Identity placed by JWTAuth; the zero value means
// no session.
func IdentityFrom(c *gin.Context) identity.Identity {
	if v, ok := c.Get(IdentityKey); ok {
		if id, ok := v.(identity.Identity); ok {
			return id
		}
	}
	return identity.Identity{}
}

func TokenFrom(c *gin.Context) string {
	if v, ok := c.Get(TokenKey); ok {
		if t, ok := v.(string); ok {
			return t
		}
	}
	return ""
}
