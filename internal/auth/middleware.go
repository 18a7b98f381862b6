package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const callerAddressKey = "caller_address"

// Claims is the JWT payload identifying the calling account. Authentication
// itself (login, key management) happens outside this service; the token is
// only the transport for the caller's account address.
type Claims struct {
	Address string `json:"address"`
	jwt.RegisteredClaims
}

// Middleware validates the bearer token and stores the caller address in the
// request context for handlers and services.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(header, "Bearer ")

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid || claims.Address == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(callerAddressKey, claims.Address)
		c.Next()
	}
}

// CallerAddress returns the authenticated account address for the request.
func CallerAddress(c *gin.Context) string {
	return c.GetString(callerAddressKey)
}
