package middleware

import (
	"net/http"
	"strings"

	"streamgate/internal/core/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// identityClaims is the claim set carried by the platform identity token.
// It is distinct from the stream token: the identity token authenticates
// the caller to the control API, the stream token scopes artifact access.
type identityClaims struct {
	UserID  string `json:"user_id"`
	StoreID string `json:"store_id"`
	jwt.RegisteredClaims
}

// IdentityMiddleware validates the Bearer identity token and stores the
// caller's user and store in the gin context. All failures collapse to a
// single generic response so probes cannot distinguish causes.
func IdentityMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		claims := &identityClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid || claims.UserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		c.Set("user_id", domain.UserID(claims.UserID))
		c.Set("store_id", domain.StoreID(claims.StoreID))
		c.Next()
	}
}

// CallerIdentity reads the authenticated caller from the gin context.
func CallerIdentity(c *gin.Context) (domain.UserID, domain.StoreID, bool) {
	userVal, ok := c.Get("user_id")
	if !ok {
		return "", "", false
	}
	userID, ok := userVal.(domain.UserID)
	if !ok {
		return "", "", false
	}
	storeID, _ := c.Get("store_id")
	sid, _ := storeID.(domain.StoreID)
	return userID, sid, true
}
