package middlewares

import (
	"net/http"
	"strings"

	"github.com/LeighHMitchell/AIMS-sub014/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and threads the user identity
// through the request context for audit attribution.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header missing"})
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
		token, err := utils.JwtValidate(tokenString)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), tokenString)
		ctx = utils.SetUserIdInContext(ctx, claims.ID)
		ctx = utils.SetUserNameInContext(ctx, claims.Name)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
