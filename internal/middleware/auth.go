package middleware

import (
	"net/http"
	"strings"

	"deliveroute-be/internal/actor"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Auth resolves the calling actor from a Bearer token and puts it on the
// request context. The engine never reads ambient session state; handlers
// get the actor explicitly.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return key, nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}

		sub, _ := claims["sub"].(string)
		roleStr, _ := claims["role"].(string)
		role := actor.Role(roleStr)
		if sub == "" || !role.Valid() || role == actor.RoleSystem {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid actor claims"})
			return
		}

		ctx := actor.WithActor(c.Request.Context(), actor.Actor{ID: sub, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
