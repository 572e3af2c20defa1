package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nourabuild/user-directory/internal/services/jwt"
)

const RoleKey = "role"

var ErrNoRole = errors.New("no role in context")

// Authenticate validates the bearer API key and stores its role.
func Authenticate(tokens *jwt.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_authorization_header"})
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_authorization_header"})
			return
		}

		claims, err := tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, jwt.ErrExpiredToken) {
				code = "expired_token"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
			return
		}

		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole must run after Authenticate.
func RequireRole(required jwt.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, err := GetRole(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		if !role.Allows(required) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.Next()
	}
}

func GetRole(c *gin.Context) (jwt.Role, error) {
	v, exists := c.Get(RoleKey)
	if !exists {
		return "", ErrNoRole
	}
	role, ok := v.(jwt.Role)
	if !ok {
		return "", ErrNoRole
	}
	return role, nil
}
