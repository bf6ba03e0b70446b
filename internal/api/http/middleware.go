package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const identityKey = "user_id"

type identityClaims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// Identity resolves a bearer token into a session identity and stores it in
// the request context. It never aborts: anonymous requests proceed without
// an identity and individual handlers decide whether that is acceptable.
func Identity(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.Next()
			return
		}

		token, err := jwt.ParseWithClaims(parts[1], &identityClaims{}, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil {
			c.Next()
			return
		}

		if claims, ok := token.Claims.(*identityClaims); ok && token.Valid {
			c.Set(identityKey, claims.UserID)
			if claims.Name != "" {
				c.Set("user_name", claims.Name)
			}
		}

		c.Next()
	}
}

// RequireIdentity guards endpoints that must know who is calling.
func RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(identityKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// SessionIdentity returns the authenticated user id, if any.
func SessionIdentity(c *gin.Context) (string, bool) {
	id, ok := c.Get(identityKey)
	if !ok {
		return "", false
	}
	s, ok := id.(string)
	return s, ok && s != ""
}
