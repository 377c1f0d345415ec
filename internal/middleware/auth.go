package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-realtime/internal/auth"
)

const (
	ContextUserID = "userID"
	ContextClaims = "claims"
)

// Authenticate attaches the caller's claims when a valid bearer token is present.
// Requests without a usable token continue anonymously.
func Authenticate(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := auth.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			token = c.Query("token")
		}
		if token == "" {
			c.Next()
			return
		}
		claims, err := verifier.Parse(token)
		if err != nil {
			c.Next()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

// RequireAuth rejects requests that Authenticate could not identify.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ClaimsFrom(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

// RequireAdmin rejects non-administrative callers.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if !claims.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin only"})
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims set by Authenticate, or nil.
func ClaimsFrom(c *gin.Context) *auth.Claims {
	if val, ok := c.Get(ContextClaims); ok {
		if claims, ok := val.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
