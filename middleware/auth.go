package middleware

import (
	"net/http"
	"strings"

	"storefront-backend/models"
	"storefront-backend/services"

	"github.com/gin-gonic/gin"
)

const (
	// Context keys set by the auth middlewares.
	CtxUserID = "user_id"
	CtxEmail  = "user_email"
	CtxRole   = "user_role"
)

// RequireAuth rejects requests without a valid bearer token and stores the
// caller's identity on the context.
func RequireAuth(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, users)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}
		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuth stores the caller's identity when a valid token is present
// and lets the request through either way. Checkout and tracking serve
// both guests and account holders through the same endpoints.
func OptionalAuth(users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c, users); ok {
			setIdentity(c, claims)
		}
		c.Next()
	}
}

// RequireRole gates a route on the authenticated caller's role. Must run
// after RequireAuth.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(CtxRole) != string(role) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func parseBearer(c *gin.Context, users *services.UserService) (*services.Claims, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	claims, err := users.ParseToken(header[7:])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setIdentity(c *gin.Context, claims *services.Claims) {
	c.Set(CtxUserID, claims.UserID)
	c.Set(CtxEmail, claims.Email)
	c.Set(CtxRole, string(claims.Role))
}
