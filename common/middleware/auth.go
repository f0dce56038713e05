package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "courier-service/common/errors"

	"github.com/gin-gonic/gin"
)

// Roles forwarded by the API gateway.
const (
	RoleSeller = "seller"
	RoleAdmin  = "admin"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"
)

var ErrNoIdentity = errors.New("caller identity not found in context")

// AuthMiddleware trusts the identity the gateway has already verified. It
// reads X-User-ID / X-User-Role and falls back to the gateway's cookies.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := headerOrCookie(c, "X-User-ID", "user_id")
		if userID == "" {
			deny(c, http.StatusUnauthorized, "missing caller identity")
			return
		}
		role := strings.ToLower(headerOrCookie(c, "X-User-Role", "user_role"))
		if role == "" {
			role = RoleSeller
		}

		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

func headerOrCookie(c *gin.Context, header, cookie string) string {
	if v := strings.TrimSpace(c.GetHeader(header)); v != "" {
		return v
	}
	v, _ := c.Cookie(cookie)
	return strings.TrimSpace(v)
}

// GetUserID returns the caller id set by AuthMiddleware. For sellers this is
// the seller id used for rate overrides and shipment ownership.
func GetUserID(c *gin.Context) (string, error) {
	if id := c.GetString(UserContextKey); id != "" {
		return id, nil
	}
	return "", ErrNoIdentity
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleContextKey) == RoleAdmin
}

// AdminOnly guards partner, rate card and override management.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			deny(c, http.StatusForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

func deny(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success":   false,
		"error":     apperrors.ToBody(apperrors.Validation("%s", msg)),
		"timestamp": time.Now().UTC(),
	})
}

// RequestTimeout bounds the request context so slow couriers cannot hold a
// handler past d.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
