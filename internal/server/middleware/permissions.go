package middleware

import (
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
)

// Has reports whether the user holds permission. A nil user holds nothing.
func (u *AppUser) Has(permission string) bool {
	return u != nil && slices.Contains(u.Permissions, permission)
}

// HasAny reports whether the user holds at least one of permissions.
func (u *AppUser) HasAny(permissions ...string) bool {
	return slices.ContainsFunc(permissions, u.Has)
}

func (u *AppUser) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

func RequirePermission(permission string) echo.MiddlewareFunc {
	return require("Forbidden: missing permission "+permission, func(u *AppUser) bool {
		return u.Has(permission)
	})
}

func RequireAnyPermission(permissions ...string) echo.MiddlewareFunc {
	return require("Forbidden: missing required permission", func(u *AppUser) bool {
		return u.HasAny(permissions...)
	})
}

func require(forbidden string, allowed func(*AppUser) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := c.(*AppContext).User
			if user == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			}
			if !allowed(user) {
				return c.JSON(http.StatusForbidden, map[string]string{"error": forbidden})
			}
			return next(c)
		}
	}
}
