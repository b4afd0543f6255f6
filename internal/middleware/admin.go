package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/utils"
)

// AdminKeyHeader carries the admin API key.
const AdminKeyHeader = "X-Admin-Key"

// RequireAdmin rejects requests whose X-Admin-Key does not match the
// bcrypt hash. An empty hash disables the admin API entirely.
func RequireAdmin(hash string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if hash == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"ok": false, "reason": "forbidden", "error": "admin api disabled"})
			}
			if !utils.VerifyKey(hash, c.Request().Header.Get(AdminKeyHeader)) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "reason": "unauthorized", "error": "invalid admin key"})
			}
			return next(c)
		}
	}
}
