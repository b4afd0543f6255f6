package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/utils"
)

// ActionClaimsKey is the context key of the verified action claims.
const ActionClaimsKey = "action_claims"

// ActionToken verifies the :token path parameter of an action link and
// stores its claims under ActionClaimsKey.
func ActionToken(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := utils.ParseActionToken(secret, c.Param("token"))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"ok": false, "reason": "validation", "error": err.Error()})
			}
			c.Set(ActionClaimsKey, claims)
			return next(c)
		}
	}
}

// Claims returns the claims stored by ActionToken.
func Claims(c echo.Context) *utils.ActionClaims {
	cl, _ := c.Get(ActionClaimsKey).(*utils.ActionClaims)
	return cl
}
