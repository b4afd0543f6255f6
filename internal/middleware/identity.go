package middleware

// identity.go extracts who is calling. The booking API has no user
// accounts; players are identified by the phone number they supply.

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// PhoneHeader carries the caller phone on write requests.
const PhoneHeader = "X-Player-Phone"

// callerPhone returns the phone from the header, the "phone" query
// parameter or a value set by an earlier middleware, or "anon".
func callerPhone(c echo.Context) string {
	if v := strings.TrimSpace(c.Request().Header.Get(PhoneHeader)); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.QueryParam("phone")); v != "" {
		return v
	}
	if v, ok := c.Get("phone").(string); ok && v != "" {
		return v
	}
	return "anon"
}
