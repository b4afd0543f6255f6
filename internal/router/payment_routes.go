package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/handler"
)

// RegisterPayments registers share and provider webhook endpoints. It is
// skipped entirely when payments are disabled.
func RegisterPayments(e *echo.Echo, h *handler.PaymentHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/reservations/:court/:event/shares", h.Shares)
	g.POST("/reservations/:court/:event/shares", h.Apportion, limit)
	g.POST("/shares/:id/authorize", h.Authorize, limit)
	g.POST("/payments/webhook", h.Webhook)
}
