package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/handler"
	"github.com/iliyamo/court-booking/internal/metrics"
)

// RegisterRoutes registers health and metrics endpoints. Both are used by
// infrastructure and never rate limited.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
}

// RegisterPublic registers the read-only availability endpoints. The day
// view goes through the response cache; mutations purge it per day.
func RegisterPublic(e *echo.Echo, h *handler.SlotHandler, dayCache echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.GET("/courts", h.ListCourts)
	g.GET("/slots", h.FindSlot)
	g.GET("/days/:date", h.Day, dayCache)
	g.GET("/reservations/open", h.OpenReservations)
}
