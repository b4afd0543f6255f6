package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/handler"
	"github.com/iliyamo/court-booking/internal/middleware"
)

// RegisterBooking registers reservation endpoints and the action link
// routes. Writes share one rate limiter keyed by caller IP and phone.
func RegisterBooking(e *echo.Echo, h *handler.ReservationHandler, a *handler.ActionHandler, linkSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.POST("/reservations", h.Create, limit)
	g.GET("/reservations/:court/:event", h.Get)
	g.POST("/reservations/:court/:event/join", h.Join, limit)
	g.POST("/reservations/:court/:event/leave", h.Leave, limit)
	g.DELETE("/reservations/:court/:event", h.Cancel, limit)
	g.GET("/players/:phone/reservations", h.PlayerReservations)

	act := e.Group("/a", middleware.ActionToken(linkSecret))
	act.GET("/:token", a.Describe)
	act.POST("/:token", a.Perform, limit)
	e.GET("/s/:code", a.Redirect)
}
