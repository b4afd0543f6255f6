package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/handler"
	"github.com/iliyamo/court-booking/internal/middleware"
)

// RegisterAdmin registers operator endpoints under /admin, guarded by the
// bcrypt-hashed admin key.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, adminKeyHash string) {
	g := e.Group("/admin", middleware.RequireAdmin(adminKeyHash))
	g.POST("/courts/reload", h.Reload)
	g.POST("/reconcile", h.Reconcile)
	g.POST("/passes/:name", h.RunPass)
}
