package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/scheduler"
)

// Reloader re-reads the court registry.
type Reloader interface {
	Courts
	Reload() error
}

// AdminHandler groups operator endpoints. Routes are guarded by
// middleware.RequireAdmin.
type AdminHandler struct {
	Registry Reloader
	Bookings Bookings
	Jobs     map[string]*scheduler.Job
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func NewAdminHandler(reg Reloader, bookings Bookings, jobs []*scheduler.Job, log logrus.FieldLogger) *AdminHandler {
	byName := make(map[string]*scheduler.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name] = j
	}
	return &AdminHandler{Registry: reg, Bookings: bookings, Jobs: byName, Log: log, Now: time.Now}
}

// Reload handles POST /admin/courts/reload.
func (h *AdminHandler) Reload(c echo.Context) error {
	if err := h.Registry.Reload(); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"ok": false, "reason": "validation", "error": err.Error()})
	}
	snap := h.Registry.Current()
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "version": snap.Version, "courts": len(snap.Courts)})
}

// Reconcile handles POST /admin/reconcile?days=N: diff the calendar
// against the projection from today for N days (default 14).
func (h *AdminHandler) Reconcile(c echo.Context) error {
	days := 14
	if s := c.QueryParam("days"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 90 {
			return badRequest(c, "days must be between 1 and 90")
		}
		days = n
	}
	snap := h.Registry.Current()
	y, m, d := h.Now().In(snap.Location).Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, snap.Location)

	rep, err := h.Bookings.Reconcile(c.Request().Context(), snap.Courts, from, from.AddDate(0, 0, days))
	if err != nil {
		return c.JSON(statusFor(err), echo.Map{"ok": false, "reason": "upstream_unavailable", "error": err.Error(), "report": rep})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "report": rep})
}

// RunPass handles POST /admin/passes/:name. The pass runs synchronously;
// 409 means a scheduled run is already in progress.
func (h *AdminHandler) RunPass(c echo.Context) error {
	j, ok := h.Jobs[c.Param("name")]
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "reason": "not_found", "error": "unknown pass"})
	}
	if !j.Trigger(c.Request().Context(), h.Log) {
		return c.JSON(http.StatusConflict, echo.Map{"ok": false, "reason": "conflict", "error": "pass already running"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "pass": j.Name})
}
