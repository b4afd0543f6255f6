package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/middleware"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/slots"
)

// SlotHandler serves the read-only availability endpoints. None of them
// require a caller identity.
type SlotHandler struct {
	Courts Courts
	Slots  SlotFinder
	Dir    Directory
	Now    func() time.Time
}

func NewSlotHandler(courts Courts, finder SlotFinder, dir Directory) *SlotHandler {
	return &SlotHandler{Courts: courts, Slots: finder, Dir: dir, Now: time.Now}
}

type courtView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	SlotMinutes int      `json:"slot_minutes"`
	Weekday     []string `json:"weekday"`
	Weekend     []string `json:"weekend"`
}

func intervals(in []model.Interval) []string {
	out := make([]string, 0, len(in))
	for _, iv := range in {
		out = append(out, iv.Start.String()+"-"+iv.End.String())
	}
	return out
}

// ListCourts handles GET /v1/courts.
func (h *SlotHandler) ListCourts(c echo.Context) error {
	snap := h.Courts.Current()
	out := make([]courtView, 0, len(snap.Courts))
	for _, ct := range snap.Courts {
		out = append(out, courtView{
			ID:          ct.ID,
			Name:        ct.Name,
			SlotMinutes: ct.SlotMinutes,
			Weekday:     intervals(ct.Weekday),
			Weekend:     intervals(ct.Weekend),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "version": snap.Version, "time_zone": snap.Location.String(), "courts": out})
}

// FindSlot handles GET /v1/slots?at=...&court=...&limit=3. It returns the
// exact slot when one is free, the other courts free at that instant and,
// when nothing is free at all, the nearest later slots of the day.
// Lookup failures of single courts come back as a partial answer.
func (h *SlotHandler) FindSlot(c echo.Context) error {
	snap := h.Courts.Current()
	at, err := parseWhen(c.QueryParam("at"), snap.Location)
	if err != nil {
		return fail(c, err)
	}
	courts := snap.Courts
	if id := c.QueryParam("court"); id != "" {
		ct, err := snap.Court(id)
		if err != nil {
			return fail(c, err)
		}
		courts = []model.Court{ct}
	}
	limit := slots.DefaultAlternatives
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 20 {
			return badRequest(c, "limit must be between 1 and 20")
		}
		limit = n
	}

	ctx := c.Request().Context()
	resp := echo.Map{"ok": true}
	var errs []error

	exact, err := h.Slots.FindExactSlot(ctx, courts, at)
	if err != nil {
		errs = append(errs, err)
	}
	if exact != nil {
		resp["slot"] = viewSlot(*exact)
		same, err := h.Slots.FindAlternativesSameTime(ctx, snap.Courts, exact.Start)
		if err != nil {
			errs = append(errs, err)
		}
		others := make([]model.Slot, 0, len(same))
		for _, s := range same {
			if !s.Equal(*exact) {
				others = append(others, s)
			}
		}
		resp["same_time"] = viewSlots(others)
	} else {
		nearest, err := h.Slots.FindNearestAlternatives(ctx, snap.Courts, at, limit)
		if err != nil {
			errs = append(errs, err)
		}
		resp["slot"] = nil
		resp["nearest"] = viewSlots(nearest)
		if len(nearest) == 0 && len(errs) > 0 {
			return fail(c, errors.Join(errs...))
		}
	}
	if len(errs) > 0 {
		warnings := make([]string, 0, len(errs))
		for _, e := range errs {
			warnings = append(warnings, e.Error())
		}
		resp["warnings"] = warnings
	}
	return c.JSON(http.StatusOK, resp)
}

type dayView struct {
	Date  string              `json:"date"`
	Free  []slotView          `json:"free"`
	Open  []model.Reservation `json:"open"`
	Error string              `json:"error,omitempty"`
}

// Day handles GET /v1/days/:date: free slots and joinable reservations.
func (h *SlotHandler) Day(c echo.Context) error {
	snap := h.Courts.Current()
	day, err := parseDay(c.Param("date"), snap.Location)
	if err != nil {
		return fail(c, err)
	}
	v, err := h.Slots.Day(c.Request().Context(), snap.Courts, day)
	if err != nil && len(v.Free) == 0 && len(v.Open) == 0 {
		return fail(c, err)
	}
	if err != nil {
		middleware.SkipCache(c)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": err == nil, "day": toDayView(v)})
}

func toDayView(v slots.DayView) dayView {
	open := v.Open
	if open == nil {
		open = []model.Reservation{}
	}
	return dayView{Date: v.Date, Free: viewSlots(v.Free), Open: open, Error: v.Error}
}

// OpenReservations handles GET /v1/reservations/open: upcoming
// reservations that still have free seats, from the projection.
func (h *SlotHandler) OpenReservations(c echo.Context) error {
	rows, err := h.Dir.ListOpen(c.Request().Context(), h.Now())
	if err != nil {
		return fail(c, model.Upstream("projection", err))
	}
	out := make([]model.Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Reservation)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "reservations": out})
}
