package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/model"
)

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrPolicy):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrUpstream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes the structured outcome of a failed operation. Messages of
// uncategorised errors are not exposed.
func fail(c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
		msg = "internal error"
	}
	return c.JSON(status, echo.Map{"ok": false, "reason": model.Category(err), "error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "reason": "validation", "error": msg})
}

// slotView is the wire form of a model.Slot.
type slotView struct {
	CourtID   string    `json:"court_id"`
	CourtName string    `json:"court_name"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func viewSlot(s model.Slot) slotView {
	return slotView{CourtID: s.Court.ID, CourtName: s.Court.Name, Start: s.Start, End: s.End}
}

func viewSlots(in []model.Slot) []slotView {
	out := make([]slotView, 0, len(in))
	for _, s := range in {
		out = append(out, viewSlot(s))
	}
	return out
}

// parseWhen accepts RFC 3339 or a local "2006-01-02T15:04" / "2006-01-02 15:04"
// in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range []string{"2006-01-02T15:04", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, model.Invalid("invalid time %q", s)
}

// parseDay parses YYYY-MM-DD as midnight in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, model.Invalid("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func refFrom(c echo.Context) model.ReservationRef {
	return model.ReservationRef{CourtID: c.Param("court"), EventID: c.Param("event")}
}
