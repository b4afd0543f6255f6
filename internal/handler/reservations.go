package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// ReservationHandler exposes the booking operations. After every roster
// mutation it re-apportions payment shares and purges cached day views;
// both are best effort and never fail the request.
type ReservationHandler struct {
	Courts   Courts
	Slots    SlotFinder
	Bookings Bookings
	Payments Payments // nil when payments are disabled
	Dir      Directory
	Purge    func(ctx context.Context, day string) error
	Log      logrus.FieldLogger
	Now      func() time.Time
}

func NewReservationHandler(courts Courts, finder SlotFinder, bookings Bookings, payments Payments, dir Directory, log logrus.FieldLogger) *ReservationHandler {
	return &ReservationHandler{
		Courts:   courts,
		Slots:    finder,
		Bookings: bookings,
		Payments: payments,
		Dir:      dir,
		Log:      log,
		Now:      time.Now,
	}
}

type createBody struct {
	CourtID   string `json:"court_id"`
	Start     string `json:"start"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	OpenSeats *int   `json:"open_seats"`
	Level     string `json:"level"`
}

// Create handles POST /v1/reservations. Without court_id the first free
// court at that time is booked. When nothing is free the response is 409
// and carries the nearest alternatives.
func (h *ReservationHandler) Create(c echo.Context) error {
	var body createBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Phone) == "" {
		return badRequest(c, "name and phone are required")
	}
	open := model.SeatCount - 1
	if body.OpenSeats != nil {
		open = *body.OpenSeats
	}

	snap := h.Courts.Current()
	at, err := parseWhen(body.Start, snap.Location)
	if err != nil {
		return fail(c, err)
	}
	courts := snap.Courts
	if body.CourtID != "" {
		ct, err := snap.Court(body.CourtID)
		if err != nil {
			return fail(c, err)
		}
		courts = []model.Court{ct}
	}

	ctx := c.Request().Context()
	slot, err := h.Slots.FindExactSlot(ctx, courts, at)
	if slot == nil {
		if err != nil {
			return fail(c, err)
		}
		nearest, _ := h.Slots.FindNearestAlternatives(ctx, snap.Courts, at, 3)
		return c.JSON(http.StatusConflict, echo.Map{
			"ok":      false,
			"reason":  model.Category(model.ErrSlotTaken),
			"error":   "no free court at that time",
			"nearest": viewSlots(nearest),
		})
	}
	if err != nil {
		h.Log.WithError(err).Warn("booking on a partially checked calendar set")
	}

	res, err := h.Bookings.Create(ctx, booking.CreateRequest{
		Slot:      *slot,
		Organizer: model.Seat{Name: body.Name, Phone: body.Phone},
		OpenSeats: open,
		Level:     body.Level,
	})
	if err != nil {
		return fail(c, err)
	}
	shares := h.after(ctx, *res)
	return c.JSON(http.StatusCreated, echo.Map{"ok": true, "reservation": res, "shares": shares})
}

// Get handles GET /v1/reservations/:court/:event.
func (h *ReservationHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()
	res, err := h.Bookings.Get(ctx, refFrom(c))
	if err != nil {
		return fail(c, err)
	}
	resp := echo.Map{"ok": true, "reservation": res}
	if h.Payments != nil {
		shares, err := h.Payments.Shares(ctx, res.Ref.EventID)
		if err != nil {
			h.Log.WithError(err).WithField("event_id", res.Ref.EventID).Warn("share lookup failed")
		}
		resp["shares"] = shares
	}
	return c.JSON(http.StatusOK, resp)
}

type joinBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Join handles POST /v1/reservations/:court/:event/join.
func (h *ReservationHandler) Join(c echo.Context) error {
	var body joinBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.join(c, refFrom(c), body)
}

func (h *ReservationHandler) join(c echo.Context, ref model.ReservationRef, body joinBody) error {
	ctx := c.Request().Context()
	res, err := h.Bookings.Join(ctx, ref, body.Name, body.Phone)
	if err != nil {
		return fail(c, err)
	}
	shares := h.after(ctx, *res)
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "reservation": res, "shares": shares})
}

type leaveBody struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Position int    `json:"position"`
}

func (b leaveBody) selector() roster.Selector {
	return roster.Selector{Phone: strings.TrimSpace(b.Phone), Name: strings.TrimSpace(b.Name), Position: b.Position}
}

// Leave handles POST /v1/reservations/:court/:event/leave. The player is
// matched by phone, name or seat position; the organizer cannot leave,
// only cancel.
func (h *ReservationHandler) Leave(c echo.Context) error {
	var body leaveBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	return h.leave(c, refFrom(c), body)
}

func (h *ReservationHandler) leave(c echo.Context, ref model.ReservationRef, body leaveBody) error {
	sel := body.selector()
	if sel == (roster.Selector{}) {
		return badRequest(c, "phone, name or position is required")
	}
	ctx := c.Request().Context()
	res, removed, err := h.Bookings.RemoveSeat(ctx, ref, sel, booking.ReasonLeft)
	if err != nil {
		return fail(c, err)
	}
	if h.Payments != nil && removed.Phone != "" {
		if err := h.Payments.Release(ctx, ref, removed.Phone, "player left"); err != nil {
			h.Log.WithError(err).WithField("event_id", ref.EventID).Error("share release failed")
		}
	}
	shares := h.after(ctx, *res)
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "reservation": res, "removed": removed, "shares": shares})
}

type cancelBody struct {
	Reason string `json:"reason"`
}

// Cancel handles DELETE /v1/reservations/:court/:event. Authorized shares
// are released by the next capture pass.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	var body cancelBody
	_ = c.Bind(&body) // body is optional
	return h.cancel(c, refFrom(c), body.Reason)
}

func (h *ReservationHandler) cancel(c echo.Context, ref model.ReservationRef, reason string) error {
	ctx := c.Request().Context()
	res, getErr := h.Bookings.Get(ctx, ref)
	if err := h.Bookings.Cancel(ctx, ref, reason); err != nil {
		return fail(c, err)
	}
	if getErr == nil {
		h.purge(ctx, res.Start)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "cancelled": ref})
}

// PlayerReservations handles GET /v1/players/:phone/reservations.
func (h *ReservationHandler) PlayerReservations(c echo.Context) error {
	phone := strings.TrimSpace(c.Param("phone"))
	if phone == "" {
		return badRequest(c, "phone is required")
	}
	now := h.Now()
	y, m, d := now.In(h.Courts.Current().Location).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, h.Courts.Current().Location)

	rows, err := h.Dir.ListByPhone(c.Request().Context(), phone, today)
	if err != nil {
		return fail(c, model.Upstream("projection", err))
	}
	out := make([]model.Reservation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Reservation)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "reservations": out})
}

// after runs the side effects of a roster mutation and returns the
// current shares, if any.
func (h *ReservationHandler) after(ctx context.Context, res model.Reservation) []model.PaymentShare {
	h.purge(ctx, res.Start)
	if h.Payments == nil {
		return nil
	}
	shares, err := h.Payments.Apportion(ctx, res.Ref)
	if err != nil && !errors.Is(err, model.ErrCancelled) {
		h.Log.WithError(err).WithField("event_id", res.Ref.EventID).Error("apportion failed")
	}
	return shares
}

func (h *ReservationHandler) purge(ctx context.Context, start time.Time) {
	if h.Purge == nil {
		return
	}
	day := start.In(h.Courts.Current().Location).Format("2006-01-02")
	if err := h.Purge(ctx, day); err != nil {
		h.Log.WithError(err).WithField("day", day).Warn("day view purge failed")
	}
}
