package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/court-booking/internal/middleware"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/utils"
)

// ActionHandler serves the signed links sent out with every reservation.
// The token has already been verified by middleware.ActionToken.
type ActionHandler struct {
	Reservations *ReservationHandler
	Links        LinkResolver // nil when short links are disabled
}

func NewActionHandler(r *ReservationHandler, links LinkResolver) *ActionHandler {
	return &ActionHandler{Reservations: r, Links: links}
}

// Describe handles GET /a/:token: what the link does and to which
// reservation.
func (h *ActionHandler) Describe(c echo.Context) error {
	claims := middleware.Claims(c)
	res, err := h.Reservations.Bookings.Get(c.Request().Context(), claims.Ref())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "action": claims.Action, "reservation": res})
}

type actionBody struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Position int    `json:"position"`
	Reason   string `json:"reason"`
}

// Perform handles POST /a/:token.
//
//	cancel – cancels the reservation (5 hour notice applies)
//	leave  – frees the seat of the player named in the body
//	invite – joins the player named in the body
func (h *ActionHandler) Perform(c echo.Context) error {
	claims := middleware.Claims(c)
	var body actionBody
	_ = c.Bind(&body)

	switch claims.Action {
	case utils.ActionCancel:
		return h.Reservations.cancel(c, claims.Ref(), body.Reason)
	case utils.ActionLeave:
		pos := body.Position
		if claims.Seat > 0 {
			pos = claims.Seat
		}
		return h.Reservations.leave(c, claims.Ref(), leaveBody{Phone: body.Phone, Name: body.Name, Position: pos})
	case utils.ActionInvite:
		return h.Reservations.join(c, claims.Ref(), joinBody{Name: body.Name, Phone: body.Phone})
	}
	return fail(c, utils.ErrBadToken)
}

// Redirect handles GET /s/:code.
func (h *ActionHandler) Redirect(c echo.Context) error {
	if h.Links == nil {
		return fail(c, model.ErrNotFound)
	}
	target, err := h.Links.Resolve(c.Request().Context(), c.Param("code"))
	if errors.Is(err, model.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"ok": false, "reason": "not_found", "error": "link expired"})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.Redirect(http.StatusFound, target)
}
