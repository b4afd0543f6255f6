package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// PaymentHandler exposes share listing, authorization and the provider
// webhook.
type PaymentHandler struct {
	Payments Payments
	Log      logrus.FieldLogger
}

func NewPaymentHandler(p Payments, log logrus.FieldLogger) *PaymentHandler {
	return &PaymentHandler{Payments: p, Log: log}
}

// Shares handles GET /v1/reservations/:court/:event/shares.
func (h *PaymentHandler) Shares(c echo.Context) error {
	shares, err := h.Payments.Shares(c.Request().Context(), c.Param("event"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "shares": shares})
}

// Apportion handles POST /v1/reservations/:court/:event/shares.
func (h *PaymentHandler) Apportion(c echo.Context) error {
	shares, err := h.Payments.Apportion(c.Request().Context(), refFrom(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "shares": shares})
}

type authorizeBody struct {
	Token     string `json:"token"`
	ReturnURI string `json:"return_uri"`
}

// Authorize handles POST /v1/shares/:id/authorize.
func (h *PaymentHandler) Authorize(c echo.Context) error {
	var body authorizeBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	auth, err := h.Payments.Authorize(c.Request().Context(), c.Param("id"), body.Token, body.ReturnURI)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "authorization": auth})
}

// Webhook handles POST /v1/payments/webhook. Anything but a verification
// or store failure is acknowledged so the provider stops retrying.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return badRequest(c, "unreadable body")
	}
	if err := h.Payments.HandleNotification(c.Request().Context(), body); err != nil {
		h.Log.WithError(err).Error("payment notification failed")
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

