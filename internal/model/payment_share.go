package model

import "time"

// ShareState is the lifecycle state of a payment share.
type ShareState string

const (
	SharePending    ShareState = "PENDING"
	ShareAuthorized ShareState = "AUTHORIZED"
	ShareCaptured   ShareState = "CAPTURED"
	ShareCancelled  ShareState = "CANCELLED"
)

// Terminal reports whether no further transition is possible.
func (s ShareState) Terminal() bool {
	return s == ShareCaptured || s == ShareCancelled
}

// PaymentShare is one participant's portion of a reservation's cost.
// Identity is the event id plus the payer phone; at most one non-terminal
// share exists per pair.
//
// Fields:
//
//	ID             – generated share identifier.
//	Ref            – reservation the share belongs to.
//	PayerPhone     – payer identity.
//	PayerName      – display name of the payer.
//	SeatPosition   – roster seat of the payer (1 for the organizer).
//	ShareIndex     – ordinal of the share within the reservation.
//	Amount         – minor currency units.
//	Currency       – ISO currency code understood by the provider.
//	State          – Pending, Authorized, Captured or Cancelled.
//	AuthHandle     – provider authorization handle (charge id).
//	LastReminderAt – last time a payment reminder was sent.
//	Note           – why the share reached its current state.
type PaymentShare struct {
	ID             string         `json:"id"`
	Ref            ReservationRef `json:"ref"`
	PayerPhone     string         `json:"payer_phone"`
	PayerName      string         `json:"payer_name"`
	SeatPosition   int            `json:"seat_position"`
	ShareIndex     int            `json:"share_index"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	State          ShareState     `json:"state"`
	AuthHandle     string         `json:"auth_handle,omitempty"`
	LastReminderAt *time.Time     `json:"last_reminder_at,omitempty"`
	Note           string         `json:"note,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsOrganizer reports whether the share is billed to seat 1.
func (p PaymentShare) IsOrganizer() bool { return p.SeatPosition == 1 }
