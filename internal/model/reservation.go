package model

import "time"

// SeatCount is the fixed roster size of every reservation.
const SeatCount = 4

// ReservationState is the lifecycle state of a reservation.
type ReservationState string

const (
	StateOpen      ReservationState = "OPEN"
	StateFull      ReservationState = "FULL"
	StateCancelled ReservationState = "CANCELLED"
)

// StateFor derives Open/Full from the missing count.
func StateFor(missing int) ReservationState {
	if missing <= 0 {
		return StateFull
	}
	return StateOpen
}

// ReservationRef identifies a reservation in the calendar store.
type ReservationRef struct {
	CourtID string `json:"court_id"`
	EventID string `json:"event_id"`
}

// Seat is one roster position. Position 1 is always the organizer.
type Seat struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
}

// Empty reports whether nobody occupies the seat.
func (s Seat) Empty() bool { return s.Name == "" }

// Links are the outbound action URLs of a reservation.
type Links struct {
	Cancel string `json:"cancel"`
	Leave  string `json:"leave"`
	Invite string `json:"invite"`
}

// Reservation is a calendar-event-backed booking of one court at one time.
//
// Fields:
//
//	Ref        – event id plus court id.
//	ShortID    – human friendly identifier written as the roster "ID".
//	CourtName  – display name of the court.
//	Level      – declared skill level of the match.
//	Start/End  – booked window.
//	State      – Open, Full or Cancelled.
//	Occupied   – seats taken; Occupied + Missing == SeatCount.
//	Missing    – seats still free.
//	Seats      – exactly four seats, index 0 is the organizer.
//	LastUpdate – free-form note about the latest mutation.
//	Links      – cancel/leave/invite URLs.
type Reservation struct {
	Ref        ReservationRef   `json:"ref"`
	ShortID    string           `json:"short_id"`
	CourtName  string           `json:"court_name"`
	Level      string           `json:"level,omitempty"`
	Start      time.Time        `json:"start"`
	End        time.Time        `json:"end"`
	State      ReservationState `json:"state"`
	Occupied   int              `json:"occupied"`
	Missing    int              `json:"missing"`
	Seats      [SeatCount]Seat  `json:"seats"`
	LastUpdate string           `json:"last_update,omitempty"`
	Links      Links            `json:"links"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Organizer returns seat 1.
func (r Reservation) Organizer() Seat { return r.Seats[0] }

// IsFull reports whether no seat is missing.
func (r Reservation) IsFull() bool {
	return r.State == StateFull || r.Missing <= 0
}

// ProjectionRow mirrors a reservation in the durable store, together with
// bookkeeping fields the calendar cannot answer efficiently.
type ProjectionRow struct {
	Reservation
	FirstContactPhone string
	LastContactPhone  string
	AuditNote         string
	CancelReason      string
}
