package payment

import (
	"strings"

	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// Payer is one billable party of a reservation.
type Payer struct {
	Seat  model.Seat
	Units int
}

// Payers splits the occupied seats of res between billable parties. Every
// occupant identified by a phone pays one seat. The organizer pays their
// own seat plus guests, unnamed companions and occupants without a phone.
// Empty seats are not billed.
func Payers(res model.Reservation) []Payer {
	org := res.Organizer()
	out := []Payer{{Seat: org, Units: res.Occupied}}
	seen := map[string]bool{strings.TrimSpace(org.Phone): true}
	for _, s := range res.Seats[1:] {
		phone := strings.TrimSpace(s.Phone)
		if s.Empty() || phone == "" || roster.IsGuestOf(s.Name, org.Name) || seen[phone] {
			continue
		}
		seen[phone] = true
		out = append(out, Payer{Seat: s, Units: 1})
		out[0].Units--
	}
	if out[0].Units < 1 {
		out[0].Units = 1
	}
	return out
}

// Amounts prices each payer. A seat costs total/4; the remainder of the
// division goes to the organizer.
func Amounts(total int64, payers []Payer) []int64 {
	unit := total / model.SeatCount
	rest := total - unit*model.SeatCount
	out := make([]int64, len(payers))
	for i, p := range payers {
		out[i] = unit * int64(p.Units)
		if i == 0 {
			out[i] += rest
		}
	}
	return out
}
