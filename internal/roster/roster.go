package roster

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/court-booking/internal/model"
)

// Field keys of the roster text. The accented spellings are part of the
// stored format and must not be normalised.
const (
	KeyID             = "ID"
	KeyCourt          = "Pista"
	KeyLevel          = "Nivel"
	KeyOrganizer      = "Jugador Principal"
	KeyOrganizerPhone = "Teléfono"
	KeyOccupied       = "Nº Actuales"
	KeyMissing        = "Nº Faltantes"
	KeyLastUpdate     = "Última actualización"
)

// SeatNameKey is the key of the occupant name of seat pos (2..4).
func SeatNameKey(pos int) string { return fmt.Sprintf("Jugador %d", pos) }

// SeatPhoneKey is the key of the occupant phone of seat pos (2..4).
func SeatPhoneKey(pos int) string { return fmt.Sprintf("Telefono %d", pos) }

var canonicalOrder = []string{
	KeyID, KeyCourt, KeyLevel,
	KeyOrganizer, KeyOrganizerPhone,
	KeyOccupied, KeyMissing,
	"Jugador 2", "Telefono 2",
	"Jugador 3", "Telefono 3",
	"Jugador 4", "Telefono 4",
	KeyLastUpdate,
}

// ErrNotRoster is returned when a description carries no organizer, e.g.
// an event created by hand in the calendar to block a court.
var ErrNotRoster = errors.New("description holds no roster")

// Roster is the structured form of a reservation description. Seats has
// exactly four positions: index 0 is the organizer, 1..3 are seats 2..4.
type Roster struct {
	ShortID    string
	Court      string
	Level      string
	Occupied   int
	Missing    int
	Seats      [model.SeatCount]model.Seat
	LastUpdate string

	lines []string
}

// New builds a roster for a freshly created reservation. companions is
// how many players the organizer brings; they count as occupied but their
// seats stay unnamed so that joining players take them in order. A fully
// pre-filled roster names every companion with a guest placeholder.
func New(shortID, court, level string, organizer model.Seat, companions int) (*Roster, error) {
	if strings.TrimSpace(organizer.Name) == "" || strings.TrimSpace(organizer.Phone) == "" {
		return nil, model.Invalid("organizer name and phone are required")
	}
	if companions < 0 || companions > model.SeatCount-1 {
		return nil, model.Invalid("companions must be between 0 and %d", model.SeatCount-1)
	}
	r := &Roster{
		ShortID:  shortID,
		Court:    clean(court),
		Level:    clean(level),
		Occupied: 1 + companions,
		Missing:  model.SeatCount - 1 - companions,
	}
	r.Seats[0] = model.Seat{Position: 1, Name: clean(organizer.Name), Phone: clean(organizer.Phone)}
	for i := 1; i < model.SeatCount; i++ {
		r.Seats[i].Position = i + 1
		if companions == model.SeatCount-1 {
			r.Seats[i].Name = GuestName(r.Seats[0].Name, i)
		}
	}
	return r, nil
}

// Parse decodes a description into a roster, remembering the original
// lines so that Text can preserve anything it does not own.
func Parse(text string) (*Roster, error) {
	f := Decode(text)
	r := &Roster{
		ShortID:    f[KeyID],
		Court:      f[KeyCourt],
		Level:      f[KeyLevel],
		LastUpdate: f[KeyLastUpdate],
		lines:      splitLines(text),
	}
	r.Seats[0] = model.Seat{Position: 1, Name: f[KeyOrganizer], Phone: f[KeyOrganizerPhone]}
	if r.Seats[0].Name == "" {
		return nil, ErrNotRoster
	}
	for pos := 2; pos <= model.SeatCount; pos++ {
		r.Seats[pos-1] = model.Seat{Position: pos, Name: f[SeatNameKey(pos)], Phone: f[SeatPhoneKey(pos)]}
	}
	named := r.namedSeats()
	var err error
	if r.Occupied, err = parseCount(f, KeyOccupied, named); err != nil {
		return nil, err
	}
	if r.Missing, err = parseCount(f, KeyMissing, model.SeatCount-r.Occupied); err != nil {
		return nil, err
	}
	return r, nil
}

func parseCount(f FieldMap, key string, fallback int) (int, error) {
	v, ok := f[key]
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, model.Invalid("roster field %q is not a number: %q", key, v)
	}
	return n, nil
}

// Fields returns the patch that reproduces the roster state.
func (r *Roster) Fields() FieldMap {
	f := FieldMap{
		KeyID:             r.ShortID,
		KeyCourt:          r.Court,
		KeyLevel:          r.Level,
		KeyOrganizer:      r.Seats[0].Name,
		KeyOrganizerPhone: r.Seats[0].Phone,
		KeyOccupied:       strconv.Itoa(r.Occupied),
		KeyMissing:        strconv.Itoa(r.Missing),
	}
	for pos := 2; pos <= model.SeatCount; pos++ {
		f[SeatNameKey(pos)] = r.Seats[pos-1].Name
		f[SeatPhoneKey(pos)] = r.Seats[pos-1].Phone
	}
	if r.LastUpdate != "" {
		f[KeyLastUpdate] = r.LastUpdate
	}
	return f
}

// Text renders the roster, keeping unknown lines of the parsed original.
func (r *Roster) Text() string {
	return Encode(r.lines, r.Fields())
}

// State derives Open or Full from the missing count.
func (r *Roster) State() model.ReservationState {
	return model.StateFor(r.Missing)
}

// AssignSeat puts a new occupant in the first empty seat among 2..4 and
// returns its position.
func (r *Roster) AssignSeat(name, phone string) (int, error) {
	name = clean(name)
	if name == "" {
		return 0, model.Invalid("player name is required")
	}
	if r.Missing <= 0 {
		return 0, model.ErrRosterFull
	}
	for i := 1; i < model.SeatCount; i++ {
		if r.Seats[i].Empty() {
			r.Seats[i].Name = name
			r.Seats[i].Phone = clean(phone)
			r.Occupied++
			r.Missing--
			return i + 1, nil
		}
	}
	return 0, model.ErrRosterFull
}

// Selector picks a non-organizer seat by position, name or phone. The
// first non-zero field is used.
type Selector struct {
	Position int    `json:"position,omitempty"`
	Name     string `json:"name,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Find returns the position (2..4) matching sel.
func (r *Roster) Find(sel Selector) (int, bool) {
	switch {
	case sel.Position != 0:
		if sel.Position < 2 || sel.Position > model.SeatCount || r.Seats[sel.Position-1].Empty() {
			return 0, false
		}
		return sel.Position, true
	case strings.TrimSpace(sel.Name) != "":
		want := strings.TrimSpace(sel.Name)
		for i := 1; i < model.SeatCount; i++ {
			if !r.Seats[i].Empty() && strings.EqualFold(r.Seats[i].Name, want) {
				return i + 1, true
			}
		}
	case strings.TrimSpace(sel.Phone) != "":
		want := strings.TrimSpace(sel.Phone)
		for i := 1; i < model.SeatCount; i++ {
			if r.Seats[i].Phone == want {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// HasPhone reports whether any seat already carries phone.
func (r *Roster) HasPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return false
	}
	for _, s := range r.Seats {
		if s.Phone == phone {
			return true
		}
	}
	return false
}

// ClearSeat empties seat pos and returns who was in it. The line for the
// seat stays in the text with an empty value.
func (r *Roster) ClearSeat(pos int) (model.Seat, error) {
	if pos < 2 || pos > model.SeatCount {
		return model.Seat{}, model.Invalid("seat %d cannot be cleared", pos)
	}
	prev := r.Seats[pos-1]
	if prev.Empty() {
		return model.Seat{}, model.ErrPlayerNotFound
	}
	r.Seats[pos-1] = model.Seat{Position: pos}
	r.Occupied--
	r.Missing++
	return prev, nil
}

// Touch records the latest mutation note.
func (r *Roster) Touch(at time.Time, note string) {
	r.LastUpdate = at.Format("2006-01-02 15:04") + " " + note
}

// Reservation projects the roster onto a reservation value.
func (r *Roster) Reservation(ref model.ReservationRef, start, end time.Time) model.Reservation {
	return model.Reservation{
		Ref:        ref,
		ShortID:    r.ShortID,
		CourtName:  r.Court,
		Level:      r.Level,
		Start:      start,
		End:        end,
		State:      r.State(),
		Occupied:   r.Occupied,
		Missing:    r.Missing,
		Seats:      r.Seats,
		LastUpdate: r.LastUpdate,
	}
}

func (r *Roster) namedSeats() int {
	n := 0
	for _, s := range r.Seats {
		if !s.Empty() {
			n++
		}
	}
	return n
}

// clean keeps values on a single line so they cannot forge extra fields.
func clean(s string) string {
	return strings.TrimSpace(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
}

var guestPattern = regexp.MustCompile(`^Guest of (.+) \((\d+)\)$`)

// GuestName is the placeholder for a seat filled by the organizer without
// a phone-based identity.
func GuestName(organizer string, n int) string {
	return fmt.Sprintf("Guest of %s (%d)", organizer, n)
}

// IsGuestOf reports whether name is a placeholder created for organizer.
func IsGuestOf(name, organizer string) bool {
	m := guestPattern.FindStringSubmatch(strings.TrimSpace(name))
	return m != nil && strings.EqualFold(m[1], strings.TrimSpace(organizer))
}
