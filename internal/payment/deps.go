package payment

import (
	"context"
	"time"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// Change carries the optional fields written together with a state
// transition. Empty values leave the stored value untouched.
type Change struct {
	AuthHandle string
	Note       string
}

// ShareStore persists payment shares. Transitions are conditional on the
// current state so that concurrent passes and callbacks cannot overwrite
// each other.
type ShareStore interface {
	// Create returns model.ErrDuplicateShare when the payer already has a
	// non-terminal share for the reservation.
	Create(ctx context.Context, s *model.PaymentShare) error
	Get(ctx context.Context, id string) (*model.PaymentShare, error)
	ListByReservation(ctx context.Context, eventID string) ([]model.PaymentShare, error)
	ListByState(ctx context.Context, state model.ShareState) ([]model.PaymentShare, error)
	// Transition moves the share from one state to another and returns
	// model.ErrShareState when it is no longer in from.
	Transition(ctx context.Context, id string, from, to model.ShareState, c Change) error
	// Reprice changes the amount of a share that is still pending.
	Reprice(ctx context.Context, id string, amount int64) error
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// AuthRequest asks the provider for a payable, non-captured session.
type AuthRequest struct {
	Amount    int64
	Currency  string
	Token     string
	ReturnURI string
	Metadata  map[string]string
}

// Authorization is the provider's answer to an AuthRequest. When
// Authorized is false the payer must complete RedirectURI and the outcome
// arrives later as a notification.
type Authorization struct {
	Handle      string `json:"handle"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Authorized  bool   `json:"authorized"`
}

// Notice is a verified provider callback about one authorization.
type Notice struct {
	Handle     string
	ShareID    string
	Authorized bool
	Failed     bool
	Reason     string
}

// Provider is the payment-provider collaborator.
type Provider interface {
	Authorize(ctx context.Context, req AuthRequest) (Authorization, error)
	Capture(ctx context.Context, handle string) error
	Cancel(ctx context.Context, handle string) error
	// Verify authenticates and parses an inbound notification. It returns
	// nil, nil for notifications that are not about authorizations.
	Verify(ctx context.Context, body []byte) (*Notice, error)
}

// Reservations is the slice of the booking orchestrator the manager
// relies on. Enforcement only touches rosters through it.
type Reservations interface {
	Get(ctx context.Context, ref model.ReservationRef) (*model.Reservation, error)
	RemoveSeat(ctx context.Context, ref model.ReservationRef, sel roster.Selector, why booking.RemovalReason) (*model.Reservation, model.Seat, error)
	ForceCancel(ctx context.Context, ref model.ReservationRef, reason string) error
}
