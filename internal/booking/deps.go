package booking

import (
	"context"
	"time"

	"github.com/iliyamo/court-booking/internal/model"
)

// Projection is the durable mirror of calendar reservations.
type Projection interface {
	Create(ctx context.Context, row *model.ProjectionRow) error
	// Update writes the row, inserting it when it does not exist yet.
	Update(ctx context.Context, row *model.ProjectionRow) error
	MarkCancelled(ctx context.Context, ref model.ReservationRef, reason string) error
	// Get returns model.ErrReservationNotFound when no row exists.
	Get(ctx context.Context, eventID string) (*model.ProjectionRow, error)
	// ListActive returns non-cancelled rows of a court starting in [from, to).
	ListActive(ctx context.Context, courtID string, from, to time.Time) ([]model.ProjectionRow, error)
}

// Notifier hands templated messages to the delivery side.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// Locker serialises roster mutations of one reservation. Acquire returns
// model.ErrLocked when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// LinkMaker produces the cancel, leave and invite URLs of a reservation.
type LinkMaker interface {
	Make(ctx context.Context, res model.Reservation) (model.Links, error)
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, model.Notification) error { return nil }
