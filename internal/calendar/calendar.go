// Package calendar is the boundary to the schedule-authoritative calendar
// store. Each court owns one calendar; reservations are its events.
package calendar

import (
	"context"
	"time"
)

// Event is a calendar entry. Description carries the roster text.
type Event struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	ColorTag    string
}

// NewEvent is the payload of CreateEvent.
type NewEvent struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	ColorTag    string
}

// EventPatch is the payload of UpdateEvent. Empty fields are left alone.
type EventPatch struct {
	Description string
	Summary     string
	ColorTag    string
}

// Color tags used to tell open and full reservations apart at a glance.
const (
	ColorOpen = "2"
	ColorFull = "11"
)

// Store is the calendar collaborator.
type Store interface {
	// ListEvents returns events overlapping [from, to) ordered by start.
	ListEvents(ctx context.Context, courtID string, from, to time.Time) ([]Event, error)
	// GetEvent returns nil, nil when the event does not exist.
	GetEvent(ctx context.Context, courtID, eventID string) (*Event, error)
	CreateEvent(ctx context.Context, courtID string, ev NewEvent) (*Event, error)
	UpdateEvent(ctx context.Context, courtID, eventID string, patch EventPatch) (*Event, error)
	// DeleteEvent reports alreadyDeleted instead of failing when the event
	// is gone.
	DeleteEvent(ctx context.Context, courtID, eventID string) (alreadyDeleted bool, err error)
}

// Overlaps reports whether the event intersects [from, to).
func (e Event) Overlaps(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}
