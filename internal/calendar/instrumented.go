package calendar

import (
	"context"
	"time"

	"github.com/iliyamo/court-booking/internal/metrics"
)

// Instrument wraps s so every call records its latency.
func Instrument(s Store) Store { return instrumented{s} }

type instrumented struct{ next Store }

func (i instrumented) ListEvents(ctx context.Context, courtID string, from, to time.Time) ([]Event, error) {
	defer metrics.ObserveCalendar(ctx, "list", time.Now())
	return i.next.ListEvents(ctx, courtID, from, to)
}

func (i instrumented) GetEvent(ctx context.Context, courtID, eventID string) (*Event, error) {
	defer metrics.ObserveCalendar(ctx, "get", time.Now())
	return i.next.GetEvent(ctx, courtID, eventID)
}

func (i instrumented) CreateEvent(ctx context.Context, courtID string, ev NewEvent) (*Event, error) {
	defer metrics.ObserveCalendar(ctx, "create", time.Now())
	return i.next.CreateEvent(ctx, courtID, ev)
}

func (i instrumented) UpdateEvent(ctx context.Context, courtID, eventID string, patch EventPatch) (*Event, error) {
	defer metrics.ObserveCalendar(ctx, "update", time.Now())
	return i.next.UpdateEvent(ctx, courtID, eventID, patch)
}

func (i instrumented) DeleteEvent(ctx context.Context, courtID, eventID string) (bool, error) {
	defer metrics.ObserveCalendar(ctx, "delete", time.Now())
	return i.next.DeleteEvent(ctx, courtID, eventID)
}
