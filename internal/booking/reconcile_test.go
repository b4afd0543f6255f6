package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/model"
)

func TestReconcile(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	start := now.Add(24 * time.Hour)

	kept, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(start), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)
	vanished, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(start.Add(3 * time.Hour)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	// Drift: the calendar moved on without the projection.
	f.proj.failWrite = assert.AnError
	_, err = f.o.Join(ctx, kept.Ref, "Luis", "")
	require.NoError(t, err)
	f.proj.failWrite = nil

	// Created by hand in the calendar, never projected.
	f.cal.Put(padel.ID, calendar.Event{ID: "manual", Start: start.Add(6 * time.Hour), End: start.Add(7*time.Hour + 30*time.Minute),
		Description: "ID: M1\nJugador Principal: Eva\nTeléfono: +34600000009\nNº Actuales: 1\nNº Faltantes: 3"})
	// Not a reservation.
	f.cal.Put(padel.ID, calendar.Event{ID: "block", Start: start.Add(9 * time.Hour), End: start.Add(10 * time.Hour), Description: "maintenance"})

	_, err = f.cal.DeleteEvent(ctx, padel.ID, vanished.Ref.EventID)
	require.NoError(t, err)

	courts := []model.Court{padel}
	rep, err := f.o.Reconcile(ctx, courts, now, now.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2, Created: 1, Updated: 1, Cancelled: 1}, rep)

	assert.Equal(t, 2, f.proj.row(kept.Ref.EventID).Occupied)
	assert.Equal(t, kept.Links, f.proj.row(kept.Ref.EventID).Links)
	assert.Equal(t, "Eva", f.proj.row("manual").Organizer().Name)
	assert.Equal(t, model.StateCancelled, f.proj.row(vanished.Ref.EventID).State)

	rep, err = f.o.Reconcile(ctx, courts, now, now.Add(7*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, Report{Checked: 2}, rep, "second run is a no-op")
}
