package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

func seatsInvariant(t *testing.T, res *model.Reservation) {
	t.Helper()
	assert.Equal(t, model.SeatCount, res.Occupied+res.Missing)
	assert.NotEmpty(t, res.Organizer().Name)
	assert.NotEmpty(t, res.Organizer().Phone)
}

func TestCreate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 2, Level: "3"})
	require.NoError(t, err)
	seatsInvariant(t, res)
	assert.Equal(t, 2, res.Occupied)
	assert.Equal(t, model.StateOpen, res.State)

	links := []string{res.Links.Cancel, res.Links.Leave, res.Links.Invite}
	assert.Len(t, map[string]bool{links[0]: true, links[1]: true, links[2]: true}, 3, "three distinct links")

	ev, err := f.cal.GetEvent(ctx, padel.ID, res.Ref.EventID)
	require.NoError(t, err)
	require.NotNil(t, ev)
	assert.Equal(t, calendar.ColorOpen, ev.ColorTag)
	fields := roster.Decode(ev.Description)
	assert.Equal(t, "Ana", fields[roster.KeyOrganizer])
	assert.Equal(t, "2", fields[roster.KeyMissing])

	row := f.proj.row(res.Ref.EventID)
	assert.Equal(t, res.ShortID, row.ShortID)
	assert.Equal(t, res.Links, row.Links)
	assert.Equal(t, ana.Phone, row.FirstContactPhone)
	assert.Equal(t, []string{"reservation_created->" + ana.Phone}, f.sent.templates())
}

func TestCreatePrefilledIsFull(t *testing.T) {
	f := newFixture()
	res, err := f.o.Create(context.Background(), CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana})
	require.NoError(t, err)
	seatsInvariant(t, res)
	assert.Equal(t, model.StateFull, res.State)
	assert.Equal(t, "Guest of Ana (3)", res.Seats[3].Name)
}

func TestCreateRejects(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		req  CreateRequest
		want error
	}{
		{"open seats out of range", CreateRequest{Slot: slotAt(now.Add(time.Hour)), Organizer: ana, OpenSeats: 4}, model.ErrValidation},
		{"missing phone", CreateRequest{Slot: slotAt(now.Add(time.Hour)), Organizer: model.Seat{Name: "Ana"}}, model.ErrValidation},
		{"past slot", CreateRequest{Slot: slotAt(now.Add(-time.Hour)), Organizer: ana}, model.ErrValidation},
		{"unknown court", CreateRequest{Slot: model.Slot{Start: now.Add(time.Hour)}, Organizer: ana}, model.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.o.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.cal.Len(padel.ID))
		})
	}
}

func TestCreateSlotTaken(t *testing.T) {
	f := newFixture()
	start := now.Add(24 * time.Hour)
	f.cal.Put(padel.ID, calendar.Event{ID: "x", Start: start.Add(30 * time.Minute), End: start.Add(2 * time.Hour)})

	_, err := f.o.Create(context.Background(), CreateRequest{Slot: slotAt(start), Organizer: ana, OpenSeats: 3})
	assert.ErrorIs(t, err, model.ErrSlotTaken)
	assert.Equal(t, 1, f.cal.Len(padel.ID))
}

func TestCreateCompensatesWhenProjectionFails(t *testing.T) {
	f := newFixture()
	f.proj.failWrite = errors.New("mysql gone")

	res, err := f.o.Create(context.Background(), CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 3})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, model.ErrUpstream)
	assert.Zero(t, f.cal.Len(padel.ID), "calendar event rolled back")
	assert.Empty(t, f.sent.templates())
}

func TestJoinUntilFull(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 2})
	require.NoError(t, err)
	ref := res.Ref

	res, err = f.o.Join(ctx, ref, "Luis", "+34600000002")
	require.NoError(t, err)
	seatsInvariant(t, res)
	assert.Equal(t, "Luis", res.Seats[1].Name)
	assert.Equal(t, 3, res.Occupied)
	assert.Equal(t, 1, res.Missing)
	assert.Equal(t, model.StateOpen, res.State)

	res, err = f.o.Join(ctx, ref, "Marco", "")
	require.NoError(t, err)
	seatsInvariant(t, res)
	assert.Equal(t, 4, res.Occupied)
	assert.Equal(t, 0, res.Missing)
	assert.Equal(t, model.StateFull, res.State)

	ev, _ := f.cal.GetEvent(ctx, ref.CourtID, ref.EventID)
	assert.Equal(t, calendar.ColorFull, ev.ColorTag)
	row := f.proj.row(ref.EventID)
	assert.Equal(t, model.StateFull, row.State)
	assert.Equal(t, res.Links, row.Links)
	assert.Equal(t, "+34600000002", row.LastContactPhone)

	_, err = f.o.Join(ctx, ref, "Eva", "")
	assert.ErrorIs(t, err, model.ErrReservationFull)
	assert.ErrorIs(t, err, model.ErrPolicy)
}

func TestJoinErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	_, err = f.o.Join(ctx, model.ReservationRef{CourtID: padel.ID, EventID: "nope"}, "Luis", "")
	assert.ErrorIs(t, err, model.ErrReservationNotFound)

	_, err = f.o.Join(ctx, res.Ref, " ", "")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = f.o.Join(ctx, res.Ref, "Ana again", ana.Phone)
	assert.ErrorIs(t, err, model.ErrAlreadyJoined)

	f.cal.Fail = errors.New("timeout")
	_, err = f.o.Join(ctx, res.Ref, "Luis", "")
	assert.ErrorIs(t, err, model.ErrUpstream)
}

func TestJoinSurvivesProjectionFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	f.proj.failWrite = errors.New("deadlock")
	res, err = f.o.Join(ctx, res.Ref, "Luis", "")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Occupied)

	ev, _ := f.cal.GetEvent(ctx, res.Ref.CourtID, res.Ref.EventID)
	assert.Equal(t, "Luis", roster.Decode(ev.Description)["Jugador 2"])
	assert.Equal(t, 1, f.proj.row(res.Ref.EventID).Occupied, "projection lags until reconciled")
}

func TestRemoveSeatReopens(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 1})
	require.NoError(t, err)
	_, err = f.o.Join(ctx, res.Ref, "Luis", "+34600000002")
	require.NoError(t, err)

	out, removed, err := f.o.RemoveSeat(ctx, res.Ref, roster.Selector{Name: "luis"}, ReasonLeft)
	require.NoError(t, err)
	seatsInvariant(t, out)
	assert.Equal(t, "Luis", removed.Name)
	assert.Equal(t, model.StateOpen, out.State)
	assert.Equal(t, 1, out.Missing)
	assert.True(t, out.Seats[1].Empty())

	ev, _ := f.cal.GetEvent(ctx, res.Ref.CourtID, res.Ref.EventID)
	assert.Contains(t, ev.Description, "\nJugador 2:\n")
	assert.Contains(t, f.sent.templates(), "player_left->+34600000002")

	_, _, err = f.o.RemoveSeat(ctx, res.Ref, roster.Selector{Name: "Luis"}, ReasonLeft)
	assert.ErrorIs(t, err, model.ErrPlayerNotFound)
}

func TestRemoveSeatEvictionNotifies(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 1})
	require.NoError(t, err)
	_, err = f.o.Join(ctx, res.Ref, "Luis", "+34600000002")
	require.NoError(t, err)

	_, _, err = f.o.RemoveSeat(ctx, res.Ref, roster.Selector{Phone: "+34600000002"}, ReasonEvicted)
	require.NoError(t, err)
	assert.Contains(t, f.sent.templates(), "player_evicted->+34600000002")
	assert.Contains(t, f.sent.templates(), "player_evicted->"+ana.Phone)
}

func TestCancel(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	require.NoError(t, f.o.Cancel(ctx, res.Ref, "rain"))
	assert.Zero(t, f.cal.Len(padel.ID))
	row := f.proj.row(res.Ref.EventID)
	assert.Equal(t, model.StateCancelled, row.State)
	assert.Equal(t, "rain", row.CancelReason)

	got, err := f.o.Get(ctx, res.Ref)
	require.NoError(t, err)
	assert.Equal(t, model.StateCancelled, got.State)

	assert.ErrorIs(t, f.o.Cancel(ctx, res.Ref, "again"), model.ErrCancelled)
}

func TestCancelTooLate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(4*time.Hour + 59*time.Minute)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	err = f.o.Cancel(ctx, res.Ref, "")
	assert.ErrorIs(t, err, model.ErrTooLateToCancel)
	assert.ErrorIs(t, err, model.ErrPolicy)

	ev, err := f.cal.GetEvent(ctx, res.Ref.CourtID, res.Ref.EventID)
	require.NoError(t, err)
	assert.NotNil(t, ev, "event still retrievable")
	assert.Equal(t, model.StateOpen, f.proj.row(res.Ref.EventID).State)

	require.NoError(t, f.o.ForceCancel(ctx, res.Ref, "payment"))
	assert.Zero(t, f.cal.Len(padel.ID))
}

func TestCancelExactlyAtNotice(t *testing.T) {
	f := newFixture()
	res, err := f.o.Create(context.Background(), CreateRequest{Slot: slotAt(now.Add(CancelNotice)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)
	assert.NoError(t, f.o.Cancel(context.Background(), res.Ref, ""))
}

func TestCancelSurvivesProjectionFailure(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	f.proj.failWrite = errors.New("read only")
	require.NoError(t, f.o.Cancel(ctx, res.Ref, ""))
	assert.Zero(t, f.cal.Len(padel.ID))

	f.proj.failWrite = nil
	require.NoError(t, f.o.Cancel(ctx, res.Ref, "retry"), "a retry finishes the projection side")
	assert.Equal(t, model.StateCancelled, f.proj.row(res.Ref.EventID).State)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) { return nil, model.ErrLocked }

func TestLockedReservation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.o.Create(ctx, CreateRequest{Slot: slotAt(now.Add(24 * time.Hour)), Organizer: ana, OpenSeats: 3})
	require.NoError(t, err)

	f.o.locker = busyLocker{}
	_, err = f.o.Join(ctx, res.Ref, "Luis", "")
	assert.ErrorIs(t, err, model.ErrConflict)
}
