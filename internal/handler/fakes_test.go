package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/config"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/payment"
	"github.com/iliyamo/court-booking/internal/roster"
	"github.com/iliyamo/court-booking/internal/slots"
)

var (
	now    = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	court1 = model.Court{ID: "court-1", Name: "Pista 1", SlotMinutes: 90,
		Weekday: []model.Interval{{Start: 9 * 60, End: 22 * 60}}}
	court2 = model.Court{ID: "court-2", Name: "Pista 2", Index: 1, SlotMinutes: 90,
		Weekday: []model.Interval{{Start: 9 * 60, End: 22 * 60}}}
)

type fakeCourts struct {
	snap      *config.Snapshot
	reloadErr error
	reloads   int
}

func newCourts() *fakeCourts {
	return &fakeCourts{snap: &config.Snapshot{Version: 1, Location: time.UTC, Courts: []model.Court{court1, court2}}}
}

func (f *fakeCourts) Current() *config.Snapshot { return f.snap }
func (f *fakeCourts) Reload() error {
	f.reloads++
	return f.reloadErr
}

func slotOn(c model.Court, at time.Time) model.Slot {
	return model.Slot{Court: c, Start: at, End: at.Add(c.SlotDuration())}
}

type fakeSlots struct {
	exact   *model.Slot
	same    []model.Slot
	nearest []model.Slot
	day     slots.DayView
	err     error
}

func (f *fakeSlots) FindExactSlot(context.Context, []model.Court, time.Time) (*model.Slot, error) {
	return f.exact, f.err
}
func (f *fakeSlots) FindAlternativesSameTime(context.Context, []model.Court, time.Time) ([]model.Slot, error) {
	return f.same, nil
}
func (f *fakeSlots) FindNearestAlternatives(_ context.Context, _ []model.Court, _ time.Time, limit int) ([]model.Slot, error) {
	if len(f.nearest) > limit {
		return f.nearest[:limit], nil
	}
	return f.nearest, nil
}
func (f *fakeSlots) Day(context.Context, []model.Court, time.Time) (slots.DayView, error) {
	return f.day, f.err
}

type fakeBookings struct {
	res       *model.Reservation
	err       error
	created   []booking.CreateRequest
	removed   model.Seat
	selectors []roster.Selector
	cancelled []string
	report    booking.Report
}

func (f *fakeBookings) Create(_ context.Context, req booking.CreateRequest) (*model.Reservation, error) {
	f.created = append(f.created, req)
	return f.res, f.err
}
func (f *fakeBookings) Get(context.Context, model.ReservationRef) (*model.Reservation, error) {
	return f.res, f.err
}
func (f *fakeBookings) Join(_ context.Context, _ model.ReservationRef, name, phone string) (*model.Reservation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}
func (f *fakeBookings) RemoveSeat(_ context.Context, _ model.ReservationRef, sel roster.Selector, _ booking.RemovalReason) (*model.Reservation, model.Seat, error) {
	f.selectors = append(f.selectors, sel)
	return f.res, f.removed, f.err
}
func (f *fakeBookings) Cancel(_ context.Context, ref model.ReservationRef, reason string) error {
	if f.err != nil {
		return f.err
	}
	f.cancelled = append(f.cancelled, ref.EventID+":"+reason)
	return nil
}
func (f *fakeBookings) Reconcile(context.Context, []model.Court, time.Time, time.Time) (booking.Report, error) {
	return f.report, nil
}

type fakePayments struct {
	apportioned []string
	released    []string
	notified    [][]byte
	shares      []model.PaymentShare
	err         error
}

func (f *fakePayments) Apportion(_ context.Context, ref model.ReservationRef) ([]model.PaymentShare, error) {
	f.apportioned = append(f.apportioned, ref.EventID)
	return f.shares, nil
}
func (f *fakePayments) Shares(context.Context, string) ([]model.PaymentShare, error) {
	return f.shares, nil
}
func (f *fakePayments) Authorize(_ context.Context, shareID, token, _ string) (payment.Authorization, error) {
	if token == "" {
		return payment.Authorization{}, model.Invalid("payment token is required")
	}
	return payment.Authorization{Handle: "chrg_" + shareID, Authorized: true}, nil
}
func (f *fakePayments) HandleNotification(_ context.Context, body []byte) error {
	f.notified = append(f.notified, body)
	return f.err
}
func (f *fakePayments) Release(_ context.Context, _ model.ReservationRef, phone, _ string) error {
	f.released = append(f.released, phone)
	return nil
}

type fakeDir struct {
	rows  []model.ProjectionRow
	phone string
	from  time.Time
}

func (f *fakeDir) ListByPhone(_ context.Context, phone string, from time.Time) ([]model.ProjectionRow, error) {
	f.phone, f.from = phone, from
	return f.rows, nil
}
func (f *fakeDir) ListOpen(context.Context, time.Time) ([]model.ProjectionRow, error) {
	return f.rows, nil
}

type fakeLinks map[string]string

func (f fakeLinks) Resolve(_ context.Context, code string) (string, error) {
	if t, ok := f[code]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %s", model.ErrNotFound, code)
}

func reservation() *model.Reservation {
	start := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	return &model.Reservation{
		Ref:       model.ReservationRef{CourtID: "court-1", EventID: "ev-1"},
		ShortID:   "AB12CD34",
		CourtName: "Pista 1",
		Start:     start,
		End:       start.Add(90 * time.Minute),
		State:     model.StateOpen,
		Occupied:  2,
		Missing:   2,
		Seats:     [4]model.Seat{{Position: 1, Name: "Ana", Phone: "+34600111222"}, {Position: 2, Name: "Luis", Phone: "+34600333444"}, {Position: 3}, {Position: 4}},
	}
}
