package handler

import (
	"context"
	"time"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/config"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/payment"
	"github.com/iliyamo/court-booking/internal/roster"
	"github.com/iliyamo/court-booking/internal/slots"
)

// Courts hands out the active court registry snapshot.
type Courts interface {
	Current() *config.Snapshot
}

// SlotFinder is the slot allocator.
type SlotFinder interface {
	FindExactSlot(ctx context.Context, courts []model.Court, at time.Time) (*model.Slot, error)
	FindAlternativesSameTime(ctx context.Context, courts []model.Court, at time.Time) ([]model.Slot, error)
	FindNearestAlternatives(ctx context.Context, courts []model.Court, at time.Time, limit int) ([]model.Slot, error)
	Day(ctx context.Context, courts []model.Court, day time.Time) (slots.DayView, error)
}

// Bookings is the booking orchestrator.
type Bookings interface {
	Create(ctx context.Context, req booking.CreateRequest) (*model.Reservation, error)
	Get(ctx context.Context, ref model.ReservationRef) (*model.Reservation, error)
	Join(ctx context.Context, ref model.ReservationRef, name, phone string) (*model.Reservation, error)
	RemoveSeat(ctx context.Context, ref model.ReservationRef, sel roster.Selector, why booking.RemovalReason) (*model.Reservation, model.Seat, error)
	Cancel(ctx context.Context, ref model.ReservationRef, reason string) error
	Reconcile(ctx context.Context, courts []model.Court, from, to time.Time) (booking.Report, error)
}

// Payments is the payment lifecycle manager.
type Payments interface {
	Apportion(ctx context.Context, ref model.ReservationRef) ([]model.PaymentShare, error)
	Shares(ctx context.Context, eventID string) ([]model.PaymentShare, error)
	Authorize(ctx context.Context, shareID, token, returnURI string) (payment.Authorization, error)
	HandleNotification(ctx context.Context, body []byte) error
	Release(ctx context.Context, ref model.ReservationRef, phone, reason string) error
}

// Directory answers projection queries.
type Directory interface {
	ListByPhone(ctx context.Context, phone string, from time.Time) ([]model.ProjectionRow, error)
	ListOpen(ctx context.Context, from time.Time) ([]model.ProjectionRow, error)
}

// LinkResolver resolves short action codes.
type LinkResolver interface {
	Resolve(ctx context.Context, code string) (string, error)
}

var (
	_ SlotFinder = (*slots.Allocator)(nil)
	_ Bookings   = (*booking.Orchestrator)(nil)
	_ Payments   = (*payment.Manager)(nil)
	_ Courts     = (*config.Registry)(nil)
)
