// Package slots computes bookable windows from court business hours and
// the events already on each court calendar.
package slots

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// Tolerance bounds, exclusively, how far a requested instant may be from a
// slot start and still select that slot.
const Tolerance = 60 * time.Second

// DefaultAlternatives is the number of nearest alternatives offered.
const DefaultAlternatives = 3

// Allocator answers availability questions. Courts are passed on every
// call so that a reloaded registry takes effect on the next request.
type Allocator struct {
	cal calendar.Store
	log logrus.FieldLogger
	now func() time.Time
}

// New creates an allocator backed by the calendar store.
func New(cal calendar.Store, log logrus.FieldLogger) *Allocator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Allocator{cal: cal, log: log, now: time.Now}
}

// WithClock replaces the wall clock, for tests and the CLI.
func (a *Allocator) WithClock(now func() time.Time) *Allocator {
	a.now = now
	return a
}

// Enumerate lists every slot of court on the calendar day of day, in
// interval order. Slots never run past the end of their interval.
func Enumerate(court model.Court, day time.Time) []model.Slot {
	width := court.SlotDuration()
	if width <= 0 {
		return nil
	}
	var out []model.Slot
	for _, iv := range court.IntervalsFor(day) {
		from, to := iv.Bounds(day)
		for s := from; !s.Add(width).After(to); s = s.Add(width) {
			out = append(out, model.Slot{Court: court, Start: s, End: s.Add(width)})
		}
	}
	return out
}

// match returns the slot of court whose start is less than Tolerance away
// from at.
func match(court model.Court, at time.Time) (model.Slot, bool) {
	for _, s := range Enumerate(court, at) {
		d := s.Start.Sub(at)
		if d < 0 {
			d = -d
		}
		if d < Tolerance {
			return s, true
		}
	}
	return model.Slot{}, false
}

// FindExactSlot returns the first court, in registry order, that has a
// free slot starting at the requested instant. It returns nil when no
// court has a matching free slot. A court whose calendar cannot be read is
// treated as unavailable and its failure is returned as well, next to the
// slot of a later court or instead of a plain miss.
func (a *Allocator) FindExactSlot(ctx context.Context, courts []model.Court, at time.Time) (*model.Slot, error) {
	b := a.newBusy(ctx, at)
	for _, c := range courts {
		s, ok := match(c, at)
		if !ok {
			continue
		}
		if free, err := b.free(s); err == nil && free {
			return &s, b.err()
		}
	}
	if err := b.err(); err != nil {
		return nil, fmt.Errorf("no court confirmed free at %s: %w", at.Format("2006-01-02 15:04"), err)
	}
	return nil, nil
}

// FindAlternativesSameTime returns every court free at the requested
// instant. Courts that could not be checked are left out and reported in
// the error next to the partial result.
func (a *Allocator) FindAlternativesSameTime(ctx context.Context, courts []model.Court, at time.Time) ([]model.Slot, error) {
	b := a.newBusy(ctx, at)
	var out []model.Slot
	for _, c := range courts {
		s, ok := match(c, at)
		if !ok {
			continue
		}
		if free, err := b.free(s); err == nil && free {
			out = append(out, s)
		}
	}
	return out, b.err()
}

// FindNearestAlternatives returns up to limit free slots starting more
// than Tolerance after at on the same day, earliest first. Slots sharing a
// start keep registry order.
func (a *Allocator) FindNearestAlternatives(ctx context.Context, courts []model.Court, at time.Time, limit int) ([]model.Slot, error) {
	if limit <= 0 {
		limit = DefaultAlternatives
	}
	threshold := at.Add(Tolerance)
	now := a.now()
	var candidates []model.Slot
	for _, c := range courts {
		for _, s := range Enumerate(c, at) {
			if s.Start.After(threshold) && s.Start.After(now) {
				candidates = append(candidates, s)
			}
		}
	}
	sortByStart(candidates)

	b := a.newBusy(ctx, at)
	var out []model.Slot
	for _, s := range candidates {
		if len(out) == limit {
			break
		}
		if free, err := b.free(s); err == nil && free {
			out = append(out, s)
		}
	}
	return out, b.err()
}

// FindAllFreeSlots lists the free slots of day across courts whose start
// is still ahead of now, earliest first.
func (a *Allocator) FindAllFreeSlots(ctx context.Context, courts []model.Court, day time.Time) ([]model.Slot, error) {
	now := a.now()
	b := a.newBusy(ctx, day)
	var out []model.Slot
	for _, c := range courts {
		for _, s := range Enumerate(c, day) {
			if !s.Start.After(now) {
				continue
			}
			free, err := b.free(s)
			if err != nil {
				break
			}
			if free {
				out = append(out, s)
			}
		}
	}
	sortByStart(out)
	return out, b.err()
}

// FindOpenReservationsOnDate lists reservations of day that still have a
// free seat, earliest first. Events without a roster are skipped.
func (a *Allocator) FindOpenReservationsOnDate(ctx context.Context, courts []model.Court, day time.Time) ([]model.Reservation, error) {
	from, to := dayBounds(day)
	var (
		out  []model.Reservation
		errs []error
	)
	for _, c := range courts {
		events, err := a.cal.ListEvents(ctx, c.ID, from, to)
		if err != nil {
			errs = append(errs, fmt.Errorf("court %s: %w", c.Name, err))
			continue
		}
		for _, ev := range events {
			r, err := roster.Parse(ev.Description)
			if err != nil {
				if !errors.Is(err, roster.ErrNotRoster) {
					a.log.WithFields(logrus.Fields{"court_id": c.ID, "event_id": ev.ID}).
						WithError(err).Warn("unreadable roster")
				}
				continue
			}
			res := r.Reservation(model.ReservationRef{CourtID: c.ID, EventID: ev.ID}, ev.Start, ev.End)
			if res.IsFull() {
				continue
			}
			if res.CourtName == "" {
				res.CourtName = c.Name
			}
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if len(errs) > 0 {
		return out, model.Upstream("reservation listing failed", errors.Join(errs...))
	}
	return out, nil
}

// DayView blends free slots with joinable reservations of one day.
type DayView struct {
	Date  string              `json:"date"`
	Free  []model.Slot        `json:"free"`
	Open  []model.Reservation `json:"open"`
	Error string              `json:"error,omitempty"`
}

// Day builds the day view. A partial view is returned with the error when
// some courts could not be read.
func (a *Allocator) Day(ctx context.Context, courts []model.Court, day time.Time) (DayView, error) {
	v := DayView{Date: day.Format("2006-01-02")}
	free, ferr := a.FindAllFreeSlots(ctx, courts, day)
	open, oerr := a.FindOpenReservationsOnDate(ctx, courts, day)
	v.Free, v.Open = free, open
	err := errors.Join(ferr, oerr)
	if err != nil {
		v.Error = model.Category(err)
	}
	return v, err
}

func sortByStart(s []model.Slot) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Start.Before(s[j].Start) })
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	return from, time.Date(y, m, d+1, 0, 0, 0, 0, day.Location())
}
