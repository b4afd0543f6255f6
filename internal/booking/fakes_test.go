package booking

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/model"
)

type memProjection struct {
	mu        sync.Mutex
	rows      map[string]model.ProjectionRow
	failWrite error
}

func newMemProjection() *memProjection {
	return &memProjection{rows: make(map[string]model.ProjectionRow)}
}

func (p *memProjection) Create(_ context.Context, row *model.ProjectionRow) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrite != nil {
		return p.failWrite
	}
	if _, ok := p.rows[row.Ref.EventID]; ok {
		return errors.New("duplicate")
	}
	p.rows[row.Ref.EventID] = *row
	return nil
}

func (p *memProjection) Update(_ context.Context, row *model.ProjectionRow) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrite != nil {
		return p.failWrite
	}
	p.rows[row.Ref.EventID] = *row
	return nil
}

func (p *memProjection) MarkCancelled(_ context.Context, ref model.ReservationRef, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failWrite != nil {
		return p.failWrite
	}
	row, ok := p.rows[ref.EventID]
	if !ok {
		return model.ErrReservationNotFound
	}
	row.State = model.StateCancelled
	row.CancelReason = reason
	p.rows[ref.EventID] = row
	return nil
}

func (p *memProjection) Get(_ context.Context, eventID string) (*model.ProjectionRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, ok := p.rows[eventID]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	return &row, nil
}

func (p *memProjection) ListActive(_ context.Context, courtID string, from, to time.Time) ([]model.ProjectionRow, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []model.ProjectionRow
	for _, row := range p.rows {
		if row.Ref.CourtID == courtID && row.State != model.StateCancelled &&
			!row.Start.Before(from) && row.Start.Before(to) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (p *memProjection) row(eventID string) model.ProjectionRow {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rows[eventID]
}

type fakeLinks struct{}

func (fakeLinks) Make(_ context.Context, res model.Reservation) (model.Links, error) {
	base := "https://book.example/a/" + res.Ref.EventID
	return model.Links{Cancel: base + "/cancel", Leave: base + "/leave", Invite: base + "/join"}, nil
}

type recorder struct {
	mu   sync.Mutex
	sent []model.Notification
}

func (r *recorder) Notify(_ context.Context, n model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) templates() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		out = append(out, n.Template+"->"+n.To)
	}
	return out
}

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type fixture struct {
	o    *Orchestrator
	cal  *calendar.Memory
	proj *memProjection
	sent *recorder
}

func newFixture() *fixture {
	logger, _ := test.NewNullLogger()
	f := &fixture{cal: calendar.NewMemory(), proj: newMemProjection(), sent: &recorder{}}
	f.o = New(Deps{
		Calendar:   f.cal,
		Projection: f.proj,
		Links:      fakeLinks{},
		Notifier:   f.sent,
		Log:        logger,
		Now:        func() time.Time { return now },
	})
	return f
}

var padel = model.Court{ID: "court-1", Name: "Pista 1", SlotMinutes: 90}

func slotAt(start time.Time) model.Slot {
	return model.Slot{Court: padel, Start: start, End: start.Add(90 * time.Minute)}
}

var ana = model.Seat{Name: "Ana", Phone: "+34600000001"}
