package payment

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

type memShares struct {
	mu     sync.Mutex
	shares map[string]model.PaymentShare
}

func newMemShares(ss ...model.PaymentShare) *memShares {
	m := &memShares{shares: make(map[string]model.PaymentShare)}
	for _, s := range ss {
		m.shares[s.ID] = s
	}
	return m
}

func (m *memShares) Create(_ context.Context, s *model.PaymentShare) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.shares {
		if o.Ref.EventID == s.Ref.EventID && o.PayerPhone == s.PayerPhone && !o.State.Terminal() {
			return model.ErrDuplicateShare
		}
	}
	m.shares[s.ID] = *s
	return nil
}

func (m *memShares) Get(_ context.Context, id string) (*model.PaymentShare, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[id]
	if !ok {
		return nil, model.ErrShareNotFound
	}
	return &s, nil
}

func (m *memShares) list(keep func(model.PaymentShare) bool) []model.PaymentShare {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PaymentShare
	for _, s := range m.shares {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memShares) ListByReservation(_ context.Context, eventID string) ([]model.PaymentShare, error) {
	return m.list(func(s model.PaymentShare) bool { return s.Ref.EventID == eventID }), nil
}

func (m *memShares) ListByState(_ context.Context, state model.ShareState) ([]model.PaymentShare, error) {
	return m.list(func(s model.PaymentShare) bool { return s.State == state }), nil
}

func (m *memShares) Transition(_ context.Context, id string, from, to model.ShareState, c Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shares[id]
	if !ok {
		return model.ErrShareNotFound
	}
	if s.State != from {
		return model.ErrShareState
	}
	s.State = to
	if c.AuthHandle != "" {
		s.AuthHandle = c.AuthHandle
	}
	if c.Note != "" {
		s.Note = c.Note
	}
	m.shares[id] = s
	return nil
}

func (m *memShares) Reprice(_ context.Context, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.shares[id]
	if s.State != model.SharePending {
		return model.ErrShareState
	}
	s.Amount = amount
	m.shares[id] = s
	return nil
}

func (m *memShares) MarkReminded(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.shares[id]
	s.LastReminderAt = &at
	m.shares[id] = s
	return nil
}

func (m *memShares) state(id string) model.ShareState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shares[id].State
}

type fakeProvider struct {
	mu        sync.Mutex
	captured  []string
	cancelled []string
	notice    *Notice
	immediate bool
}

func (p *fakeProvider) Authorize(_ context.Context, req AuthRequest) (Authorization, error) {
	return Authorization{Handle: "chrg_" + req.Metadata["share_id"], RedirectURI: "https://pay.example/3ds", Authorized: p.immediate}, nil
}

func (p *fakeProvider) Capture(_ context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captured = append(p.captured, handle)
	return nil
}

func (p *fakeProvider) Cancel(_ context.Context, handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, handle)
	return nil
}

func (p *fakeProvider) Verify(_ context.Context, body []byte) (*Notice, error) {
	var probe map[string]any
	if err := json.Unmarshal(body, &probe); err != nil {
		return nil, err
	}
	return p.notice, nil
}

type fakeReservations struct {
	mu        sync.Mutex
	res       map[model.ReservationRef]*model.Reservation
	removed   []string
	cancelled []model.ReservationRef
}

func newFakeReservations(rs ...model.Reservation) *fakeReservations {
	f := &fakeReservations{res: make(map[model.ReservationRef]*model.Reservation)}
	for i := range rs {
		r := rs[i]
		f.res[r.Ref] = &r
	}
	return f
}

func (f *fakeReservations) Get(_ context.Context, ref model.ReservationRef) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.res[ref]
	if !ok {
		return nil, model.ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservations) RemoveSeat(_ context.Context, ref model.ReservationRef, sel roster.Selector, _ booking.RemovalReason) (*model.Reservation, model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.res[ref]
	for i := 1; i < model.SeatCount; i++ {
		if r.Seats[i].Phone == sel.Phone && sel.Phone != "" {
			removed := r.Seats[i]
			r.Seats[i] = model.Seat{Position: i + 1}
			r.Occupied--
			r.Missing++
			r.State = model.StateOpen
			f.removed = append(f.removed, removed.Phone)
			cp := *r
			return &cp, removed, nil
		}
	}
	return nil, model.Seat{}, model.ErrPlayerNotFound
}

func (f *fakeReservations) ForceCancel(_ context.Context, ref model.ReservationRef, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, ref)
	f.res[ref].State = model.StateCancelled
	return nil
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

func (r *recorder) count(template string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Template == template {
			n++
		}
	}
	return n
}
