// Package payment tracks one payment share per payer and reservation and
// drives each share from authorization to capture or cancellation.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/metrics"
	"github.com/iliyamo/court-booking/internal/model"
)

// Policy holds the pricing and the deadlines of the lifecycle.
type Policy struct {
	Price    int64
	Currency string

	// Authorized shares of full reservations are captured from
	// start-CaptureLead to start+CaptureGrace.
	CaptureLead  time.Duration
	CaptureGrace time.Duration

	// Pending shares are reminded between EnforceWithin and RemindWithin
	// before start, at most once per RemindEvery, and enforced once less
	// than EnforceWithin remains.
	RemindWithin  time.Duration
	EnforceWithin time.Duration
	RemindEvery   time.Duration
}

// DefaultPolicy returns the standard deadlines with the given pricing.
func DefaultPolicy(price int64, currency string) Policy {
	return Policy{
		Price:         price,
		Currency:      currency,
		CaptureLead:   15 * time.Minute,
		CaptureGrace:  120 * time.Minute,
		RemindWithin:  7 * 24 * time.Hour,
		EnforceWithin: 3 * 24 * time.Hour,
		RemindEvery:   24 * time.Hour,
	}
}

// Manager owns payment share state.
type Manager struct {
	store  ShareStore
	prov   Provider
	res    Reservations
	notify booking.Notifier
	policy Policy
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewManager wires a manager. notify may be nil.
func NewManager(store ShareStore, prov Provider, res Reservations, notify booking.Notifier, policy Policy, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{store: store, prov: prov, res: res, notify: notify, policy: policy, log: log, now: time.Now}
}

// WithClock replaces the wall clock.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Apportion makes sure every billable party of the reservation has an
// open or captured share. Existing shares are kept; a pending organizer share is
// repriced when the roster changed who pays for what. It is safe to call
// after every roster mutation.
func (m *Manager) Apportion(ctx context.Context, ref model.ReservationRef) ([]model.PaymentShare, error) {
	if m.policy.Price <= 0 {
		return nil, nil
	}
	res, err := m.res.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if res.State == model.StateCancelled {
		return nil, model.ErrCancelled
	}
	existing, err := m.store.ListByReservation(ctx, ref.EventID)
	if err != nil {
		return nil, model.Upstream("share store", err)
	}
	// a captured share settles its payer for good; only cancelled ones
	// leave the payer to be billed again
	open := make(map[string]model.PaymentShare)
	for _, s := range existing {
		switch {
		case !s.State.Terminal():
			open[s.PayerPhone] = s
		case s.State == model.ShareCaptured:
			if _, ok := open[s.PayerPhone]; !ok {
				open[s.PayerPhone] = s
			}
		}
	}

	payers := Payers(*res)
	amounts := Amounts(m.policy.Price, payers)
	now := m.now()
	var out []model.PaymentShare
	for i, p := range payers {
		if s, ok := open[p.Seat.Phone]; ok {
			if s.State == model.SharePending && s.Amount != amounts[i] {
				if err := m.store.Reprice(ctx, s.ID, amounts[i]); err == nil {
					s.Amount = amounts[i]
				}
			}
			out = append(out, s)
			continue
		}
		s := model.PaymentShare{
			ID:           uuid.NewString(),
			Ref:          ref,
			PayerPhone:   p.Seat.Phone,
			PayerName:    p.Seat.Name,
			SeatPosition: p.Seat.Position,
			ShareIndex:   len(existing) + i + 1,
			Amount:       amounts[i],
			Currency:     m.policy.Currency,
			State:        model.SharePending,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := m.store.Create(ctx, &s); err != nil {
			if errors.Is(err, model.ErrDuplicateShare) {
				continue
			}
			return out, model.Upstream("share store", err)
		}
		metrics.ShareTransition(string(model.SharePending), "apportioned")
		out = append(out, s)
	}
	return out, nil
}

// Shares lists the shares of a reservation.
func (m *Manager) Shares(ctx context.Context, eventID string) ([]model.PaymentShare, error) {
	return m.store.ListByReservation(ctx, eventID)
}

// Authorize starts a non-capturing payment for a pending share.
func (m *Manager) Authorize(ctx context.Context, shareID, token, returnURI string) (Authorization, error) {
	if token == "" {
		return Authorization{}, model.Invalid("payment token is required")
	}
	s, err := m.store.Get(ctx, shareID)
	if err != nil {
		return Authorization{}, err
	}
	if s.State != model.SharePending {
		return Authorization{}, fmt.Errorf("%w: share is %s", model.ErrShareState, s.State)
	}
	auth, err := m.prov.Authorize(ctx, AuthRequest{
		Amount:    s.Amount,
		Currency:  s.Currency,
		Token:     token,
		ReturnURI: returnURI,
		Metadata: map[string]string{
			"share_id":    s.ID,
			"event_id":    s.Ref.EventID,
			"court_id":    s.Ref.CourtID,
			"payer":       s.PayerPhone,
			"share_index": fmt.Sprint(s.ShareIndex),
		},
	})
	if err != nil {
		return Authorization{}, model.Upstream("payment provider", err)
	}
	to := model.SharePending
	if auth.Authorized {
		to = model.ShareAuthorized
	}
	if err := m.store.Transition(ctx, s.ID, model.SharePending, to, Change{AuthHandle: auth.Handle, Note: "authorization started"}); err != nil {
		return auth, err
	}
	if auth.Authorized {
		metrics.ShareTransition(string(model.ShareAuthorized), "immediate")
	}
	return auth, nil
}

// HandleNotification applies a provider callback. Replays and callbacks
// about shares that already moved on are acknowledged without effect.
func (m *Manager) HandleNotification(ctx context.Context, body []byte) error {
	n, err := m.prov.Verify(ctx, body)
	if err != nil {
		return err
	}
	if n == nil || n.ShareID == "" {
		return nil
	}
	log := m.log.WithFields(logrus.Fields{"share_id": n.ShareID, "handle": n.Handle})
	switch {
	case n.Authorized:
		err = m.store.Transition(ctx, n.ShareID, model.SharePending, model.ShareAuthorized, Change{AuthHandle: n.Handle, Note: "authorized"})
		if err == nil {
			metrics.ShareTransition(string(model.ShareAuthorized), "notification")
			log.Info("share authorized")
		}
	case n.Failed:
		err = m.store.Transition(ctx, n.ShareID, model.SharePending, model.SharePending, Change{Note: "authorization failed: " + n.Reason})
		log.WithField("reason", n.Reason).Warn("authorization failed")
	}
	if errors.Is(err, model.ErrShareState) || errors.Is(err, model.ErrShareNotFound) {
		log.WithError(err).Info("notification ignored")
		return nil
	}
	return err
}

// Release cancels the open share of a payer who left the reservation.
func (m *Manager) Release(ctx context.Context, ref model.ReservationRef, phone, reason string) error {
	if phone == "" {
		return nil
	}
	shares, err := m.store.ListByReservation(ctx, ref.EventID)
	if err != nil {
		return model.Upstream("share store", err)
	}
	var errs []error
	for _, s := range shares {
		if s.PayerPhone == phone && !s.State.Terminal() {
			errs = append(errs, m.cancelShare(ctx, s, reason))
		}
	}
	return errors.Join(errs...)
}

// cancelShare moves a non-terminal share to Cancelled, voiding the
// provider authorization first when there is one.
func (m *Manager) cancelShare(ctx context.Context, s model.PaymentShare, reason string) error {
	if s.State == model.ShareAuthorized && s.AuthHandle != "" {
		if err := m.prov.Cancel(ctx, s.AuthHandle); err != nil {
			return model.Upstream("payment provider cancel", err)
		}
	}
	err := m.store.Transition(ctx, s.ID, s.State, model.ShareCancelled, Change{Note: reason})
	if errors.Is(err, model.ErrShareState) {
		return nil
	}
	if err == nil {
		metrics.ShareTransition(string(model.ShareCancelled), reason)
	}
	return err
}
