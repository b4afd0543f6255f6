package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/booking"
	"github.com/iliyamo/court-booking/internal/metrics"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// PassResult counts what a pass did.
type PassResult struct {
	Seen      int `json:"seen"`
	Captured  int `json:"captured"`
	Cancelled int `json:"cancelled"`
	Reminded  int `json:"reminded"`
	Evicted   int `json:"evicted"`
	Failed    int `json:"failed"`
}

// resolver caches reservation lookups for one pass. A reservation whose
// event is gone counts as cancelled.
type resolver struct {
	m     *Manager
	cache map[model.ReservationRef]*model.Reservation
}

func (m *Manager) resolver() *resolver {
	return &resolver{m: m, cache: make(map[model.ReservationRef]*model.Reservation)}
}

func (r *resolver) get(ctx context.Context, ref model.ReservationRef) (*model.Reservation, error) {
	if res, ok := r.cache[ref]; ok {
		return res, nil
	}
	res, err := r.m.res.Get(ctx, ref)
	if errors.Is(err, model.ErrReservationNotFound) {
		res, err = &model.Reservation{Ref: ref, State: model.StateCancelled}, nil
	}
	if err != nil {
		return nil, err
	}
	r.cache[ref] = res
	return res, nil
}

func (r *resolver) cancelled(ref model.ReservationRef) {
	if res, ok := r.cache[ref]; ok {
		res.State = model.StateCancelled
	}
}

// forget drops a reservation whose roster changed during the pass.
func (r *resolver) forget(ref model.ReservationRef) { delete(r.cache, ref) }

// CapturePass captures authorized shares of full reservations inside the
// capture window and releases authorizations that can no longer be
// captured. A failing share is logged and does not stop the pass.
func (m *Manager) CapturePass(ctx context.Context) (PassResult, error) {
	var out PassResult
	shares, err := m.store.ListByState(ctx, model.ShareAuthorized)
	if err != nil {
		return out, model.Upstream("share store", err)
	}
	now := m.now()
	rv := m.resolver()
	for _, s := range shares {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Seen++
		log := m.log.WithFields(logrus.Fields{"pass": "capture", "share_id": s.ID, "event_id": s.Ref.EventID})
		res, err := rv.get(ctx, s.Ref)
		if err != nil {
			log.WithError(err).Error("reservation lookup failed")
			out.Failed++
			continue
		}

		var reason string
		switch {
		case res.State == model.StateCancelled:
			reason = "reservation cancelled"
		case now.After(res.Start.Add(m.policy.CaptureGrace)):
			reason = "capture window missed"
		case res.IsFull() && !now.Before(res.Start.Add(-m.policy.CaptureLead)):
			if err := m.capture(ctx, s); err != nil {
				log.WithError(err).Error("capture failed")
				out.Failed++
				continue
			}
			log.WithField("amount", s.Amount).Info("share captured")
			out.Captured++
			continue
		case !res.IsFull() && now.After(res.Start):
			reason = "reservation not full at start"
		default:
			continue
		}
		if err := m.cancelShare(ctx, s, reason); err != nil {
			log.WithError(err).Error("authorization release failed")
			out.Failed++
			continue
		}
		log.WithField("reason", reason).Info("authorization released")
		out.Cancelled++
	}
	return out, nil
}

func (m *Manager) capture(ctx context.Context, s model.PaymentShare) error {
	if s.AuthHandle == "" {
		return fmt.Errorf("share %s has no authorization handle", s.ID)
	}
	if err := m.prov.Capture(ctx, s.AuthHandle); err != nil {
		return model.Upstream("payment provider capture", err)
	}
	err := m.store.Transition(ctx, s.ID, model.ShareAuthorized, model.ShareCaptured, Change{Note: "captured"})
	if err == nil {
		metrics.ShareTransition(string(model.ShareCaptured), "capture pass")
	}
	return err
}

// ReminderPass reminds and enforces pending shares of full reservations.
// Less than EnforceWithin before start, an unpaid organizer loses the
// whole reservation and an unpaid player loses their seat. Enforcement
// happens once per share: the share becomes terminal.
func (m *Manager) ReminderPass(ctx context.Context) (PassResult, error) {
	var out PassResult
	shares, err := m.store.ListByState(ctx, model.SharePending)
	if err != nil {
		return out, model.Upstream("share store", err)
	}
	now := m.now()
	rv := m.resolver()
	for _, s := range shares {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		out.Seen++
		log := m.log.WithFields(logrus.Fields{"pass": "reminder", "share_id": s.ID, "event_id": s.Ref.EventID})
		res, err := rv.get(ctx, s.Ref)
		if err != nil {
			log.WithError(err).Error("reservation lookup failed")
			out.Failed++
			continue
		}
		if res.State == model.StateCancelled {
			if err := m.cancelShare(ctx, s, "reservation cancelled"); err != nil {
				log.WithError(err).Error("share cancel failed")
				out.Failed++
				continue
			}
			out.Cancelled++
			continue
		}
		if !res.IsFull() {
			continue
		}
		left := res.Start.Sub(now)
		switch {
		case left < 0 || left > m.policy.RemindWithin:
			continue
		case left >= m.policy.EnforceWithin:
			if s.LastReminderAt != nil && now.Sub(*s.LastReminderAt) < m.policy.RemindEvery {
				continue
			}
			if err := m.remind(ctx, s, *res); err != nil {
				log.WithError(err).Warn("reminder failed")
				out.Failed++
				continue
			}
			out.Reminded++
		default:
			if err := m.enforce(ctx, s, rv); err != nil {
				log.WithError(err).Error("enforcement failed")
				out.Failed++
				continue
			}
			log.WithField("organizer", s.IsOrganizer()).Warn("unpaid share enforced")
			out.Evicted++
		}
	}
	return out, nil
}

func (m *Manager) remind(ctx context.Context, s model.PaymentShare, res model.Reservation) error {
	if m.notify != nil {
		err := m.notify.Notify(ctx, model.Notification{
			Template: model.TemplatePaymentReminder,
			To:       s.PayerPhone,
			Params: map[string]string{
				"id":       res.ShortID,
				"court":    res.CourtName,
				"start":    res.Start.Format("2006-01-02 15:04"),
				"amount":   fmt.Sprint(s.Amount),
				"currency": s.Currency,
				"share_id": s.ID,
			},
		})
		if err != nil {
			return err
		}
	}
	return m.store.MarkReminded(ctx, s.ID, m.now())
}

func (m *Manager) enforce(ctx context.Context, s model.PaymentShare, rv *resolver) error {
	if s.IsOrganizer() {
		reason := "organizer payment not authorized"
		if err := m.res.ForceCancel(ctx, s.Ref, reason); err != nil && !errors.Is(err, model.ErrCancelled) {
			return err
		}
		rv.cancelled(s.Ref)
		others, err := m.store.ListByReservation(ctx, s.Ref.EventID)
		if err != nil {
			return model.Upstream("share store", err)
		}
		var errs []error
		for _, o := range others {
			if o.ID == s.ID || o.State.Terminal() {
				continue
			}
			errs = append(errs, m.cancelShare(ctx, o, "reservation cancelled"))
		}
		errs = append(errs, m.cancelShare(ctx, s, reason))
		return errors.Join(errs...)
	}

	_, _, err := m.res.RemoveSeat(ctx, s.Ref, roster.Selector{Phone: s.PayerPhone}, booking.ReasonEvicted)
	if err != nil && !errors.Is(err, model.ErrPlayerNotFound) {
		return err
	}
	rv.forget(s.Ref)
	return m.cancelShare(ctx, s, "evicted: payment not authorized")
}
