package booking

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// Report summarises one reconciliation run.
type Report struct {
	Checked   int `json:"checked"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// Reconcile brings the projection in line with the calendar for events
// starting in [from, to). Rows missing from the projection are created,
// drifted rows rewritten and rows whose event vanished marked cancelled.
// Running it twice in a row changes nothing the second time.
func (o *Orchestrator) Reconcile(ctx context.Context, courts []model.Court, from, to time.Time) (Report, error) {
	var (
		rep  Report
		errs []error
	)
	for _, c := range courts {
		if err := o.reconcileCourt(ctx, c, from, to, &rep); err != nil {
			errs = append(errs, err)
		}
	}
	o.log.WithFields(logrus.Fields{
		"checked": rep.Checked, "created": rep.Created, "updated": rep.Updated,
		"cancelled": rep.Cancelled, "failed": rep.Failed,
	}).Info("reconciliation finished")
	return rep, errors.Join(errs...)
}

func (o *Orchestrator) reconcileCourt(ctx context.Context, c model.Court, from, to time.Time, rep *Report) error {
	log := o.log.WithField("court_id", c.ID)
	events, err := o.cal.ListEvents(ctx, c.ID, from, to)
	if err != nil {
		return model.Upstream("calendar read "+c.Name, err)
	}
	seen := make(map[string]bool, len(events))
	for _, ev := range events {
		r, err := roster.Parse(ev.Description)
		if err != nil {
			continue
		}
		seen[ev.ID] = true
		rep.Checked++
		ref := model.ReservationRef{CourtID: c.ID, EventID: ev.ID}
		res := r.Reservation(ref, ev.Start, ev.End)
		if res.CourtName == "" {
			res.CourtName = c.Name
		}
		l := log.WithField("event_id", ev.ID)

		row, err := o.proj.Get(ctx, ev.ID)
		switch {
		case errors.Is(err, model.ErrReservationNotFound):
			now := o.now()
			res.CreatedAt, res.UpdatedAt = now, now
			if res.Links, err = o.links.Make(ctx, res); err != nil {
				l.WithError(err).Warn("links not generated")
			}
			row = &model.ProjectionRow{
				Reservation:       res,
				FirstContactPhone: res.Organizer().Phone,
				LastContactPhone:  res.Organizer().Phone,
				AuditNote:         "restored by reconciliation",
			}
			if err := o.proj.Create(ctx, row); err != nil {
				l.WithError(err).Error("projection restore failed")
				rep.Failed++
				continue
			}
			rep.Created++
		case err != nil:
			l.WithError(err).Error("projection read failed")
			rep.Failed++
		case drifted(row.Reservation, res):
			res.CreatedAt, res.UpdatedAt = row.CreatedAt, o.now()
			res.Links = row.Links
			row.Reservation = res
			row.AuditNote = "repaired by reconciliation"
			if err := o.proj.Update(ctx, row); err != nil {
				l.WithError(err).Error("projection repair failed")
				rep.Failed++
				continue
			}
			rep.Updated++
		}
	}

	rows, err := o.proj.ListActive(ctx, c.ID, from, to)
	if err != nil {
		return model.Upstream("projection read "+c.Name, err)
	}
	for _, row := range rows {
		if seen[row.Ref.EventID] {
			continue
		}
		// Moved outside the window rather than deleted?
		ev, err := o.cal.GetEvent(ctx, c.ID, row.Ref.EventID)
		if err != nil {
			rep.Failed++
			continue
		}
		if ev != nil {
			continue
		}
		if err := o.proj.MarkCancelled(ctx, row.Ref, "event removed from calendar"); err != nil {
			log.WithField("event_id", row.Ref.EventID).WithError(err).Error("projection cancel failed")
			rep.Failed++
			continue
		}
		rep.Cancelled++
	}
	return nil
}

func drifted(stored, live model.Reservation) bool {
	return stored.State != live.State ||
		stored.Occupied != live.Occupied ||
		stored.Missing != live.Missing ||
		stored.Seats != live.Seats ||
		!stored.Start.Equal(live.Start) ||
		!stored.End.Equal(live.End) ||
		stored.Level != live.Level
}
