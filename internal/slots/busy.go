package slots

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/model"
)

// busy memoises one day of events per court for the duration of a call,
// so a search touches each calendar at most once.
type busy struct {
	a      *Allocator
	ctx    context.Context
	from   time.Time
	to     time.Time
	events map[string][]calendar.Event
	errs   map[string]error
	failed []error
}

func (a *Allocator) newBusy(ctx context.Context, day time.Time) *busy {
	from, to := dayBounds(day)
	return &busy{
		a:      a,
		ctx:    ctx,
		from:   from,
		to:     to,
		events: make(map[string][]calendar.Event),
		errs:   make(map[string]error),
	}
}

func (b *busy) load(courtID, name string) ([]calendar.Event, error) {
	if err, ok := b.errs[courtID]; ok {
		return nil, err
	}
	if evs, ok := b.events[courtID]; ok {
		return evs, nil
	}
	evs, err := b.a.cal.ListEvents(b.ctx, courtID, b.from, b.to)
	if err != nil {
		err = fmt.Errorf("court %s: %w", name, err)
		b.errs[courtID] = err
		b.failed = append(b.failed, err)
		b.a.log.WithField("court_id", courtID).WithError(err).Warn("calendar unavailable, court treated as busy")
		return nil, err
	}
	b.events[courtID] = evs
	return evs, nil
}

// free reports whether no event overlaps the slot. Errors mean the court
// could not be checked and must be treated as unavailable.
func (b *busy) free(s model.Slot) (bool, error) {
	evs, err := b.load(s.Court.ID, s.Court.Name)
	if err != nil {
		return false, err
	}
	for _, ev := range evs {
		if ev.Overlaps(s.Start, s.End) {
			return false, nil
		}
	}
	return true, nil
}

// err reports every court that could not be read, once each.
func (b *busy) err() error {
	if len(b.failed) == 0 {
		return nil
	}
	return model.Upstream("availability check failed", errors.Join(b.failed...))
}
