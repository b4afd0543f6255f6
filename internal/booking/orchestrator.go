// Package booking creates, joins, leaves and cancels reservations. The
// calendar event is always written first and is authoritative; the
// projection follows and is only rolled back on Create.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/court-booking/internal/calendar"
	"github.com/iliyamo/court-booking/internal/metrics"
	"github.com/iliyamo/court-booking/internal/model"
	"github.com/iliyamo/court-booking/internal/roster"
)

// CancelNotice is the minimum time between a cancellation and the start
// of the reservation.
const CancelNotice = 5 * time.Hour

// RemovalReason tells RemoveSeat who asked for the seat to be freed.
type RemovalReason string

const (
	ReasonLeft    RemovalReason = "left"
	ReasonRemoved RemovalReason = "removed by organizer"
	ReasonEvicted RemovalReason = "payment not authorized"
)

// Deps wires the orchestrator. Notifier and Locker are optional.
type Deps struct {
	Calendar   calendar.Store
	Projection Projection
	Links      LinkMaker
	Notifier   Notifier
	Locker     Locker
	Log        logrus.FieldLogger
	Now        func() time.Time
}

// Orchestrator coordinates the calendar store and the projection.
type Orchestrator struct {
	cal    calendar.Store
	proj   Projection
	links  LinkMaker
	notify Notifier
	locker Locker
	log    logrus.FieldLogger
	now    func() time.Time
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		cal:    d.Calendar,
		proj:   d.Projection,
		links:  d.Links,
		notify: d.Notifier,
		locker: d.Locker,
		log:    d.Log,
		now:    d.Now,
	}
	if o.notify == nil {
		o.notify = nopNotifier{}
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// CreateRequest describes a new reservation. OpenSeats is how many of the
// three non-organizer seats stay free for others to join; the rest are
// filled with guest placeholders.
type CreateRequest struct {
	Slot      model.Slot
	Organizer model.Seat
	OpenSeats int
	Level     string
}

// Create books the slot. If the projection cannot be written the calendar
// event is deleted again and the call fails.
func (o *Orchestrator) Create(ctx context.Context, req CreateRequest) (res *model.Reservation, err error) {
	defer func() { metrics.BookingOp("create", outcome(err)) }()

	if req.OpenSeats < 0 || req.OpenSeats > model.SeatCount-1 {
		return nil, model.Invalid("open seats must be between 0 and %d", model.SeatCount-1)
	}
	if req.Slot.Court.ID == "" {
		return nil, model.ErrCourtNotFound
	}
	now := o.now()
	if !req.Slot.Start.After(now) {
		return nil, model.Invalid("slot %s has already started", req.Slot.Start.Format("2006-01-02 15:04"))
	}
	r, err := roster.New(shortID(), req.Slot.Court.Name, req.Level, req.Organizer, model.SeatCount-1-req.OpenSeats)
	if err != nil {
		return nil, err
	}
	r.Touch(now, "created by "+r.Seats[0].Name)

	court := req.Slot.Court
	busy, err := o.cal.ListEvents(ctx, court.ID, req.Slot.Start, req.Slot.End)
	if err != nil {
		return nil, model.Upstream("calendar read", err)
	}
	if len(busy) > 0 {
		return nil, model.ErrSlotTaken
	}

	ev, err := o.cal.CreateEvent(ctx, court.ID, calendar.NewEvent{
		Summary:     summary(r),
		Description: r.Text(),
		Start:       req.Slot.Start,
		End:         req.Slot.End,
		ColorTag:    color(r.State()),
	})
	if err != nil {
		return nil, model.Upstream("calendar write", err)
	}

	ref := model.ReservationRef{CourtID: court.ID, EventID: ev.ID}
	out := r.Reservation(ref, ev.Start, ev.End)
	out.CourtName = court.Name
	out.CreatedAt, out.UpdatedAt = now, now
	log := o.log.WithFields(logrus.Fields{"event_id": ev.ID, "court_id": court.ID})

	if out.Links, err = o.links.Make(ctx, out); err != nil {
		o.compensate(ctx, log, ref)
		return nil, model.Upstream("link generation", err)
	}
	row := &model.ProjectionRow{
		Reservation:       out,
		FirstContactPhone: out.Organizer().Phone,
		LastContactPhone:  out.Organizer().Phone,
		AuditNote:         r.LastUpdate,
	}
	if err := o.proj.Create(ctx, row); err != nil {
		log.WithError(err).Error("projection create failed, rolling back calendar event")
		o.compensate(ctx, log, ref)
		return nil, model.Upstream("projection write", err)
	}

	log.WithField("state", out.State).Info("reservation created")
	o.send(ctx, model.TemplateReservationCreated, out.Organizer().Phone, out, nil)
	return &out, nil
}

func (o *Orchestrator) compensate(ctx context.Context, log logrus.FieldLogger, ref model.ReservationRef) {
	// The caller's context may already be cancelled; the delete must run.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if _, err := o.cal.DeleteEvent(ctx, ref.CourtID, ref.EventID); err != nil {
		metrics.Compensation(false)
		log.WithError(err).Error("compensation failed, calendar event left without projection")
		return
	}
	metrics.Compensation(true)
}

// Get reads a reservation from the calendar. A reservation whose event is
// gone but whose projection row is cancelled comes back as Cancelled.
func (o *Orchestrator) Get(ctx context.Context, ref model.ReservationRef) (*model.Reservation, error) {
	ev, r, err := o.load(ctx, ref)
	if err == nil {
		res := r.Reservation(ref, ev.Start, ev.End)
		return &res, nil
	}
	if !errors.Is(err, model.ErrReservationNotFound) {
		return nil, err
	}
	row, perr := o.proj.Get(ctx, ref.EventID)
	if perr != nil || row.State != model.StateCancelled {
		return nil, err
	}
	res := row.Reservation
	return &res, nil
}

// Join puts a player in the first free seat.
func (o *Orchestrator) Join(ctx context.Context, ref model.ReservationRef, name, phone string) (res *model.Reservation, err error) {
	defer func() { metrics.BookingOp("join", outcome(err)) }()

	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" {
		return nil, model.Invalid("player name is required")
	}
	release, err := o.lock(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer release()

	ev, r, err := o.load(ctx, ref)
	if err != nil {
		return nil, err
	}
	now := o.now()
	if !ev.Start.After(now) {
		return nil, model.ErrAlreadyStarted
	}
	if r.Missing <= 0 {
		return nil, model.ErrReservationFull
	}
	if r.HasPhone(phone) {
		return nil, model.ErrAlreadyJoined
	}
	pos, err := r.AssignSeat(name, phone)
	if err != nil {
		return nil, err
	}
	r.Touch(now, "joined: "+r.Seats[pos-1].Name)

	out, err := o.write(ctx, ref, ev, r, phone)
	if err != nil {
		return nil, err
	}
	params := map[string]string{"player": r.Seats[pos-1].Name, "seat": fmt.Sprint(pos)}
	o.send(ctx, model.TemplatePlayerJoined, out.Organizer().Phone, *out, params)
	o.send(ctx, model.TemplatePlayerJoined, phone, *out, params)
	return out, nil
}

// RemoveSeat frees the seat picked by sel. The reservation is always Open
// afterwards.
func (o *Orchestrator) RemoveSeat(ctx context.Context, ref model.ReservationRef, sel roster.Selector, why RemovalReason) (res *model.Reservation, removed model.Seat, err error) {
	defer func() { metrics.BookingOp("remove_seat", outcome(err)) }()

	release, err := o.lock(ctx, ref)
	if err != nil {
		return nil, model.Seat{}, err
	}
	defer release()

	ev, r, err := o.load(ctx, ref)
	if err != nil {
		return nil, model.Seat{}, err
	}
	pos, ok := r.Find(sel)
	if !ok {
		return nil, model.Seat{}, model.ErrPlayerNotFound
	}
	if removed, err = r.ClearSeat(pos); err != nil {
		return nil, model.Seat{}, err
	}
	r.Touch(o.now(), fmt.Sprintf("%s: %s", why, removed.Name))

	out, err := o.write(ctx, ref, ev, r, "")
	if err != nil {
		return nil, model.Seat{}, err
	}
	tmpl := model.TemplatePlayerLeft
	if why == ReasonEvicted {
		tmpl = model.TemplatePlayerEvicted
	}
	params := map[string]string{"player": removed.Name, "reason": string(why)}
	o.send(ctx, tmpl, out.Organizer().Phone, *out, params)
	o.send(ctx, tmpl, removed.Phone, *out, params)
	return out, removed, nil
}

// Cancel deletes the reservation when it starts at least CancelNotice
// from now.
func (o *Orchestrator) Cancel(ctx context.Context, ref model.ReservationRef, reason string) (err error) {
	defer func() { metrics.BookingOp("cancel", outcome(err)) }()
	return o.cancel(ctx, ref, reason, true)
}

// ForceCancel cancels regardless of how close the start is. It is used by
// payment enforcement, which already gave the organizer notice.
func (o *Orchestrator) ForceCancel(ctx context.Context, ref model.ReservationRef, reason string) (err error) {
	defer func() { metrics.BookingOp("force_cancel", outcome(err)) }()
	return o.cancel(ctx, ref, reason, false)
}

func (o *Orchestrator) cancel(ctx context.Context, ref model.ReservationRef, reason string, notice bool) error {
	log := o.log.WithFields(logrus.Fields{"event_id": ref.EventID, "court_id": ref.CourtID})
	ev, r, err := o.load(ctx, ref)
	switch {
	case errors.Is(err, model.ErrReservationNotFound):
		// The event may have been deleted by a previous attempt whose
		// projection update failed.
		row, perr := o.proj.Get(ctx, ref.EventID)
		if perr != nil {
			return err
		}
		if row.State == model.StateCancelled {
			return model.ErrCancelled
		}
		log.Info("calendar event already gone, marking projection cancelled")
		if err := o.proj.MarkCancelled(ctx, ref, reason); err != nil {
			log.WithError(err).Warn("projection cancel failed")
		}
		return nil
	case err != nil:
		return err
	}

	if notice && ev.Start.Sub(o.now()) < CancelNotice {
		return model.ErrTooLateToCancel
	}
	gone, err := o.cal.DeleteEvent(ctx, ref.CourtID, ref.EventID)
	if err != nil {
		return model.Upstream("calendar delete", err)
	}
	if gone {
		log.Info("calendar event was already deleted")
	}
	if err := o.proj.MarkCancelled(ctx, ref, reason); err != nil {
		log.WithError(err).Warn("projection cancel failed, reconciliation will repair it")
	}
	log.WithField("reason", reason).Info("reservation cancelled")

	res := r.Reservation(ref, ev.Start, ev.End)
	res.State = model.StateCancelled
	params := map[string]string{"reason": reason}
	for _, s := range res.Seats {
		o.send(ctx, model.TemplateReservationCancelled, s.Phone, res, params)
	}
	return nil
}

// load reads the event and decodes its roster.
func (o *Orchestrator) load(ctx context.Context, ref model.ReservationRef) (*calendar.Event, *roster.Roster, error) {
	if ref.CourtID == "" || ref.EventID == "" {
		return nil, nil, model.Invalid("court and event id are required")
	}
	ev, err := o.cal.GetEvent(ctx, ref.CourtID, ref.EventID)
	if err != nil {
		return nil, nil, model.Upstream("calendar read", err)
	}
	if ev == nil {
		return nil, nil, model.ErrReservationNotFound
	}
	r, err := roster.Parse(ev.Description)
	if err != nil {
		if errors.Is(err, roster.ErrNotRoster) {
			return nil, nil, model.ErrReservationNotFound
		}
		return nil, nil, err
	}
	return ev, r, nil
}

// write stores the mutated roster in the calendar, then best effort in
// the projection.
func (o *Orchestrator) write(ctx context.Context, ref model.ReservationRef, ev *calendar.Event, r *roster.Roster, contact string) (*model.Reservation, error) {
	if _, err := o.cal.UpdateEvent(ctx, ref.CourtID, ref.EventID, calendar.EventPatch{
		Description: r.Text(),
		Summary:     summary(r),
		ColorTag:    color(r.State()),
	}); err != nil {
		return nil, model.Upstream("calendar write", err)
	}
	out := r.Reservation(ref, ev.Start, ev.End)
	out.UpdatedAt = o.now()

	log := o.log.WithFields(logrus.Fields{"event_id": ref.EventID, "court_id": ref.CourtID})
	row, err := o.proj.Get(ctx, ref.EventID)
	if err != nil && !errors.Is(err, model.ErrReservationNotFound) {
		log.WithError(err).Warn("projection read failed, reconciliation will repair it")
		return &out, nil
	}
	if row == nil {
		row = &model.ProjectionRow{FirstContactPhone: out.Organizer().Phone, LastContactPhone: out.Organizer().Phone}
	} else {
		out.CreatedAt = row.CreatedAt
		out.Links = row.Links
	}
	row.Reservation = out
	row.AuditNote = r.LastUpdate
	if contact != "" {
		row.LastContactPhone = contact
	}
	if err := o.proj.Update(ctx, row); err != nil {
		log.WithError(err).Warn("projection update failed, reconciliation will repair it")
	}
	return &out, nil
}

func (o *Orchestrator) lock(ctx context.Context, ref model.ReservationRef) (func(), error) {
	if o.locker == nil {
		return func() {}, nil
	}
	return o.locker.Acquire(ctx, "reservation:"+ref.EventID)
}

func (o *Orchestrator) send(ctx context.Context, template, to string, res model.Reservation, extra map[string]string) {
	if to == "" {
		return
	}
	params := map[string]string{
		"id":        res.ShortID,
		"court":     res.CourtName,
		"start":     res.Start.Format("2006-01-02 15:04"),
		"organizer": res.Organizer().Name,
		"missing":   fmt.Sprint(res.Missing),
	}
	if res.Links.Invite != "" {
		params["invite"] = res.Links.Invite
	}
	for k, v := range extra {
		params[k] = v
	}
	if err := o.notify.Notify(ctx, model.Notification{Template: template, To: to, Params: params}); err != nil {
		o.log.WithFields(logrus.Fields{"event_id": res.Ref.EventID, "template": template}).
			WithError(err).Warn("notification not sent")
	}
}

func summary(r *roster.Roster) string {
	return fmt.Sprintf("%s (%d/%d)", r.Seats[0].Name, r.Occupied, model.SeatCount)
}

func color(s model.ReservationState) string {
	if s == model.StateFull {
		return calendar.ColorFull
	}
	return calendar.ColorOpen
}

func shortID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return model.Category(err)
}
