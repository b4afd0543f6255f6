package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Google implements Store on top of the Google Calendar API, using one
// calendar per court and a service account shared with every calendar.
type Google struct {
	svc *gcal.Service
	loc *time.Location
}

// NewGoogle builds a client from a service-account JSON key file.
func NewGoogle(ctx context.Context, credentialsFile string, loc *time.Location) (*Google, error) {
	raw, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read calendar credentials: %w", err)
	}
	conf, err := google.JWTConfigFromJSON(raw, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parse calendar credentials: %w", err)
	}
	svc, err := gcal.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Google{svc: svc, loc: loc}, nil
}

func (g *Google) ListEvents(ctx context.Context, courtID string, from, to time.Time) ([]Event, error) {
	var out []Event
	call := g.svc.Events.List(courtID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false)
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			ev, err := g.fromAPI(item)
			if err != nil {
				return err
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", courtID, err)
	}
	return out, nil
}

func (g *Google) GetEvent(ctx context.Context, courtID, eventID string) (*Event, error) {
	item, err := g.svc.Events.Get(courtID, eventID).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get event %s: %w", eventID, err)
	}
	if item.Status == "cancelled" {
		return nil, nil
	}
	ev, err := g.fromAPI(item)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *Google) CreateEvent(ctx context.Context, courtID string, in NewEvent) (*Event, error) {
	item := &gcal.Event{
		Summary:     in.Summary,
		Description: in.Description,
		ColorId:     in.ColorTag,
		Start:       &gcal.EventDateTime{DateTime: in.Start.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
		End:         &gcal.EventDateTime{DateTime: in.End.In(g.loc).Format(time.RFC3339), TimeZone: g.loc.String()},
	}
	created, err := g.svc.Events.Insert(courtID, item).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create event on %s: %w", courtID, err)
	}
	ev, err := g.fromAPI(created)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *Google) UpdateEvent(ctx context.Context, courtID, eventID string, patch EventPatch) (*Event, error) {
	item := &gcal.Event{
		Description: patch.Description,
		Summary:     patch.Summary,
		ColorId:     patch.ColorTag,
	}
	updated, err := g.svc.Events.Patch(courtID, eventID, item).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("update event %s: %w", eventID, err)
	}
	ev, err := g.fromAPI(updated)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (g *Google) DeleteEvent(ctx context.Context, courtID, eventID string) (bool, error) {
	err := g.svc.Events.Delete(courtID, eventID).Context(ctx).Do()
	if err == nil {
		return false, nil
	}
	if isGone(err) {
		return true, nil
	}
	return false, fmt.Errorf("delete event %s: %w", eventID, err)
}

func (g *Google) fromAPI(item *gcal.Event) (Event, error) {
	start, err := parseEventTime(item.Start, g.loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end, err := parseEventTime(item.End, g.loc)
	if err != nil {
		return Event{}, fmt.Errorf("event %s end: %w", item.Id, err)
	}
	return Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Start:       start,
		End:         end,
		ColorTag:    item.ColorId,
	}, nil
}

// parseEventTime handles both timed and all-day events; all-day events
// block the court for the whole day.
func parseEventTime(dt *gcal.EventDateTime, loc *time.Location) (time.Time, error) {
	if dt == nil {
		return time.Time{}, errors.New("missing date")
	}
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		if err != nil {
			return time.Time{}, err
		}
		return t.In(loc), nil
	}
	return time.ParseInLocation("2006-01-02", dt.Date, loc)
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
