package calendar

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used for local runs without Google
// credentials and by tests. Fail, when set, is returned by every call.
type Memory struct {
	mu     sync.Mutex
	events map[string]map[string]Event
	Fail   error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{events: make(map[string]map[string]Event)}
}

// Put stores ev as is, replacing any event with the same id.
func (m *Memory) Put(courtID string, ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.court(courtID)[ev.ID] = ev
}

// Len returns the number of events on the court calendar.
func (m *Memory) Len(courtID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events[courtID])
}

func (m *Memory) court(courtID string) map[string]Event {
	c, ok := m.events[courtID]
	if !ok {
		c = make(map[string]Event)
		m.events[courtID] = c
	}
	return c
}

func (m *Memory) ListEvents(_ context.Context, courtID string, from, to time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	var out []Event
	for _, ev := range m.events[courtID] {
		if ev.Overlaps(from, to) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].ID < out[j].ID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (m *Memory) GetEvent(_ context.Context, courtID, eventID string) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	ev, ok := m.events[courtID][eventID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (m *Memory) CreateEvent(_ context.Context, courtID string, in NewEvent) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	ev := Event{
		ID:          uuid.NewString(),
		Summary:     in.Summary,
		Description: in.Description,
		Start:       in.Start,
		End:         in.End,
		ColorTag:    in.ColorTag,
	}
	m.court(courtID)[ev.ID] = ev
	return &ev, nil
}

func (m *Memory) UpdateEvent(_ context.Context, courtID, eventID string, patch EventPatch) (*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, m.Fail
	}
	ev, ok := m.events[courtID][eventID]
	if !ok {
		return nil, errors.New("event not found")
	}
	if patch.Description != "" {
		ev.Description = patch.Description
	}
	if patch.Summary != "" {
		ev.Summary = patch.Summary
	}
	if patch.ColorTag != "" {
		ev.ColorTag = patch.ColorTag
	}
	m.events[courtID][eventID] = ev
	return &ev, nil
}

func (m *Memory) DeleteEvent(_ context.Context, courtID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return false, m.Fail
	}
	if _, ok := m.events[courtID][eventID]; !ok {
		return true, nil
	}
	delete(m.events[courtID], eventID)
	return false, nil
}
