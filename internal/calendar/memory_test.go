package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ev, err := m.CreateEvent(ctx, "court-1", NewEvent{Summary: "Match", Description: "a", Start: start, End: start.Add(90 * time.Minute)})
	require.NoError(t, err)

	got, err := m.ListEvents(ctx, "court-1", start.Add(time.Hour), start.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = m.ListEvents(ctx, "court-1", start.Add(90*time.Minute), start.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, got, "touching windows do not overlap")

	upd, err := m.UpdateEvent(ctx, "court-1", ev.ID, EventPatch{Description: "b", ColorTag: ColorFull})
	require.NoError(t, err)
	assert.Equal(t, "b", upd.Description)
	assert.Equal(t, "Match", upd.Summary)

	gone, err := m.DeleteEvent(ctx, "court-1", ev.ID)
	require.NoError(t, err)
	assert.False(t, gone)
	gone, err = m.DeleteEvent(ctx, "court-1", ev.ID)
	require.NoError(t, err)
	assert.True(t, gone)

	missing, err := m.GetEvent(ctx, "court-1", ev.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemoryFail(t *testing.T) {
	m := NewMemory()
	m.Fail = errors.New("down")
	_, err := m.ListEvents(context.Background(), "c", time.Now(), time.Now().Add(time.Hour))
	assert.EqualError(t, err, "down")
}
