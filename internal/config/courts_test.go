package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/court-booking/internal/model"
)

const courtsYAML = `
timezone: UTC
courts:
  - id: court-1@group.calendar
    name: Pista 1
    slot_minutes: 90
    weekday: ["09:00-14:00", "15:00-22:00"]
    weekend: ["10:00-00:00"]
  - id: court-2@group.calendar
    slot_minutes: 60
    weekday: ["08:00-23:00"]
`

func writeCourts(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRegistry(t *testing.T) {
	log, _ := test.NewNullLogger()
	reg, err := LoadRegistry(writeCourts(t, courtsYAML), "Europe/Madrid", log)
	require.NoError(t, err)

	snap := reg.Current()
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, time.UTC, snap.Location)
	require.Len(t, snap.Courts, 2)

	c := snap.Courts[0]
	assert.Equal(t, "Pista 1", c.Name)
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, 90*time.Minute, c.SlotDuration())
	assert.Equal(t, []model.Interval{{Start: 9 * 60, End: 14 * 60}, {Start: 15 * 60, End: 22 * 60}}, c.Weekday)
	assert.Equal(t, []model.Interval{{Start: 10 * 60, End: 0}}, c.Weekend)

	assert.Equal(t, "Pista 2", snap.Courts[1].Name)
	assert.Empty(t, snap.Courts[1].Weekend)

	got, err := snap.Court("court-2@group.calendar")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)
	_, err = snap.Court("nope")
	assert.ErrorIs(t, err, model.ErrCourtNotFound)
}

func TestReloadKeepsSnapshotOnError(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := writeCourts(t, courtsYAML)
	reg, err := LoadRegistry(path, "UTC", log)
	require.NoError(t, err)
	first := reg.Current()

	require.NoError(t, os.WriteFile(path, []byte(`
courts:
  - id: court-1
    slot_minutes: 0
`), 0o644))
	assert.Error(t, reg.Reload())
	assert.Same(t, first, reg.Current())

	require.NoError(t, os.WriteFile(path, []byte(`
courts:
  - id: court-9
    slot_minutes: 30
    weekday: ["10:00-12:00"]
`), 0o644))
	require.NoError(t, reg.Reload())
	next := reg.Current()
	assert.Equal(t, uint64(2), next.Version)
	assert.Equal(t, "court-9", next.Courts[0].ID)
	assert.Len(t, first.Courts, 2, "published snapshots are never mutated")
}

func TestBuildSnapshotRejects(t *testing.T) {
	cases := map[string]courtFile{
		"no courts":    {},
		"missing id":   {Courts: []courtSpec{{SlotMinutes: 60}}},
		"duplicate id": {Courts: []courtSpec{{ID: "a", SlotMinutes: 60}, {ID: "a", SlotMinutes: 60}}},
		"bad interval": {Courts: []courtSpec{{ID: "a", SlotMinutes: 60, Weekday: []string{"09:00"}}}},
		"reversed":     {Courts: []courtSpec{{ID: "a", SlotMinutes: 60, Weekday: []string{"14:00-09:00"}}}},
		"bad zone":     {TimeZone: "Mars/Olympus", Courts: []courtSpec{{ID: "a", SlotMinutes: 60}}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := buildSnapshot(f, "UTC")
			assert.Error(t, err)
		})
	}
}
