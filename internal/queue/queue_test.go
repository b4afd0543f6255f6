package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/court-booking/internal/model"
)

func TestMessageLine(t *testing.T) {
	m := FromNotification("n-1", model.Notification{
		Template: model.TemplatePlayerJoined,
		To:       "+34600111222",
		Params:   map[string]string{"player": "Luis", "court": "Pista 1"},
	}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, "notify.player_joined", m.RoutingKey())
	assert.Equal(t,
		`[2026-03-02T09:00:00Z] player_joined | id=n-1 | to=+34600111222 | court="Pista 1" | player="Luis"`+"\n",
		m.Line())
}

func TestLogSinkHandle(t *testing.T) {
	log, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "logs", "notifications.log")
	sink := &LogSink{Path: path, Log: log}

	body, err := json.Marshal(NotificationMessage{ID: "a", Template: model.TemplatePlayerLeft, To: "g"})
	require.NoError(t, err)
	require.NoError(t, sink.Handle(body))
	require.NoError(t, sink.Handle(body))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, countLines(string(data)))

	assert.Error(t, sink.Handle([]byte("{")))
	assert.Error(t, sink.Handle([]byte(`{"id":"x"}`)))
}

func countLines(s string) int {
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	return n
}
