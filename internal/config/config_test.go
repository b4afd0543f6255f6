package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_USER", "court")
	t.Setenv("DB_NAME", "court_booking")
	t.Setenv("LINK_SECRET", "s3cret")
	t.Setenv("CALENDAR_BACKEND", "memory")
	t.Setenv("CAPTURE_INTERVAL", "2m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 2*time.Minute, cfg.CaptureEvery)
	assert.Equal(t, 30*time.Minute, cfg.ReminderEvery)
	assert.False(t, cfg.PaymentsEnabled())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Madrid", loc.String())
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("DB_USER", "court")
	t.Setenv("DB_NAME", "court_booking")
	t.Setenv("LINK_SECRET", "unset below")
	require.NoError(t, os.Unsetenv("LINK_SECRET"))
	t.Setenv("CALENDAR_BACKEND", "memory")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("LINK_SECRET", "s3cret")
	t.Setenv("RESERVATION_PRICE", "2400")
	t.Setenv("OMISE_SECRET_KEY", "")
	_, err = Load()
	assert.ErrorContains(t, err, "OMISE")

	t.Setenv("RESERVATION_PRICE", "0")
	t.Setenv("CALENDAR_BACKEND", "google")
	t.Setenv("CALENDAR_CREDENTIALS", "")
	_, err = Load()
	assert.ErrorContains(t, err, "CALENDAR_CREDENTIALS")
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
	assert.Equal(t, "ip_phone_route", cfg.KeyStrategy)
}
