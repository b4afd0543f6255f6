package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/court-booking/internal/utils"
)

func TestHashKeyCmd(t *testing.T) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"hash-key", "--cost", "4", "a-long-admin-key"})
	require.NoError(t, root.Execute())
	assert.True(t, utils.VerifyKey(strings.TrimSpace(out.String()), "a-long-admin-key"))

	root = newRootCmd()
	root.SetArgs([]string{"hash-key", "short"})
	assert.Error(t, root.Execute())
}

func TestStartOfDay(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	got := startOfDay(time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC), madrid)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, madrid), got)
}
