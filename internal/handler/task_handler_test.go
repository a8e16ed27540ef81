package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnoozeUntil(t *testing.T) {
	now := time.Date(2026, 8, 28, 15, 30, 0, 0, time.UTC)

	got, err := SnoozeUntil("1h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), got)

	got, err = SnoozeUntil("4h", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(4*time.Hour), got)

	got, err = SnoozeUntil("tomorrow", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC), got)

	got, err = SnoozeUntil("next_week", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC), got)
}

func TestSnoozeUntilCustomTimestamp(t *testing.T) {
	now := time.Now()

	got, err := SnoozeUntil("2026-09-01T08:00:00Z", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC), got)

	_, err = SnoozeUntil("whenever", now)
	assert.Error(t, err)

	_, err = SnoozeUntil("", now)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"pending"}, splitList("pending"))
	assert.Equal(t, []string{"pending", "snoozed"}, splitList("pending, snoozed"))
	assert.Equal(t, []string{"a"}, splitList("a,,"))
}
