package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failingConfig() Config {
	return Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             10 * time.Millisecond,
		HalfOpenMaxRequests: 1,
	}
}

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New(failingConfig())

	for i := 0; i < 2; i++ {
		err := cb.Execute(func() error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	// Threshold reached, the next call is rejected without running.
	ran := false
	err := cb.Execute(func() error { ran = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, ran)
	assert.Equal(t, StateOpen, cb.State())
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New(failingConfig())

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	_ = cb.Execute(func() error { return nil })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)

	err = cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New(failingConfig())

	for i := 0; i < 2; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	_ = cb.Execute(func() error { return nil })
	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error { return errBoom })
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, StateOpen, cb.State())
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New(failingConfig())

	_ = cb.Execute(func() error { return errBoom })
	_ = cb.Execute(func() error { return nil })
	_ = cb.Execute(func() error { return errBoom })

	// Never two consecutive failures, so the breaker stays closed.
	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestReset(t *testing.T) {
	cb := New(failingConfig())
	for i := 0; i < 3; i++ {
		_ = cb.Execute(func() error { return errBoom })
	}
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())

	err := cb.Execute(func() error { return nil })
	assert.NoError(t, err)
}
