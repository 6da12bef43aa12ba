package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	clock := newFakeClock()
	var transitions []string

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "oracle",
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
		OnStateChange: func(name string, from, to CircuitBreakerState) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	cb.now = clock.Now

	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Call(func() error { return errBoom }), errBoom)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	var cbErr *CircuitBreakerError
	require.ErrorAs(t, err, &cbErr)
	assert.Equal(t, StateOpen, cbErr.State)
	assert.False(t, called)

	clock.Advance(time.Minute)
	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())

	assert.Equal(t, []string{
		"oracle:closed->open",
		"oracle:open->half_open",
		"oracle:half_open->closed",
	}, transitions)
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Second})
	cb.now = clock.Now

	_ = cb.Call(func() error { return errBoom })
	require.Equal(t, StateOpen, cb.State())

	clock.Advance(time.Second)
	_ = cb.Call(func() error { return errBoom })
	assert.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Zero(t, cb.Failures())
}

func TestRetryWithConfig(t *testing.T) {
	retryAll := func(error) bool { return true }

	tests := []struct {
		name      string
		failures  int
		retryable func(error) bool
		attempts  int
		wantCalls int
		wantErr   bool
	}{
		{"first try", 0, retryAll, 3, 1, false},
		{"recovers", 2, retryAll, 3, 3, false},
		{"exhausted", 5, retryAll, 3, 3, true},
		{"not retryable", 5, func(error) bool { return false }, 3, 1, true},
		{"zero attempts runs once", 5, retryAll, 0, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			cfg := RetryConfig{
				MaxAttempts:     tt.attempts,
				InitialDelay:    time.Millisecond,
				MaxDelay:        2 * time.Millisecond,
				BackoffFactor:   2,
				RetryableErrors: tt.retryable,
			}
			err := RetryWithConfig(context.Background(), cfg, func() error {
				calls++
				if calls <= tt.failures {
					return errBoom
				}
				return nil
			})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBoom)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryStopsOnContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := RetryWithConfig(ctx, RetryConfig{
		MaxAttempts:     5,
		InitialDelay:    time.Hour,
		RetryableErrors: func(error) bool { return true },
	}, func() error {
		calls++
		cancel()
		return errBoom
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}
	assert.Equal(t, 100*time.Millisecond, calculateDelay(cfg, 0))
	assert.Equal(t, 200*time.Millisecond, calculateDelay(cfg, 1))
	assert.Equal(t, 300*time.Millisecond, calculateDelay(cfg, 5))

	cfg.JitterEnabled = true
	d := calculateDelay(cfg, 0)
	assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	assert.Less(t, d, 110*time.Millisecond)
}

func TestDegradationManager(t *testing.T) {
	clock := newFakeClock()
	dm := NewDegradationManager(DegradationConfig{
		DegradedThreshold:  0.1,
		CriticalThreshold:  0.25,
		EmergencyThreshold: 0.5,
		RecoveryTimeWindow: time.Minute,
		MinRequests:        4,
	})
	dm.now = clock.Now
	dm.RegisterService("oracle")

	assert.False(t, dm.IsServiceAvailable("missing"))

	// below MinRequests failures do not degrade the service
	for i := 0; i < 3; i++ {
		dm.RecordError("oracle", errBoom)
	}
	assert.True(t, dm.IsServiceAvailable("oracle"))

	dm.RecordError("oracle", errBoom)
	assert.False(t, dm.IsServiceAvailable("oracle"))

	health, ok := dm.GetServiceHealth("oracle")
	require.True(t, ok)
	assert.Equal(t, LevelEmergency, health.Level)
	assert.Equal(t, int64(4), health.ErrorCount)
	assert.ErrorIs(t, health.LastError, errBoom)

	clock.Advance(time.Minute)
	assert.True(t, dm.IsServiceAvailable("oracle"))

	health, _ = dm.GetServiceHealth("oracle")
	assert.Equal(t, LevelNormal, health.Level)
	assert.Zero(t, health.TotalRequests)
}

func TestDegradationLevels(t *testing.T) {
	dm := NewDegradationManager(DegradationConfig{
		DegradedThreshold:  0.1,
		CriticalThreshold:  0.25,
		EmergencyThreshold: 0.5,
		RecoveryTimeWindow: time.Hour,
		MinRequests:        1,
	})
	dm.RegisterService("svc")

	for i := 0; i < 8; i++ {
		dm.RecordSuccess("svc")
	}
	dm.RecordError("svc", errBoom)
	h, _ := dm.GetServiceHealth("svc")
	assert.Equal(t, LevelDegraded, h.Level)

	dm.RecordError("svc", errBoom)
	dm.RecordError("svc", errBoom)
	h, _ = dm.GetServiceHealth("svc")
	assert.Equal(t, LevelCritical, h.Level)

	text, err := h.Level.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "critical", string(text))

	dm.ResetService("svc")
	h, _ = dm.GetServiceHealth("svc")
	assert.Equal(t, LevelNormal, h.Level)
	assert.Zero(t, h.ErrorCount)
}
