package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerSucceedsWithinBudget(t *testing.T) {
	p := Poller{Attempts: 5, Interval: time.Millisecond}
	calls := 0

	attempts, err := p.Until(context.Background(), "test", func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestPollerChecksImmediately(t *testing.T) {
	p := Poller{Attempts: 3, Interval: time.Hour}

	attempts, err := p.Until(context.Background(), "test", func(context.Context) (bool, error) {
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestPollerExhausts(t *testing.T) {
	p := Poller{Attempts: 4, Interval: time.Millisecond}
	calls := 0

	attempts, err := p.Until(context.Background(), "test", func(context.Context) (bool, error) {
		calls++
		return false, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errPollExhausted)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, 4, calls)
}

func TestPollerStopsOnConditionError(t *testing.T) {
	p := Poller{Attempts: 10, Interval: time.Millisecond}

	attempts, err := p.Until(context.Background(), "test", func(context.Context) (bool, error) {
		return false, errBoom
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, attempts)
}

func TestPollerStopsOnCancel(t *testing.T) {
	p := Poller{Attempts: 100, Interval: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Until(ctx, "test", func(context.Context) (bool, error) {
		return false, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultPoller(t *testing.T) {
	p := DefaultPoller()
	assert.Equal(t, 10, p.Attempts)
	assert.Equal(t, 200*time.Millisecond, p.Interval)
}
