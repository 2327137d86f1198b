package enrollment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cuemby/streakline/pkg/metrics"
)

// errPollExhausted is returned by Poller.Until when the condition never held
var errPollExhausted = errors.New("poll budget exhausted")

const (
	DefaultPollAttempts = 10
	DefaultPollInterval = 200 * time.Millisecond
)

// Poller waits for a condition with a fixed attempt budget instead of a
// guessed sleep
type Poller struct {
	Attempts int
	Interval time.Duration
}

// DefaultPoller returns the standard 10 x 200ms budget
func DefaultPoller() Poller {
	return Poller{Attempts: DefaultPollAttempts, Interval: DefaultPollInterval}
}

// Until checks cond immediately and then once per Interval, at most Attempts
// times in total. cond returning an error stops polling with that error.
// target labels the poll in metrics and errors.
func (p Poller) Until(ctx context.Context, target string, cond func(context.Context) (bool, error)) (int, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	ticker := time.NewTicker(p.interval())
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		metrics.VisibilityPollsTotal.WithLabelValues(target).Inc()

		ok, err := cond(ctx)
		if err != nil {
			return attempt, err
		}
		if ok {
			return attempt, nil
		}
		if attempt >= attempts {
			return attempt, fmt.Errorf("%s after %d attempts: %w", target, attempt, errPollExhausted)
		}

		select {
		case <-ctx.Done():
			return attempt, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p Poller) interval() time.Duration {
	if p.Interval <= 0 {
		return time.Millisecond
	}
	return p.Interval
}
