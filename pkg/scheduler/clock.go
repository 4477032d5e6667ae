package scheduler

import (
	"context"
	"time"

	"k8s.io/utils/clock"
)

// Clock is the time source of the scheduler. Sleep returns early with the
// context error when ctx is done.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type timerClock struct {
	clock clock.Clock
}

// NewClock adapts c. A nil c uses the wall clock.
func NewClock(c clock.Clock) Clock {
	if c == nil {
		c = clock.RealClock{}
	}
	return &timerClock{clock: c}
}

func (c *timerClock) Now() time.Time {
	return c.clock.Now()
}

func (c *timerClock) Sleep(ctx context.Context, d time.Duration) error {
	t := c.clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
