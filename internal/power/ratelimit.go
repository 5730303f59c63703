package power

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/powerctl/internal/logger"
)

const (
	DefaultRateLimit  = 5
	DefaultRateWindow = time.Minute
)

// RateLimited wraps a Controller and bounds how many mode switches may
// happen inside a sliding window, so a runaway caller cannot hammer
// the host. Requests over the limit fail with ErrRateLimited.
type RateLimited struct {
	inner  Controller
	log    logger.Logger
	max    int
	window time.Duration

	mu     sync.Mutex
	stamps []time.Time
	nowFn  func() time.Time
}

func WithRateLimit(inner Controller, max int, window time.Duration, log logger.Logger) *RateLimited {
	if max <= 0 {
		max = DefaultRateLimit
	}

	if window <= 0 {
		window = DefaultRateWindow
	}

	return &RateLimited{
		inner:  inner,
		log:    log,
		max:    max,
		window: window,
		nowFn:  time.Now,
	}
}

func (c *RateLimited) Name() string {
	return c.inner.Name()
}

func (c *RateLimited) IsAvailable() bool {
	return c.inner.IsAvailable()
}

func (c *RateLimited) SetPerformanceMode(ctx context.Context) error {
	if err := c.allow(); err != nil {
		return err
	}

	return c.inner.SetPerformanceMode(ctx)
}

func (c *RateLimited) SetPowersaveMode(ctx context.Context) error {
	if err := c.allow(); err != nil {
		return err
	}

	return c.inner.SetPowersaveMode(ctx)
}

func (c *RateLimited) CurrentMode(ctx context.Context) (Mode, error) {
	return c.inner.CurrentMode(ctx)
}

func (c *RateLimited) allow() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	cutoff := now.Add(-c.window)

	kept := c.stamps[:0]
	for _, ts := range c.stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	c.stamps = kept

	if len(c.stamps) >= c.max {
		c.log.Warn().
			Int("max", c.max).
			Dur("window", c.window).
			Msg("Power mode switch rate limit hit")

		return errFactory.New(ErrRateLimited)
	}

	c.stamps = append(c.stamps, now)

	return nil
}
