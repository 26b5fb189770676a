package sweeper

import (
	"context"
	"time"
)

// Scheduler abstracts how sweeps are driven so cadence is not tied to any
// particular runtime: a ticker in-process, a cron job in production tests,
// a fake in unit tests.
type Scheduler interface {
	// Schedule runs fn every interval until the returned stop function is
	// called. The context passed to fn is cancelled by stop, so a sweep in
	// flight can wind down without leaving partial state.
	Schedule(interval time.Duration, fn func(ctx context.Context)) (stop func())
}

// TickerScheduler drives fn from an in-process time.Ticker goroutine.
type TickerScheduler struct{}

func (TickerScheduler) Schedule(interval time.Duration, fn func(ctx context.Context)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
	return cancel
}
