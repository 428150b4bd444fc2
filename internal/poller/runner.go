// internal/poller/runner.go
package poller

import (
	"context"
	"time"
)

// Run starts the poll loop and emits PollResult on the provided channel.
// One goroutine per port. No overlap.
// Quiet results (no bits, no error) are not emitted.
// After a failed poll the next one is delayed by backoff.
func (p *Poller) Run(ctx context.Context, out chan<- PollResult) {
	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()

	var lastErr bool

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		res := p.PollOnce()

		// Emit on bits, on failure, and on the first success after a failure.
		if res.Bits != 0 || res.Err != nil || lastErr {
			select {
			case out <- res:
			case <-ctx.Done():
				return
			}
		}
		lastErr = res.Err != nil

		timer.Reset(p.next(res))
	}
}
