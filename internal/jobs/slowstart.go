package jobs

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// DefaultWaitInterval is how long a wait task sleeps between snapshots.
const DefaultWaitInterval = 2 * time.Second

// Waiter is a wait-pseudo-job: it holds a scheduler slot until encoder
// processes from sibling invocations wind down, releasing capacity to
// real jobs progressively by rank. Purely a throughput-fairness
// heuristic; it guarantees nothing.
type Waiter struct {
	// Rank staggers release: rank 0 gives up its slot first.
	Rank int

	// Limit is the allowed concurrency of this invocation.
	Limit int

	// Interval between snapshots. Zero means DefaultWaitInterval.
	Interval time.Duration

	// Snapshot lists external encoder PIDs. Injectable for tests;
	// defaults to ExternalEncoders via the pool.
	Snapshot func(ctx context.Context) []int32

	// Done is the batch completion flag. Once set there is nothing left
	// to yield capacity to, so the waiter exits immediately.
	Done *atomic.Bool
}

// Await blocks until enough external encoder processes have finished for
// this slot to be released, the batch completes, or ctx is cancelled.
func (w *Waiter) Await(ctx context.Context) {
	interval := w.Interval
	if interval == 0 {
		interval = DefaultWaitInterval
	}

	snapshot := w.Snapshot(ctx)
	for {
		if w.Done.Load() || ctx.Err() != nil {
			return
		}

		tooMany := len(snapshot) - (w.Limit - 1 - w.Rank)
		if tooMany <= 0 {
			if !sleep(ctx, interval) {
				return
			}
			next := w.Snapshot(ctx)
			if subsetOf(next, snapshot) {
				// No new external encoders appeared; release the slot.
				logger.Debug("Wait task releasing its slot", "rank", w.Rank, "external", len(next))
				return
			}
			snapshot = next
			continue
		}

		logger.Debug("Wait task holding its slot", "rank", w.Rank, "external", len(snapshot))
		if !sleep(ctx, interval) {
			return
		}
		snapshot = w.Snapshot(ctx)
	}
}

// sleep waits for d, returning false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
