package jobs

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/gwlsn/shrinkherd/internal/logger"
)

// Task is one slot's worth of work: either a real job or a
// wait-pseudo-job. Exactly one field is set. Keeping the variant explicit
// keeps the completion bookkeeping — which counts real jobs only — out of
// the control flow.
type Task struct {
	Job  *Descriptor
	Wait *Waiter
}

// BatchReport summarizes a finished batch.
type BatchReport struct {
	Total     int
	Completed int
	Failed    int
	Skipped   int
	Outcomes  []Outcome
	Records   []Record
}

// Pool drives a bounded set of concurrent tasks over an ordered queue.
// Tasks start in queue order; completion order is unconstrained. A job
// failure never aborts the batch.
type Pool struct {
	proc *Processor
	agg  *Aggregator

	// done is the batch completion flag: set exactly once, when the last
	// real job finishes, and never cleared. Lock-free readers (waiters)
	// poll it continuously.
	done atomic.Bool
}

// NewPool creates a Pool over the given processor and aggregator.
func NewPool(proc *Processor, agg *Aggregator) *Pool {
	return &Pool{proc: proc, agg: agg}
}

// CompletionFlag exposes the batch completion flag for wait tasks.
func (p *Pool) CompletionFlag() *atomic.Bool {
	return &p.done
}

// Run starts every task exactly once, never exceeding limit concurrent
// tasks, and blocks until all of them finish. It then drains the
// aggregator and returns the batch report.
func (p *Pool) Run(ctx context.Context, tasks []Task, limit int) BatchReport {
	totalReal := 0
	for _, t := range tasks {
		if t.Job != nil {
			totalReal++
		}
	}
	if totalReal == 0 {
		p.done.Store(true)
	}

	outcomeCh := make(chan Outcome, limit)
	collected := make(chan []Outcome)
	go func() {
		var outcomes []Outcome
		for out := range outcomeCh {
			outcomes = append(outcomes, out)
		}
		collected <- outcomes
	}()

	var finishedReal atomic.Int64
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for _, t := range tasks {
		// Acquiring before launching keeps starts FIFO in discovery order.
		sem <- struct{}{}
		wg.Add(1)
		go func(t Task) {
			defer wg.Done()
			defer func() { <-sem }()

			if t.Wait != nil {
				t.Wait.Await(ctx)
				return
			}

			outcomeCh <- p.proc.Process(ctx, t.Job)
			if finishedReal.Add(1) == int64(totalReal) {
				p.done.Store(true)
				logger.Debug("All jobs finished, completion flag set")
			}
		}(t)
	}
	wg.Wait()

	close(outcomeCh)
	outcomes := <-collected

	report := BatchReport{
		Total:    totalReal,
		Outcomes: outcomes,
		Records:  p.agg.Drain(),
	}
	for _, out := range outcomes {
		switch out.Status {
		case StatusCompleted:
			report.Completed++
		case StatusFailed:
			report.Failed++
		case StatusSkipped:
			report.Skipped++
		}
	}
	return report
}
