package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gwlsn/shrinkherd/internal/config"
)

// countingRunner records the peak number of concurrent invocations and
// the order in which jobs start.
type countingRunner struct {
	mu      sync.Mutex
	active  int32
	peak    int32
	started []string
}

func (c *countingRunner) Run(ctx context.Context, args []string, outputPath, logPath string) error {
	n := atomic.AddInt32(&c.active, 1)
	defer atomic.AddInt32(&c.active, -1)
	c.mu.Lock()
	if n > c.peak {
		c.peak = n
	}
	c.started = append(c.started, outputPath)
	c.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	return os.WriteFile(outputPath, make([]byte, 600), 0644)
}

func poolJobs(t *testing.T, dir string, n int) []Task {
	t.Helper()
	tasks := make([]Task, 0, n)
	for i := 0; i < n; i++ {
		src := filepath.Join(dir, fmt.Sprintf("in%02d.mkv", i))
		if err := os.WriteFile(src, make([]byte, 1000), 0644); err != nil {
			t.Fatal(err)
		}
		out := filepath.Join(dir, "encoded", fmt.Sprintf("in%02d-crf22.mkv", i))
		tasks = append(tasks, Task{Job: &Descriptor{
			Source:  src,
			Output:  out,
			Partial: PartialPath(out),
		}})
	}
	return tasks
}

func TestPoolRespectsLimit(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{}
	agg := NewAggregator()
	pool := NewPool(NewProcessor(&config.Config{}, runner, agg, 0), agg)

	report := pool.Run(context.Background(), poolJobs(t, dir, 8), 2)

	if runner.peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", runner.peak)
	}
	if report.Total != 8 || report.Completed != 8 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Outcomes) != 8 {
		t.Errorf("got %d outcomes, want 8", len(report.Outcomes))
	}
}

func TestPoolStartsInOrderWithLimitOne(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{}
	agg := NewAggregator()
	pool := NewPool(NewProcessor(&config.Config{}, runner, agg, 0), agg)

	tasks := poolJobs(t, dir, 5)
	pool.Run(context.Background(), tasks, 1)

	if len(runner.started) != 5 {
		t.Fatalf("started %d jobs, want 5", len(runner.started))
	}
	for i, t2 := range tasks {
		if runner.started[i] != t2.Job.Partial {
			t.Errorf("start %d = %q, want %q", i, runner.started[i], t2.Job.Partial)
		}
	}
}

func TestPoolSetsCompletionFlag(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{}
	agg := NewAggregator()
	pool := NewPool(NewProcessor(&config.Config{}, runner, agg, 0), agg)

	if pool.CompletionFlag().Load() {
		t.Fatal("completion flag set before the batch ran")
	}
	pool.Run(context.Background(), poolJobs(t, dir, 3), 2)
	if !pool.CompletionFlag().Load() {
		t.Error("completion flag not set after the batch")
	}
}

func TestPoolEmptyBatch(t *testing.T) {
	agg := NewAggregator()
	pool := NewPool(NewProcessor(&config.Config{}, &countingRunner{}, agg, 0), agg)

	report := pool.Run(context.Background(), nil, 2)
	if report.Total != 0 || len(report.Outcomes) != 0 {
		t.Errorf("report = %+v", report)
	}
	if !pool.CompletionFlag().Load() {
		t.Error("completion flag not set for an empty batch")
	}
}

func TestPoolFailuresDoNotAbortBatch(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{}
	agg := NewAggregator()
	pool := NewPool(NewProcessor(&config.Config{}, runner, agg, 0), agg)

	tasks := poolJobs(t, dir, 4)
	// Remove one source so that job fails its pre-encode stat.
	if err := os.Remove(tasks[1].Job.Source); err != nil {
		t.Fatal(err)
	}

	report := pool.Run(context.Background(), tasks, 2)
	if report.Failed != 1 || report.Completed != 3 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Records) != 1 {
		t.Errorf("records = %+v", report.Records)
	}
}

func TestPoolWaitersReleaseOnCompletion(t *testing.T) {
	dir := t.TempDir()
	runner := &countingRunner{}
	agg := NewAggregator()
	pool := NewPool(NewProcessor(&config.Config{}, runner, agg, 0), agg)

	// Snapshot reports a growing set of external encoders, so the waiter
	// can only exit via the completion flag.
	var next atomic.Int32
	busy := func(ctx context.Context) []int32 {
		n := next.Add(1)
		pids := make([]int32, 0, n)
		for i := int32(0); i < n; i++ {
			pids = append(pids, 4242+i)
		}
		return pids
	}

	limit := 2
	tasks := []Task{
		{Wait: &Waiter{
			Rank:     0,
			Limit:    limit,
			Interval: time.Millisecond,
			Snapshot: busy,
			Done:     pool.CompletionFlag(),
		}},
	}
	tasks = append(tasks, poolJobs(t, dir, 5)...)

	done := make(chan BatchReport)
	go func() { done <- pool.Run(context.Background(), tasks, limit) }()

	select {
	case report := <-done:
		if report.Completed != 5 {
			t.Errorf("report = %+v", report)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("pool did not finish; waiter never released")
	}
}
