package jobs

import (
	"github.com/gwlsn/shrinkherd/internal/logger"
)

// Record is one non-fatal failure or warning tied to a path. A job may
// emit zero, one or many.
type Record struct {
	Path    string
	Message string
}

// Aggregator fans warning records in from every running job. Producers
// never block: a collector goroutine drains the channel for the whole
// life of the batch. Drain must be called exactly once, after the pool
// has fully finished.
type Aggregator struct {
	ch      chan Record
	done    chan struct{}
	records []Record
}

// NewAggregator starts the collector.
func NewAggregator() *Aggregator {
	a := &Aggregator{
		ch:   make(chan Record, 64),
		done: make(chan struct{}),
	}
	go func() {
		defer close(a.done)
		for rec := range a.ch {
			a.records = append(a.records, rec)
		}
	}()
	return a
}

// Report records a warning or failure for a path.
func (a *Aggregator) Report(path, message string) {
	a.ch <- Record{Path: path, Message: message}
}

// Drain stops the collector and returns everything reported so far.
func (a *Aggregator) Drain() []Record {
	close(a.ch)
	<-a.done
	return a.records
}

// Emit prints the grouped summary. Failures here are informational; they
// never change the process exit code.
func Emit(records []Record) {
	if len(records) == 0 {
		return
	}
	logger.Warn("Failure and warning summary:")
	for _, rec := range records {
		logger.Warn(rec.Message, "path", rec.Path)
	}
}
