// Package store persists a journal of encode outcomes, so past batches
// can be inspected after the fact.
package store

import (
	"time"

	"github.com/gwlsn/shrinkherd/internal/jobs"
)

// Entry is one recorded job outcome.
type Entry struct {
	ID         int64
	Source     string
	Output     string
	Status     string
	Message    string
	OrigSize   int64
	OutputSize int64
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the persistence interface for the encode history.
// Implementations must be safe for concurrent use.
type Store interface {
	// RecordBatch persists a batch of outcomes in a single transaction.
	RecordBatch(outcomes []jobs.Outcome) error

	// Recent returns the most recent entries, newest first.
	Recent(limit int) ([]Entry, error)

	// Path returns the location of the backing database.
	Path() string

	// Close releases the database.
	Close() error
}
