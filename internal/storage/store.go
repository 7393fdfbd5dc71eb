// Package storage persists finished optimization results.
package storage

import (
	"context"
	"time"

	"github.com/copyleftdev/promptsearch/internal/optimization"
)

// Record is one stored optimization job outcome.
type Record struct {
	SchemaVersion int                              `json:"schema_version"`
	ID            string                           `json:"id"`
	Algorithm     string                           `json:"algorithm"`
	Status        string                           `json:"status"`
	Result        *optimization.OptimizationResult `json:"result"`
	// Best holds the names of Result.BestCandidate, if any.
	Best          *optimization.CandidateNames     `json:"best,omitempty"`
	SavedAt       time.Time                        `json:"saved_at"`
}

// Store defines persistence operations for optimization results.
type Store interface {
	Init(ctx context.Context) error
	SaveResult(ctx context.Context, record Record) error
	GetResult(ctx context.Context, id string) (Record, bool, error)
	// ListResults returns records ordered by SavedAt, oldest first.
	ListResults(ctx context.Context) ([]Record, error)
	Close() error
}
