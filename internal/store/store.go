// Package store is the durable source of truth for jobs. Every create
// and update is flushed before the call returns, so the on-disk state
// always reflects the last completed transition.
package store

import (
	"context"
	"fmt"

	"commentwatch/internal/config"
	"commentwatch/internal/job"
)

// Store persists jobs. Updates to the same id are serialized; reads may
// run concurrently with writes to other ids.
type Store interface {
	// CreateJob inserts a new job record. The id must be unused.
	CreateJob(ctx context.Context, j *job.Job) error

	// GetJob returns the job or common.ErrJobNotFound.
	GetJob(ctx context.Context, id string) (*job.Job, error)

	// UpdateJob loads the job, applies mutate, and writes the result
	// back inside one transaction. A mutate error aborts the write and
	// is returned unchanged.
	UpdateJob(ctx context.Context, id string, mutate func(*job.Job) error) (*job.Job, error)

	// ListUnfinished returns every pending and processing job in
	// submission order. Used once at startup to rebuild the queue.
	ListUnfinished(ctx context.Context) ([]*job.Job, error)

	Ping(ctx context.Context) error
	Close() error
}

// New selects a backend from the configured store mode.
func New(ctx context.Context, cfg config.Config) (Store, error) {
	switch cfg.StoreMode {
	case "postgres", "pg":
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	case "sqlite", "":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown store mode %q", cfg.StoreMode)
	}
}
