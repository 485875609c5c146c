package store

import (
	"context"
	"fmt"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/config"
)

// JobStore persists job history.
type JobStore interface {
	SaveJob(ctx context.Context, job *domain.Job) error
	// GetJob returns nil, nil when the job does not exist.
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	// RecentJobs returns up to limit jobs, newest first.
	RecentJobs(ctx context.Context, limit int) ([]*domain.Job, error)
	Close() error
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (JobStore, error) {
	switch cfg.Driver {
	case "", "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	case "postgres":
		return NewPgStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
