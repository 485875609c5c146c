package app

import (
	"context"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/config"
	"github.com/datallboy/resample/internal/infra/logger"
	"github.com/datallboy/resample/internal/infra/metrics"
)

type Publisher interface {
	// This allows the engine to emit progress without importing the events package
	Publish(channel string, ev domain.ProgressEvent)
}

type JobStore interface {
	SaveJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	RecentJobs(ctx context.Context, limit int) ([]*domain.Job, error)
	Close() error
}

// ActiveJobs reports the job currently in flight, nil when idle.
type ActiveJobs interface {
	Active() *domain.Job
}

// Context hold the core environment and shared resources for Resample.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config  *config.Config
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	// High-level interfaces for services to use
	Store  JobStore
	Events Publisher
	Jobs   ActiveJobs
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}
