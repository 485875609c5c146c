package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/datallboy/resample/internal/app"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/logger"
	"github.com/datallboy/resample/internal/infra/metrics"
	"github.com/segmentio/ksuid"
)

// Spec describes a job to run.
type Spec struct {
	// ID is the caller's correlation id. A KSUID is generated when empty.
	ID    string
	Kind  domain.JobKind
	Input string
}

// Outcome is what a successful WorkFunc produced.
type Outcome struct {
	Message     string
	FilePath    string
	OutputFiles []string
}

// WorkFunc performs the job, reporting intermediate progress through r.
type WorkFunc func(ctx context.Context, r *Reporter) (Outcome, error)

// Manager runs at most one job at a time.
type Manager struct {
	mu      sync.Mutex
	active  *domain.Job
	running sync.WaitGroup

	// cancelled marks the active job as stopped by Cancel rather than failed
	cancelled bool

	timeout     time.Duration
	historySize int
	store       app.JobStore
	events      app.Publisher
	metrics     *metrics.Metrics
	log         *logger.Logger
	now         func() time.Time
}

// NewManager builds a Manager from the shared app context. Store, Events and
// Metrics may be nil.
func NewManager(appCtx *app.Context) *Manager {
	m := &Manager{
		store:   appCtx.Store,
		events:  appCtx.Events,
		metrics: appCtx.Metrics,
		log:     appCtx.Logger,
		now:     time.Now,
	}
	if appCtx.Config != nil {
		m.timeout = appCtx.Config.Jobs.Timeout
		m.historySize = appCtx.Config.Jobs.HistorySize
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	return m
}

// Run executes work as the single active job and blocks until it finishes.
// It returns ErrBusy without running anything when another job is active.
// Exactly one terminal progress event is published per accepted job.
func (m *Manager) Run(ctx context.Context, spec Spec, work WorkFunc) (domain.Job, Outcome, error) {
	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return domain.Job{}, Outcome{}, domain.ErrBusy
	}

	id := spec.ID
	if id == "" {
		id = ksuid.New().String()
	}

	var jobCtx context.Context
	var cancel context.CancelFunc
	if m.timeout > 0 {
		jobCtx, cancel = context.WithTimeoutCause(ctx, m.timeout, domain.ErrJobTimeout)
	} else {
		jobCtx, cancel = context.WithCancel(ctx)
	}

	job := &domain.Job{
		ID:         id,
		Kind:       spec.Kind,
		Input:      spec.Input,
		Status:     domain.StatusPending,
		StartedAt:  m.now(),
		CancelFunc: cancel,
	}
	m.active = job
	m.cancelled = false
	m.running.Add(1)
	m.mu.Unlock()

	defer m.running.Done()
	defer cancel()

	m.persist(job)
	m.metrics.JobStarted()
	m.log.Info("Job %s started (%s): %s", job.ID, job.Kind, job.Input)

	rep := &Reporter{manager: m, job: job}
	out, err := work(jobCtx, rep)

	// Work that ignores its context still loses to a timeout or a stop
	if err == nil && jobCtx.Err() != nil {
		err = jobCtx.Err()
	}

	final := m.finalize(jobCtx, job, rep, out, err)
	if final.Status != domain.StatusCompleted {
		return final, out, jobError(final)
	}
	return final, out, nil
}

func jobError(job domain.Job) error {
	if job.Status == domain.StatusCancelled {
		return context.Canceled
	}
	return errors.New(job.Error)
}

func (m *Manager) finalize(jobCtx context.Context, job *domain.Job, rep *Reporter, out Outcome, err error) domain.Job {
	m.mu.Lock()
	cancelled := m.cancelled

	job.FinishedAt = m.now()
	switch {
	case err == nil:
		job.Status = domain.StatusCompleted
		job.Progress = 100
		job.Message = out.Message
		job.OutputFiles = out.OutputFiles
		if len(job.OutputFiles) == 0 && out.FilePath != "" {
			job.OutputFiles = []string{out.FilePath}
		}
	case cancelled || (errors.Is(err, context.Canceled) && context.Cause(jobCtx) == context.Canceled):
		job.Status = domain.StatusCancelled
		job.Progress = 0
		job.Error = "Process cancelled"
	case errors.Is(context.Cause(jobCtx), domain.ErrJobTimeout):
		job.Status = domain.StatusFailed
		job.Progress = 0
		job.Error = domain.ErrJobTimeout.Error()
	default:
		job.Status = domain.StatusFailed
		job.Progress = 0
		job.Error = err.Error()
	}

	snapshot := job.Snapshot()
	m.active = nil
	m.mu.Unlock()

	if snapshot.Status == domain.StatusCompleted {
		rep.terminal(domain.ProgressCompleted, 100, snapshot.Message)
		m.log.Info("Job %s completed in %s", snapshot.ID, snapshot.FinishedAt.Sub(snapshot.StartedAt).Round(time.Millisecond))
	} else {
		rep.terminal(domain.ProgressError, 0, snapshot.Error)
		m.log.Warn("Job %s %s: %s", snapshot.ID, snapshot.Status, snapshot.Error)
	}

	m.persist(job)
	m.metrics.JobFinished(string(snapshot.Kind), string(snapshot.Status), snapshot.FinishedAt.Sub(snapshot.StartedAt))

	return snapshot
}

// Cancel stops the active job. target may be empty, the job id or the job
// input; anything else is treated as a stop for a job that is already gone.
func (m *Manager) Cancel(target string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job := m.active
	if job == nil {
		return "", domain.ErrNoActiveJob
	}
	if target != "" && target != job.ID && target != job.Input {
		return "", domain.ErrNoActiveJob
	}

	m.cancelled = true
	if job.CancelFunc != nil {
		job.CancelFunc()
	}

	m.log.Info("Job %s cancelled by user", job.ID)

	if job.Kind == domain.KindSeparation {
		return "Separation process stopped", nil
	}
	return "Download process stopped", nil
}

// Active returns a copy of the running job, or nil when idle.
func (m *Manager) Active() *domain.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active == nil {
		return nil
	}
	snapshot := m.active.Snapshot()
	return &snapshot
}

// History returns recently finished and running jobs from the store. A
// limit <= 0 means the configured history size.
func (m *Manager) History(ctx context.Context, limit int) ([]*domain.Job, error) {
	if m.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = m.historySize
	}
	return m.store.RecentJobs(ctx, limit)
}

// Shutdown cancels the active job and waits for it to unwind or for ctx to end.
func (m *Manager) Shutdown(ctx context.Context) error {
	_, _ = m.Cancel("")

	done := make(chan struct{})
	go func() {
		m.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job did not stop: %w", ctx.Err())
	}
}

// persist saves a copy of job; failures are logged, never fatal.
func (m *Manager) persist(job *domain.Job) {
	if m.store == nil {
		return
	}

	m.mu.Lock()
	snapshot := job.Snapshot()
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.store.SaveJob(ctx, &snapshot); err != nil {
		m.log.Error("Failed to persist job %s: %v", snapshot.ID, err)
	}
}
