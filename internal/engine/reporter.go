package engine

import (
	"math"
	"sync"

	"github.com/datallboy/resample/internal/domain"
)

// Reporter publishes progress for one job. Events carry the job id and a
// per-job sequence number; nothing is published after the terminal event.
type Reporter struct {
	manager *Manager
	job     *domain.Job

	mu   sync.Mutex
	seq  uint64
	done bool
}

// JobID returns the correlation id of the job being reported.
func (r *Reporter) JobID() string {
	return r.job.ID
}

// Report publishes a non-terminal update. Terminal statuses are reserved for
// the manager and are ignored here.
func (r *Reporter) Report(status domain.ProgressStatus, progress float64, message string) {
	if status.IsTerminal() || !status.Valid() {
		r.manager.log.Debug("Job %s: ignoring %q report from worker", r.job.ID, status)
		return
	}

	r.manager.mu.Lock()
	switch status {
	case domain.ProgressDownloading:
		r.job.Status = domain.StatusDownloading
	case domain.ProgressProcessing:
		r.job.Status = domain.StatusProcessing
	}
	r.job.Progress = clamp(progress)
	r.job.Message = message
	r.manager.mu.Unlock()

	r.publish(status, clamp(progress), message, false)
}

func (r *Reporter) terminal(status domain.ProgressStatus, progress float64, message string) {
	r.publish(status, progress, message, true)
}

func (r *Reporter) publish(status domain.ProgressStatus, progress float64, message string, last bool) {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	r.seq++
	ev := domain.ProgressEvent{
		JobID:    r.job.ID,
		Kind:     r.job.Kind,
		Seq:      r.seq,
		Progress: progress,
		Message:  message,
		Status:   status,
	}
	if last {
		r.done = true
	}
	// Publish under the lock so subscribers see events in seq order
	if pub := r.manager.events; pub != nil {
		pub.Publish(domain.ChannelProgress, ev)
		pub.Publish(domain.ChannelForKind(ev.Kind), ev)
	}
	r.mu.Unlock()
}

func clamp(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(0, math.Min(100, p))
}
