package adapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/events"
)

// ErrAlreadyFollowing is returned when a second event subscription is opened.
var ErrAlreadyFollowing = errors.New("already following progress events")

// OnProgress applies one progress event. Events for a job other than the
// current step, repeated or older sequence numbers, and anything arriving
// while idle are dropped. An error event releases the adapter at once.
func (a *Adapter) OnProgress(ev domain.ProgressEvent) {
	if !ev.Status.Valid() {
		a.log.Debug("Ignoring progress event with status %q", ev.Status)
		return
	}

	a.mu.Lock()
	op := a.op
	if op == nil {
		a.mu.Unlock()
		a.log.Debug("Dropping stale event for job %s: no operation in flight", ev.JobID)
		return
	}
	if ev.JobID != "" {
		if ev.JobID != op.jobID || op.done {
			a.mu.Unlock()
			a.log.Debug("Dropping stale event for job %s", ev.JobID)
			return
		}
		if ev.Seq != 0 {
			if ev.Seq <= op.lastSeq {
				a.mu.Unlock()
				return
			}
			op.lastSeq = ev.Seq
		}
	}

	s := &a.state
	s.Progress = ev.Progress
	s.Status = string(ev.Status)

	switch ev.Status {
	case domain.ProgressDownloading, domain.ProgressProcessing:
		s.Busy = true
	case domain.ProgressCompleted:
		// The start call's result decides the final gauge and releases busy
		op.done = ev.JobID != ""
	case domain.ProgressError:
		// Released now; the late start result finds op superseded and
		// leaves state alone, as after Stop.
		a.op = nil
		s.Busy = false
		s.Separating = false
		s.Progress = 0
		s.Status = StatusIdle
		s.JobID = ""
	}

	snapshot := *s
	fns := a.listenerFuncs()
	a.mu.Unlock()

	if ev.Message != "" {
		a.console.Append(ev.Message)
	}
	for _, f := range fns {
		f(snapshot)
	}
}

// Follow subscribes to the unified progress channel of the backend at
// baseURL and feeds every event to OnProgress until ctx ends. Only one
// subscription per adapter is allowed.
func (a *Adapter) Follow(ctx context.Context, client *http.Client, baseURL string) error {
	a.mu.Lock()
	if a.following {
		a.mu.Unlock()
		return ErrAlreadyFollowing
	}
	a.following = true
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.following = false
		a.mu.Unlock()
	}()

	url := strings.TrimRight(baseURL, "/") + "/events/" + domain.ChannelProgress
	return events.Stream(ctx, client, url, a.OnProgress)
}
