package domain

import (
	"context"
	"time"
)

type JobStatus string

const (
	StatusPending     JobStatus = "pending"
	StatusDownloading JobStatus = "downloading"
	StatusProcessing  JobStatus = "processing" // Stem separation or post-processing
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusCancelled   JobStatus = "cancelled"
)

// IsTerminal reports whether the job can no longer change state
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// JobKind discriminates the two long-running operations the backend runs.
type JobKind string

const (
	KindDownload   JobKind = "download"
	KindSeparation JobKind = "separation"
)

// Job is one backend-side long-running operation. Only one is in flight at a time.
type Job struct {
	ID       string    `json:"id"`
	Kind     JobKind   `json:"kind"`
	Input    string    `json:"input"`
	Status   JobStatus `json:"status"`
	Progress float64   `json:"progress"`
	Message  string    `json:"message,omitempty"`

	OutputFiles []string `json:"output_files,omitempty"`
	Error       string   `json:"error,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`

	CancelFunc context.CancelFunc `json:"-"`
}

// Snapshot returns a copy safe to hand out of the engine lock.
func (j *Job) Snapshot() Job {
	cp := *j
	cp.CancelFunc = nil
	if j.OutputFiles != nil {
		cp.OutputFiles = append([]string(nil), j.OutputFiles...)
	}
	return cp
}
