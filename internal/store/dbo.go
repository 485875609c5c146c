package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/datallboy/resample/internal/domain"
)

// jobDBO maps to the jobs table
type jobDBO struct {
	ID          string         `db:"id"`
	Kind        string         `db:"kind"`
	Input       string         `db:"input"`
	Status      string         `db:"status"`
	Progress    float64        `db:"progress"`
	Message     sql.NullString `db:"message"`
	OutputFiles []byte         `db:"output_files"`
	Error       sql.NullString `db:"error"`
	StartedAt   int64          `db:"started_at"`
	FinishedAt  int64          `db:"finished_at"`
}

const jobColumns = "id, kind, input, status, progress, message, output_files, error, started_at, finished_at"

// Mapper: DBO to Domain Job
func (r *jobDBO) ToDomain() (*domain.Job, error) {
	job := &domain.Job{
		ID:       r.ID,
		Kind:     domain.JobKind(r.Kind),
		Input:    r.Input,
		Status:   domain.JobStatus(r.Status),
		Progress: r.Progress,
		Message:  r.Message.String,
		Error:    r.Error.String,
	}

	if len(r.OutputFiles) > 0 {
		if err := json.Unmarshal(r.OutputFiles, &job.OutputFiles); err != nil {
			return nil, fmt.Errorf("failed to unmarshal output files for %s: %w", r.ID, err)
		}
	}

	job.StartedAt = time.UnixMilli(r.StartedAt)
	if r.FinishedAt > 0 {
		job.FinishedAt = time.UnixMilli(r.FinishedAt)
	}

	return job, nil
}

// Mapper: Domain Job to DBO
func (r *jobDBO) FromDomain(job *domain.Job) error {
	files := job.OutputFiles
	if files == nil {
		files = []string{}
	}
	encoded, err := json.Marshal(files)
	if err != nil {
		return fmt.Errorf("failed to encode output files: %w", err)
	}

	r.ID = job.ID
	r.Kind = string(job.Kind)
	r.Input = job.Input
	r.Status = string(job.Status)
	r.Progress = job.Progress
	r.Message = sql.NullString{String: job.Message, Valid: job.Message != ""}
	r.OutputFiles = encoded
	r.Error = sql.NullString{String: job.Error, Valid: job.Error != ""}
	r.StartedAt = job.StartedAt.UnixMilli()

	if !job.FinishedAt.IsZero() {
		r.FinishedAt = job.FinishedAt.UnixMilli()
	} else {
		r.FinishedAt = 0
	}

	return nil
}

// scanner is implemented by *sql.Row, *sql.Rows and pgx rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*domain.Job, error) {
	var r jobDBO
	if err := row.Scan(&r.ID, &r.Kind, &r.Input, &r.Status, &r.Progress, &r.Message, &r.OutputFiles, &r.Error, &r.StartedAt, &r.FinishedAt); err != nil {
		return nil, err
	}
	return r.ToDomain()
}
