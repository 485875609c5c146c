package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/engine"
	"github.com/datallboy/resample/internal/settings"
)

func (b *Backend) unifiedDownload(ctx context.Context, req domain.DownloadRequest) (any, error) {
	req.Input = strings.TrimSpace(req.Input)
	if req.Input == "" {
		return nil, errors.New("no input provided")
	}

	s, err := b.Settings.LoadTyped()
	if err != nil {
		return nil, err
	}

	spec := engine.Spec{ID: req.JobID, Kind: domain.KindDownload, Input: req.Input}
	_, out, err := b.Engine.Run(ctx, spec, func(ctx context.Context, r *engine.Reporter) (engine.Outcome, error) {
		path, err := b.Pipeline.Acquire(ctx, req, s, r)
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Outcome{
			Message:  "Download completed: " + filepath.Base(path),
			FilePath: path,
		}, nil
	})

	if errors.Is(err, domain.ErrBusy) {
		return nil, err
	}
	if err != nil {
		return domain.DownloadResult{Success: false, Message: jobMessage(err)}, nil
	}

	return domain.DownloadResult{Success: true, Message: out.Message, FilePath: out.FilePath}, nil
}

type separateArgs struct {
	JobID          string                       `json:"jobId"`
	InputFile      string                       `json:"inputFile"`
	Settings       *settings.SeparationSettings `json:"settings"`
	ModelDirectory string                       `json:"modelDirectory"`
}

func (b *Backend) separateAudio(ctx context.Context, args separateArgs) (any, error) {
	if args.InputFile == "" {
		return nil, errors.New("no input file provided")
	}

	s, err := b.Settings.LoadTyped()
	if err != nil {
		return nil, err
	}

	sep := s.SeparationSettings
	if args.Settings != nil {
		sep = *args.Settings
	}

	spec := engine.Spec{ID: args.JobID, Kind: domain.KindSeparation, Input: args.InputFile}
	_, out, err := b.Engine.Run(ctx, spec, func(ctx context.Context, r *engine.Reporter) (engine.Outcome, error) {
		files, err := b.Pipeline.Separate(ctx, args.InputFile, s, sep, args.ModelDirectory, r)
		if err != nil {
			return engine.Outcome{}, err
		}
		return engine.Outcome{
			Message:     fmt.Sprintf("Separation completed: %d stem(s) written", len(files)),
			OutputFiles: files,
		}, nil
	})

	if errors.Is(err, domain.ErrBusy) {
		return nil, err
	}
	if err != nil {
		return domain.SeparationResult{Success: false, Message: jobMessage(err), OutputFiles: []string{}}, nil
	}

	return domain.SeparationResult{Success: true, Message: out.Message, OutputFiles: out.OutputFiles}, nil
}

func jobMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "Process cancelled"
	}
	return err.Error()
}

type stopArgs struct {
	URL string `json:"url"`
}

// stopDownload is idempotent: stopping when nothing runs is not an error.
func (b *Backend) stopDownload(ctx context.Context, args stopArgs) (any, error) {
	msg, err := b.Engine.Cancel(strings.TrimSpace(args.URL))
	if errors.Is(err, domain.ErrNoActiveJob) {
		return "No active process to stop", nil
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

type historyArgs struct {
	Limit int `json:"limit"`
}

func (b *Backend) jobHistory(ctx context.Context, args historyArgs) (any, error) {
	jobs, err := b.Engine.History(ctx, args.Limit)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []*domain.Job{}
	}
	return jobs, nil
}

func (b *Backend) activeJob(ctx context.Context) (any, error) {
	return b.Engine.Active(), nil
}
