package media

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/settings"
)

// Fetcher is the part of Downloader the pipeline needs.
type Fetcher interface {
	Download(ctx context.Context, url string, s settings.Settings, section *TimeRange, p Progress) (string, error)
}

// Splitter is the part of Separator the pipeline needs.
type Splitter interface {
	Separate(ctx context.Context, input string, s settings.SeparationSettings, modelDir, outputDir string, p Progress) ([]string, error)
}

// Pipeline turns requests into files on disk.
type Pipeline struct {
	fetcher  Fetcher
	splitter Splitter
}

func NewPipeline(fetcher Fetcher, splitter Splitter) *Pipeline {
	return &Pipeline{fetcher: fetcher, splitter: splitter}
}

// Acquire makes the requested input available locally and returns its path.
// YouTube input is downloaded; local files are used in place.
func (p *Pipeline) Acquire(ctx context.Context, req domain.DownloadRequest, s settings.Settings, prog Progress) (string, error) {
	inputType := req.InputType
	if inputType == "" || inputType == domain.InputUnknown {
		inputType = DetectInputType(req.Input)
	}

	switch inputType {
	case domain.InputYouTube:
		var section *TimeRange
		if req.HasRange() {
			section = &TimeRange{Start: *req.StartTime, End: *req.EndTime}
		}
		return p.fetcher.Download(ctx, req.Input, s, section, prog)

	case domain.InputLocalFile:
		if !fileExists(req.Input) {
			return "", fmt.Errorf("file not found: %s", req.Input)
		}
		prog.Report(domain.ProgressProcessing, 100, "Using local file: "+filepath.Base(req.Input))
		return req.Input, nil

	case domain.InputSpotify:
		return "", fmt.Errorf("%w: Spotify downloads are not available", domain.ErrUnsupportedInput)

	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedInput, req.Input)
	}
}

// SeparationOutputDir is where stems for s are written.
func SeparationOutputDir(s settings.Settings) string {
	if s.SeparationSettings.OutputDir != "" {
		return s.SeparationSettings.OutputDir
	}
	return filepath.Join(s.DownloadPath, SeparatedDir)
}

// Separate runs stem separation on a local file. sep overrides the stored
// separation settings; modelDir overrides the stored model directory.
func (p *Pipeline) Separate(ctx context.Context, input string, s settings.Settings, sep settings.SeparationSettings, modelDir string, prog Progress) ([]string, error) {
	if modelDir == "" {
		modelDir = s.ResolvedModelDir()
	}
	out := sep.OutputDir
	if out == "" {
		out = SeparationOutputDir(s)
	}
	return p.splitter.Separate(ctx, input, sep, modelDir, out, prog)
}
