package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/datallboy/resample/internal/domain"
)

// Prober reads media metadata with ffprobe.
type Prober struct {
	BinaryPath string
}

func NewProber(binaryPath string) *Prober {
	return &Prober{BinaryPath: binaryPath}
}

type ffprobeOutput struct {
	Format struct {
		Duration string            `json:"duration"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// Probe returns title and duration of a local file.
func (p *Prober) Probe(ctx context.Context, path string) (domain.VideoInfo, error) {
	if !fileExists(path) {
		return domain.VideoInfo{}, fmt.Errorf("file not found: %s", path)
	}

	cmd := exec.CommandContext(ctx, p.BinaryPath, "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		return domain.VideoInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbe(out, path)
}

func parseProbe(data []byte, path string) (domain.VideoInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := domain.VideoInfo{
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		VideoURL: path,
	}

	for k, v := range raw.Format.Tags {
		switch strings.ToLower(k) {
		case "title":
			if v != "" {
				info.Title = v
			}
		case "artist":
			info.Uploader = v
		}
	}

	if d, err := strconv.ParseFloat(raw.Format.Duration, 64); err == nil {
		info.Duration = &d
	}

	return info, nil
}

// Duration returns the duration of path formatted as m:ss or h:mm:ss.
func (p *Prober) Duration(ctx context.Context, path string) (string, bool) {
	info, err := p.Probe(ctx, path)
	if err != nil || info.Duration == nil {
		return "", false
	}
	return FormatDuration(*info.Duration), true
}

// FormatDuration renders seconds as m:ss, or h:mm:ss past an hour.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
