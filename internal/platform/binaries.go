package platform

import (
	"fmt"
	"os/exec"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/config"
)

// Tool is an external executable and what the app loses without it.
type Tool struct {
	Name    string
	Path    string
	Feature string
}

// Tools lists the external binaries named in the config.
func Tools(cfg config.ToolsConfig) []Tool {
	return []Tool{
		{Name: "yt-dlp", Path: cfg.YtDlp, Feature: "YouTube downloads"},
		{Name: "audio-separator", Path: cfg.Separator, Feature: "stem separation"},
		{Name: "ffprobe", Path: cfg.FFprobe, Feature: "local file durations"},
	}
}

// Resolve finds path on disk or in PATH.
func Resolve(path string) (string, error) {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrToolMissing, path)
	}
	return resolved, nil
}

// ValidateDependencies reports which tools are missing. None is strictly
// required: the backend still serves settings and history without them.
func ValidateDependencies(cfg config.ToolsConfig, warn func(format string, v ...any)) []Tool {
	var missing []Tool
	for _, t := range Tools(cfg) {
		if _, err := Resolve(t.Path); err != nil {
			missing = append(missing, t)
			if warn != nil {
				warn("%s (%s) not found. %s will be disabled.", t.Name, t.Path, t.Feature)
			}
		}
	}
	return missing
}
