package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/infra/config"
)

func TestValidateDependencies(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a shell script as a fake tool")
	}

	dir := t.TempDir()
	fake := filepath.Join(dir, "yt-dlp")
	require.NoError(t, os.WriteFile(fake, []byte("#!/bin/sh\n"), 0755))

	var warnings []string
	missing := ValidateDependencies(config.ToolsConfig{
		YtDlp:     fake,
		Separator: filepath.Join(dir, "nope-separator"),
		FFprobe:   filepath.Join(dir, "nope-ffprobe"),
	}, func(format string, v ...any) { warnings = append(warnings, format) })

	require.Len(t, missing, 2)
	assert.Equal(t, "audio-separator", missing[0].Name)
	assert.Equal(t, "ffprobe", missing[1].Name)
	assert.Len(t, warnings, 2)
}

func TestResolve_Missing(t *testing.T) {
	_, err := Resolve(filepath.Join(t.TempDir(), "missing-tool"))
	assert.True(t, errors.Is(err, domain.ErrToolMissing))
}
