package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 7341, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 2*time.Hour, cfg.Jobs.Timeout)
	assert.Equal(t, 64, cfg.Jobs.EventBuffer)
	assert.Equal(t, 3*time.Second, cfg.Client.ConfirmWindow)
	assert.Equal(t, "yt-dlp", cfg.Tools.YtDlp)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
paths:
  documents_dir: /data/docs
jobs:
  timeout: 10m
tools:
  yt_dlp: /opt/bin/yt-dlp
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Address())
	assert.Equal(t, 10*time.Minute, cfg.Jobs.Timeout)
	assert.Equal(t, "/opt/bin/yt-dlp", cfg.Tools.YtDlp)
	assert.Equal(t, filepath.Join("/data/docs", "Resample"), cfg.Paths.DefaultDownloadPath())
	assert.Equal(t, filepath.Join("/data/docs", "Resample", "Models"), cfg.Paths.DefaultModelDirectory())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RESAMPLE_SERVER_PORT", "8123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad port", "server:\n  port: 70000\n", "out of range"},
		{"unknown driver", "store:\n  driver: mongo\n", "unknown store driver"},
		{"postgres without dsn", "store:\n  driver: postgres\n", "postgres_dsn is required"},
		{"negative timeout", "jobs:\n  timeout: -1s\n", "cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
