package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/settings"
)

type fakeFetcher struct {
	url     string
	section *TimeRange
}

func (f *fakeFetcher) Download(ctx context.Context, url string, s settings.Settings, section *TimeRange, p Progress) (string, error) {
	f.url = url
	f.section = section
	return filepath.Join(s.DownloadPath, "video.mp3"), nil
}

type fakeSplitter struct {
	modelDir, outputDir string
}

func (f *fakeSplitter) Separate(ctx context.Context, input string, s settings.SeparationSettings, modelDir, outputDir string, p Progress) ([]string, error) {
	f.modelDir, f.outputDir = modelDir, outputDir
	return []string{filepath.Join(outputDir, "vocals.wav")}, nil
}

func intPtr(v int) *int { return &v }

func TestPipeline_Acquire(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "song.wav")
	require.NoError(t, os.WriteFile(local, []byte("x"), 0644))

	s := settings.Defaults(dir, filepath.Join(dir, "models"))

	t.Run("youtube without range", func(t *testing.T) {
		f := &fakeFetcher{}
		path, err := NewPipeline(f, nil).Acquire(context.Background(), domain.DownloadRequest{
			Input: "https://youtube.com/watch?v=abc", InputType: domain.InputYouTube, ProcessingMode: domain.ModeDownloadOnly,
		}, s, NopProgress{})
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "video.mp3"), path)
		assert.Nil(t, f.section)
	})

	t.Run("youtube with range", func(t *testing.T) {
		f := &fakeFetcher{}
		_, err := NewPipeline(f, nil).Acquire(context.Background(), domain.DownloadRequest{
			Input: "https://youtu.be/abc", StartTime: intPtr(10), EndTime: intPtr(70),
		}, s, NopProgress{})
		require.NoError(t, err)
		require.NotNil(t, f.section)
		assert.Equal(t, "*10-70", f.section.sectionArg())
	})

	t.Run("empty range is ignored", func(t *testing.T) {
		f := &fakeFetcher{}
		_, err := NewPipeline(f, nil).Acquire(context.Background(), domain.DownloadRequest{
			Input: "https://youtu.be/abc", InputType: domain.InputYouTube, StartTime: intPtr(10), EndTime: intPtr(10),
		}, s, NopProgress{})
		require.NoError(t, err)
		assert.Nil(t, f.section)
	})

	t.Run("local file", func(t *testing.T) {
		path, err := NewPipeline(&fakeFetcher{}, nil).Acquire(context.Background(), domain.DownloadRequest{
			Input: local, InputType: domain.InputLocalFile, ProcessingMode: domain.ModeExtractOnly,
		}, s, NopProgress{})
		require.NoError(t, err)
		assert.Equal(t, local, path)
	})

	t.Run("spotify", func(t *testing.T) {
		_, err := NewPipeline(&fakeFetcher{}, nil).Acquire(context.Background(), domain.DownloadRequest{
			Input: "https://open.spotify.com/track/1", InputType: domain.InputSpotify,
		}, s, NopProgress{})
		assert.True(t, errors.Is(err, domain.ErrUnsupportedInput))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := NewPipeline(&fakeFetcher{}, nil).Acquire(context.Background(), domain.DownloadRequest{Input: "what"}, s, NopProgress{})
		assert.True(t, errors.Is(err, domain.ErrUnsupportedInput))
	})
}

func TestPipeline_Separate(t *testing.T) {
	s := settings.Defaults("/dl", "/models")
	split := &fakeSplitter{}

	files, err := NewPipeline(nil, split).Separate(context.Background(), "/dl/a.mp3", s, s.SeparationSettings, "", NopProgress{})
	require.NoError(t, err)
	assert.Equal(t, "/models", split.modelDir)
	assert.Equal(t, filepath.Join("/dl", SeparatedDir), split.outputDir)
	assert.Equal(t, []string{filepath.Join("/dl", SeparatedDir, "vocals.wav")}, files)

	_, err = NewPipeline(nil, split).Separate(context.Background(), "/dl/a.mp3", s, s.SeparationSettings, "/custom", NopProgress{})
	require.NoError(t, err)
	assert.Equal(t, "/custom", split.modelDir)
}
