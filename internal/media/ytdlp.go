package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lrstanley/go-ytdlp"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/settings"
)

// Downloader fetches media with yt-dlp.
type Downloader struct {
	executable string
}

func NewDownloader(executable string) *Downloader {
	return &Downloader{executable: executable}
}

// TimeRange limits a download to [Start, End) seconds.
type TimeRange struct {
	Start int
	End   int
}

// sectionArg renders the --download-sections value
func (r TimeRange) sectionArg() string {
	return fmt.Sprintf("*%d-%d", r.Start, r.End)
}

// command builds the yt-dlp invocation for s.
func (d *Downloader) command(s settings.Settings, section *TimeRange) *ytdlp.Command {
	dl := ytdlp.New().
		ForceOverwrites().
		RestrictFilenames().
		NoPlaylist().
		Output(filepath.Join(s.DownloadPath, "%(title)s.%(ext)s"))

	if d.executable != "" {
		dl.SetExecutable(d.executable)
	}

	if s.ExtractAudio {
		dl.ExtractAudio()
		if s.AudioFormat != "" {
			dl.AudioFormat(s.AudioFormat)
		}
		if s.AudioQuality != "" {
			dl.AudioQuality(s.AudioQuality)
		}
	} else {
		if s.VideoQuality != "" && s.VideoQuality != "best" {
			dl.Format(s.VideoQuality)
		}
		if s.VideoFormat != "" {
			dl.MergeOutputFormat(s.VideoFormat)
		}
	}

	if s.Retries > 0 {
		dl.Retries(strconv.Itoa(s.Retries))
	}
	if s.FragmentRetries > 0 {
		dl.FragmentRetries(strconv.Itoa(s.FragmentRetries))
	}
	if s.FileAccessRetries > 0 {
		dl.FileAccessRetries(strconv.Itoa(s.FileAccessRetries))
	}
	if s.ConcurrentFragments > 1 {
		dl.ConcurrentFragments(s.ConcurrentFragments)
	}

	if s.WriteSubtitles || s.WriteManualSubtitles {
		dl.WriteSubs()
	}
	if s.WriteAutomaticSubtitles {
		dl.WriteAutoSubs()
	}
	if s.WriteThumbnail {
		dl.WriteThumbnail()
	}
	if s.WriteDescription {
		dl.WriteDescription()
	}
	if s.WriteInfo {
		dl.WriteInfoJSON()
	}
	if s.WriteComments {
		dl.WriteComments()
	}

	if section != nil {
		dl.DownloadSections(section.sectionArg())
	}

	return dl
}

// Download fetches url into s.DownloadPath and returns the final file path.
func (d *Downloader) Download(ctx context.Context, url string, s settings.Settings, section *TimeRange, p Progress) (string, error) {
	if err := os.MkdirAll(s.DownloadPath, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	started := time.Now()
	dl := d.command(s, section).PrintJSON()

	dl.ProgressFunc(500*time.Millisecond, func(update ytdlp.ProgressUpdate) {
		p.Report(domain.ProgressDownloading, percentOf(update), progressMessage(update))
	})

	p.Report(domain.ProgressDownloading, 0, "Starting download...")

	result, err := dl.Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	var reported string
	if info, err := result.GetExtractedInfo(); err == nil && len(info) > 0 && info[0].Filename != nil {
		reported = *info[0].Filename
	}

	path, err := resolveOutput(reported, s, started)
	if err != nil {
		return "", err
	}

	p.Report(domain.ProgressProcessing, 100, "Download finished: "+filepath.Base(path))
	return path, nil
}

// resolveOutput finds the file yt-dlp produced. Post-processing such as
// audio extraction changes the extension after the filename is reported,
// so fall back to the newest file written since the download started.
func resolveOutput(reported string, s settings.Settings, since time.Time) (string, error) {
	if reported != "" {
		if fileExists(reported) {
			return reported, nil
		}
		if s.ExtractAudio && s.AudioFormat != "" && s.AudioFormat != "best" {
			swapped := strings.TrimSuffix(reported, filepath.Ext(reported)) + "." + s.AudioFormat
			if fileExists(swapped) {
				return swapped, nil
			}
		}
	}

	entries, err := os.ReadDir(s.DownloadPath)
	if err != nil {
		return "", fmt.Errorf("failed to read download directory: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !isMediaFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		// Filesystems with coarse mtimes can round down by up to a second
		if info.ModTime().Before(since.Add(-time.Second)) {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = filepath.Join(s.DownloadPath, e.Name())
			newestMod = info.ModTime()
		}
	}

	if newest == "" {
		return "", errors.New("download finished but no output file was found")
	}
	return newest, nil
}

func percentOf(update ytdlp.ProgressUpdate) float64 {
	if update.TotalBytes <= 0 {
		return 0
	}
	return float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
}

func progressMessage(update ytdlp.ProgressUpdate) string {
	if update.TotalBytes <= 0 {
		return "Downloading..."
	}
	msg := fmt.Sprintf("Downloading: %.1f%% of %s", percentOf(update), humanize.Bytes(uint64(update.TotalBytes)))
	if eta := update.ETA(); eta > 0 {
		msg += fmt.Sprintf(" (ETA %s)", eta.Round(time.Second))
	}
	return msg
}

// ytInfo is the subset of yt-dlp's info JSON we surface.
type ytInfo struct {
	Title      string   `json:"title"`
	Duration   *float64 `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	Uploader   string   `json:"uploader"`
	ViewCount  *int64   `json:"view_count"`
	WebpageURL string   `json:"webpage_url"`
}

// FetchInfo returns metadata for url without downloading it.
func (d *Downloader) FetchInfo(ctx context.Context, url string) (domain.VideoInfo, error) {
	dl := ytdlp.New().DumpSingleJSON().NoPlaylist().SkipDownload()
	if d.executable != "" {
		dl.SetExecutable(d.executable)
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return domain.VideoInfo{}, fmt.Errorf("failed to fetch video info: %w", err)
	}

	return parseVideoInfo([]byte(result.Stdout), url)
}

func parseVideoInfo(data []byte, url string) (domain.VideoInfo, error) {
	var raw ytInfo
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.VideoInfo{}, fmt.Errorf("failed to parse video info: %w", err)
	}

	info := domain.VideoInfo{
		Title:     raw.Title,
		Duration:  raw.Duration,
		Thumbnail: raw.Thumbnail,
		Uploader:  raw.Uploader,
		ViewCount: raw.ViewCount,
		VideoURL:  raw.WebpageURL,
	}
	if info.Title == "" {
		info.Title = "Unknown Title"
	}
	if info.VideoURL == "" {
		info.VideoURL = url
	}
	return info, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
