package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/datallboy/resample/internal/domain"
)

// SeparatedDir is the subdirectory of the download path holding stems.
const SeparatedDir = "separated"

var mediaExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true, ".aac": true,
	".ogg": true, ".opus": true, ".aiff": true, ".webm": true, ".mp4": true, ".mkv": true,
}

var modelExtensions = map[string]bool{
	".ckpt": true, ".pth": true, ".onnx": true, ".th": true, ".yaml": true,
}

func isMediaFile(name string) bool {
	return mediaExtensions[strings.ToLower(filepath.Ext(name))]
}

// Library manages the files the app produced.
type Library struct {
	prober *Prober
}

// NewLibrary returns a Library. prober may be nil, in which case durations
// are left empty.
func NewLibrary(prober *Prober) *Library {
	return &Library{prober: prober}
}

// History lists media in downloadPath and its separated subdirectory,
// newest first.
func (l *Library) History(ctx context.Context, downloadPath string) ([]domain.AudioFileInfo, error) {
	var files []domain.AudioFileInfo

	downloads, err := l.scan(ctx, downloadPath, "downloads", false)
	if err != nil {
		return nil, err
	}
	files = append(files, downloads...)

	separated, err := l.scan(ctx, filepath.Join(downloadPath, SeparatedDir), "separated", true)
	if err != nil {
		return nil, err
	}
	files = append(files, separated...)

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].CreatedTimestamp > files[j].CreatedTimestamp
	})
	return files, nil
}

func (l *Library) scan(ctx context.Context, dir, dirType string, recursive bool) ([]domain.AudioFileInfo, error) {
	var files []domain.AudioFileInfo

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != dir && (!recursive || d.Name() == SeparatedDir) {
				return fs.SkipDir
			}
			return nil
		}
		if !isMediaFile(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		entry := domain.AudioFileInfo{
			ID:               domain.GenerateFileID(dirType, path),
			Name:             d.Name(),
			FilePath:         path,
			DirectoryType:    dirType,
			CreatedTimestamp: info.ModTime().Unix(),
			CreatedDisplay:   humanize.Time(info.ModTime()),
			FileSize:         info.Size(),
		}
		if l.prober != nil {
			if dur, ok := l.prober.Duration(ctx, path); ok {
				entry.Duration = &dur
			}
		}
		files = append(files, entry)
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
	}
	return files, nil
}

// Delete removes a media file that lives under downloadPath.
func (l *Library) Delete(downloadPath, path string) error {
	if !within(downloadPath, path) {
		return fmt.Errorf("%w: %s", domain.ErrOutsideLibrary, path)
	}
	if !fileExists(path) {
		return fmt.Errorf("file not found: %s", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// DownloadedModels lists model files in modelDir. Friendly names come from
// catalog when it knows the file.
func (l *Library) DownloadedModels(modelDir string, catalog []domain.ModelInfo) ([]domain.DownloadedModel, error) {
	entries, err := os.ReadDir(modelDir)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.DownloadedModel{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	names := make(map[string]string, len(catalog))
	for _, m := range catalog {
		names[m.Filename] = m.FriendlyName
	}

	models := []domain.DownloadedModel{}
	for _, e := range entries {
		if e.IsDir() || !modelExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		// Demucs yaml configs are only models when the catalog says so
		if strings.EqualFold(filepath.Ext(e.Name()), ".yaml") && names[e.Name()] == "" {
			continue
		}
		friendly := names[e.Name()]
		if friendly == "" {
			friendly = strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		}
		models = append(models, domain.DownloadedModel{Filename: e.Name(), FriendlyName: friendly})
	}

	sort.Slice(models, func(i, j int) bool { return models[i].FriendlyName < models[j].FriendlyName })
	return models, nil
}

// DeleteModel removes a model file by name from modelDir.
func (l *Library) DeleteModel(modelDir, filename string) error {
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." {
		return fmt.Errorf("%w: %s", domain.ErrOutsideLibrary, filename)
	}
	path := filepath.Join(modelDir, filename)
	if !fileExists(path) {
		return fmt.Errorf("model not found: %s", filename)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete model: %w", err)
	}
	return nil
}

// within reports whether path is root itself or inside it.
func within(root, path string) bool {
	if root == "" {
		return false
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
