package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/settings"
)

// FileKey identifies a history entry for delete confirmation. Two entries can
// share an id across directories, so the path is part of the key.
func FileKey(f domain.AudioFileInfo) string {
	return f.ID + "-" + f.FilePath
}

// History returns the last fetched audio file history.
func (a *Adapter) History() []domain.AudioFileInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.AudioFileInfo(nil), a.history...)
}

func (a *Adapter) RefreshHistory(ctx context.Context) ([]domain.AudioFileInfo, error) {
	var files []domain.AudioFileInfo
	if err := a.inv.Invoke(ctx, bridge.GetAudioFileHistory, nil, &files); err != nil {
		a.log.Error("Failed to load audio file history: %v", err)
		return nil, err
	}

	a.mu.Lock()
	a.history = files
	a.mu.Unlock()
	return files, nil
}

// DeleteFile is the two-click delete. The first click arms the entry and
// returns false; a second click within the window deletes it.
func (a *Adapter) DeleteFile(ctx context.Context, f domain.AudioFileInfo) (bool, error) {
	if !a.fileGuard.Click(FileKey(f)) {
		return false, nil
	}

	if err := a.inv.Invoke(ctx, bridge.DeleteFile, map[string]string{"filePath": f.FilePath}, nil); err != nil {
		a.console.Append(fmt.Sprintf("Failed to delete file: %v", err))
		return false, err
	}

	if _, err := a.RefreshHistory(ctx); err != nil {
		a.log.Warn("History refresh after delete failed: %v", err)
	}
	a.console.Append("Deleted file: " + f.Name)
	return true, nil
}

// DeletePending reports whether f is waiting for its confirming click.
func (a *Adapter) DeletePending(f domain.AudioFileInfo) bool {
	return a.fileGuard.Pending(FileKey(f))
}

// DeleteModel is the two-click delete for a downloaded model. Failures are
// not shown on the console.
func (a *Adapter) DeleteModel(ctx context.Context, filename, modelDir string) (bool, error) {
	if !a.modelGuard.Click(filename) {
		return false, nil
	}

	args := map[string]string{"modelFilename": filename, "modelDirectory": modelDir}
	if err := a.inv.Invoke(ctx, bridge.DeleteModel, args, nil); err != nil {
		a.log.Error("Failed to delete model %s: %v", filename, err)
		return false, err
	}

	if a.models != nil {
		if err := a.models.RefreshDownloaded(ctx, modelDir); err != nil {
			a.log.Warn("Downloaded model refresh failed: %v", err)
		}
	}
	return true, nil
}

func (a *Adapter) ModelDeletePending(filename string) bool {
	return a.modelGuard.Pending(filename)
}

// DetectInput asks the backend to classify input. Failures fall back to
// Unknown.
func (a *Adapter) DetectInput(ctx context.Context, input string) domain.InputType {
	input = strings.TrimSpace(input)
	if input == "" {
		return domain.InputUnknown
	}

	var t domain.InputType
	if err := a.inv.Invoke(ctx, bridge.DetectInputType, map[string]string{"input": input}, &t); err != nil {
		a.console.Append(fmt.Sprintf("Failed to detect input type: %v", err))
		return domain.InputUnknown
	}
	a.console.Append(fmt.Sprintf("Detected input type: %s", t))
	return t
}

// FetchVideoInfo loads remote metadata. On failure the returned info carries
// the error text with the title "Error".
func (a *Adapter) FetchVideoInfo(ctx context.Context, url string) (domain.VideoInfo, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return domain.VideoInfo{}, nil
	}

	a.console.Append("Fetching video info for: " + url)

	var info domain.VideoInfo
	if err := a.inv.Invoke(ctx, bridge.FetchVideoInfo, map[string]string{"url": url}, &info); err != nil {
		a.console.Append(fmt.Sprintf("Error: %v", err))
		return domain.VideoInfo{Title: "Error", Error: err.Error()}, err
	}

	if info.Title == "" {
		info.Title = "Unknown Title"
	}
	if info.Uploader == "" {
		info.Uploader = "Unknown Uploader"
	}
	if info.Duration != nil {
		d := float64(int64(*info.Duration))
		info.Duration = &d
	}

	a.console.Append("Successfully loaded: " + info.Title)
	return info, nil
}

// LoadSettings fetches the backend settings document. Keys the frontend does
// not know are dropped on the next save.
func (a *Adapter) LoadSettings(ctx context.Context) (settings.Settings, error) {
	var raw string
	if err := a.inv.Invoke(ctx, bridge.LoadSettings, nil, &raw); err != nil {
		return settings.Settings{}, err
	}
	var s settings.Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return settings.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return s, nil
}

// SaveSettings pushes the full record back.
func (a *Adapter) SaveSettings(ctx context.Context, s settings.Settings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return a.inv.Invoke(ctx, bridge.SaveSettings, map[string]string{"settings": string(raw)}, nil)
}
