package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/media"
)

type inputArgs struct {
	Input string `json:"input"`
}

func (b *Backend) detectInputType(ctx context.Context, args inputArgs) (any, error) {
	return media.DetectInputType(args.Input), nil
}

type urlArgs struct {
	URL string `json:"url"`
}

func (b *Backend) fetchVideoInfo(ctx context.Context, args urlArgs) (any, error) {
	url := strings.TrimSpace(args.URL)
	if url == "" {
		return nil, errors.New("no URL provided")
	}
	return b.Info.FetchInfo(ctx, url)
}

type filePathArgs struct {
	FilePath string `json:"filePath"`
}

func (b *Backend) getLocalFileInfo(ctx context.Context, args filePathArgs) (any, error) {
	return b.Prober.Probe(ctx, args.FilePath)
}

func (b *Backend) audioFileHistory(ctx context.Context) (any, error) {
	s, err := b.Settings.LoadTyped()
	if err != nil {
		return nil, err
	}
	files, err := b.Library.History(ctx, s.DownloadPath)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []domain.AudioFileInfo{}
	}
	return files, nil
}

func (b *Backend) deleteFile(ctx context.Context, args filePathArgs) (any, error) {
	s, err := b.Settings.LoadTyped()
	if err != nil {
		return nil, err
	}
	if err := b.Library.Delete(s.DownloadPath, args.FilePath); err != nil {
		return nil, err
	}
	b.Log.Info("Deleted %s", args.FilePath)
	return nil, nil
}

// catalogModels returns the model catalog, asking the separator only until it
// answers successfully once.
func (b *Backend) catalogModels(ctx context.Context) ([]domain.ModelInfo, error) {
	b.catalogMu.Lock()
	defer b.catalogMu.Unlock()

	if b.catalog != nil {
		return b.catalog, nil
	}
	models, err := b.Models.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	if models == nil {
		models = []domain.ModelInfo{}
	}
	b.catalog = models
	return models, nil
}

func (b *Backend) listModels(ctx context.Context) (any, error) {
	return b.catalogModels(ctx)
}

type modelDirArgs struct {
	ModelDirectory string `json:"modelDirectory"`
}

func (b *Backend) modelDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	s, err := b.Settings.LoadTyped()
	if err != nil {
		return "", err
	}
	return s.ResolvedModelDir(), nil
}

func (b *Backend) listDownloadedModels(ctx context.Context, args modelDirArgs) (any, error) {
	dir, err := b.modelDir(args.ModelDirectory)
	if err != nil {
		return nil, err
	}

	// Friendly names are nice to have; a missing catalog is not an error here
	catalog, err := b.catalogModels(ctx)
	if err != nil {
		b.Log.Debug("Model catalog unavailable: %v", err)
	}
	return b.Library.DownloadedModels(dir, catalog)
}

// listAvailableModelsSimple returns the downloaded models with their stems,
// which is what the separation picker needs.
func (b *Backend) listAvailableModelsSimple(ctx context.Context, args modelDirArgs) (any, error) {
	dir, err := b.modelDir(args.ModelDirectory)
	if err != nil {
		return nil, err
	}

	catalog, err := b.catalogModels(ctx)
	if err != nil {
		b.Log.Debug("Model catalog unavailable: %v", err)
	}
	downloaded, err := b.Library.DownloadedModels(dir, catalog)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]domain.ModelInfo, len(catalog))
	for _, m := range catalog {
		byName[m.Filename] = m
	}

	out := make([]domain.ModelInfo, 0, len(downloaded))
	for _, d := range downloaded {
		m, ok := byName[d.Filename]
		if !ok {
			m = domain.ModelInfo{Filename: d.Filename, FriendlyName: d.FriendlyName}
		}
		out = append(out, m)
	}
	return out, nil
}

type modelArgs struct {
	ModelFilename  string `json:"modelFilename"`
	ModelDirectory string `json:"modelDirectory"`
}

func (b *Backend) downloadModel(ctx context.Context, args modelArgs) (any, error) {
	if args.ModelFilename == "" {
		return nil, errors.New("no model selected")
	}
	dir, err := b.modelDir(args.ModelDirectory)
	if err != nil {
		return nil, err
	}
	if err := b.Models.DownloadModel(ctx, args.ModelFilename, dir); err != nil {
		return nil, err
	}
	b.Log.Info("Downloaded model %s to %s", args.ModelFilename, dir)
	return fmt.Sprintf("Model %s downloaded", args.ModelFilename), nil
}

func (b *Backend) deleteModel(ctx context.Context, args modelArgs) (any, error) {
	dir, err := b.modelDir(args.ModelDirectory)
	if err != nil {
		return nil, err
	}
	if err := b.Library.DeleteModel(dir, args.ModelFilename); err != nil {
		return nil, err
	}
	b.Log.Info("Deleted model %s", args.ModelFilename)
	return nil, nil
}

func (b *Backend) loadSettings(ctx context.Context) (any, error) {
	raw, err := b.Settings.Load()
	if err != nil {
		return nil, err
	}
	// The document travels as a string so it round-trips byte for byte
	return string(raw), nil
}

type saveSettingsArgs struct {
	Settings string `json:"settings"`
}

func (b *Backend) saveSettings(ctx context.Context, args saveSettingsArgs) (any, error) {
	if err := b.Settings.Save(json.RawMessage(args.Settings)); err != nil {
		return nil, err
	}
	return nil, nil
}
