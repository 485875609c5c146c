package adapter

import (
	"context"

	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/domain"
)

// ModelSource feeds a models.Cache from the backend.
type ModelSource struct {
	Invoker bridge.Invoker
}

func (m ModelSource) ListModels(ctx context.Context) ([]domain.ModelInfo, error) {
	var list []domain.ModelInfo
	if err := m.Invoker.Invoke(ctx, bridge.ListAudioSeparatorModels, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m ModelSource) ListDownloaded(ctx context.Context, modelDir string) ([]domain.DownloadedModel, error) {
	var list []domain.DownloadedModel
	args := map[string]string{"modelDirectory": modelDir}
	if err := m.Invoker.Invoke(ctx, bridge.ListDownloadedModels, args, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m ModelSource) DownloadModel(ctx context.Context, filename, modelDir string) error {
	args := map[string]string{"modelFilename": filename, "modelDirectory": modelDir}
	return m.Invoker.Invoke(ctx, bridge.DownloadSeparatorModel, args, nil)
}
