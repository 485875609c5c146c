package commands

import (
	"context"
	"sync"

	"github.com/datallboy/resample/internal/bridge"
	"github.com/datallboy/resample/internal/domain"
	"github.com/datallboy/resample/internal/engine"
	"github.com/datallboy/resample/internal/infra/logger"
	"github.com/datallboy/resample/internal/media"
	"github.com/datallboy/resample/internal/settings"
)

// InfoFetcher looks up remote media metadata.
type InfoFetcher interface {
	FetchInfo(ctx context.Context, url string) (domain.VideoInfo, error)
}

// FileProber reads local media metadata.
type FileProber interface {
	Probe(ctx context.Context, path string) (domain.VideoInfo, error)
}

// ModelTool lists and fetches separation models.
type ModelTool interface {
	ListModels(ctx context.Context) ([]domain.ModelInfo, error)
	DownloadModel(ctx context.Context, filename, modelDir string) error
}

// Backend holds the services the bridge commands call into.
type Backend struct {
	Engine   *engine.Manager
	Settings *settings.FileStore
	Pipeline *media.Pipeline
	Library  *media.Library
	Info     InfoFetcher
	Prober   FileProber
	Models   ModelTool
	Log      *logger.Logger

	catalogMu sync.Mutex
	catalog   []domain.ModelInfo
}

// Register installs every command on reg.
func (b *Backend) Register(reg *bridge.Registry) {
	if b.Log == nil {
		b.Log = logger.Nop()
	}

	reg.Register(bridge.UnifiedDownload, bridge.Bind(b.unifiedDownload))
	reg.Register(bridge.SeparateAudio, bridge.Bind(b.separateAudio))
	reg.Register(bridge.StopDownload, bridge.Bind(b.stopDownload))

	reg.Register(bridge.DetectInputType, bridge.Bind(b.detectInputType))
	reg.Register(bridge.FetchVideoInfo, bridge.Bind(b.fetchVideoInfo))
	reg.Register(bridge.GetLocalFileInfo, bridge.Bind(b.getLocalFileInfo))

	reg.Register(bridge.GetAudioFileHistory, bridge.NoArgs(b.audioFileHistory))
	reg.Register(bridge.DeleteFile, bridge.Bind(b.deleteFile))

	reg.Register(bridge.ListSeparationModels, bridge.NoArgs(b.listModels))
	reg.Register(bridge.ListAudioSeparatorModels, bridge.NoArgs(b.listModels))
	reg.Register(bridge.ListAvailableModelsSimple, bridge.Bind(b.listAvailableModelsSimple))
	reg.Register(bridge.ListDownloadedModels, bridge.Bind(b.listDownloadedModels))
	reg.Register(bridge.DownloadSeparationModel, bridge.Bind(b.downloadModel))
	reg.Register(bridge.DownloadSeparatorModel, bridge.Bind(b.downloadModel))
	reg.Register(bridge.DeleteModel, bridge.Bind(b.deleteModel))

	reg.Register(bridge.LoadSettings, bridge.NoArgs(b.loadSettings))
	reg.Register(bridge.SaveSettings, bridge.Bind(b.saveSettings))

	reg.Register(bridge.GetJobHistory, bridge.Bind(b.jobHistory))
	reg.Register(bridge.GetActiveJob, bridge.NoArgs(b.activeJob))
}
