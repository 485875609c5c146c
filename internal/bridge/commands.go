package bridge

// Command names shared by the backend and its clients.
const (
	UnifiedDownload           = "unified_download"
	SeparateAudio             = "separate_audio"
	StopDownload              = "stop_download"
	DetectInputType           = "detect_input_type"
	FetchVideoInfo            = "fetch_video_info"
	GetLocalFileInfo          = "get_local_file_info"
	GetAudioFileHistory       = "get_audio_file_history"
	DeleteFile                = "delete_file"
	ListSeparationModels      = "list_separation_models"
	ListAudioSeparatorModels  = "list_audio_separator_models"
	ListAvailableModelsSimple = "list_available_models_simple"
	ListDownloadedModels      = "list_downloaded_models"
	DownloadSeparationModel   = "download_separation_model"
	DownloadSeparatorModel    = "download_audio_separator_model"
	DeleteModel               = "delete_model"
	LoadSettings              = "load_settings"
	SaveSettings              = "save_settings"
	GetJobHistory             = "get_job_history"
	GetActiveJob              = "get_active_job"
)
