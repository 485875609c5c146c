package domain

// InputType is the detected kind of user input.
type InputType string

const (
	InputYouTube   InputType = "YouTube"
	InputSpotify   InputType = "Spotify"
	InputLocalFile InputType = "LocalFile"
	InputUnknown   InputType = "Unknown"
)

// ProcessingMode selects what unified_download does with the input.
type ProcessingMode string

const (
	ModeDownloadOnly       ProcessingMode = "DownloadOnly"
	ModeDownloadAndExtract ProcessingMode = "DownloadAndExtract"
	ModeExtractOnly        ProcessingMode = "ExtractOnly"
)

// WantsSeparation reports whether the mode is followed by stem separation.
func (m ProcessingMode) WantsSeparation() bool {
	return m == ModeDownloadAndExtract || m == ModeExtractOnly
}

// DownloadRequest is the argument record of unified_download.
type DownloadRequest struct {
	JobID          string         `json:"jobId,omitempty"`
	Input          string         `json:"input"`
	InputType      InputType      `json:"inputType"`
	ProcessingMode ProcessingMode `json:"processingMode"`
	StartTime      *int           `json:"startTime"`
	EndTime        *int           `json:"endTime"`
}

// HasRange reports whether a valid time selection was given.
func (r DownloadRequest) HasRange() bool {
	return r.StartTime != nil && r.EndTime != nil && *r.EndTime > *r.StartTime
}

// DownloadResult is returned by unified_download.
type DownloadResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	FilePath string `json:"file_path,omitempty"`
}

// SeparationResult is returned by separate_audio.
type SeparationResult struct {
	Success     bool     `json:"success"`
	Message     string   `json:"message"`
	OutputFiles []string `json:"output_files"`
}

// VideoInfo is the metadata returned by fetch_video_info and get_local_file_info.
type VideoInfo struct {
	Title     string   `json:"title"`
	Duration  *float64 `json:"duration,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Uploader  string   `json:"uploader,omitempty"`
	ViewCount *int64   `json:"view_count,omitempty"`
	VideoURL  string   `json:"video_url,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// AudioFileInfo is an entry of the audio file history.
type AudioFileInfo struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	FilePath         string  `json:"file_path"`
	DirectoryType    string  `json:"directory_type"` // "downloads" or "separated"
	CreatedTimestamp int64   `json:"created_timestamp"`
	CreatedDisplay   string  `json:"created_display"`
	Duration         *string `json:"duration,omitempty"`
	FileSize         int64   `json:"file_size"`
}

// ModelInfo describes a separation model from the catalog.
type ModelInfo struct {
	Filename     string `json:"filename"`
	Arch         string `json:"arch"`
	OutputStems  string `json:"output_stems"`
	FriendlyName string `json:"friendly_name"`
}

// DownloadedModel is a model file present in the model directory.
type DownloadedModel struct {
	Filename     string `json:"filename"`
	FriendlyName string `json:"friendly_name"`
}
