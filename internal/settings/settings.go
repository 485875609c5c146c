package settings

// Settings is the persisted user configuration. Field names are the JSON
// keys the frontend reads and writes; a save always carries the full record.
type Settings struct {
	Theme        string `json:"theme"`
	DownloadPath string `json:"download_path"`

	AudioFormat  string `json:"audio_format"`
	AudioQuality string `json:"audio_quality"`
	VideoFormat  string `json:"video_format"`
	VideoQuality string `json:"video_quality"`
	ExtractAudio bool   `json:"extract_audio"`

	WriteSubtitles          bool `json:"write_subtitles"`
	WriteThumbnail          bool `json:"write_thumbnail"`
	WriteDescription        bool `json:"write_description"`
	WriteInfo               bool `json:"write_info"`
	WriteAnnotations        bool `json:"write_annotations"`
	WriteComments           bool `json:"write_comments"`
	WriteAutomaticSubtitles bool `json:"write_automatic_subtitles"`
	WriteManualSubtitles    bool `json:"write_manual_subtitles"`

	MaxDownloads        int `json:"max_downloads"`
	Retries             int `json:"retries"`
	FragmentRetries     int `json:"fragment_retries"`
	FileAccessRetries   int `json:"file_access_retries"`
	ConcurrentFragments int `json:"concurrent_fragments"`

	// Per-scope download caps. Zero means unlimited.
	MaxDownloadsPerHost               int `json:"max_downloads_per_host"`
	MaxDownloadsPerPlaylist           int `json:"max_downloads_per_playlist"`
	MaxDownloadsPerChannel            int `json:"max_downloads_per_channel"`
	MaxDownloadsPerUser               int `json:"max_downloads_per_user"`
	MaxDownloadsPerExtractor          int `json:"max_downloads_per_extractor"`
	MaxDownloadsPerVideo              int `json:"max_downloads_per_video"`
	MaxDownloadsPerAudio              int `json:"max_downloads_per_audio"`
	MaxDownloadsPerSubtitle           int `json:"max_downloads_per_subtitle"`
	MaxDownloadsPerThumbnail          int `json:"max_downloads_per_thumbnail"`
	MaxDownloadsPerDescription        int `json:"max_downloads_per_description"`
	MaxDownloadsPerInfo               int `json:"max_downloads_per_info"`
	MaxDownloadsPerAnnotations        int `json:"max_downloads_per_annotations"`
	MaxDownloadsPerComments           int `json:"max_downloads_per_comments"`
	MaxDownloadsPerAutomaticSubtitles int `json:"max_downloads_per_automatic_subtitles"`
	MaxDownloadsPerManualSubtitles    int `json:"max_downloads_per_manual_subtitles"`

	SeparationSettings   SeparationSettings `json:"separation_settings"`
	ModelDirectory       string             `json:"model_directory"`
	EnableStemExtraction bool               `json:"enable_stem_extraction"`
}

// SeparationSettings holds the audio-separator parameters. The mdx, vr,
// demucs and mdxc groups only apply to models of that architecture.
type SeparationSettings struct {
	ModelFilename string  `json:"model_filename"`
	OutputFormat  string  `json:"output_format"`
	OutputDir     string  `json:"output_dir"`
	ModelFileDir  string  `json:"model_file_dir"`
	Normalization float64 `json:"normalization"`
	Amplification float64 `json:"amplification"`
	SampleRate    int     `json:"sample_rate"`
	UseAutocast   bool    `json:"use_autocast"`
	UseGPU        bool    `json:"use_gpu"`
	GPUType       string  `json:"gpu_type"` // auto, cuda, mps, cpu

	MDXSegmentSize   int     `json:"mdx_segment_size"`
	MDXOverlap       float64 `json:"mdx_overlap"`
	MDXBatchSize     int     `json:"mdx_batch_size"`
	MDXEnableDenoise bool    `json:"mdx_enable_denoise"`

	VRBatchSize            int     `json:"vr_batch_size"`
	VRWindowSize           int     `json:"vr_window_size"`
	VRAggression           int     `json:"vr_aggression"`
	VREnableTTA            bool    `json:"vr_enable_tta"`
	VRHighEndProcess       bool    `json:"vr_high_end_process"`
	VREnablePostProcess    bool    `json:"vr_enable_post_process"`
	VRPostProcessThreshold float64 `json:"vr_post_process_threshold"`

	DemucsSegmentSize     string  `json:"demucs_segment_size"`
	DemucsShifts          int     `json:"demucs_shifts"`
	DemucsOverlap         float64 `json:"demucs_overlap"`
	DemucsSegmentsEnabled bool    `json:"demucs_segments_enabled"`

	MDXCSegmentSize              int  `json:"mdxc_segment_size"`
	MDXCOverrideModelSegmentSize bool `json:"mdxc_override_model_segment_size"`
	MDXCOverlap                  int  `json:"mdxc_overlap"`
	MDXCBatchSize                int  `json:"mdxc_batch_size"`
	MDXCPitchShift               int  `json:"mdxc_pitch_shift"`

	// SingleStem limits output to one stem, e.g. "Vocals". Empty means all.
	SingleStem *string `json:"single_stem,omitempty"`
}

// DefaultModelFilename is the model used until the user picks another.
const DefaultModelFilename = "model_bs_roformer_ep_317_sdr_12.9755.ckpt"

// Defaults returns the settings used before anything has been saved.
func Defaults(downloadPath, modelDir string) Settings {
	return Settings{
		Theme:               "system",
		DownloadPath:        downloadPath,
		AudioFormat:         "mp3",
		AudioQuality:        "0",
		VideoFormat:         "mp4",
		VideoQuality:        "best",
		ExtractAudio:        true,
		MaxDownloads:        1,
		Retries:             10,
		FragmentRetries:     10,
		FileAccessRetries:   3,
		ConcurrentFragments: 1,
		SeparationSettings: SeparationSettings{
			ModelFilename:          DefaultModelFilename,
			OutputFormat:           "WAV",
			Normalization:          0.9,
			Amplification:          0.0,
			SampleRate:             44100,
			UseGPU:                 true,
			GPUType:                "auto",
			MDXSegmentSize:         256,
			MDXOverlap:             0.25,
			MDXBatchSize:           1,
			VRBatchSize:            1,
			VRWindowSize:           512,
			VRAggression:           5,
			VRPostProcessThreshold: 0.2,
			DemucsSegmentSize:      "Default",
			DemucsShifts:           2,
			DemucsOverlap:          0.25,
			DemucsSegmentsEnabled:  true,
			MDXCSegmentSize:        256,
			MDXCOverlap:            8,
			MDXCBatchSize:          1,
		},
		ModelDirectory: modelDir,
	}
}

// ResolvedModelDir returns the directory models live in, preferring the
// separation-specific override.
func (s Settings) ResolvedModelDir() string {
	if s.SeparationSettings.ModelFileDir != "" {
		return s.SeparationSettings.ModelFileDir
	}
	return s.ModelDirectory
}
