package domain

// ProgressStatus is the closed set of status tags carried by progress events.
type ProgressStatus string

const (
	ProgressDownloading ProgressStatus = "downloading"
	ProgressProcessing  ProgressStatus = "processing"
	ProgressCompleted   ProgressStatus = "completed"
	ProgressError       ProgressStatus = "error"
)

// IsTerminal reports whether the status ends a job.
func (s ProgressStatus) IsTerminal() bool {
	return s == ProgressCompleted || s == ProgressError
}

// Valid reports whether s is one of the four known tags.
func (s ProgressStatus) Valid() bool {
	switch s {
	case ProgressDownloading, ProgressProcessing, ProgressCompleted, ProgressError:
		return true
	}
	return false
}

// Event channel names. ChannelProgress carries both job kinds; the legacy
// per-kind names are kept so older subscribers can still be routed.
const (
	ChannelProgress           = "job-progress"
	ChannelDownloadProgress   = "download-progress"
	ChannelSeparationProgress = "separation-progress"
)

// ChannelForKind returns the legacy per-kind channel name.
func ChannelForKind(kind JobKind) string {
	if kind == KindSeparation {
		return ChannelSeparationProgress
	}
	return ChannelDownloadProgress
}

// ProgressEvent is the payload published on the event channel.
//
// JobID and Seq are the correlation id and per-job sequence number. Clients
// use them to drop events that belong to a job they no longer track.
type ProgressEvent struct {
	JobID    string         `json:"job_id,omitempty"`
	Kind     JobKind        `json:"kind,omitempty"`
	Seq      uint64         `json:"seq,omitempty"`
	Progress float64        `json:"progress"`
	Message  string         `json:"message"`
	Status   ProgressStatus `json:"status"`
}
