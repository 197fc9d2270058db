package common

// Audit actions recorded in download_stats.
const (
	ActionDownload = "download"
	ActionDelete   = "delete"
)

// QualityAudio is the requested-quality sentinel that selects an audio-only artifact.
const QualityAudio = "audio"

// AnonymousID marks a job without an identified requester or delivery target.
const AnonymousID int64 = 0
