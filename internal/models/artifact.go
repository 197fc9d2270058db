// Package models defines the records persisted in the catalog and the job
// descriptor carried on the queue.
package models

import "time"

// Artifact is a retrieved media file registered in the catalog.
//
// ResolvedQuality, Codec, SourcePlatform and ThumbnailPath are optional; an
// empty string is stored as NULL.
type Artifact struct {
	ID               string
	OwnerID          int64
	SourceURL        string
	Title            string
	RequestedQuality string
	ResolvedQuality  string
	Format           string
	Codec            string
	SourcePlatform   string
	FileSize         int64
	ProcessingTime   time.Duration
	FilePath         string
	ThumbnailPath    string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the artifact is due for removal at now.
func (a *Artifact) Expired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// IsAudio reports whether the artifact is an audio-only extraction.
func (a *Artifact) IsAudio() bool {
	return a.Format == "mp3"
}
