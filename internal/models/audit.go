package models

import "time"

// AuditEntry is an append-only record of a download or delete action.
type AuditEntry struct {
	ID         int64
	OwnerID    int64
	ArtifactID string
	Action     string
	Timestamp  time.Time
}
