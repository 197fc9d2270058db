package auditlog

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

// Repository appends to and counts the download_stats table. Entries are
// never updated or deleted.
type Repository interface {
	Append(ctx context.Context, e *models.AuditEntry) error
	CountSince(ctx context.Context, ownerID int64, action string, since time.Time) (int64, error)
	ListByArtifact(ctx context.Context, artifactID string) ([]*models.AuditEntry, error)
}
