package artifacts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

// Repository persists artifact records in the videos table.
type Repository interface {
	Upsert(ctx context.Context, a *models.Artifact) error
	Get(ctx context.Context, id string) (*models.Artifact, error)
	Delete(ctx context.Context, a *models.Artifact) error
	ListExpired(ctx context.Context, now time.Time) ([]*models.Artifact, error)
	ListOldestFirst(ctx context.Context) ([]*models.Artifact, error)
	ListByOwner(ctx context.Context, ownerID int64, limit int) ([]*models.Artifact, error)
	OwnerUsage(ctx context.Context, ownerID int64) (count int64, bytes int64, err error)
	Count(ctx context.Context) (int64, error)
}
