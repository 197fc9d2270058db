package preferences

import (
	"context"

	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

// Repository reads and writes the user_settings table.
type Repository interface {
	Get(ctx context.Context, ownerID int64) (*models.Preferences, error)
	Upsert(ctx context.Context, p *models.Preferences) error
}
