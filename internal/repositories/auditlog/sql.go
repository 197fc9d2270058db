// Package auditlog stores the append-only action audit used for usage
// statistics.
package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Append records one action.
func (r *SQLRepository) Append(ctx context.Context, e *models.AuditEntry) error {
	query := `INSERT INTO download_stats (owner_id, video_id, action, timestamp) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		e.OwnerID, e.ArtifactID, e.Action, e.Timestamp.Unix()); err != nil {
		return fmt.Errorf("append %s entry for %s: %w", e.Action, e.ArtifactID, err)
	}
	return nil
}

// CountSince counts the owner's entries of the given action at or after since.
func (r *SQLRepository) CountSince(ctx context.Context, ownerID int64, action string, since time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM download_stats WHERE owner_id = ? AND action = ? AND timestamp >= ?`
	var n int64
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), ownerID, action, since.Unix()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s entries: %w", action, err)
	}
	return n, nil
}

// ListByArtifact returns every entry recorded for an artifact, oldest first.
func (r *SQLRepository) ListByArtifact(ctx context.Context, artifactID string) ([]*models.AuditEntry, error) {
	query := `SELECT id, owner_id, video_id, action, timestamp FROM download_stats WHERE video_id = ? ORDER BY id ASC`
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), artifactID)
	if err != nil {
		return nil, fmt.Errorf("failed to select audit entries: %w", err)
	}
	defer rows.Close()

	var result []*models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var ts int64
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.ArtifactID, &e.Action, &ts); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(ts, 0)
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
