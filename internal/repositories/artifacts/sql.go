// Package artifacts provides the SQL repository for artifact records. The
// same statements serve SQLite and PostgreSQL; placeholders are rebound per
// dialect.
package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

const columns = `video_id, owner_id, source_url, title, requested_quality, resolved_quality,
	format, codec, source_platform, file_size, processing_time, file_path, thumbnail_path,
	created_at, expires_at`

// SQLRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

// NewSQLRepository binds a repository to db using the dialect's placeholders.
func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Upsert inserts a, or updates every column of the row with the same
// artifact ID in place.
func (r *SQLRepository) Upsert(ctx context.Context, a *models.Artifact) error {
	query := `
		INSERT INTO videos (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (video_id) DO UPDATE SET
			owner_id = excluded.owner_id,
			source_url = excluded.source_url,
			title = excluded.title,
			requested_quality = excluded.requested_quality,
			resolved_quality = excluded.resolved_quality,
			format = excluded.format,
			codec = excluded.codec,
			source_platform = excluded.source_platform,
			file_size = excluded.file_size,
			processing_time = excluded.processing_time,
			file_path = excluded.file_path,
			thumbnail_path = excluded.thumbnail_path,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`

	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		a.ID, a.OwnerID, a.SourceURL, a.Title, a.RequestedQuality,
		dbx.NullString(a.ResolvedQuality), a.Format, dbx.NullString(a.Codec),
		dbx.NullString(a.SourcePlatform), a.FileSize, int64(a.ProcessingTime/time.Second),
		a.FilePath, dbx.NullString(a.ThumbnailPath),
		a.CreatedAt.Unix(), a.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert artifact %s: %w", a.ID, err)
	}
	return nil
}

// Get returns the artifact with the given ID or common.ErrNotFound.
func (r *SQLRepository) Get(ctx context.Context, id string) (*models.Artifact, error) {
	query := `SELECT ` + columns + ` FROM videos WHERE video_id = ?`
	a, err := scan(r.db.QueryRowContext(ctx, r.dialect.Rebind(query), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact %s: %w", id, err)
	}
	return a, nil
}

// Delete removes the row only while it still carries a's timestamps, so a
// row refreshed by a later ingest survives. A missing or refreshed row
// yields common.ErrNotFound.
func (r *SQLRepository) Delete(ctx context.Context, a *models.Artifact) error {
	query := `DELETE FROM videos WHERE video_id = ? AND created_at = ? AND expires_at = ?`
	res, err := r.db.ExecContext(ctx, r.dialect.Rebind(query), a.ID, a.CreatedAt.Unix(), a.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("delete artifact %s: %w", a.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// ListExpired returns artifacts with expires_at <= now, soonest first.
func (r *SQLRepository) ListExpired(ctx context.Context, now time.Time) ([]*models.Artifact, error) {
	query := `SELECT ` + columns + ` FROM videos WHERE expires_at <= ? ORDER BY expires_at ASC, video_id ASC`
	return r.list(ctx, query, now.Unix())
}

// ListOldestFirst returns every artifact in eviction order: creation time,
// then artifact ID for ties.
func (r *SQLRepository) ListOldestFirst(ctx context.Context) ([]*models.Artifact, error) {
	query := `SELECT ` + columns + ` FROM videos ORDER BY created_at ASC, video_id ASC`
	return r.list(ctx, query)
}

// ListByOwner returns the owner's most recent artifacts. limit <= 0 means all.
func (r *SQLRepository) ListByOwner(ctx context.Context, ownerID int64, limit int) ([]*models.Artifact, error) {
	query := `SELECT ` + columns + ` FROM videos WHERE owner_id = ? ORDER BY created_at DESC, video_id ASC`
	if limit > 0 {
		return r.list(ctx, query+` LIMIT ?`, ownerID, limit)
	}
	return r.list(ctx, query, ownerID)
}

// OwnerUsage returns how many artifacts the owner holds and their total size.
func (r *SQLRepository) OwnerUsage(ctx context.Context, ownerID int64) (int64, int64, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(file_size), 0) FROM videos WHERE owner_id = ?`
	var count, bytes int64
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), ownerID).Scan(&count, &bytes); err != nil {
		return 0, 0, fmt.Errorf("owner usage: %w", err)
	}
	return count, bytes, nil
}

// Count returns the number of catalog rows.
func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]*models.Artifact, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select artifacts: %w", err)
	}
	defer rows.Close()

	var result []*models.Artifact
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Artifact, error) {
	var a models.Artifact
	var resolved, codec, platform, thumb sql.NullString
	var processing, created, expires int64
	if err := s.Scan(
		&a.ID, &a.OwnerID, &a.SourceURL, &a.Title, &a.RequestedQuality, &resolved,
		&a.Format, &codec, &platform, &a.FileSize, &processing, &a.FilePath, &thumb,
		&created, &expires,
	); err != nil {
		return nil, err
	}
	a.ResolvedQuality = resolved.String
	a.Codec = codec.String
	a.SourcePlatform = platform.String
	a.ThumbnailPath = thumb.String
	a.ProcessingTime = time.Duration(processing) * time.Second
	a.CreatedAt = time.Unix(created, 0)
	a.ExpiresAt = time.Unix(expires, 0)
	return &a, nil
}
