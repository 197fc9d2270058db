// Package preferences persists per-owner settings. Columns are fixed; each
// setting is a named field of models.Preferences.
package preferences

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

type SQLRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, dialect dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, dialect: dialect}
}

// Get returns the owner's row or common.ErrNotFound when none was written yet.
func (r *SQLRepository) Get(ctx context.Context, ownerID int64) (*models.Preferences, error) {
	query := `SELECT owner_id, send_description, created_at, updated_at FROM user_settings WHERE owner_id = ?`

	var p models.Preferences
	var send sql.NullBool
	var created, updated int64
	err := r.db.QueryRowContext(ctx, r.dialect.Rebind(query), ownerID).Scan(&p.OwnerID, &send, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences %d: %w", ownerID, err)
	}
	p.SendDescription = dbx.BoolPtr(send)
	p.CreatedAt = time.Unix(created, 0)
	p.UpdatedAt = time.Unix(updated, 0)
	return &p, nil
}

// Upsert creates the row on first write and otherwise updates the settings
// and updated_at, keeping created_at.
func (r *SQLRepository) Upsert(ctx context.Context, p *models.Preferences) error {
	query := `
		INSERT INTO user_settings (owner_id, send_description, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			send_description = excluded.send_description,
			updated_at = excluded.updated_at`

	if _, err := r.db.ExecContext(ctx, r.dialect.Rebind(query),
		p.OwnerID, dbx.NullBool(p.SendDescription), p.CreatedAt.Unix(), p.UpdatedAt.Unix()); err != nil {
		return fmt.Errorf("upsert preferences %d: %w", p.OwnerID, err)
	}
	return nil
}
