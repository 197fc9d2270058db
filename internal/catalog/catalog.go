// Package catalog is the service layer over the artifact catalog. It keeps
// rows, audit entries and files consistent: an ingest writes the row and its
// download entry in one transaction, a destruction removes the files first
// and then deletes the row and appends the delete entry in one transaction.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/filex"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/repomanager"
)

// Mirror is a secondary copy of an artifact, such as an object-storage
// upload, that must go away together with the local files.
type Mirror interface {
	Remove(ctx context.Context, a *models.Artifact) error
}

// Service implements catalog operations shared by the worker, the retention
// engine and the command-line tools.
type Service struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	cache       *prefCache
	mirror      Mirror
	now         func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithPreferenceCache caches preference reads for ttl, holding at most size
// owners. size <= 0 disables the cache.
func WithPreferenceCache(size int, ttl time.Duration) Option {
	return func(s *Service) { s.cache = newPrefCache(size, ttl) }
}

// WithMirror removes the artifact's mirror copy on destruction.
func WithMirror(m Mirror) Option {
	return func(s *Service) { s.mirror = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *sql.DB, rm repomanager.RepositoryManager, logger logging.Logger, opts ...Option) *Service {
	s := &Service{
		db:          db,
		repomanager: rm,
		logger:      logger.With("module", "catalog"),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ingest upserts a and appends a download entry for its owner atomically.
func (s *Service) Ingest(ctx context.Context, a *models.Artifact) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Artifacts(tx).Upsert(ctx, a); err != nil {
			return err
		}
		return s.repomanager.AuditLog(tx).Append(ctx, &models.AuditEntry{
			OwnerID:    a.OwnerID,
			ArtifactID: a.ID,
			Action:     common.ActionDownload,
			Timestamp:  a.CreatedAt,
		})
	})
	if err != nil {
		ingestTotal.WithLabelValues("error").Inc()
		return err
	}
	ingestTotal.WithLabelValues("ok").Inc()
	return nil
}

// Get returns the artifact or common.ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*models.Artifact, error) {
	return s.repomanager.Artifacts(s.db).Get(ctx, id)
}

// Expired lists artifacts whose expiry is at or before now.
func (s *Service) Expired(ctx context.Context, now time.Time) ([]*models.Artifact, error) {
	return s.repomanager.Artifacts(s.db).ListExpired(ctx, now)
}

// OldestFirst lists every artifact in eviction order.
func (s *Service) OldestFirst(ctx context.Context) ([]*models.Artifact, error) {
	return s.repomanager.Artifacts(s.db).ListOldestFirst(ctx)
}

// Recent lists an owner's newest artifacts.
func (s *Service) Recent(ctx context.Context, ownerID int64, limit int) ([]*models.Artifact, error) {
	return s.repomanager.Artifacts(s.db).ListByOwner(ctx, ownerID, limit)
}

// Count returns the number of catalog rows.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.repomanager.Artifacts(s.db).Count(ctx)
}

// Destroy removes the artifact's files, then deletes its row and appends a
// delete entry in one transaction. Missing files are ignored. It returns the
// bytes freed on disk. a is the version the caller listed: when the row is
// gone, or was refreshed by a later ingest, common.ErrNotFound is returned
// and neither files nor row are touched.
func (s *Service) Destroy(ctx context.Context, a *models.Artifact) (int64, error) {
	cur, err := s.Get(ctx, a.ID)
	if errors.Is(err, common.ErrNotFound) {
		destroyTotal.WithLabelValues("missing").Inc()
		return 0, err
	}
	if err != nil {
		destroyTotal.WithLabelValues("error").Inc()
		return 0, err
	}
	if !sameVersion(cur, a) {
		destroyTotal.WithLabelValues("stale").Inc()
		return 0, fmt.Errorf("artifact %s was refreshed: %w", a.ID, common.ErrNotFound)
	}

	var freed int64
	for _, path := range []string{cur.FilePath, cur.ThumbnailPath} {
		n, err := filex.Remove(path)
		if err != nil {
			destroyTotal.WithLabelValues("error").Inc()
			return freed, err
		}
		freed += n
	}

	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, cur); err != nil {
			s.logger.Warn(ctx, "mirror removal failed", "artifact_id", cur.ID, "error", err)
		}
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Artifacts(tx).Delete(ctx, cur); err != nil {
			return err
		}
		return s.repomanager.AuditLog(tx).Append(ctx, &models.AuditEntry{
			OwnerID:    cur.OwnerID,
			ArtifactID: cur.ID,
			Action:     common.ActionDelete,
			Timestamp:  s.now(),
		})
	})
	switch {
	case errors.Is(err, common.ErrNotFound):
		destroyTotal.WithLabelValues("missing").Inc()
		return freed, err
	case err != nil:
		destroyTotal.WithLabelValues("error").Inc()
		return freed, err
	}
	destroyTotal.WithLabelValues("ok").Inc()
	return freed, nil
}

// sameVersion compares at the storage precision of the timestamps.
func sameVersion(cur, listed *models.Artifact) bool {
	return cur.CreatedAt.Unix() == listed.CreatedAt.Unix() &&
		cur.ExpiresAt.Unix() == listed.ExpiresAt.Unix()
}

// DestroyByID looks the artifact up and destroys it.
func (s *Service) DestroyByID(ctx context.Context, id string) (*models.Artifact, int64, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	freed, err := s.Destroy(ctx, a)
	return a, freed, err
}

// Stats returns the owner's artifact count, bytes used and downloads in the
// last 7 and 30 days.
func (s *Service) Stats(ctx context.Context, ownerID int64) (*models.UsageStats, error) {
	now := s.now()
	st := &models.UsageStats{OwnerID: ownerID}

	var err error
	st.Artifacts, st.BytesUsed, err = s.repomanager.Artifacts(s.db).OwnerUsage(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	audit := s.repomanager.AuditLog(s.db)
	if st.Downloads7d, err = audit.CountSince(ctx, ownerID, common.ActionDownload, now.Add(-7*24*time.Hour)); err != nil {
		return nil, err
	}
	if st.Downloads30d, err = audit.CountSince(ctx, ownerID, common.ActionDownload, now.Add(-30*24*time.Hour)); err != nil {
		return nil, err
	}
	return st, nil
}

// Preferences returns the owner's settings. An owner who never wrote any gets
// an empty Preferences so defaults apply.
func (s *Service) Preferences(ctx context.Context, ownerID int64) (*models.Preferences, error) {
	if p, ok := s.cache.get(ownerID); ok {
		return p, nil
	}
	p, err := s.repomanager.Preferences(s.db).Get(ctx, ownerID)
	if errors.Is(err, common.ErrNotFound) {
		p = &models.Preferences{OwnerID: ownerID}
	} else if err != nil {
		return nil, err
	}
	s.cache.set(p)
	return p, nil
}

// SetSendDescription stores the owner's description preference, creating the
// row on first write.
func (s *Service) SetSendDescription(ctx context.Context, ownerID int64, send bool) error {
	now := s.now()
	p := &models.Preferences{
		OwnerID:         ownerID,
		SendDescription: &send,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repomanager.Preferences(s.db).Upsert(ctx, p); err != nil {
		return err
	}
	s.cache.invalidate(ownerID)
	return nil
}
