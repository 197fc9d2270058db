package retention

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/catalog"
	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/filex"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/repomanager"
	"github.com/dmitrijs2005/vidkeeper/internal/testutil/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gb = int64(1) << 30

var t0 = time.Unix(1_700_000_000, 0)

// memCatalog tracks sizes only, so quotas in gigabytes can be simulated.
type memCatalog struct {
	items      []*models.Artifact
	destroyed  []string
	destroyErr map[string]error
}

func (m *memCatalog) Expired(_ context.Context, now time.Time) ([]*models.Artifact, error) {
	var out []*models.Artifact
	for _, a := range m.items {
		if a.Expired(now) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memCatalog) OldestFirst(context.Context) ([]*models.Artifact, error) {
	return append([]*models.Artifact(nil), m.items...), nil
}

func (m *memCatalog) Destroy(_ context.Context, a *models.Artifact) (int64, error) {
	if err := m.destroyErr[a.ID]; err != nil {
		return 0, err
	}
	for i, it := range m.items {
		if it.ID == a.ID {
			m.items = append(m.items[:i], m.items[i+1:]...)
			m.destroyed = append(m.destroyed, a.ID)
			return a.FileSize, nil
		}
	}
	return 0, common.ErrNotFound
}

func (m *memCatalog) usage() (int64, error) {
	var n int64
	for _, a := range m.items {
		n += a.FileSize
	}
	return n, nil
}

func artifact(id string, size int64, age time.Duration) *models.Artifact {
	return &models.Artifact{
		ID: id, FileSize: size, Title: id,
		CreatedAt: t0.Add(-age),
		ExpiresAt: t0.Add(time.Hour),
	}
}

func newEngine(cat Catalog, usage UsageFunc, ceiling int64) *Engine {
	e := New(cat, usage, Config{MaxStorageBytes: ceiling, Interval: time.Hour, ErrorInterval: 5 * time.Minute}, logging.Discard())
	e.now = func() time.Time { return t0 }
	return e
}

func TestRunOnce_FiveGBCeilingThreeTwoGBArtifactsEvictsOne(t *testing.T) {
	cat := &memCatalog{items: []*models.Artifact{
		artifact("a", 2*gb, 3*time.Hour),
		artifact("b", 2*gb, 2*time.Hour),
		artifact("c", 2*gb, time.Hour),
	}}
	e := newEngine(cat, cat.usage, 5*gb)

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, cat.destroyed)
	assert.Equal(t, 1, res.Evicted)
	assert.Equal(t, 6*gb, res.UsageBefore)
	assert.Equal(t, 4*gb, res.UsageAfter)
	assert.Equal(t, 2*gb, res.Freed)
	assert.LessOrEqual(t, float64(res.UsageAfter), 0.9*float64(5*gb))
}

func TestRunOnce_EvictsUntilNinetyPercent(t *testing.T) {
	cat := &memCatalog{items: []*models.Artifact{
		artifact("old", 1*gb, 5*time.Hour),
		artifact("mid", 1*gb, 4*time.Hour),
		artifact("new", 1*gb, 3*time.Hour),
		artifact("newest", 1*gb, 2*time.Hour),
	}}
	// 4 GB against a 3 GB ceiling: target 2.7 GB needs two removals
	e := newEngine(cat, cat.usage, 3*gb)

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "mid"}, cat.destroyed)
	assert.Equal(t, 2, res.Evicted)
}

func TestRunOnce_UnderQuotaEvictsNothing(t *testing.T) {
	cat := &memCatalog{items: []*models.Artifact{artifact("a", 2*gb, time.Hour)}}
	e := newEngine(cat, cat.usage, 5*gb)

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cat.destroyed)
	assert.Equal(t, &Result{UsageBefore: 2 * gb, UsageAfter: 2 * gb}, res)
}

func TestRunOnce_OverQuotaWithEmptyCatalogOnlyWarns(t *testing.T) {
	cat := &memCatalog{}
	e := newEngine(cat, func() (int64, error) { return 6 * gb, nil }, 5*gb)

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Evicted)
	assert.Equal(t, 6*gb, res.UsageAfter)
}

func TestRunOnce_EvictionErrorsAreCountedAndSkipped(t *testing.T) {
	cat := &memCatalog{
		items: []*models.Artifact{
			artifact("stuck", 2*gb, 3*time.Hour),
			artifact("b", 2*gb, 2*time.Hour),
			artifact("c", 2*gb, time.Hour),
		},
		destroyErr: map[string]error{"stuck": errors.New("permission denied")},
	}
	e := newEngine(cat, cat.usage, 5*gb)

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Equal(t, []string{"b"}, cat.destroyed)
}

func TestRunOnce_UsageErrorFailsCycle(t *testing.T) {
	e := newEngine(&memCatalog{}, func() (int64, error) { return 0, errors.New("stat /storage: no such file") }, gb)

	_, err := e.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "measure storage")
}

func TestRunOnce_ExpiredSweepIgnoresQuota(t *testing.T) {
	expired := artifact("gone", 10, time.Hour)
	expired.ExpiresAt = t0
	cat := &memCatalog{items: []*models.Artifact{expired, artifact("kept", 10, time.Hour)}}
	e := newEngine(cat, cat.usage, gb)

	res, err := e.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"gone"}, cat.destroyed)
	assert.Equal(t, 1, res.Expired)
	assert.Zero(t, res.Evicted)
}

// catalogFixture runs the engine against the real catalog and storage layout.
type catalogFixture struct {
	layout filex.Layout
	svc    *catalog.Service
	rm     *repomanager.SQLRepositoryManager
	db     *sql.DB
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	layout := filex.NewLayout(t.TempDir())
	require.NoError(t, layout.Ensure())
	db := sqlitetest.Open(t)
	rm := repomanager.NewSQLRepositoryManager(dbx.SQLite)
	svc := catalog.NewService(db, rm, logging.Discard(), catalog.WithClock(func() time.Time { return t0 }))
	return &catalogFixture{layout: layout, svc: svc, rm: rm, db: db}
}

func (f *catalogFixture) add(t *testing.T, id string, size int, created, expires time.Time) *models.Artifact {
	t.Helper()
	a := &models.Artifact{
		ID: id, OwnerID: 3, SourceURL: "https://youtu.be/" + id, Title: id,
		RequestedQuality: "best", Format: "mp4",
		FilePath:      f.layout.VideoPath(id, "mp4"),
		ThumbnailPath: f.layout.ThumbnailPath(id),
		FileSize:      int64(size),
		CreatedAt:     created,
		ExpiresAt:     expires,
	}
	require.NoError(t, os.WriteFile(a.FilePath, make([]byte, size), 0o644))
	require.NoError(t, os.WriteFile(a.ThumbnailPath, []byte{0xff}, 0o644))
	require.NoError(t, f.svc.Ingest(context.Background(), a))
	return a
}

func (f *catalogFixture) actions(t *testing.T, id string) []string {
	t.Helper()
	entries, err := f.rm.AuditLog(f.db).ListByArtifact(context.Background(), id)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestRunOnce_ExpiredArtifactRemovedWithOneDeleteEntry(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t)
	old := f.add(t, "old", 100, t0.Add(-73*time.Hour), t0.Add(-time.Hour))
	f.add(t, "fresh", 100, t0.Add(-time.Hour), t0.Add(71*time.Hour))

	e := newEngine(f.svc, f.layout.Usage, 1<<20)
	res, err := e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, int64(101), res.Freed)

	assert.NoFileExists(t, old.FilePath)
	assert.NoFileExists(t, old.ThumbnailPath)
	_, err = f.svc.Get(ctx, "old")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, []string{common.ActionDownload, common.ActionDelete}, f.actions(t, "old"))

	// a second cycle finds nothing more to do
	res, err = e.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
	assert.Equal(t, []string{common.ActionDownload, common.ActionDelete}, f.actions(t, "old"))
}

func TestRunOnce_QuotaOnRealFilesystem(t *testing.T) {
	ctx := context.Background()
	f := newCatalogFixture(t)
	far := t0.Add(72 * time.Hour)
	oldest := f.add(t, "a", 199, t0.Add(-3*time.Hour), far)
	f.add(t, "b", 199, t0.Add(-2*time.Hour), far)
	f.add(t, "c", 199, t0.Add(-time.Hour), far)

	// 600 bytes on disk against 500: target 450, one eviction suffices
	e := newEngine(f.svc, f.layout.Usage, 500)
	res, err := e.RunOnce(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Evicted)
	assert.Equal(t, int64(600), res.UsageBefore)
	assert.Equal(t, int64(400), res.UsageAfter)
	assert.NoFileExists(t, oldest.FilePath)

	n, err := f.svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStartStop(t *testing.T) {
	cat := &memCatalog{}
	runs := make(chan struct{}, 1)
	e := newEngine(cat, func() (int64, error) {
		select {
		case runs <- struct{}{}:
		default:
		}
		return 0, nil
	}, gb)

	e.Start(context.Background())
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("first cycle did not run")
	}
	e.Stop()
	e.Stop()
}

func TestStartStop_Concurrent(t *testing.T) {
	e := newEngine(&memCatalog{}, func() (int64, error) { return 0, nil }, gb)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			e.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			e.Stop()
		}()
	}
	wg.Wait()
	e.Stop()

	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	assert.Nil(t, e.cancel)
	assert.Nil(t, e.done)
}
