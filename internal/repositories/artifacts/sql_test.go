package artifacts

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/dbx"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/testutil/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T, d dbx.Dialect) (*SQLRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewSQLRepository(db, d), mock, db
}

func artifact(id string, created time.Time, size int64) *models.Artifact {
	return &models.Artifact{
		ID:               id,
		OwnerID:          42,
		SourceURL:        "https://youtu.be/" + id,
		Title:            "clip " + id,
		RequestedQuality: "best",
		ResolvedQuality:  "1920x1080 (1080p)",
		Format:           "mp4",
		Codec:            "avc1",
		SourcePlatform:   "Youtube",
		FileSize:         size,
		ProcessingTime:   12 * time.Second,
		FilePath:         "/storage/videos/" + id + ".mp4",
		ThumbnailPath:    "/storage/thumbnails/" + id + ".jpg",
		CreatedAt:        created,
		ExpiresAt:        created.Add(72 * time.Hour),
	}
}

func TestUpsert_PostgresPlaceholders(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	created := time.Unix(1_700_000_000, 0)
	a := artifact("abc", created, 100)
	a.Codec = ""

	q := regexp.QuoteMeta(`VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`) +
		`\s+ON CONFLICT \(video_id\) DO UPDATE SET`
	mock.ExpectExec(q).
		WithArgs("abc", int64(42), a.SourceURL, a.Title, "best", "1920x1080 (1080p)", "mp4", nil,
			"Youtube", int64(100), int64(12), a.FilePath, a.ThumbnailPath, created.Unix(), a.ExpiresAt.Unix()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Upsert(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.SQLite)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO videos`).WillReturnError(errors.New("disk I/O error"))

	err := repo.Upsert(context.Background(), artifact("abc", time.Unix(10, 0), 1))
	require.Error(t, err)
	assert.Regexp(t, `upsert artifact abc: .*disk I/O error`, err.Error())
}

func TestDelete_RowsAffectedError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.SQLite)
	defer db.Close()

	a := artifact("abc", time.Unix(100, 0), 1)
	mock.ExpectExec(`DELETE FROM videos WHERE video_id = \? AND created_at = \? AND expires_at = \?`).
		WithArgs("abc", int64(100), a.ExpiresAt.Unix()).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("rows-err")))

	err := repo.Delete(context.Background(), a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rows affected error")
}

func TestListExpired_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.Postgres)
	defer db.Close()

	now := time.Unix(500, 0)
	mock.ExpectQuery(`FROM videos WHERE expires_at <= \$1 ORDER BY expires_at ASC, video_id ASC`).
		WithArgs(int64(500)).
		WillReturnError(errors.New("conn closed"))

	_, err := repo.ListExpired(context.Background(), now)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListOldestFirst_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t, dbx.SQLite)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"video_id"}).AddRow("only-one-column")
	mock.ExpectQuery(`ORDER BY created_at ASC, video_id ASC`).WillReturnRows(rows)

	_, err := repo.ListOldestFirst(context.Background())
	require.Error(t, err)
}

func TestSQLite_UpsertKeepsRowCount(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(sqlitetest.Open(t), dbx.SQLite)

	created := time.Unix(1_700_000_000, 0)
	require.NoError(t, repo.Upsert(ctx, artifact("abc", created, 100)))

	again := artifact("abc", created.Add(time.Hour), 250)
	again.RequestedQuality = "audio"
	again.Format = "mp3"
	again.Codec = ""
	again.ThumbnailPath = ""
	require.NoError(t, repo.Upsert(ctx, again))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.FileSize)
	assert.Equal(t, "audio", got.RequestedQuality)
	assert.Equal(t, "", got.Codec)
	assert.Equal(t, "", got.ThumbnailPath)
	assert.Equal(t, created.Add(time.Hour).Unix(), got.CreatedAt.Unix())
	assert.Equal(t, 12*time.Second, got.ProcessingTime)
}

func TestSQLite_GetDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(sqlitetest.Open(t), dbx.SQLite)

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, artifact("missing", time.Unix(10, 0), 1)), common.ErrNotFound)

	a := artifact("abc", time.Unix(10, 0), 1)
	require.NoError(t, repo.Upsert(ctx, a))
	require.NoError(t, repo.Delete(ctx, a))
	_, err = repo.Get(ctx, "abc")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLite_DeleteSkipsRefreshedRow(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(sqlitetest.Open(t), dbx.SQLite)

	listed := artifact("abc", time.Unix(1_700_000_000, 0), 100)
	require.NoError(t, repo.Upsert(ctx, listed))
	require.NoError(t, repo.Upsert(ctx, artifact("abc", listed.CreatedAt.Add(time.Minute), 250)))

	assert.ErrorIs(t, repo.Delete(ctx, listed), common.ErrNotFound)

	got, err := repo.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.FileSize)
}

func TestSQLite_ListExpiredInclusiveBoundary(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(sqlitetest.Open(t), dbx.SQLite)

	base := time.Unix(1_700_000_000, 0)
	a := artifact("a", base, 1)
	b := artifact("b", base.Add(time.Hour), 1)
	require.NoError(t, repo.Upsert(ctx, a))
	require.NoError(t, repo.Upsert(ctx, b))

	got, err := repo.ListExpired(ctx, a.ExpiresAt.Add(-time.Second))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.ListExpired(ctx, a.ExpiresAt)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	got, err = repo.ListExpired(ctx, b.ExpiresAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLite_ListOldestFirstTieBreak(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(sqlitetest.Open(t), dbx.SQLite)

	base := time.Unix(1_700_000_000, 0)
	for _, a := range []*models.Artifact{
		artifact("zzz", base, 1),
		artifact("newest", base.Add(time.Hour), 1),
		artifact("aaa", base, 1),
		artifact("oldest", base.Add(-time.Hour), 1),
	} {
		require.NoError(t, repo.Upsert(ctx, a))
	}

	got, err := repo.ListOldestFirst(ctx)
	require.NoError(t, err)
	var ids []string
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"oldest", "aaa", "zzz", "newest"}, ids)
}

func TestSQLite_OwnerUsageAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLRepository(sqlitetest.Open(t), dbx.SQLite)

	base := time.Unix(1_700_000_000, 0)
	require.NoError(t, repo.Upsert(ctx, artifact("a", base, 100)))
	require.NoError(t, repo.Upsert(ctx, artifact("b", base.Add(time.Minute), 50)))
	other := artifact("c", base, 7)
	other.OwnerID = 1
	require.NoError(t, repo.Upsert(ctx, other))

	count, bytes, err := repo.OwnerUsage(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, int64(150), bytes)

	count, bytes, err = repo.OwnerUsage(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Zero(t, bytes)

	list, err := repo.ListByOwner(ctx, 42, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b", list[0].ID)
}
