package refreshstates

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/annfeed/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	getQuery       = `SELECT last_refresh_at, last_refresh_succeeded FROM refresh_states WHERE game = \$1 AND language = \$2`
	listQuery      = `SELECT game, language, last_refresh_at, last_refresh_succeeded FROM refresh_states ORDER BY game, language`
	succeededQuery = `INSERT INTO refresh_states .* VALUES \(\$1, \$2, \$3, TRUE\) ON CONFLICT \(game, language\) DO UPDATE SET last_refresh_at = EXCLUDED\.last_refresh_at`
	failedQuery    = `INSERT INTO refresh_states .* VALUES \(\$1, \$2, FALSE\) ON CONFLICT \(game, language\) DO UPDATE SET last_refresh_succeeded = FALSE`
)

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(getQuery).WithArgs("genshin", "en").
		WillReturnRows(sqlmock.NewRows([]string{"last_refresh_at", "last_refresh_succeeded"}).AddRow(at, true))

	s, err := repo.Get(context.Background(), "genshin", "en")
	require.NoError(t, err)
	require.NotNil(t, s.LastRefreshAt)
	assert.True(t, at.Equal(*s.LastRefreshAt))
	assert.True(t, s.LastRefreshSucceeded)
	assert.Equal(t, "genshin", s.Game)
}

func TestGet_NullTime(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQuery).WithArgs("genshin", "en").
		WillReturnRows(sqlmock.NewRows([]string{"last_refresh_at", "last_refresh_succeeded"}).AddRow(nil, false))

	s, err := repo.Get(context.Background(), "genshin", "en")
	require.NoError(t, err)
	assert.Nil(t, s.LastRefreshAt)
	assert.False(t, s.LastRefreshSucceeded)
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQuery).WithArgs("genshin", "en").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "genshin", "en")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGet_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(getQuery).WithArgs("genshin", "en").WillReturnError(errors.New("db is down"))

	_, err := repo.Get(context.Background(), "genshin", "en")
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorNotFound)
	assert.Regexp(t, `db error: .*db is down`, err.Error())
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(listQuery).WillReturnRows(
		sqlmock.NewRows([]string{"game", "language", "last_refresh_at", "last_refresh_succeeded"}).
			AddRow("genshin", "en", at, true).
			AddRow("genshin", "ja", nil, false))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.NotNil(t, got[0].LastRefreshAt)
	assert.Nil(t, got[1].LastRefreshAt)
	assert.Equal(t, "ja", got[1].Language)
}

func TestMarkSucceeded(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(succeededQuery).WithArgs("genshin", "en", at).WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSucceeded(context.Background(), "genshin", "en", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSucceeded_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(succeededQuery).WillReturnError(errors.New("boom"))

	err := repo.MarkSucceeded(context.Background(), "genshin", "en", time.Now())
	require.Error(t, err)
	assert.Regexp(t, `db error: .*boom`, err.Error())
}

func TestMarkFailed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(failedQuery).WithArgs("genshin", "en").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkFailed(context.Background(), "genshin", "en"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
