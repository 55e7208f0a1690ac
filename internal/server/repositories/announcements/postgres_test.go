package announcements

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/annfeed/internal/server/models"
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

var (
	selectIDsQuery = regexp.QuoteMeta(`SELECT external_id FROM announcements WHERE game = $1 AND language = $2`)
	insertQuery    = `INSERT INTO announcements \(uuid, game, language, external_id, .*\) VALUES \(.*\) ON CONFLICT \(game, language, external_id\) DO UPDATE SET .* RETURNING id`
	updateQuery    = `UPDATE announcements SET .* WHERE game = \$1 AND language = \$2 AND external_id = \$3 AND content_hash IS DISTINCT FROM \$11`
	activeQuery    = `SELECT id, uuid, external_id, .* FROM announcements WHERE game = \$1 AND language = \$2 AND end_time > \$3 ORDER BY start_time DESC NULLS LAST, id`
)

func record() *models.Announcement {
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &models.Announcement{
		UUID:        "4e2b9d6c-0000-3000-8000-000000000000",
		Game:        "genshin",
		Language:    "en",
		ExternalID:  "A1",
		Title:       "Spring Event",
		Content:     "{}",
		StartTime:   &start,
		EndTime:     &end,
		Category:    models.CategoryEvent,
		ContentHash: []byte{1, 2, 3},
	}
}

func TestSelectExternalIDs_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectIDsQuery).
		WithArgs("genshin", "en").
		WillReturnRows(sqlmock.NewRows([]string{"external_id"}).AddRow("A1").AddRow("A2"))

	got, err := repo.SelectExternalIDs(context.Background(), "genshin", "en")
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"A1": {}, "A2": {}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectExternalIDs_QueryError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(selectIDsQuery).WithArgs("genshin", "en").WillReturnError(errors.New("db is down"))

	_, err := repo.SelectExternalIDs(context.Background(), "genshin", "en")
	require.Error(t, err)
	assert.Regexp(t, `db error: .*db is down`, err.Error())
}

func TestSelectExternalIDs_RowsErr(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"external_id"}).AddRow("A1").AddRow("A2").RowError(1, errors.New("row-err"))
	mock.ExpectQuery(selectIDsQuery).WithArgs("genshin", "en").WillReturnRows(rows)

	_, err := repo.SelectExternalIDs(context.Background(), "genshin", "en")
	assert.EqualError(t, err, "row-err")
}

func TestInsert_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := record()
	mock.ExpectQuery(insertQuery).
		WithArgs(a.UUID, "genshin", "en", "A1", "Spring Event", "{}", "",
			*a.StartTime, *a.EndTime, "event", []byte{1, 2, 3}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

	require.NoError(t, repo.Insert(context.Background(), a))
	assert.Equal(t, int64(42), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_NullTimes(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	a := record()
	a.StartTime, a.EndTime = nil, nil
	mock.ExpectQuery(insertQuery).
		WithArgs(a.UUID, "genshin", "en", "A1", "Spring Event", "{}", "", nil, nil, "event", []byte{1, 2, 3}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	require.NoError(t, repo.Insert(context.Background(), a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(insertQuery).WillReturnError(errors.New("duplicate key"))

	err := repo.Insert(context.Background(), record())
	require.Error(t, err)
	assert.Regexp(t, `db error: .*duplicate key`, err.Error())
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name    string
		result  sql.Result
		execErr error
		want    bool
		wantErr string
	}{
		{name: "rewritten", result: sqlmock.NewResult(0, 1), want: true},
		{name: "unchanged hash", result: sqlmock.NewResult(0, 0), want: false},
		{name: "exec error", execErr: errors.New("db is down"), wantErr: `db error: .*db is down`},
		{name: "rows affected error", result: sqlmock.NewErrorResult(errors.New("rows-err")), wantErr: `rows affected error: .*rows-err`},
		{name: "more than one row", result: sqlmock.NewResult(0, 2), wantErr: `unexpected rows affected: 2`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock, db := newRepoWithMock(t)
			defer db.Close()

			a := record()
			exp := mock.ExpectExec(updateQuery).
				WithArgs("genshin", "en", "A1", a.UUID, "Spring Event", "{}", "",
					sqlmock.AnyArg(), sqlmock.AnyArg(), "event", []byte{1, 2, 3})
			if tt.execErr != nil {
				exp.WillReturnError(tt.execErr)
			} else {
				exp.WillReturnResult(tt.result)
			}

			got, err := repo.Update(context.Background(), a)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Regexp(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadActive_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	created := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "uuid", "external_id", "title", "content", "banner_image", "start_time", "end_time",
		"category", "created_at", "updated_at",
	}).
		AddRow(int64(1), "u1", "A1", "Spring Event", "{}", "https://img", start, end, "event", created, created).
		AddRow(int64(2), "u2", "A2", "Open Banner", "{}", "", nil, end, "gacha", created, created)

	mock.ExpectQuery(activeQuery).WithArgs("genshin", "en", now).WillReturnRows(rows)

	got, err := repo.ReadActive(context.Background(), "genshin", "en", now)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "A1", got[0].ExternalID)
	assert.Equal(t, "genshin", got[0].Game)
	require.NotNil(t, got[0].StartTime)
	assert.True(t, start.Equal(*got[0].StartTime))
	assert.Equal(t, models.CategoryEvent, got[0].Category)

	assert.Nil(t, got[1].StartTime)
	assert.Equal(t, models.CategoryGacha, got[1].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadActive_ScanError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id"}).AddRow(int64(1))
	mock.ExpectQuery(activeQuery).WithArgs("genshin", "en", now).WillReturnRows(rows)

	_, err := repo.ReadActive(context.Background(), "genshin", "en", now)
	require.Error(t, err)
	assert.Regexp(t, `scan error`, err.Error())
}
