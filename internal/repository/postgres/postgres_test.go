package postgres_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webharvest/internal/domain/entity"
	"webharvest/internal/repository"
	pg "webharvest/internal/repository/postgres"
)

func recordRow(r *entity.Record) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "source", "url", "title", "content", "price",
		"image_url", "author", "category", "timestamp", "metadata",
	}).AddRow(
		r.ID, r.Source, r.URL, r.Title, r.Content, r.Price,
		r.ImageURL, r.Author, r.Category, r.Timestamp, []byte(`{}`),
	)
}

func TestRepo_Save_UpsertsEachRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	now := time.Now().UTC()
	rec := &entity.Record{ID: "r1", Source: "example", URL: "https://example.com/a", Title: "A", Timestamp: now}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO scraped_data")).
		WithArgs(rec.ID, rec.Source, rec.URL, rec.Title, rec.Content, rec.Price,
			rec.ImageURL, rec.Author, rec.Category, rec.Timestamp, []byte("null")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := pg.New(db)
	n, err := repo.Save(context.Background(), []*entity.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Save_EmptyBatchNoOp(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := pg.New(db)
	n, err := repo.Save(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_List_ReturnsRecords(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	want := &entity.Record{ID: "r1", Source: "example", URL: "https://example.com/a", Title: "A", Timestamp: time.Now().UTC()}
	mock.ExpectQuery("FROM scraped_data").WillReturnRows(recordRow(want))

	repo := pg.New(db)
	got, err := repo.List(context.Background(), repository.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want.ID, got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Count(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM scraped_data")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	repo := pg.New(db)
	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), count)
}

func TestRepo_Clear(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM scraped_data")).WillReturnResult(sqlmock.NewResult(0, 5))

	repo := pg.New(db)
	require.NoError(t, repo.Clear(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
