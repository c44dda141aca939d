package pgstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kisan-mitra/api/internal/diagnose"
	"kisan-mitra/api/internal/history"
)

func newMock(t *testing.T) (*Repo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestMigrate(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec("create table if not exists diagnosis_history").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoad(t *testing.T) {
	repo, mock := newMock(t)
	rows := sqlmock.NewRows([]string{"entries"}).
		AddRow([]byte(`[{"id":2,"issueName":"Rust","date":"01/02/2024","image":"img"}]`))
	mock.ExpectQuery(`select entries from diagnosis_history where storage_key = \$1`).
		WithArgs("diagnosisHistory:c1").
		WillReturnRows(rows)

	got, err := repo.Load(context.Background(), "diagnosisHistory:c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, history.Entry{ID: 2, IssueName: "Rust", Date: "01/02/2024", Image: "img"}, got[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadMissingAndCorrupt(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("select entries").
		WithArgs("k1").
		WillReturnRows(sqlmock.NewRows([]string{"entries"}))
	mock.ExpectQuery("select entries").
		WithArgs("k2").
		WillReturnRows(sqlmock.NewRows([]string{"entries"}).AddRow([]byte(`{broken`)))

	got, err := repo.Load(context.Background(), "k1")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = repo.Load(context.Background(), "k2")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadError(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("select entries").WillReturnError(errors.New("conn reset"))

	_, err := repo.Load(context.Background(), "k")
	assert.EqualError(t, err, "conn reset")
}

func TestStoreRecordUpserts(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("select entries").
		WithArgs("diagnosisHistory:tg:7").
		WillReturnRows(sqlmock.NewRows([]string{"entries"}))
	mock.ExpectExec(`insert into diagnosis_history`).
		WithArgs("diagnosisHistory:tg:7", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := history.New(repo)
	e, err := s.Record(context.Background(), "tg:7", diagnose.Result{IssueName: "Leaf Spot"}, "img")
	require.NoError(t, err)
	assert.Equal(t, "Leaf Spot", e.IssueName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectExec(`delete from diagnosis_history where storage_key = \$1`).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
