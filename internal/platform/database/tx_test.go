package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestRunInTxCommits(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewTxRunner(db).RunInTx(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE users SET xp = 1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := NewTxRunner(db).RunInTx(context.Background(), func(tx *sql.Tx) error {
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewTxRunner(db).RunInTx(context.Background(), func(tx *sql.Tx) error {
			panic("kaboom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxBeginFailure(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("no connection"))

	called := false
	err := NewTxRunner(db).RunInTx(context.Background(), func(tx *sql.Tx) error {
		called = true
		return nil
	})

	assert.Error(t, err)
	assert.False(t, called)
}

func TestSeedBadgesIsIdempotentInsert(t *testing.T) {
	db, mock := newMock(t)
	for i := range BadgeCatalog {
		rows := int64(1)
		if i%2 == 0 {
			rows = 0
		}
		mock.ExpectExec("INSERT INTO badges").
			WithArgs(sqlmock.AnyArg(), BadgeCatalog[i].Code, BadgeCatalog[i].Name, BadgeCatalog[i].Description, BadgeCatalog[i].Icon).
			WillReturnResult(sqlmock.NewResult(0, rows))
	}

	require.NoError(t, SeedBadges(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}
