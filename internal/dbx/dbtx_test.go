package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY, v TEXT)`)
	require.NoError(t, err)
	return db
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n))
	return n
}

func TestWithTx_Commit(t *testing.T) {
	db := setupDB(t)
	err := WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('ok')`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("boom")
	err := WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
		_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('fail')`)
		require.NoError(t, e)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db))
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	db := setupDB(t)
	require.Panics(t, func() {
		_ = WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error {
			_, e := tx.ExecContext(ctx, `INSERT INTO t(v) VALUES ('panic')`)
			require.NoError(t, e)
			panic("kaput")
		})
	})
	assert.Equal(t, 0, countRows(t, db))
}

func TestWithTx_BeginAndCommitErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	noConn := errors.New("no conn")
	mock.ExpectBegin().WillReturnError(noConn)
	err = WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error { return nil })
	require.ErrorIs(t, err, noConn)
	assert.Contains(t, err.Error(), "begin tx")

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))
	err = WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error { return nil })
	require.EqualError(t, err, "commit tx: commit failed")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollbackError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectBegin()
	mock.ExpectRollback().WillReturnError(errors.New("conn reset"))
	err = WithTx(context.Background(), db, func(ctx context.Context, tx DBTX) error { return boom })
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rollback tx: conn reset")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRebind(t *testing.T) {
	tests := []struct {
		d    Dialect
		in   string
		want string
	}{
		{SQLite, `SELECT * FROM x WHERE a = ? AND b = ?`, `SELECT * FROM x WHERE a = ? AND b = ?`},
		{Postgres, `SELECT * FROM x WHERE a = ? AND b = ?`, `SELECT * FROM x WHERE a = $1 AND b = $2`},
		{Postgres, `UPDATE x SET v = '?' WHERE id = ?`, `UPDATE x SET v = '?' WHERE id = $1`},
		{Postgres, `DELETE FROM x`, `DELETE FROM x`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.Rebind(tt.in))
	}
}

func TestDialectFromDSN(t *testing.T) {
	assert.Equal(t, Postgres, DialectFromDSN("postgres://u:p@localhost/db"))
	assert.Equal(t, Postgres, DialectFromDSN("postgresql://localhost/db"))
	assert.Equal(t, SQLite, DialectFromDSN("vault.db"))
	assert.Equal(t, SQLite, DialectFromDSN("file::memory:?cache=shared"))

	assert.Equal(t, "pgx", Postgres.Driver())
	assert.Equal(t, "sqlite", SQLite.Driver())
	assert.Equal(t, "pgx", Postgres.Goose())
	assert.Equal(t, "sqlite3", SQLite.Goose())
}
