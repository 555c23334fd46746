package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/dbx"
	"github.com/dmitrijs2005/heirvault/internal/migrations"
	"github.com/dmitrijs2005/heirvault/internal/models"
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
	require.NoError(t, migrations.Up(context.Background(), db, dbx.SQLite))
	return db
}

func sampleUser() *models.UserCredential {
	return &models.UserCredential{
		ID:                    "u1",
		DisplayName:           "Ana",
		PrimaryHash:           "$argon2id$p",
		PrimarySalt:           "00112233445566778899aabbccddeeff",
		InheritanceHash:       "$argon2id$i",
		InheritanceSalt:       "ffeeddccbbaa99887766554433221100",
		RecoverySeedHex:       "abcd",
		PrincipalKeyWrapped:   "pkw",
		PrincipalKeyNonce:     "pkn",
		InheritanceKeyWrapped: "ikw",
		InheritanceKeyNonce:   "ikn",
		RecoveryKeyWrapped:    "rkw",
		RecoveryKeyNonce:      "rkn",
		KDFIterations:         100000,
		CreatedAt:             time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGet_Empty(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	u, err := r.Get(context.Background())
	require.ErrorIs(t, err, common.ErrorNotFound)
	require.Nil(t, u)
}

func TestCreateGet_RoundTrip(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	in := sampleUser()
	require.NoError(t, r.Create(ctx, in))

	got, err := r.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestCreate_SingletonEnforced(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, sampleUser()))
	other := sampleUser()
	other.ID = "u2"
	require.ErrorIs(t, r.Create(ctx, other), common.ErrUserAlreadyConfigured)
}

func TestUpdate(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	u := sampleUser()
	require.NoError(t, r.Create(ctx, u))

	u.PrimaryHash = "$argon2id$new"
	u.PrincipalKeyWrapped = "rewrapped"
	require.NoError(t, r.Update(ctx, u))

	got, err := r.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "$argon2id$new", got.PrimaryHash)
	assert.Equal(t, "rewrapped", got.PrincipalKeyWrapped)

	u.ID = "missing"
	require.ErrorIs(t, r.Update(ctx, u), common.ErrorNotFound)
}

func TestDelete(t *testing.T) {
	r := NewSQLRepository(setupDB(t), dbx.SQLite)
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, sampleUser()))
	require.NoError(t, r.Delete(ctx))
	_, err := r.Get(ctx)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgres_CreateUsesNumberedPlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewSQLRepository(db, dbx.Postgres)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO users .*VALUES \(\$1, \$2, .*\$15\)`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, r.Create(context.Background(), sampleUser()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestErrorsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewSQLRepository(db, dbx.Postgres)
	ctx := context.Background()
	boom := errors.New("connection reset")

	mock.ExpectQuery(`SELECT .* FROM users`).WillReturnError(boom)
	_, err = r.Get(ctx)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to get user")

	mock.ExpectQuery(`SELECT COUNT`).WillReturnError(boom)
	err = r.Create(ctx, sampleUser())
	assert.Contains(t, err.Error(), "failed to count users")

	mock.ExpectExec(`UPDATE users`).WillReturnError(boom)
	err = r.Update(ctx, sampleUser())
	assert.Contains(t, err.Error(), "failed to update user")

	mock.ExpectExec(`DELETE FROM users`).WillReturnError(boom)
	err = r.Delete(ctx)
	assert.Contains(t, err.Error(), "failed to delete user")

	require.NoError(t, mock.ExpectationsWereMet())
}
