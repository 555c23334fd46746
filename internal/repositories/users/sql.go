package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/dbx"
	"github.com/dmitrijs2005/heirvault/internal/models"
)

const userColumns = `id, display_name, primary_hash, primary_salt, inheritance_hash, inheritance_salt,
	recovery_seed_hex, principal_key_wrapped, principal_key_nonce, inheritance_key_wrapped,
	inheritance_key_nonce, recovery_key_wrapped, recovery_key_nonce, kdf_iterations, created_at`

// SQLRepository implements Repository over a DBTX for either dialect.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func (r *SQLRepository) Get(ctx context.Context) (*models.UserCredential, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users LIMIT 1`)

	var (
		u       models.UserCredential
		created int64
	)
	err := row.Scan(&u.ID, &u.DisplayName, &u.PrimaryHash, &u.PrimarySalt, &u.InheritanceHash,
		&u.InheritanceSalt, &u.RecoverySeedHex, &u.PrincipalKeyWrapped, &u.PrincipalKeyNonce,
		&u.InheritanceKeyWrapped, &u.InheritanceKeyNonce, &u.RecoveryKeyWrapped, &u.RecoveryKeyNonce,
		&u.KDFIterations, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

func (r *SQLRepository) Create(ctx context.Context, u *models.UserCredential) error {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		return common.ErrUserAlreadyConfigured
	}

	query := r.d.Rebind(`INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.DisplayName, u.PrimaryHash, u.PrimarySalt, u.InheritanceHash, u.InheritanceSalt,
		u.RecoverySeedHex, u.PrincipalKeyWrapped, u.PrincipalKeyNonce, u.InheritanceKeyWrapped,
		u.InheritanceKeyNonce, u.RecoveryKeyWrapped, u.RecoveryKeyNonce, u.KDFIterations,
		u.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *SQLRepository) Update(ctx context.Context, u *models.UserCredential) error {
	query := r.d.Rebind(`UPDATE users SET display_name = ?, primary_hash = ?, primary_salt = ?,
		inheritance_hash = ?, inheritance_salt = ?, recovery_seed_hex = ?,
		principal_key_wrapped = ?, principal_key_nonce = ?,
		inheritance_key_wrapped = ?, inheritance_key_nonce = ?,
		recovery_key_wrapped = ?, recovery_key_nonce = ?, kdf_iterations = ?
		WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		u.DisplayName, u.PrimaryHash, u.PrimarySalt, u.InheritanceHash, u.InheritanceSalt,
		u.RecoverySeedHex, u.PrincipalKeyWrapped, u.PrincipalKeyNonce, u.InheritanceKeyWrapped,
		u.InheritanceKeyNonce, u.RecoveryKeyWrapped, u.RecoveryKeyNonce, u.KDFIterations, u.ID)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return common.ErrorNotFound
	}
	return nil
}

// Delete removes the credential. Only backup restore uses it.
func (r *SQLRepository) Delete(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM users`); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
