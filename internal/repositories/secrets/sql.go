package secrets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/common"
	"github.com/dmitrijs2005/heirvault/internal/dbx"
	"github.com/dmitrijs2005/heirvault/internal/models"
)

const columns = `id, kind, title, ciphertext, nonce, created_at, modified_at, category_id, compartment_name, blob_name`

// SQLRepository implements Repository over a DBTX.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

// CreateOrUpdate upserts a record by id. created_at is kept from the first
// insert.
func (r *SQLRepository) CreateOrUpdate(ctx context.Context, s *models.SecretRecord) error {
	query := r.d.Rebind(`INSERT INTO secrets (` + columns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET kind = excluded.kind,
			title = excluded.title,
			ciphertext = excluded.ciphertext,
			nonce = excluded.nonce,
			modified_at = excluded.modified_at,
			category_id = excluded.category_id,
			compartment_name = excluded.compartment_name,
			blob_name = excluded.blob_name`)
	_, err := r.db.ExecContext(ctx, query,
		s.ID, string(s.Kind), s.Title, s.Ciphertext, s.Nonce,
		s.CreatedAt.UnixNano(), s.ModifiedAt.UnixNano(), s.CategoryID, s.CompartmentName, s.BlobName)
	if err != nil {
		return fmt.Errorf("failed to upsert secret: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetByID(ctx context.Context, id string) (*models.SecretRecord, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+columns+` FROM secrets WHERE id = ?`), id)
	s, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	return s, nil
}

// ListByCompartment returns the records of one compartment, newest first.
func (r *SQLRepository) ListByCompartment(ctx context.Context, compartment string, f models.SecretFilter) ([]models.SecretRecord, error) {
	where := []string{"compartment_name = ?"}
	args := []any{compartment}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if f.TitleSubstr != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.TitleSubstr)+"%")
	}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	query := `SELECT ` + columns + ` FROM secrets WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY modified_at DESC, id`
	return r.list(ctx, r.d.Rebind(query), args...)
}

func (r *SQLRepository) ListAll(ctx context.Context) ([]models.SecretRecord, error) {
	return r.list(ctx, `SELECT `+columns+` FROM secrets ORDER BY created_at, id`)
}

func (r *SQLRepository) CountByKind(ctx context.Context, compartment string) ([]models.KindCount, error) {
	rows, err := r.db.QueryContext(ctx,
		r.d.Rebind(`SELECT kind, COUNT(*) FROM secrets WHERE compartment_name = ? GROUP BY kind ORDER BY kind`),
		compartment)
	if err != nil {
		return nil, fmt.Errorf("failed to count secrets: %w", err)
	}
	defer rows.Close()

	var result []models.KindCount
	for rows.Next() {
		var (
			kind string
			kc   models.KindCount
		)
		if err := rows.Scan(&kind, &kc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		kc.Kind = models.EntryType(kind)
		result = append(result, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate count rows: %w", err)
	}
	return result, nil
}

// DeleteByID removes one record. It expects exactly one row to be affected.
func (r *SQLRepository) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.d.Rebind(`DELETE FROM secrets WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM secrets`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete secrets: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra, nil
}

func (r *SQLRepository) list(ctx context.Context, query string, args ...any) ([]models.SecretRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select secrets: %w", err)
	}
	defer rows.Close()

	var result []models.SecretRecord
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan secret row: %w", err)
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate secret rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(sc scanner) (*models.SecretRecord, error) {
	var (
		s                 models.SecretRecord
		kind              string
		created, modified int64
		category          sql.NullString
	)
	err := sc.Scan(&s.ID, &kind, &s.Title, &s.Ciphertext, &s.Nonce, &created, &modified,
		&category, &s.CompartmentName, &s.BlobName)
	if err != nil {
		return nil, err
	}
	s.Kind = models.EntryType(kind)
	s.CreatedAt = time.Unix(0, created).UTC()
	s.ModifiedAt = time.Unix(0, modified).UTC()
	if category.Valid {
		s.CategoryID = &category.String
	}
	return &s, nil
}
