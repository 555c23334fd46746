package compartments

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

const columns = `name, compartment_id, wrapped_key, wrap_nonce, description, created_at`

// SQLRepository implements Repository over a DBTX.
type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func (r *SQLRepository) Create(ctx context.Context, c *models.Compartment) error {
	var n int
	err := r.db.QueryRowContext(ctx,
		r.d.Rebind(`SELECT COUNT(*) FROM compartments WHERE name = ? OR compartment_id = ?`),
		c.Name, c.CompartmentID).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to check compartment: %w", err)
	}
	if n > 0 {
		return common.ErrCompartmentNameCollision
	}

	_, err = r.db.ExecContext(ctx,
		r.d.Rebind(`INSERT INTO compartments (`+columns+`) VALUES (?, ?, ?, ?, ?, ?)`),
		c.Name, c.CompartmentID, c.WrappedKey, c.WrapNonce, c.Description, c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert compartment: %w", err)
	}
	return nil
}

func (r *SQLRepository) GetByName(ctx context.Context, name string) (*models.Compartment, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+columns+` FROM compartments WHERE name = ?`), name)
	return scanOne(row, "name "+name)
}

func (r *SQLRepository) GetByCompartmentID(ctx context.Context, id string) (*models.Compartment, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+columns+` FROM compartments WHERE compartment_id = ?`), id)
	return scanOne(row, "id "+id)
}

func (r *SQLRepository) List(ctx context.Context) ([]models.Compartment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+columns+` FROM compartments ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list compartments: %w", err)
	}
	defer rows.Close()

	var result []models.Compartment
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compartment row: %w", err)
		}
		result = append(result, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate compartment rows: %w", err)
	}
	return result, nil
}

func (r *SQLRepository) UpdateWrap(ctx context.Context, name, wrappedKey, wrapNonce string) error {
	res, err := r.db.ExecContext(ctx,
		r.d.Rebind(`UPDATE compartments SET wrapped_key = ?, wrap_nonce = ? WHERE name = ?`),
		wrappedKey, wrapNonce, name)
	if err != nil {
		return fmt.Errorf("failed to update compartment %s: %w", name, err)
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

func (r *SQLRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM compartments`); err != nil {
		return fmt.Errorf("failed to delete compartments: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (*models.Compartment, error) {
	var (
		c       models.Compartment
		created int64
	)
	if err := s.Scan(&c.Name, &c.CompartmentID, &c.WrappedKey, &c.WrapNonce, &c.Description, &created); err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(0, created).UTC()
	return &c, nil
}

func scanOne(row *sql.Row, what string) (*models.Compartment, error) {
	c, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compartment by %s: %w", what, err)
	}
	return c, nil
}
