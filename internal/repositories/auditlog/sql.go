package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/heirvault/internal/dbx"
	"github.com/dmitrijs2005/heirvault/internal/models"
)

type SQLRepository struct {
	db dbx.DBTX
	d  dbx.Dialect
}

func NewSQLRepository(db dbx.DBTX, d dbx.Dialect) *SQLRepository {
	return &SQLRepository{db: db, d: d}
}

func (r *SQLRepository) Append(ctx context.Context, e models.AuditEvent) error {
	_, err := r.db.ExecContext(ctx,
		r.d.Rebind(`INSERT INTO audit_log (type, message, created_at) VALUES (?, ?, ?)`),
		e.Type, e.Message, e.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

func (r *SQLRepository) Recent(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		r.d.Rebind(`SELECT id, type, message, created_at FROM audit_log ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	var result []models.AuditEvent
	for rows.Next() {
		var (
			e  models.AuditEvent
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.Type, &e.Message, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}
	return result, nil
}
