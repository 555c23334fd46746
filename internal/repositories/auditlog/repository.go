// Package auditlog is the append-only sink for security relevant events.
package auditlog

import (
	"context"

	"github.com/dmitrijs2005/heirvault/internal/models"
)

type Repository interface {
	Append(ctx context.Context, e models.AuditEvent) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]models.AuditEvent, error)
}
