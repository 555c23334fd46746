// Package secrets persists encrypted secret records. Every record carries the
// name of the compartment it was written in.
package secrets

import (
	"context"

	"github.com/dmitrijs2005/heirvault/internal/models"
)

// Repository stores SecretRecords.
//
// GetByID returns common.ErrorNotFound on a miss. DeleteAll returns the number
// of removed rows so the caller can report what a wipe touched.
type Repository interface {
	CreateOrUpdate(ctx context.Context, s *models.SecretRecord) error
	GetByID(ctx context.Context, id string) (*models.SecretRecord, error)
	ListByCompartment(ctx context.Context, compartment string, f models.SecretFilter) ([]models.SecretRecord, error)
	ListAll(ctx context.Context) ([]models.SecretRecord, error)
	CountByKind(ctx context.Context, compartment string) ([]models.KindCount, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
}
