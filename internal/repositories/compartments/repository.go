// Package compartments persists compartment records: the wrapped key and the
// seed-derived lookup id of each independently keyed namespace.
package compartments

import (
	"context"

	"github.com/dmitrijs2005/heirvault/internal/models"
)

// Repository stores compartments by name and by compartment id.
//
// Lookups return common.ErrorNotFound on a miss. Create returns
// common.ErrCompartmentNameCollision when the name or the compartment id is
// already taken.
type Repository interface {
	Create(ctx context.Context, c *models.Compartment) error
	GetByName(ctx context.Context, name string) (*models.Compartment, error)
	GetByCompartmentID(ctx context.Context, id string) (*models.Compartment, error)
	List(ctx context.Context) ([]models.Compartment, error)
	UpdateWrap(ctx context.Context, name, wrappedKey, wrapNonce string) error
	DeleteAll(ctx context.Context) error
}
