// Package users persists the vault's single owner credential.
package users

import (
	"context"

	"github.com/dmitrijs2005/heirvault/internal/models"
)

// Repository stores the singleton UserCredential.
//
// Get returns common.ErrorNotFound when no credential exists and Create
// returns common.ErrUserAlreadyConfigured when one already does.
type Repository interface {
	Get(ctx context.Context) (*models.UserCredential, error)
	Create(ctx context.Context, u *models.UserCredential) error
	Update(ctx context.Context, u *models.UserCredential) error
	Delete(ctx context.Context) error
}
