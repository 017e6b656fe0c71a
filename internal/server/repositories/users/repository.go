// Package users persists user accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/vipkeeper/internal/server/models"
)

// Repository is the user store. Lookups of missing rows return
// common.ErrorNotFound, inserts of a taken email common.ErrorAlreadyExists.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByIDForUpdate is GetByID that also locks the row until the
	// surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) (*models.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ListFilter) (*models.UserPage, error)
}
