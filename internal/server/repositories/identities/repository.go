// Package identities implements the credential store: durable,
// uniqueness-enforcing persistence of identity records.
package identities

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// Repository is the credential store contract. Implementations must enforce
// email uniqueness atomically: of two racing Create calls with the same
// email, exactly one succeeds and the other fails with common.ErrorEmailTaken.
type Repository interface {
	Create(ctx context.Context, identity *models.Identity) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	FindByID(ctx context.Context, id string) (*models.Identity, error)

	// List returns all identities with the secret hash projected out.
	List(ctx context.Context) ([]*models.Identity, error)

	UpdateByID(ctx context.Context, id string, displayName string) (*models.Identity, error)
	DeleteByID(ctx context.Context, id string) (*models.Identity, error)
}
