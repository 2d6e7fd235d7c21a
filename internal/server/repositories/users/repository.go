// Package users declares the repository contract for CRM user accounts as
// seen by the ledger: identity plus token balance.
package users

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}
