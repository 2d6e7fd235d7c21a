// Package leads reads CRM lead records. Writes happen in the CRM proper and
// are out of this service's hands.
package leads

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
)

type Repository interface {
	Get(ctx context.Context, id string) (*models.Lead, error)
	Create(ctx context.Context, lead *models.Lead) (*models.Lead, error)
}
