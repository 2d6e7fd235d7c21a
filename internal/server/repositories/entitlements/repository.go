// Package entitlements stores which field-groups of which leads a user has
// unlocked. Grants are permanent; there is no revoke.
package entitlements

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
)

type Repository interface {
	Has(ctx context.Context, userID, leadID, fieldGroup string) (bool, error)
	// Grant inserts the entitlement if missing. The bool is true only when
	// this call created the row; a duplicate is not an error.
	Grant(ctx context.Context, userID, leadID, fieldGroup string) (*models.Entitlement, bool, error)
	ListGroups(ctx context.Context, userID, leadID string) ([]string, error)
	GrantsWithoutDebit(ctx context.Context, userID string) ([]*models.Entitlement, error)
}
