// Package services contains server-side business logic: purchases of lead
// field-groups, the projected lead read path, ledger queries and statement
// exports. Transports call into this package only.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/google/uuid"
)

// EntitlementCache is an optional read-through cache of a user's unlocked
// groups per lead. Implementations must treat every failure as a miss.
// Fill and Grant only ever add groups, so they may run in any order.
type EntitlementCache interface {
	Get(ctx context.Context, userID, leadID string) ([]string, bool)
	Fill(ctx context.Context, userID, leadID string, groups []string)
	Grant(ctx context.Context, userID, leadID, fieldGroup string)
}

// validLeadID rejects ids that cannot name a lead before they reach SQL,
// where a malformed uuid would surface as a cast error.
func validLeadID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	return nil
}

// isExpected reports whether err is part of the normal purchase outcomes
// and should not be logged as a failure.
func isExpected(err error) bool {
	return errors.Is(err, common.ErrInsufficientBalance) ||
		errors.Is(err, common.ErrorNotFound) ||
		errors.Is(err, common.ErrUnknownFieldGroup)
}
