// Package ledger declares the token ledger: per-user balances plus the
// append-only transaction log they reconcile to.
package ledger

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/shopspring/decimal"
)

// Repository defines balance reads and the two balance-mutating operations.
//
// DebitAndRecord and Credit lock the user's balance row, validate, update
// the balance and append one transaction. They must run on a transaction
// handle so the lock is held until commit.
type Repository interface {
	// GetBalance returns the current balance, or common.ErrorNotFound.
	GetBalance(ctx context.Context, userID string) (decimal.Decimal, error)

	// LockBalance returns the current balance and locks the row until the
	// enclosing transaction ends.
	LockBalance(ctx context.Context, userID string) (decimal.Decimal, error)

	// DebitAndRecord subtracts amount (> 0, at most AmountScale decimals) and records a debit for
	// (leadID, fieldGroup). Returns common.ErrInsufficientBalance without
	// writing anything when the balance is too low.
	DebitAndRecord(ctx context.Context, userID string, amount decimal.Decimal, leadID, fieldGroup string) (*models.Transaction, error)

	// Credit adds amount (> 0) and records a credit with reason.
	Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*models.Transaction, error)

	// ListTransactions returns the user's transactions, newest first.
	// limit <= 0 means no limit.
	ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error)

	// SumAmounts returns the sum of all transaction amounts of the user.
	SumAmounts(ctx context.Context, userID string) (decimal.Decimal, error)

	// DebitsWithoutGrant lists debits that have no matching entitlement.
	DebitsWithoutGrant(ctx context.Context, userID string) ([]*models.Transaction, error)
}

// ValidateAmount returns common.ErrInvalidAmount unless amount is positive
// and fits the stored scale. Rounding would make the stored balance drift
// from the BalanceAfter handed back to callers.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(common.AmountScale)) {
		return common.ErrInvalidAmount
	}
	return nil
}
