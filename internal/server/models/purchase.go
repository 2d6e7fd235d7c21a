package models

import "github.com/shopspring/decimal"

// PurchaseResult is what a purchase call hands back: the unlocked values, so
// the caller never needs a second read.
type PurchaseResult struct {
	Status        string
	LeadID        string
	FieldGroup    string
	Fields        map[string]any
	BalanceAfter  decimal.Decimal
	TransactionID string
}

// AuditReport compares a user's stored balance with the one rebuilt from the
// transaction log and lists debit/entitlement pairs that do not match up.
type AuditReport struct {
	UserID               string
	StoredBalance        decimal.Decimal
	ReconstructedBalance decimal.Decimal
	DebitsWithoutGrant   []*Transaction
	GrantsWithoutDebit   []*Entitlement
}

// Clean reports whether the ledger and the entitlements agree.
func (r *AuditReport) Clean() bool {
	return r.StoredBalance.Equal(r.ReconstructedBalance) &&
		len(r.DebitsWithoutGrant) == 0 && len(r.GrantsWithoutDebit) == 0
}

// Statement points at an exported transaction history in object storage.
type Statement struct {
	Key string
	URL string
}
