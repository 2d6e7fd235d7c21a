package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is an immutable ledger row. Debits (purchases) carry LeadID and
// FieldGroup and a negative Amount; credits carry Reason and a positive
// Amount. BalanceAfter is the user's balance right after this row.
type Transaction struct {
	ID           string
	UserID       string
	LeadID       string
	FieldGroup   string
	Kind         string
	Reason       string
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}
