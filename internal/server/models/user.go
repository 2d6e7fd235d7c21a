// Package models defines server-side data models persisted in the database.
package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the balance-holding side of a CRM account. TokenBalance is only
// ever changed through the ledger repository.
type User struct {
	ID           string
	UserName     string
	TokenBalance decimal.Decimal
	CreatedAt    time.Time
}
