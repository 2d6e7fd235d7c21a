package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Purchase statuses reported to callers.
const (
	PurchaseStatusAlreadyOwned = "already_owned"
	PurchaseStatusCharged      = "charged"
)

// Transaction kinds stored in the ledger.
const (
	TransactionKindDebit  = "debit"
	TransactionKindCredit = "credit"
)

// AmountScale is the number of decimal places stored for balances, prices
// and transaction amounts (NUMERIC(18,2)).
const AmountScale = 2
