package repomanager

import (
	"context"

	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/entitlements"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/leads"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/users"
)

// Repositories is a set of repositories sharing one database handle: either
// the pool or a single transaction.
type Repositories interface {
	Users() users.Repository
	Ledger() ledger.Repository
	Entitlements() entitlements.Repository
	Leads() leads.Repository
}

// RepositoryManager vends repositories bound to the pool (embedded
// Repositories) or to a transaction (WithTx).
type RepositoryManager interface {
	Repositories
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	// WithTx runs fn in one transaction and commits iff fn returns nil.
	// Errors are classified, see dbx.Classify.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
