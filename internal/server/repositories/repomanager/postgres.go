// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors, transactions and database
// migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/server/migrations"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/entitlements"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/leads"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type postgresRepositories struct {
	db dbx.DBTX
}

func (r postgresRepositories) Users() users.Repository {
	return users.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Ledger() ledger.Repository {
	return ledger.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Entitlements() entitlements.Repository {
	return entitlements.NewPostgresRepository(r.db)
}

func (r postgresRepositories) Leads() leads.Repository {
	return leads.NewPostgresRepository(r.db)
}

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	postgresRepositories
	db          *sql.DB
	lockTimeout time.Duration
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the manager's database.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *PostgresRepositoryManager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return dbx.Classify(fmt.Errorf("ping: %w", err))
	}
	return nil
}

// WithTx opens a transaction, bounds its lock waits by the configured lock
// timeout and hands fn repositories bound to it.
func (m *PostgresRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return dbx.WithTx(ctx, m.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := dbx.SetLockTimeout(ctx, tx, m.lockTimeout); err != nil {
			return err
		}
		return fn(ctx, postgresRepositories{db: tx})
	})
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
// lockTimeout bounds row lock waits inside WithTx; zero keeps the server default.
func NewPostgresRepositoryManager(db *sql.DB, lockTimeout time.Duration) *PostgresRepositoryManager {
	return &PostgresRepositoryManager{
		postgresRepositories: postgresRepositories{db: db},
		db:                   db,
		lockTimeout:          lockTimeout,
	}
}
