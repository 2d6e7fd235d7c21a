package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/entitlements"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/leads"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/ledger"
	"github.com/dmitrijs2005/leadkeeper/internal/server/repositories/users"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func TestNewPostgresRepositoryManager_ReturnsInterface(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	var _ RepositoryManager = NewPostgresRepositoryManager(db, time.Second)
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager(db, 0)

	assert.IsType(t, &users.PostgresRepository{}, m.Users())
	assert.IsType(t, &ledger.PostgresRepository{}, m.Ledger())
	assert.IsType(t, &entitlements.PostgresRepository{}, m.Entitlements())
	assert.IsType(t, &leads.PostgresRepository{}, m.Leads())
}

func TestRunMigrations_Success(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(db, 0)
	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db, _ := newDB(t)
	defer db.Close()

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := NewPostgresRepositoryManager(db, 0)
	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestPing(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	m := NewPostgresRepositoryManager(db, 0)

	mock.ExpectPing()
	require.NoError(t, m.Ping(context.Background()))

	mock.ExpectPing().WillReturnError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	err := m.Ping(context.Background())
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
}

func TestWithTx_SetsLockTimeoutAndCommits(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout = '1500ms'`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT token_balance FROM users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"token_balance"}).AddRow("2.00"))
	mock.ExpectCommit()

	m := NewPostgresRepositoryManager(db, 1500*time.Millisecond)
	err := m.WithTx(context.Background(), func(ctx context.Context, repos Repositories) error {
		_, err := repos.Ledger().GetBalance(ctx, "u1")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_NoLockTimeoutWhenZero(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectCommit()

	m := NewPostgresRepositoryManager(db, 0)
	require.NoError(t, m.WithTx(context.Background(), func(context.Context, Repositories) error { return nil }))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackAndClassifies(t *testing.T) {
	db, mock := newDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`SET LOCAL lock_timeout`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	m := NewPostgresRepositoryManager(db, time.Second)
	err := m.WithTx(context.Background(), func(context.Context, Repositories) error {
		return &pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"}
	})
	require.ErrorIs(t, err, common.ErrConcurrencyConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
