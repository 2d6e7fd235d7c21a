package entitlements

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	qHas    = `(?s)^SELECT\s+EXISTS\s*\(\s*SELECT\s+1\s+FROM\s+entitlements\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+lead_id\s*=\s*\$2\s+AND\s+field_group\s*=\s*\$3\s*\)$`
	qGrant  = `(?s)^\s*INSERT\s+INTO\s+entitlements\s*\(user_id,\s*lead_id,\s*field_group\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*ON\s+CONFLICT\s*\(user_id,\s*lead_id,\s*field_group\)\s*DO\s+NOTHING\s*RETURNING\s+granted_at\s*$`
	qSelect = `(?s)^SELECT\s+granted_at\s+FROM\s+entitlements\s+WHERE\s+user_id\s*=\s*\$1\s+AND\s+lead_id\s*=\s*\$2\s+AND\s+field_group\s*=\s*\$3$`
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresRepository(db), mock, db
}

func TestHas(t *testing.T) {
	for _, want := range []bool{true, false} {
		repo, mock, db := newRepoWithMock(t)

		mock.ExpectQuery(qHas).WithArgs("u1", "lead1", "email").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(want))

		got, err := repo.Has(context.Background(), "u1", "lead1", "email")
		require.NoError(t, err)
		assert.Equal(t, want, got)
		db.Close()
	}
}

func TestHas_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qHas).WillReturnError(errors.New("boom"))

	_, err := repo.Has(context.Background(), "u1", "lead1", "email")
	require.ErrorContains(t, err, "db error: boom")
}

func TestGrant_NewRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2026, 10, 2, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qGrant).WithArgs("u1", "lead1", "email").
		WillReturnRows(sqlmock.NewRows([]string{"granted_at"}).AddRow(now))

	e, created, err := repo.Grant(context.Background(), "u1", "lead1", "email")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, now, e.GrantedAt)
	assert.Equal(t, "email", e.FieldGroup)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrant_DuplicateReturnsExisting(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	earlier := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(qGrant).WithArgs("u1", "lead1", "email").
		WillReturnRows(sqlmock.NewRows([]string{"granted_at"}))
	mock.ExpectQuery(qSelect).WithArgs("u1", "lead1", "email").
		WillReturnRows(sqlmock.NewRows([]string{"granted_at"}).AddRow(earlier))

	e, created, err := repo.Grant(context.Background(), "u1", "lead1", "email")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, earlier, e.GrantedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrant_InsertError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(qGrant).WillReturnError(errors.New("fk violation"))

	_, _, err := repo.Grant(context.Background(), "u1", "lead1", "email")
	require.ErrorContains(t, err, "fk violation")
}

func TestListGroups(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+field_group\s+FROM\s+entitlements.+ORDER\s+BY\s+field_group$`).
		WithArgs("u1", "lead1").
		WillReturnRows(sqlmock.NewRows([]string{"field_group"}).AddRow("email").AddRow("linkedin"))

	got, err := repo.ListGroups(context.Background(), "u1", "lead1")
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "linkedin"}, got)
}

func TestListGroups_NoneIsEmptyNotNil(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`FROM\s+entitlements`).WithArgs("u1", "lead1").
		WillReturnRows(sqlmock.NewRows([]string{"field_group"}))

	got, err := repo.ListGroups(context.Background(), "u1", "lead1")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestGrantsWithoutDebit(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)FROM\s+entitlements\s+e\s+WHERE\s+e\.user_id\s*=\s*\$1\s+AND\s+NOT\s+EXISTS`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "lead_id", "field_group", "granted_at"}).
			AddRow("u1", "lead7", "mobile", time.Now()))

	got, err := repo.GrantsWithoutDebit(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "lead7", got[0].LeadID)
}
