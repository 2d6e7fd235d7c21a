package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, lead_id, field_group, kind, reason, amount, balance_after, created_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `SELECT token_balance FROM users WHERE id = $1`
	return r.balance(ctx, query, userID)
}

func (r *PostgresRepository) LockBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `SELECT token_balance FROM users WHERE id = $1 FOR UPDATE`
	return r.balance(ctx, query, userID)
}

func (r *PostgresRepository) balance(ctx context.Context, query, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, common.ErrorNotFound
		}
		return decimal.Zero, fmt.Errorf("db error: %w", err)
	}
	return balance, nil
}

func (r *PostgresRepository) DebitAndRecord(ctx context.Context, userID string, amount decimal.Decimal, leadID, fieldGroup string) (*models.Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	balance, err := r.LockBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, common.ErrInsufficientBalance
	}

	t := &models.Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		LeadID:       leadID,
		FieldGroup:   fieldGroup,
		Kind:         common.TransactionKindDebit,
		Amount:       amount.Neg(),
		BalanceAfter: balance.Sub(amount),
	}
	if err := r.apply(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *PostgresRepository) Credit(ctx context.Context, userID string, amount decimal.Decimal, reason string) (*models.Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}

	balance, err := r.LockBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	t := &models.Transaction{
		ID:           uuid.NewString(),
		UserID:       userID,
		Kind:         common.TransactionKindCredit,
		Reason:       reason,
		Amount:       amount,
		BalanceAfter: balance.Add(amount),
	}
	if err := r.apply(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// apply writes the new balance and appends t. The caller holds the row lock.
func (r *PostgresRepository) apply(ctx context.Context, t *models.Transaction) error {
	update := `UPDATE users SET token_balance = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, update, t.UserID, t.BalanceAfter); err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	insert := `
		INSERT INTO transactions (id, user_id, lead_id, field_group, kind, reason, amount, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, insert,
		t.ID, t.UserID, nullString(t.LeadID), nullString(t.FieldGroup), t.Kind, t.Reason, t.Amount, t.BalanceAfter,
	).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, userID string, limit int) ([]*models.Transaction, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	// LIMIT NULL is LIMIT ALL
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2`
	return r.list(ctx, query, userID, lim)
}

func (r *PostgresRepository) SumAmounts(ctx context.Context, userID string) (decimal.Decimal, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE user_id = $1`
	var sum decimal.Decimal
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("db error: %w", err)
	}
	return sum, nil
}

func (r *PostgresRepository) DebitsWithoutGrant(ctx context.Context, userID string) ([]*models.Transaction, error) {
	query := `SELECT t.id, t.user_id, t.lead_id, t.field_group, t.kind, t.reason, t.amount, t.balance_after, t.created_at
		FROM transactions t
		LEFT JOIN entitlements e
			ON e.user_id = t.user_id AND e.lead_id = t.lead_id AND e.field_group = t.field_group
		WHERE t.user_id = $1 AND t.kind = 'debit' AND e.user_id IS NULL
		ORDER BY t.created_at`
	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Transaction
	for rows.Next() {
		var (
			t          models.Transaction
			leadID     sql.NullString
			fieldGroup sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.UserID, &leadID, &fieldGroup, &t.Kind, &t.Reason, &t.Amount, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		t.LeadID = leadID.String
		t.FieldGroup = fieldGroup.String
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
