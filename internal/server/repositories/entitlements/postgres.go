package entitlements

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Has(ctx context.Context, userID, leadID, fieldGroup string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM entitlements
		WHERE user_id = $1 AND lead_id = $2 AND field_group = $3
	)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, userID, leadID, fieldGroup).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) Grant(ctx context.Context, userID, leadID, fieldGroup string) (*models.Entitlement, bool, error) {
	e := &models.Entitlement{UserID: userID, LeadID: leadID, FieldGroup: fieldGroup}

	insert := `
		INSERT INTO entitlements (user_id, lead_id, field_group)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, lead_id, field_group) DO NOTHING
		RETURNING granted_at
	`
	err := r.db.QueryRowContext(ctx, insert, userID, leadID, fieldGroup).Scan(&e.GrantedAt)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	// conflict: RETURNING yields nothing, read the existing row
	existing := `SELECT granted_at FROM entitlements
		WHERE user_id = $1 AND lead_id = $2 AND field_group = $3`
	if err := r.db.QueryRowContext(ctx, existing, userID, leadID, fieldGroup).Scan(&e.GrantedAt); err != nil {
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	return e, false, nil
}

func (r *PostgresRepository) ListGroups(ctx context.Context, userID, leadID string) ([]string, error) {
	query := `SELECT field_group FROM entitlements
		WHERE user_id = $1 AND lead_id = $2
		ORDER BY field_group`

	rows, err := r.db.QueryContext(ctx, query, userID, leadID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return groups, nil
}

func (r *PostgresRepository) GrantsWithoutDebit(ctx context.Context, userID string) ([]*models.Entitlement, error) {
	query := `SELECT e.user_id, e.lead_id, e.field_group, e.granted_at
		FROM entitlements e
		WHERE e.user_id = $1 AND NOT EXISTS (
			SELECT 1 FROM transactions t
			WHERE t.user_id = e.user_id AND t.lead_id = e.lead_id
				AND t.field_group = e.field_group AND t.kind = 'debit'
		)
		ORDER BY e.granted_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Entitlement
	for rows.Next() {
		e := &models.Entitlement{}
		if err := rows.Scan(&e.UserID, &e.LeadID, &e.FieldGroup, &e.GrantedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
