package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/leadkeeper/internal/common"
	"github.com/dmitrijs2005/leadkeeper/internal/dbx"
	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/google/uuid"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get loads a lead with every field, gated ones included. Callers project
// the result before it leaves the process. A malformed id is reported as
// common.ErrorNotFound rather than as a driver cast error.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Lead, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query := `SELECT id, first_name, last_name, title, company, industry, location, status, created_at,
			email, personal_email, mobile_phone, linkedin_url, psychometric_profile
		FROM leads
		WHERE id = $1`

	var (
		l                                    models.Lead
		email, personal, mobile, linkedinURL sql.NullString
		profile                              []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.FirstName, &l.LastName, &l.Title, &l.Company, &l.Industry, &l.Location, &l.Status, &l.CreatedAt,
		&email, &personal, &mobile, &linkedinURL, &profile,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	l.Email = email.String
	l.PersonalEmail = personal.String
	l.MobilePhone = mobile.String
	l.LinkedInURL = linkedinURL.String
	if len(profile) > 0 {
		l.PsychometricProfile = profile
	}
	return &l, nil
}

// Create is used by the admin CLI to seed leads.
func (r *PostgresRepository) Create(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	query := `
		INSERT INTO leads (first_name, last_name, title, company, industry, location, status,
			email, personal_email, mobile_phone, linkedin_url, psychometric_profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	var profile any
	if len(lead.PsychometricProfile) > 0 {
		profile = []byte(lead.PsychometricProfile)
	}
	status := lead.Status
	if status == "" {
		status = "new"
	}

	err := r.db.QueryRowContext(ctx, query,
		lead.FirstName, lead.LastName, lead.Title, lead.Company, lead.Industry, lead.Location, status,
		nullString(lead.Email), nullString(lead.PersonalEmail), nullString(lead.MobilePhone),
		nullString(lead.LinkedInURL), profile,
	).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	lead.Status = status
	return lead, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
