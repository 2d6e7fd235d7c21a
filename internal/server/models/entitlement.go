package models

import "time"

// Entitlement is a permanent grant for one user to see one field-group of
// one lead.
type Entitlement struct {
	UserID     string
	LeadID     string
	FieldGroup string
	GrantedAt  time.Time
}
