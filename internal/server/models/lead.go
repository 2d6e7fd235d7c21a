package models

import (
	"encoding/json"
	"time"
)

// Lead field names as exposed to API clients.
const (
	FieldID                  = "id"
	FieldFirstName           = "first_name"
	FieldLastName            = "last_name"
	FieldTitle               = "title"
	FieldCompany             = "company"
	FieldIndustry            = "industry"
	FieldLocation            = "location"
	FieldStatus              = "status"
	FieldCreatedAt           = "created_at"
	FieldEmail               = "email"
	FieldPersonalEmail       = "personal_email"
	FieldMobilePhone         = "mobile_phone"
	FieldLinkedInURL         = "linkedin_url"
	FieldPsychometricProfile = "psychometric_profile"
)

// Lead is a CRM lead record. Contact details and the psychometric profile
// are gated behind field-group purchases; see projector.LeadSchema.
type Lead struct {
	ID        string
	FirstName string
	LastName  string
	Title     string
	Company   string
	Industry  string
	Location  string
	Status    string
	CreatedAt time.Time

	Email               string
	PersonalEmail       string
	MobilePhone         string
	LinkedInURL         string
	PsychometricProfile json.RawMessage
}

// Fields flattens the lead into name -> value. Projection happens on this
// map, never on the struct.
func (l *Lead) Fields() map[string]any {
	var profile any
	if len(l.PsychometricProfile) > 0 {
		profile = l.PsychometricProfile
	}
	return map[string]any{
		FieldID:                  l.ID,
		FieldFirstName:           l.FirstName,
		FieldLastName:            l.LastName,
		FieldTitle:               l.Title,
		FieldCompany:             l.Company,
		FieldIndustry:            l.Industry,
		FieldLocation:            l.Location,
		FieldStatus:              l.Status,
		FieldCreatedAt:           l.CreatedAt,
		FieldEmail:               l.Email,
		FieldPersonalEmail:       l.PersonalEmail,
		FieldMobilePhone:         l.MobilePhone,
		FieldLinkedInURL:         l.LinkedInURL,
		FieldPsychometricProfile: profile,
	}
}

// ProjectedLead is a lead as one user may see it: public fields plus the
// fields of the groups listed in Unlocked.
type ProjectedLead struct {
	LeadID   string
	Fields   map[string]any
	Unlocked []string
}
