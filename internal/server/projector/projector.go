// Package projector filters an entity's fields down to what a caller may see.
// Everything here is pure: no I/O, no shared state.
package projector

import (
	"sort"

	"github.com/dmitrijs2005/leadkeeper/internal/server/models"
	"github.com/dmitrijs2005/leadkeeper/internal/server/pricing"
)

// Schema splits an entity's fields into always-visible public fields and
// purchasable field-groups.
type Schema struct {
	Public []string
	Groups map[string][]string
}

// LeadSchema is the visibility schema of models.Lead.
var LeadSchema = Schema{
	Public: []string{
		models.FieldID,
		models.FieldFirstName,
		models.FieldLastName,
		models.FieldTitle,
		models.FieldCompany,
		models.FieldIndustry,
		models.FieldLocation,
		models.FieldStatus,
		models.FieldCreatedAt,
	},
	Groups: map[string][]string{
		pricing.GroupEmail:            {models.FieldEmail, models.FieldPersonalEmail},
		pricing.GroupMobile:           {models.FieldMobilePhone},
		pricing.GroupLinkedIn:         {models.FieldLinkedInURL},
		pricing.GroupPsychometricData: {models.FieldPsychometricProfile},
	},
}

// GroupNames returns the schema's field-groups in sorted order.
func (s Schema) GroupNames() []string {
	names := make([]string, 0, len(s.Groups))
	for g := range s.Groups {
		names = append(names, g)
	}
	sort.Strings(names)
	return names
}

// HasGroup reports whether group is a purchasable group of s.
func (s Schema) HasGroup(group string) bool {
	_, ok := s.Groups[group]
	return ok
}

// Reveal returns all public fields of fields plus the fields of every group
// present in entitlements. Groups in entitlements that the schema does not
// know are ignored. Fields missing from the input are omitted, not nil-filled.
func Reveal(fields map[string]any, schema Schema, entitlements map[string]struct{}) map[string]any {
	out := make(map[string]any, len(schema.Public))
	copyFields(out, fields, schema.Public)
	for group := range entitlements {
		copyFields(out, fields, schema.Groups[group])
	}
	return out
}

// GroupFields returns only the fields that belong to group.
func GroupFields(fields map[string]any, schema Schema, group string) map[string]any {
	names := schema.Groups[group]
	out := make(map[string]any, len(names))
	copyFields(out, fields, names)
	return out
}

// Set turns a list of group names into the set form Reveal expects.
func Set(groups []string) map[string]struct{} {
	set := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		set[g] = struct{}{}
	}
	return set
}

func copyFields(dst, src map[string]any, names []string) {
	for _, name := range names {
		if v, ok := src[name]; ok {
			dst[name] = v
		}
	}
}
