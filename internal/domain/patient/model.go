// Package patient declares the patient feed item.
package patient

import "github.com/clinfeed/clinfeed/internal/platform/record"

// Genders are validated against the pg enum at startup; a drifted
// migration fails the server before it serves a request.
var Genders = []string{"male", "female", "other", "unknown"}

// NewType declares the patient entity. The self_contact_id column is not
// nullable, so the contact is mandatory on insert and joins with a plain
// JOIN; the primary practitioner is a reference resolved by feed item
// UUID, never owned.
func NewType(contact, practitioner *record.Type) *record.Type {
	return record.NewType(record.TypeDef{
		Name:     "patient",
		Table:    "patient",
		FeedItem: true,
		Fields: []record.FieldDef{
			{Column: "name_family", Kind: record.String},
			{Column: "name_given", Kind: record.String},
			{Column: "gender", Kind: record.Enum, Enum: Genders},
			{Column: "birth_date", Kind: record.Date},
		},
		Assocs: []record.AssocDef{
			{Kind: record.UniOwned, Target: contact, Property: "selfContact"},
			{Kind: record.Referenced, Target: practitioner, Property: "primaryPractitioner"},
		},
	})
}
