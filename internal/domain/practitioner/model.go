// Package practitioner declares the practitioner feed item and its
// credential collection.
package practitioner

import "github.com/clinfeed/clinfeed/internal/platform/record"

// NewCredentialType is the multi-owned child table; each row holds a
// non-unique practitioner_id foreign key back to its owner.
func NewCredentialType() *record.Type {
	return record.NewType(record.TypeDef{
		Name:     "practitionerCredential",
		Table:    "practitioner_credential",
		FeedItem: true,
		Fields: []record.FieldDef{
			{Column: "credential_type", Kind: record.String},
			{Column: "issuer", Kind: record.String},
			{Column: "license_number", Kind: record.String},
			{Column: "expiry_date", Kind: record.Date},
		},
	})
}

func NewType(contact, credential *record.Type) *record.Type {
	return record.NewType(record.TypeDef{
		Name:     "practitioner",
		Table:    "practitioner",
		FeedItem: true,
		Fields: []record.FieldDef{
			{Column: "name_family", Kind: record.String},
			{Column: "name_given", Kind: record.String},
			{Column: "npi", Kind: record.String},
			{Column: "specialty", Kind: record.String},
		},
		Assocs: []record.AssocDef{
			{Kind: record.UniOwned, Target: contact, Property: "contact"},
			{Kind: record.MultiOwned, Target: credential, Property: "credentials"},
		},
	})
}
