// Package contact declares the contact/address sub-entities owned by
// patients and practitioners. They are not feed items themselves; they
// live and die with their owner.
package contact

import "github.com/clinfeed/clinfeed/internal/platform/record"

func NewAddressType() *record.Type {
	return record.NewType(record.TypeDef{
		Name:  "address",
		Table: "address",
		Fields: []record.FieldDef{
			{Column: "line1", Kind: record.String},
			{Column: "line2", Kind: record.String},
			{Column: "city", Kind: record.String},
			{Column: "state", Kind: record.String},
			{Column: "zip", Kind: record.String},
			{Column: "country", Kind: record.String},
		},
	})
}

// NewContactType owns an optional address through the nullable address_id
// column, so the address joins in with a LEFT JOIN and is simply absent
// when unset.
func NewContactType(address *record.Type) *record.Type {
	return record.NewType(record.TypeDef{
		Name:  "contact",
		Table: "contact",
		Fields: []record.FieldDef{
			{Column: "phone", Kind: record.String},
			{Column: "email", Kind: record.String},
		},
		Assocs: []record.AssocDef{
			{Kind: record.UniOwned, Target: address, Property: "address"},
		},
	})
}
