// Package appointment declares the appointment feed item linking a
// patient to a practitioner.
package appointment

import "github.com/clinfeed/clinfeed/internal/platform/record"

var Statuses = []string{"proposed", "booked", "arrived", "fulfilled", "cancelled", "noshow"}

func NewType(patient, practitioner *record.Type) *record.Type {
	return record.NewType(record.TypeDef{
		Name:     "appointment",
		Table:    "appointment",
		FeedItem: true,
		Fields: []record.FieldDef{
			{Column: "status", Kind: record.Enum, Enum: Statuses},
			{Column: "start_time", Kind: record.DateTime},
			{Column: "end_time", Kind: record.DateTime},
			{Column: "reason", Kind: record.String},
		},
		Assocs: []record.AssocDef{
			{Kind: record.Referenced, Target: patient, Property: "patient"},
			{Kind: record.Referenced, Target: practitioner, Property: "practitioner"},
		},
	})
}
