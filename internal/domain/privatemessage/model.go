// Package privatemessage declares the private message feed item and its
// attachment collection.
package privatemessage

import "github.com/clinfeed/clinfeed/internal/platform/record"

// NewAttachmentType stores the payload digest as a bytea sha-256; the
// record layer renders it as a 64-char hex string on the way out and
// validates/decodes hex on the way in.
func NewAttachmentType() *record.Type {
	return record.NewType(record.TypeDef{
		Name:     "messageAttachment",
		Table:    "message_attachment",
		FeedItem: true,
		Fields: []record.FieldDef{
			{Column: "file_name", Kind: record.String},
			{Column: "content_type", Kind: record.String},
			{Column: "byte_size", Kind: record.Number},
			{Column: "digest", Kind: record.SHA256},
		},
	})
}

func NewType(patient, practitioner, attachment *record.Type) *record.Type {
	return record.NewType(record.TypeDef{
		Name:     "privateMessage",
		Table:    "private_message",
		FeedItem: true,
		Fields: []record.FieldDef{
			{Column: "subject", Kind: record.String},
			{Column: "body", Kind: record.String},
			{Column: "sent_at", Kind: record.DateTime},
		},
		Assocs: []record.AssocDef{
			{Kind: record.Referenced, Target: patient, Property: "patient"},
			{Kind: record.Referenced, Target: practitioner, Property: "practitioner"},
			{Kind: record.MultiOwned, Target: attachment, Property: "attachments"},
		},
	})
}
