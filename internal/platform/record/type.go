package record

import (
	"github.com/rs/zerolog"
)

// Bookkeeping columns every mapped table carries. RowRetired is optional;
// tables without it only support hard delete.
const (
	colID           = "id"
	colRowVersion   = "row_version"
	colRowCreated   = "row_created"
	colRowPersisted = "row_persisted"
	colRowRetired   = "row_retired"

	colFeedAlias     = "feed_alias"
	colFeedItemID    = "feed_item_id"
	colBackendItemID = "backend_item_id"
)

const defaultMaxUpdateRetries = 10

// TypeDef declares an entity type: its table, its mapped fields and its
// associations. FeedItem types additionally carry the feed identity
// columns (feed_alias, feed_item_id, backend_item_id).
type TypeDef struct {
	Name     string
	Table    string
	FeedItem bool
	Fields   []FieldDef
	Assocs   []AssocDef
}

// Type is the resolved, immutable metadata for one entity type. All
// derived artifacts (field descriptors, join descriptors, SQL statements)
// are built once by Setup and never change afterwards.
type Type struct {
	TypeDef

	schema    *Table
	retirable bool
	fields    []*field
	feed      []*field // feed identity descriptors, FeedItem types only
	byProp    map[string]*field
	assocs    []*assoc

	flat    *flatQuery
	multi   []*multiQuery
	hasMult bool

	maxUpdateRetries int
	logger           zerolog.Logger
}

// Options configures Setup. Catalog is required.
type Options struct {
	Catalog          Catalog
	Logger           zerolog.Logger
	MaxUpdateRetries int
}

// NewType builds an unresolved type from its declaration. Call Setup (or
// SetupAll) before any use.
func NewType(def TypeDef) *Type {
	return &Type{TypeDef: def}
}

// SetupAll resolves a set of types in the given order. Targets of an
// association must precede the types that declare them.
func SetupAll(opts Options, types ...*Type) error {
	for _, t := range types {
		if err := t.Setup(opts); err != nil {
			return err
		}
	}
	return nil
}

// Setup resolves the declared fields and associations against the schema
// catalog and precomputes the SQL artifacts. Any mismatch between the
// declaration and the physical schema is fatal here, at process start,
// instead of surfacing per request.
func (t *Type) Setup(opts Options) error {
	t.logger = opts.Logger
	t.maxUpdateRetries = opts.MaxUpdateRetries
	if t.maxUpdateRetries <= 0 {
		t.maxUpdateRetries = defaultMaxUpdateRetries
	}

	schema, err := opts.Catalog.Table(t.Table)
	if err != nil {
		return setupErrf(t.Name, "%v", err)
	}
	t.schema = schema

	if schema.PrimaryKey == "" {
		return setupErrf(t.Name, "table %s has no single-column primary key", t.Table)
	}
	if schema.PrimaryKey != colID {
		return setupErrf(t.Name, "table %s primary key is %q, expected %q", t.Table, schema.PrimaryKey, colID)
	}
	for _, c := range []string{colRowVersion, colRowCreated, colRowPersisted} {
		if schema.Column(c) == nil {
			return setupErrf(t.Name, "table %s is missing bookkeeping column %q", t.Table, c)
		}
	}
	t.retirable = schema.Column(colRowRetired) != nil

	t.byProp = map[string]*field{}
	if t.FeedItem {
		for _, def := range []FieldDef{
			{Column: colFeedAlias, Kind: String, InsertOnly: true},
			{Column: colFeedItemID, Kind: UUID, InsertOnly: true},
			{Column: colBackendItemID, Kind: String},
		} {
			f, err := buildField(t.Name, def, schema)
			if err != nil {
				return err
			}
			t.feed = append(t.feed, f)
			t.byProp[f.Property] = f
		}
	}

	for _, def := range t.Fields {
		f, err := buildField(t.Name, def, schema)
		if err != nil {
			return err
		}
		if _, dup := t.byProp[f.Property]; dup {
			return setupErrf(t.Name, "duplicate field property %q", f.Property)
		}
		t.fields = append(t.fields, f)
		t.byProp[f.Property] = f
	}

	seen := map[string]bool{}
	for _, def := range t.Assocs {
		a, err := resolveAssoc(t, def)
		if err != nil {
			return err
		}
		if seen[a.Property] {
			return setupErrf(t.Name, "duplicate association property %q", a.Property)
		}
		if _, clash := t.byProp[a.Property]; clash {
			return setupErrf(t.Name, "association property %q collides with a field", a.Property)
		}
		seen[a.Property] = true
		t.assocs = append(t.assocs, a)
	}

	if err := t.buildSQL(); err != nil {
		return err
	}
	return nil
}

// allFields returns feed identity descriptors followed by declared fields.
func (t *Type) allFields() []*field {
	if t.feed == nil {
		return t.fields
	}
	fs := make([]*field, 0, len(t.feed)+len(t.fields))
	fs = append(fs, t.feed...)
	fs = append(fs, t.fields...)
	return fs
}

func (t *Type) fieldByColumn(column string) *field {
	for _, f := range t.allFields() {
		if f.Column == column {
			return f
		}
	}
	return nil
}

func (t *Type) assocByProp(prop string) *assoc {
	for _, a := range t.assocs {
		if a.Property == prop {
			return a
		}
	}
	return nil
}

// Retirable reports whether the table supports soft delete.
func (t *Type) Retirable() bool { return t.retirable }
