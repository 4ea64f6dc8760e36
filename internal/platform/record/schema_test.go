package record

import (
	"testing"

	"github.com/rs/zerolog"
)

// The test schema is a small publishing model covering every association
// shape: author owns an optional profile (nullable key, LEFT JOIN),
// references an editor, and owns two book collections through two distinct
// foreign keys on book; profile owns a note collection one level down;
// profile has no row_retired column, so its removal is a hard delete.

func tcol(name, dataType string, nullable, hasDefault bool) *Column {
	return &Column{Name: name, DataType: dataType, Nullable: nullable, HasDefault: hasDefault}
}

func baseColumns(retirable bool) map[string]*Column {
	cols := map[string]*Column{
		"id":            tcol("id", "bigint", false, true),
		"row_version":   tcol("row_version", "bigint", false, true),
		"row_created":   tcol("row_created", "timestamp with time zone", false, true),
		"row_persisted": tcol("row_persisted", "timestamp with time zone", false, true),
	}
	if retirable {
		cols["row_retired"] = tcol("row_retired", "timestamp with time zone", true, false)
	}
	return cols
}

func addFeedColumns(cols map[string]*Column) {
	cols["feed_alias"] = tcol("feed_alias", "character varying", false, false)
	cols["feed_item_id"] = tcol("feed_item_id", "uuid", false, false)
	cols["backend_item_id"] = tcol("backend_item_id", "character varying", true, false)
}

func testCatalog() Catalog {
	editorCols := baseColumns(true)
	addFeedColumns(editorCols)
	editorCols["name"] = tcol("name", "character varying", false, false)

	profileCols := baseColumns(false)
	profileCols["bio"] = tcol("bio", "character varying", true, false)

	noteCols := baseColumns(true)
	addFeedColumns(noteCols)
	noteCols["body"] = tcol("body", "character varying", false, false)
	noteCols["profile_id"] = tcol("profile_id", "bigint", false, false)

	authorCols := baseColumns(true)
	addFeedColumns(authorCols)
	authorCols["name"] = tcol("name", "character varying", false, false)
	authorCols["born"] = tcol("born", "date", true, false)
	authorCols["profile_id"] = tcol("profile_id", "bigint", true, false)
	authorCols["editor_id"] = tcol("editor_id", "bigint", true, false)

	bookCols := baseColumns(true)
	addFeedColumns(bookCols)
	bookCols["title"] = tcol("title", "character varying", false, false)
	bookCols["genre"] = &Column{Name: "genre", DataType: "book_genre", Nullable: true, EnumMembers: []string{"fiction", "biography"}}
	bookCols["digest"] = tcol("digest", "bytea", true, false)
	bookCols["author_id"] = tcol("author_id", "bigint", false, false)
	bookCols["coauthor_id"] = tcol("coauthor_id", "bigint", true, false)

	return Catalog{
		"editor":  {Name: "editor", PrimaryKey: "id", Columns: editorCols},
		"profile": {Name: "profile", PrimaryKey: "id", Columns: profileCols},
		"note": {Name: "note", PrimaryKey: "id", Columns: noteCols, ForeignKeys: []ForeignKey{
			{Column: "profile_id", RefTable: "profile", RefColumn: "id"},
		}},
		"author": {Name: "author", PrimaryKey: "id", Columns: authorCols, ForeignKeys: []ForeignKey{
			{Column: "editor_id", RefTable: "editor", RefColumn: "id"},
			{Column: "profile_id", RefTable: "profile", RefColumn: "id", Unique: true},
		}},
		"book": {Name: "book", PrimaryKey: "id", Columns: bookCols, ForeignKeys: []ForeignKey{
			{Column: "author_id", RefTable: "author", RefColumn: "id"},
			{Column: "coauthor_id", RefTable: "author", RefColumn: "id"},
		}},
	}
}

type testTypes struct {
	editor  *Type
	profile *Type
	note    *Type
	author  *Type
	book    *Type
}

func newTestTypes(tb testing.TB, opt ...func(*Options)) *testTypes {
	tb.Helper()

	ts := &testTypes{
		editor: NewType(TypeDef{
			Name: "editor", Table: "editor", FeedItem: true,
			Fields: []FieldDef{{Column: "name", Kind: String}},
		}),
		note: NewType(TypeDef{
			Name: "note", Table: "note", FeedItem: true,
			Fields: []FieldDef{{Column: "body", Kind: String}},
		}),
	}
	ts.profile = NewType(TypeDef{
		Name: "profile", Table: "profile",
		Fields: []FieldDef{{Column: "bio", Kind: String}},
		Assocs: []AssocDef{{Kind: MultiOwned, Target: ts.note, Property: "notes"}},
	})
	ts.book = NewType(TypeDef{
		Name: "book", Table: "book", FeedItem: true,
		Fields: []FieldDef{
			{Column: "title", Kind: String},
			{Column: "genre", Kind: Enum, Enum: []string{"fiction", "biography"}},
			{Column: "digest", Kind: SHA256},
		},
	})
	ts.author = NewType(TypeDef{
		Name: "author", Table: "author", FeedItem: true,
		Fields: []FieldDef{
			{Column: "name", Kind: String},
			{Column: "born", Kind: Date},
		},
		Assocs: []AssocDef{
			{Kind: UniOwned, Target: ts.profile, Property: "profile"},
			{Kind: Referenced, Target: ts.editor, Property: "editor"},
			{Kind: MultiOwned, Target: ts.book, Property: "books", JoinColumn: "author_id"},
			{Kind: MultiOwned, Target: ts.book, Property: "coauthoredBooks", JoinColumn: "coauthor_id"},
		},
	})

	opts := Options{Catalog: testCatalog(), Logger: zerolog.Nop()}
	for _, o := range opt {
		o(&opts)
	}
	err := SetupAll(opts, ts.editor, ts.note, ts.profile, ts.book, ts.author)
	if err != nil {
		tb.Fatalf("setup test types: %v", err)
	}
	return ts
}
