package record

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func setupPair(t *testing.T, cat Catalog, targetDef, ownerDef TypeDef) error {
	t.Helper()
	opts := Options{Catalog: cat, Logger: zerolog.Nop()}
	target := NewType(targetDef)
	if err := target.Setup(opts); err != nil {
		t.Fatalf("setup target: %v", err)
	}
	ownerDef.Assocs[0].Target = target
	return NewType(ownerDef).Setup(opts)
}

func TestAssocNoForeignKeyIsFatal(t *testing.T) {
	// editor and book share no foreign key.
	err := setupPair(t, testCatalog(),
		TypeDef{Name: "book", Table: "book", FeedItem: true},
		TypeDef{Name: "editor", Table: "editor", FeedItem: true,
			Assocs: []AssocDef{{Kind: UniOwned, Property: "book"}}},
	)
	if err == nil || !strings.Contains(err.Error(), "no foreign key links") {
		t.Fatalf("want missing foreign key error, got %v", err)
	}
}

func TestAssocAmbiguityNamesBothColumns(t *testing.T) {
	// book holds two foreign keys to author; without JoinColumn the
	// association cannot choose.
	err := setupPair(t, testCatalog(),
		TypeDef{Name: "book", Table: "book", FeedItem: true},
		TypeDef{Name: "author", Table: "author", FeedItem: true,
			Assocs: []AssocDef{{Kind: MultiOwned, Property: "books"}}},
	)
	if err == nil {
		t.Fatal("want ambiguity error")
	}
	if !strings.Contains(err.Error(), "author_id") || !strings.Contains(err.Error(), "coauthor_id") {
		t.Fatalf("ambiguity error should name both candidate columns, got %v", err)
	}
}

func TestAssocJoinColumnOverride(t *testing.T) {
	err := setupPair(t, testCatalog(),
		TypeDef{Name: "book", Table: "book", FeedItem: true},
		TypeDef{Name: "author", Table: "author", FeedItem: true,
			Assocs: []AssocDef{{Kind: MultiOwned, Property: "books", JoinColumn: "coauthor_id"}}},
	)
	if err != nil {
		t.Fatalf("join column override should resolve the ambiguity: %v", err)
	}
}

func TestAssocJoinColumnMustBeForeignKey(t *testing.T) {
	err := setupPair(t, testCatalog(),
		TypeDef{Name: "book", Table: "book", FeedItem: true},
		TypeDef{Name: "author", Table: "author", FeedItem: true,
			Assocs: []AssocDef{{Kind: MultiOwned, Property: "books", JoinColumn: "title"}}},
	)
	if err == nil || !strings.Contains(err.Error(), "not a foreign key") {
		t.Fatalf("want join column validation error, got %v", err)
	}
}

func TestAssocMultiOwnedIgnoresOwnerSideKey(t *testing.T) {
	// author holds the key to profile; that shape never forms a
	// collection, so resolution finds no path at all.
	err := setupPair(t, testCatalog(),
		TypeDef{Name: "profile", Table: "profile"},
		TypeDef{Name: "author", Table: "author", FeedItem: true,
			Assocs: []AssocDef{{Kind: MultiOwned, Property: "profiles"}}},
	)
	if err == nil || !strings.Contains(err.Error(), "no foreign key links") {
		t.Fatalf("want owned-side key error, got %v", err)
	}
}

func TestAssocDirectionResolution(t *testing.T) {
	ts := newTestTypes(t)

	profile := ts.author.assocByProp("profile")
	if profile == nil || !profile.fromOwner || profile.column != "profile_id" {
		t.Fatalf("author.profile should resolve from the owner side via profile_id, got %+v", profile)
	}
	if !profile.nullable {
		t.Error("author.profile_id is nullable and the assoc should record that")
	}

	books := ts.author.assocByProp("books")
	if books == nil || books.fromOwner || books.column != "author_id" {
		t.Fatalf("author.books should resolve from the owned side via author_id, got %+v", books)
	}

	notes := ts.profile.assocByProp("notes")
	if notes == nil || notes.fromOwner || notes.column != "profile_id" {
		t.Fatalf("profile.notes should resolve from the owned side via profile_id, got %+v", notes)
	}
}

func TestAssocTargetMustBeSetUpFirst(t *testing.T) {
	opts := Options{Catalog: testCatalog(), Logger: zerolog.Nop()}
	book := NewType(TypeDef{Name: "book", Table: "book", FeedItem: true})
	author := NewType(TypeDef{Name: "author", Table: "author", FeedItem: true,
		Assocs: []AssocDef{{Kind: MultiOwned, Target: book, Property: "books", JoinColumn: "author_id"}}})
	err := author.Setup(opts)
	if err == nil || !strings.Contains(err.Error(), "set up first") {
		t.Fatalf("want ordering error, got %v", err)
	}
}
