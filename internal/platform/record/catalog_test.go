package record

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	db := &fakeDB{queryFn: func(sql string, args []interface{}) (*fakeRows, error) {
		switch {
		case strings.Contains(sql, "information_schema.columns"):
			if args[0] != "clinical" {
				t.Errorf("schema arg = %v", args[0])
			}
			return newFakeRows(nil,
				[]interface{}{"author", "id", "bigint", "int8", "NO", true},
				[]interface{}{"author", "name", "character varying", "varchar", "NO", false},
				[]interface{}{"author", "genre", "USER-DEFINED", "book_genre", "YES", false},
				[]interface{}{"book", "id", "bigint", "int8", "NO", true},
				[]interface{}{"book", "author_id", "bigint", "int8", "YES", false},
			), nil
		case strings.Contains(sql, "pg_enum"):
			return newFakeRows(nil,
				[]interface{}{"book_genre", "fiction"},
				[]interface{}{"book_genre", "biography"},
			), nil
		case strings.Contains(sql, "table_constraints"):
			return newFakeRows(nil,
				[]interface{}{"author_pk", "PRIMARY KEY", "author", "id", "", ""},
				[]interface{}{"book_pk", "PRIMARY KEY", "book", "id", "", ""},
				[]interface{}{"book_author_uq", "UNIQUE", "book", "author_id", "", ""},
				[]interface{}{"book_author_fk", "FOREIGN KEY", "book", "author_id", "author", "id"},
			), nil
		}
		t.Fatalf("unexpected introspection query: %s", sql)
		return nil, nil
	}}

	cat, err := LoadCatalog(context.Background(), db, "clinical")
	if err != nil {
		t.Fatal(err)
	}

	author, err := cat.Table("author")
	if err != nil {
		t.Fatal(err)
	}
	if author.PrimaryKey != "id" {
		t.Errorf("primary key = %q", author.PrimaryKey)
	}
	if c := author.Column("name"); c == nil || c.Nullable || c.HasDefault {
		t.Errorf("name column = %+v", c)
	}
	if c := author.Column("id"); c == nil || !c.HasDefault {
		t.Errorf("id column = %+v", c)
	}
	genre := author.Column("genre")
	if genre == nil || genre.DataType != "book_genre" {
		t.Fatalf("enum column should take the udt name, got %+v", genre)
	}
	if !reflect.DeepEqual(genre.EnumMembers, []string{"fiction", "biography"}) {
		t.Errorf("enum members = %v", genre.EnumMembers)
	}

	book := cat["book"]
	want := ForeignKey{Column: "author_id", RefTable: "author", RefColumn: "id", Unique: true}
	if len(book.ForeignKeys) != 1 || book.ForeignKeys[0] != want {
		t.Errorf("book foreign keys = %+v", book.ForeignKeys)
	}
	if fk := book.foreignKeyOn("author_id"); fk == nil || fk.RefTable != "author" {
		t.Errorf("foreignKeyOn = %+v", fk)
	}
	if fks := book.uniqueForeignKeysTo("author"); len(fks) != 1 {
		t.Errorf("uniqueForeignKeysTo = %+v", fks)
	}
}

func TestCatalogUnknownTable(t *testing.T) {
	if _, err := (Catalog{}).Table("ghost"); err == nil || !strings.Contains(err.Error(), "no schema") {
		t.Fatalf("want unknown table error, got %v", err)
	}
}
