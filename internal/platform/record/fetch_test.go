package record

import (
	"context"
	"testing"
)

func TestFetchNestedRegroupsByAlias(t *testing.T) {
	db := &fakeDB{queryFn: func(string, []interface{}) (*fakeRows, error) {
		return newFakeRows(
			[]string{"author.id", "author.name", "profile.bio", "#book.digest", "nodot"},
			[]interface{}{int64(1), "Ada", "mathematician", "ab12", "ignored"},
		), nil
	}}

	rows, err := fetchNested(context.Background(), db, "SELECT ...", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	nr := rows[0]
	if nr.Tables["author"]["id"] != int64(1) || nr.Tables["author"]["name"] != "Ada" {
		t.Fatalf("author group = %v", nr.Tables["author"])
	}
	if nr.Tables["profile"]["bio"] != "mathematician" {
		t.Fatalf("profile group = %v", nr.Tables["profile"])
	}
	if nr.Bag["book"]["digest"] != "ab12" {
		t.Fatalf("bag = %v", nr.Bag)
	}
	if _, ok := nr.Tables["nodot"]; ok {
		t.Fatal("undotted columns have no alias to land under")
	}
}

func TestFetchNestedNormalizesDriverScalars(t *testing.T) {
	raw := [16]byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	db := &fakeDB{queryFn: func(string, []interface{}) (*fakeRows, error) {
		return newFakeRows(
			[]string{"author.feed_item_id", "author.id"},
			[]interface{}{raw, int32(5)},
		), nil
	}}

	rows, err := fetchNested(context.Background(), db, "SELECT ...", nil)
	if err != nil {
		t.Fatal(err)
	}
	got := rows[0].Tables["author"]
	if got["feed_item_id"] != "6ba7b810-9dad-11d1-80b4-00c04fd430c8" {
		t.Fatalf("uuid bytes should render as the canonical string, got %v", got["feed_item_id"])
	}
	if got["id"] != int64(5) {
		t.Fatalf("small ints should widen to int64, got %T", got["id"])
	}
}
