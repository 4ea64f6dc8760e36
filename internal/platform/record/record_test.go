package record

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func persistedAuthor(ts *testTypes) *Record {
	r := ts.author.New()
	r.persisted[colID] = int64(7)
	r.persisted[colRowVersion] = int64(3)
	r.persisted[colFeedAlias] = "main"
	r.persisted[colFeedItemID] = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	r.persisted["name"] = "Ada"
	r.persisted["born"] = time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC)
	return r
}

func TestSetTracksOnlyRealChanges(t *testing.T) {
	ts := newTestTypes(t)
	r := persistedAuthor(ts)

	if r.Dirty() {
		t.Fatal("fresh record should not be dirty")
	}
	if err := r.Set("name", "Grace"); err != nil {
		t.Fatal(err)
	}
	if !r.Dirty() {
		t.Fatal("assignment should mark the record dirty")
	}
	if got := r.Get("name"); got != "Grace" {
		t.Fatalf("Get should see the pending value, got %v", got)
	}

	// Re-assigning the persisted value clears the pending entry.
	if err := r.Set("name", "Ada"); err != nil {
		t.Fatal(err)
	}
	if r.Dirty() {
		t.Fatal("assigning the original value back should undo the change")
	}
}

func TestSetDateComparesByCalendarDay(t *testing.T) {
	ts := newTestTypes(t)
	r := persistedAuthor(ts)
	if err := r.Set("born", "1815-12-10"); err != nil {
		t.Fatal(err)
	}
	if r.Dirty() {
		t.Fatal("same calendar day should not register as a change")
	}
}

func TestSetUnknownProperty(t *testing.T) {
	ts := newTestTypes(t)
	err := persistedAuthor(ts).Set("nickname", "x")
	if err == nil || !strings.Contains(err.Error(), "nickname") {
		t.Fatalf("want unknown property error, got %v", err)
	}
}

func TestSetInvalidValueReturnsValidationErrors(t *testing.T) {
	ts := newTestTypes(t)
	err := persistedAuthor(ts).Set("born", "not-a-date")
	var verrs *ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("want *ValidationErrors, got %T: %v", err, err)
	}
}

func TestProjections(t *testing.T) {
	ts := newTestTypes(t)
	r := persistedAuthor(ts)

	editor := ts.editor.New()
	editor.persisted[colFeedItemID] = "11111111-2222-3333-4444-555555555555"
	editor.persisted["name"] = "Ed"
	r.single["editor"] = editor

	profile := ts.profile.New()
	profile.persisted["bio"] = "mathematician"
	r.single["profile"] = profile

	book := ts.book.New()
	book.persisted["title"] = "Notes"
	r.multi["books"] = []*Record{book}

	own := r.ToOwnMap()
	if own["name"] != "Ada" || own["born"] != "1815-12-10" {
		t.Fatalf("own map = %v", own)
	}
	if _, ok := own["editor"]; ok {
		t.Fatal("own map must not include associations")
	}

	api := r.ToAPIMap()
	if api["editor"] != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("referenced association should project as the target UUID, got %v", api["editor"])
	}
	sub, ok := api["profile"].(map[string]interface{})
	if !ok || sub["bio"] != "mathematician" {
		t.Fatalf("owned association should project inline, got %v", api["profile"])
	}
	books, ok := api["books"].([]map[string]interface{})
	if !ok || len(books) != 1 || books[0]["title"] != "Notes" {
		t.Fatalf("collection should project as a list, got %v", api["books"])
	}
	if _, ok := api["id"]; ok {
		t.Fatal("surrogate id must stay internal")
	}

	native := r.ToNativeMap()
	if native["id"] != int64(7) || native["rowVersion"] != int64(3) {
		t.Fatalf("native map should expose bookkeeping, got %v", native)
	}
}

func TestMarshalJSON(t *testing.T) {
	ts := newTestTypes(t)
	b, err := persistedAuthor(ts).MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"name":"Ada"`) {
		t.Fatalf("unexpected JSON: %s", b)
	}
}

func TestAsInt64(t *testing.T) {
	for _, v := range []interface{}{int64(9), int32(9), 9, float64(9)} {
		if asInt64(v) != 9 {
			t.Errorf("asInt64(%T) = %d", v, asInt64(v))
		}
	}
	if asInt64("nope") != 0 {
		t.Error("non-numeric should collapse to zero")
	}
}
