package record

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func mustField(t *testing.T, def FieldDef, col *Column) *field {
	t.Helper()
	table := &Table{Name: "t", PrimaryKey: "id", Columns: map[string]*Column{col.Name: col}}
	f, err := buildField("t", def, table)
	if err != nil {
		t.Fatalf("build field: %v", err)
	}
	return f
}

func TestValidateAndConvert(t *testing.T) {
	tests := []struct {
		name    string
		def     FieldDef
		col     *Column
		in      interface{}
		want    interface{}
		wantErr string
	}{
		{
			name: "string ok",
			def:  FieldDef{Column: "c", Kind: String},
			col:  tcol("c", "character varying", true, false),
			in:   "hello", want: "hello",
		},
		{
			name: "string mistyped",
			def:  FieldDef{Column: "c", Kind: String},
			col:  tcol("c", "character varying", true, false),
			in:   42, wantErr: "must be a string",
		},
		{
			name: "int widens to float",
			def:  FieldDef{Column: "c", Kind: Number},
			col:  tcol("c", "bigint", true, false),
			in:   7, want: float64(7),
		},
		{
			name: "date keeps the calendar day",
			def:  FieldDef{Column: "c", Kind: Date},
			col:  tcol("c", "date", true, false),
			in:   "1975-03-14", want: time.Date(1975, 3, 14, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "date rejects timestamps",
			def:  FieldDef{Column: "c", Kind: Date},
			col:  tcol("c", "date", true, false),
			in:   "1975-03-14T10:00:00Z", wantErr: "YYYY-MM-DD",
		},
		{
			name: "datetime normalizes to UTC",
			def:  FieldDef{Column: "c", Kind: DateTime},
			col:  tcol("c", "timestamp with time zone", true, false),
			in:   "2024-06-01T12:00:00+02:00",
			want: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "enum member ok",
			def:  FieldDef{Column: "c", Kind: Enum, Enum: []string{"a", "b"}},
			col:  &Column{Name: "c", DataType: "e", Nullable: true, EnumMembers: []string{"a", "b"}},
			in:   "b", want: "b",
		},
		{
			name: "enum outsider rejected",
			def:  FieldDef{Column: "c", Kind: Enum, Enum: []string{"a", "b"}},
			col:  &Column{Name: "c", DataType: "e", Nullable: true, EnumMembers: []string{"a", "b"}},
			in:   "z", wantErr: "must be one of a, b",
		},
		{
			name: "uuid normalized",
			def:  FieldDef{Column: "c", Kind: UUID},
			col:  tcol("c", "uuid", true, false),
			in:   "6BA7B810-9DAD-11D1-80B4-00C04FD430C8",
			want: "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		},
		{
			name: "sha256 lowercased",
			def:  FieldDef{Column: "c", Kind: SHA256},
			col:  tcol("c", "bytea", true, false),
			in:   strings.Repeat("AB", 32), want: strings.Repeat("ab", 32),
		},
		{
			name: "sha256 wrong length",
			def:  FieldDef{Column: "c", Kind: SHA256},
			col:  tcol("c", "bytea", true, false),
			in:   "abcd", wantErr: "64-character hex",
		},
		{
			name: "required missing",
			def:  FieldDef{Column: "c", Kind: String},
			col:  tcol("c", "character varying", false, false),
			in:   nil, wantErr: "is required",
		},
		{
			name: "nullable missing ok",
			def:  FieldDef{Column: "c", Kind: String},
			col:  tcol("c", "character varying", true, false),
			in:   nil, want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustField(t, tt.def, tt.col)
			var errs ValidationErrors
			got, ok := f.validateAndConvert(tt.in, "", &errs)

			if tt.wantErr != "" {
				if ok || errs.Empty() {
					t.Fatalf("want validation error %q, got value %v", tt.wantErr, got)
				}
				if !strings.Contains(errs.Error(), tt.wantErr) {
					t.Fatalf("want error containing %q, got %q", tt.wantErr, errs.Error())
				}
				return
			}
			if !ok || !errs.Empty() {
				t.Fatalf("unexpected validation error: %v", errs.Error())
			}
			if tim, isTime := tt.want.(time.Time); isTime {
				if got, isT := got.(time.Time); !isT || !got.Equal(tim) {
					t.Fatalf("got %v, want %v", got, tim)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestValidateGeneratesMissingUUID(t *testing.T) {
	f := mustField(t, FieldDef{Column: "c", Kind: UUID}, tcol("c", "uuid", false, false))
	var errs ValidationErrors
	got, ok := f.validateAndConvert(nil, "", &errs)
	if !ok || !errs.Empty() {
		t.Fatalf("unexpected error: %v", errs.Error())
	}
	s, _ := got.(string)
	if _, err := uuid.Parse(s); err != nil {
		t.Fatalf("generated value %q is not a UUID", s)
	}
}

func TestToPropertyFormatsDates(t *testing.T) {
	df := mustField(t, FieldDef{Column: "c", Kind: Date}, tcol("c", "date", true, false))
	if got := df.toProperty(time.Date(1975, 3, 14, 0, 0, 0, 0, time.UTC)); got != "1975-03-14" {
		t.Errorf("date property = %v", got)
	}
	tf := mustField(t, FieldDef{Column: "c", Kind: DateTime}, tcol("c", "timestamp with time zone", true, false))
	if got := tf.toProperty(time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)); got != "2024-06-01T10:00:00Z" {
		t.Errorf("datetime property = %v", got)
	}
	if got := df.toProperty(nil); got != nil {
		t.Errorf("nil column should project as absent, got %v", got)
	}
}

func TestColumnEqualDateAware(t *testing.T) {
	df := mustField(t, FieldDef{Column: "c", Kind: Date}, tcol("c", "date", true, false))
	morning := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	// A refetched date may come back with a different wall clock but the
	// same calendar day.
	evening := time.Date(2024, 6, 1, 23, 0, 0, 0, time.FixedZone("X", 3600))
	if !df.columnEqual(morning, evening) {
		t.Error("same calendar day should compare equal")
	}
	if df.columnEqual(morning, morning.AddDate(0, 0, 1)) {
		t.Error("different days should not compare equal")
	}

	nf := mustField(t, FieldDef{Column: "c", Kind: Number}, tcol("c", "bigint", true, false))
	if !nf.columnEqual(int64(3), float64(3)) {
		t.Error("numeric comparison should cross representations")
	}
}

func TestBindValueDecodesDigest(t *testing.T) {
	f := mustField(t, FieldDef{Column: "c", Kind: SHA256}, tcol("c", "bytea", true, false))
	got, ok := f.bindValue("00ff" + strings.Repeat("00", 30)).([]byte)
	if !ok || len(got) != 32 || got[0] != 0x00 || got[1] != 0xff {
		t.Fatalf("bind value = %v", got)
	}
}

func TestLowerCamel(t *testing.T) {
	tests := map[string]string{
		"name":            "name",
		"birth_date":      "birthDate",
		"backend_item_id": "backendItemId",
	}
	for in, want := range tests {
		if got := lowerCamel(in); got != want {
			t.Errorf("lowerCamel(%q) = %q, want %q", in, got, want)
		}
	}
}
