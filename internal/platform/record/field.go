package record

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the semantic type of a mapped column, bridging the SQL type and
// the in-memory property representation.
type Kind int

const (
	String Kind = iota + 1
	Number
	Boolean
	Date // calendar date, no time of day
	DateTime
	Enum
	UUID
	SHA256
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Number:
		return "number"
	case Boolean:
		return "boolean"
	case Date:
		return "date"
	case DateTime:
		return "datetime"
	case Enum:
		return "enum"
	case UUID:
		return "uuid"
	case SHA256:
		return "sha256"
	}
	return "unknown"
}

// FieldDef declares one mapped column on an entity type. Property defaults
// to the lowerCamel form of Column when empty.
type FieldDef struct {
	Column     string
	Property   string
	Kind       Kind
	Enum       []string // declared members, Enum kind only
	InsertOnly bool
}

// field is a FieldDef resolved against the physical schema.
type field struct {
	FieldDef
	nullable bool
}

var (
	sha256Pattern = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)
)

func buildField(typeName string, def FieldDef, table *Table) (*field, error) {
	if def.Property == "" {
		def.Property = lowerCamel(def.Column)
	}
	col := table.Column(def.Column)
	if col == nil {
		return nil, setupErrf(typeName, "field %q: table %s has no column %q", def.Property, table.Name, def.Column)
	}
	if def.Kind == Enum {
		if col.EnumMembers == nil {
			return nil, setupErrf(typeName, "field %q: column %s.%s is not an enum", def.Property, table.Name, def.Column)
		}
		if diff := symmetricDiff(def.Enum, col.EnumMembers); len(diff) > 0 {
			return nil, setupErrf(typeName, "field %q: enum members differ from database enum %s: %s",
				def.Property, col.DataType, strings.Join(diff, ", "))
		}
	}
	return &field{FieldDef: def, nullable: col.Nullable}, nil
}

// validateAndConvert enforces the field's semantic type on an input value
// and produces the column value to persist. Problems are collected into
// errs rather than returned, so the caller can surface every invalid field
// of a request at once. The second return reports whether a usable value
// was produced.
func (f *field) validateAndConvert(v interface{}, path string, errs *ValidationErrors) (interface{}, bool) {
	at := joinPath(path, f.Property)
	if v == nil {
		if f.nullable {
			return nil, true
		}
		if f.Kind == UUID {
			return uuid.NewString(), true
		}
		errs.Add(at, "is required")
		return nil, false
	}

	switch f.Kind {
	case String:
		s, ok := v.(string)
		if !ok {
			errs.Add(at, "must be a string")
			return nil, false
		}
		return s, true
	case Number:
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
		errs.Add(at, "must be a number")
		return nil, false
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			errs.Add(at, "must be a boolean")
			return nil, false
		}
		return b, true
	case Date:
		s, ok := v.(string)
		if !ok {
			if t, isTime := v.(time.Time); isTime {
				return calendarDate(t), true
			}
			errs.Add(at, "must be a date string (YYYY-MM-DD)")
			return nil, false
		}
		t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
		if err != nil {
			errs.Add(at, "must be a date string (YYYY-MM-DD)")
			return nil, false
		}
		return t, true
	case DateTime:
		s, ok := v.(string)
		if !ok {
			if t, isTime := v.(time.Time); isTime {
				return t.UTC(), true
			}
			errs.Add(at, "must be an RFC 3339 timestamp")
			return nil, false
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			errs.Add(at, "must be an RFC 3339 timestamp")
			return nil, false
		}
		return t.UTC(), true
	case Enum:
		s, ok := v.(string)
		if !ok {
			errs.Add(at, "must be a string")
			return nil, false
		}
		for _, m := range f.Enum {
			if s == m {
				return s, true
			}
		}
		errs.Add(at, "must be one of %s", strings.Join(f.Enum, ", "))
		return nil, false
	case UUID:
		s, ok := v.(string)
		if !ok {
			errs.Add(at, "must be a UUID string")
			return nil, false
		}
		u, err := uuid.Parse(s)
		if err != nil {
			errs.Add(at, "must be a UUID string")
			return nil, false
		}
		return u.String(), true
	case SHA256:
		s, ok := v.(string)
		if !ok || !sha256Pattern.MatchString(s) {
			errs.Add(at, "must be a 64-character hex digest")
			return nil, false
		}
		return strings.ToLower(s), true
	}
	errs.Add(at, "has unsupported kind")
	return nil, false
}

// toProperty converts a persisted column value back into its property
// representation. nil means the property is absent.
func (f *field) toProperty(cv interface{}) interface{} {
	if cv == nil {
		return nil
	}
	switch f.Kind {
	case Date:
		if t, ok := cv.(time.Time); ok {
			return t.Format("2006-01-02")
		}
	case DateTime:
		if t, ok := cv.(time.Time); ok {
			return t.UTC().Format(time.RFC3339)
		}
	case Number:
		switch n := cv.(type) {
		case int64:
			return float64(n)
		case int32:
			return float64(n)
		case int:
			return float64(n)
		}
	}
	return cv
}

// columnEqual compares two column values with date-aware semantics, used
// by the diff map to decide whether an assignment is a real change.
func (f *field) columnEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch f.Kind {
	case Date:
		ta, aok := a.(time.Time)
		tb, bok := b.(time.Time)
		if aok && bok {
			ya, ma, da := ta.Date()
			yb, mb, db := tb.Date()
			return ya == yb && ma == mb && da == db
		}
	case DateTime:
		ta, aok := a.(time.Time)
		tb, bok := b.(time.Time)
		if aok && bok {
			return ta.Equal(tb)
		}
	case Number:
		return numericValue(a) == numericValue(b)
	}
	return a == b
}

// bindValue converts an in-memory column value into the form passed to the
// driver. SHA-256 digests are held as hex strings in memory and stored as
// bytea.
func (f *field) bindValue(cv interface{}) interface{} {
	if cv == nil {
		return nil
	}
	if f.Kind == SHA256 {
		if s, ok := cv.(string); ok {
			return hexToBytes(s)
		}
	}
	return cv
}

func hexToBytes(s string) []byte {
	b := make([]byte, len(s)/2)
	for i := 0; i < len(b); i++ {
		b[i] = hexNibble(s[2*i])<<4 | hexNibble(s[2*i+1])
	}
	return b
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func numericValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	}
	return 0
}

// calendarDate strips the time of day without shifting across a timezone
// boundary: the wall-clock date is kept as-is and re-anchored in UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func symmetricDiff(a, b []string) []string {
	in := func(xs []string, s string) bool {
		for _, x := range xs {
			if x == s {
				return true
			}
		}
		return false
	}
	var diff []string
	for _, s := range a {
		if !in(b, s) {
			diff = append(diff, s+" (declared only)")
		}
	}
	for _, s := range b {
		if !in(a, s) {
			diff = append(diff, s+" (database only)")
		}
	}
	sort.Strings(diff)
	return diff
}

func joinPath(path, prop string) string {
	if path == "" {
		return prop
	}
	return path + "." + prop
}

func lowerCamel(column string) string {
	parts := strings.Split(column, "_")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
	}
	return strings.Join(parts, "")
}
