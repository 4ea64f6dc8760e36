package record

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is one in-memory row instance: an immutable snapshot of the last
// known persisted column values plus a mutable diff map of pending
// changes. Owned and referenced sub-records hang off their association
// properties.
type Record struct {
	typ       *Type
	persisted map[string]interface{}
	pending   map[string]interface{}
	single    map[string]*Record
	multi     map[string][]*Record
}

// New constructs a transient record: no identity, nothing persisted.
func (t *Type) New() *Record {
	return &Record{
		typ:       t,
		persisted: map[string]interface{}{},
		pending:   map[string]interface{}{},
		single:    map[string]*Record{},
		multi:     map[string][]*Record{},
	}
}

// Type returns the entity type of the record.
func (r *Record) Type() *Type { return r.typ }

// ID is the table-local surrogate key; zero while transient.
func (r *Record) ID() int64 { return asInt64(r.persisted[colID]) }

// RowVersion is the optimistic-lock counter.
func (r *Record) RowVersion() int64 { return asInt64(r.persisted[colRowVersion]) }

// RowCreated returns the insertion timestamp.
func (r *Record) RowCreated() time.Time { t, _ := r.persisted[colRowCreated].(time.Time); return t }

// RowPersisted returns the last write timestamp.
func (r *Record) RowPersisted() time.Time { t, _ := r.persisted[colRowPersisted].(time.Time); return t }

// RowRetired returns the soft-delete timestamp, or nil while live.
func (r *Record) RowRetired() *time.Time {
	if v, ok := r.persisted[colRowRetired].(time.Time); ok {
		return &v
	}
	return nil
}

// FeedAlias returns the feed scope of a feed item record.
func (r *Record) FeedAlias() string { s, _ := r.persisted[colFeedAlias].(string); return s }

// FeedItemID returns the externally visible UUID of a feed item record.
func (r *Record) FeedItemID() string {
	if v, ok := r.current(colFeedItemID).(string); ok {
		return v
	}
	return ""
}

// BackendItemID returns the external correlation id, or "" when absent.
func (r *Record) BackendItemID() string {
	s, _ := r.current(colBackendItemID).(string)
	return s
}

func (r *Record) current(column string) interface{} {
	if v, ok := r.pending[column]; ok {
		return v
	}
	return r.persisted[column]
}

// Get returns the property value of a mapped field, pending changes
// included. Absent/null values come back as nil.
func (r *Record) Get(property string) interface{} {
	f, ok := r.typ.byProp[property]
	if !ok {
		return nil
	}
	return f.toProperty(r.current(f.Column))
}

// Set records a new value for a field into the pending diff map, but only
// when it actually differs from the persisted snapshot; re-assigning the
// original value drops the pending entry again.
func (r *Record) Set(property string, value interface{}) error {
	f, ok := r.typ.byProp[property]
	if !ok {
		return fmt.Errorf("%s has no field %q", r.typ.Name, property)
	}
	var errs ValidationErrors
	cv, ok2 := f.validateAndConvert(value, "", &errs)
	if !ok2 {
		return &errs
	}
	if f.columnEqual(cv, r.persisted[f.Column]) {
		delete(r.pending, f.Column)
		return nil
	}
	r.pending[f.Column] = cv
	return nil
}

// Dirty reports whether the record has uncommitted column changes.
func (r *Record) Dirty() bool { return len(r.pending) > 0 }

// Child returns the sub-record attached under a UniOwned or Referenced
// association property, or nil when absent.
func (r *Record) Child(property string) *Record { return r.single[property] }

// Children returns the sub-records of a MultiOwned association property.
func (r *Record) Children(property string) []*Record { return r.multi[property] }

// ToOwnMap projects the record's own mapped fields (no bookkeeping, no
// sub-records) as a literal map. Null fields are omitted.
func (r *Record) ToOwnMap() map[string]interface{} {
	m := map[string]interface{}{}
	for _, f := range r.typ.allFields() {
		if v := f.toProperty(r.current(f.Column)); v != nil {
			m[f.Property] = v
		}
	}
	return m
}

// ToAPIMap projects the record as exposed across the feed boundary:
// own fields plus sub-records, with referenced associations rendered as
// the target's feed item UUID. Surrogate ids and row bookkeeping stay
// internal.
func (r *Record) ToAPIMap() map[string]interface{} {
	m := r.ToOwnMap()
	for _, a := range r.typ.assocs {
		switch a.Kind {
		case Referenced:
			if c := r.single[a.Property]; c != nil {
				m[a.Property] = c.FeedItemID()
			}
		case UniOwned:
			if c := r.single[a.Property]; c != nil {
				m[a.Property] = c.ToAPIMap()
			}
		case MultiOwned:
			if cs := r.multi[a.Property]; len(cs) > 0 {
				items := make([]map[string]interface{}, len(cs))
				for i, c := range cs {
					items[i] = c.ToAPIMap()
				}
				m[a.Property] = items
			}
		}
	}
	return m
}

// ToNativeMap projects everything, row bookkeeping included. Used for
// internal surfaces and JSON logging.
func (r *Record) ToNativeMap() map[string]interface{} {
	m := r.ToOwnMap()
	m["id"] = r.ID()
	m["rowVersion"] = r.RowVersion()
	if !r.RowCreated().IsZero() {
		m["rowCreated"] = r.RowCreated().UTC().Format(time.RFC3339)
	}
	if !r.RowPersisted().IsZero() {
		m["rowPersisted"] = r.RowPersisted().UTC().Format(time.RFC3339)
	}
	if rt := r.RowRetired(); rt != nil {
		m["rowRetired"] = rt.UTC().Format(time.RFC3339)
	}
	for _, a := range r.typ.assocs {
		switch a.Kind {
		case Referenced:
			if c := r.single[a.Property]; c != nil {
				m[a.Property] = c.FeedItemID()
			}
		case UniOwned:
			if c := r.single[a.Property]; c != nil {
				m[a.Property] = c.ToNativeMap()
			}
		case MultiOwned:
			if cs := r.multi[a.Property]; len(cs) > 0 {
				items := make([]map[string]interface{}, len(cs))
				for i, c := range cs {
					items[i] = c.ToNativeMap()
				}
				m[a.Property] = items
			}
		}
	}
	return m
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToNativeMap())
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}
