package record

import (
	"context"
	"fmt"
	"sort"
)

// Column is the physical description of one table column.
type Column struct {
	Name        string
	DataType    string // information_schema data_type, or the enum type name
	Nullable    bool
	HasDefault  bool
	EnumMembers []string // non-nil when the column is backed by an enum type
}

// ForeignKey is a single-column foreign key. Unique reports whether the
// referencing column also carries a unique constraint (or is the primary
// key), which is what distinguishes a one-to-one back-reference from a
// one-to-many one.
type ForeignKey struct {
	Column    string
	RefTable  string
	RefColumn string
	Unique    bool
}

// Table is the introspected schema for one table.
type Table struct {
	Name        string
	PrimaryKey  string
	Columns     map[string]*Column
	ForeignKeys []ForeignKey
}

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column { return t.Columns[name] }

func (t *Table) foreignKeysTo(target string) []ForeignKey {
	var fks []ForeignKey
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == target {
			fks = append(fks, fk)
		}
	}
	return fks
}

func (t *Table) uniqueForeignKeysTo(target string) []ForeignKey {
	var fks []ForeignKey
	for _, fk := range t.foreignKeysTo(target) {
		if fk.Unique {
			fks = append(fks, fk)
		}
	}
	return fks
}

func (t *Table) foreignKeyOn(column string) *ForeignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].Column == column {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

// Catalog is the set of introspected tables an application's entity types
// resolve against. It is loaded once at startup and never mutated after.
type Catalog map[string]*Table

// Table returns the schema for name, or an error when the table is unknown.
func (c Catalog) Table(name string) (*Table, error) {
	t, ok := c[name]
	if !ok {
		return nil, fmt.Errorf("table %q has no schema", name)
	}
	return t, nil
}

// LoadCatalog introspects every table in the given schema of a PostgreSQL
// database. Multi-column foreign keys and multi-column primary keys are
// ignored here; types requiring them fail later during Setup.
func LoadCatalog(ctx context.Context, q Querier, schema string) (Catalog, error) {
	if schema == "" {
		schema = "public"
	}
	cat := Catalog{}

	rows, err := q.Query(ctx, `
		SELECT table_name, column_name, data_type, udt_name, is_nullable, column_default IS NOT NULL
		FROM information_schema.columns
		WHERE table_schema = $1
		ORDER BY table_name, ordinal_position`, schema)
	if err != nil {
		return nil, fmt.Errorf("introspect columns: %w", err)
	}
	for rows.Next() {
		var table, column, dataType, udtName, nullable string
		var hasDefault bool
		if err := rows.Scan(&table, &column, &dataType, &udtName, &nullable, &hasDefault); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		t := cat[table]
		if t == nil {
			t = &Table{Name: table, Columns: map[string]*Column{}}
			cat[table] = t
		}
		col := &Column{Name: column, DataType: dataType, Nullable: nullable == "YES", HasDefault: hasDefault}
		if dataType == "USER-DEFINED" {
			col.DataType = udtName
		}
		t.Columns[column] = col
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	if err := loadEnums(ctx, q, cat, schema); err != nil {
		return nil, err
	}
	if err := loadKeys(ctx, q, cat, schema); err != nil {
		return nil, err
	}
	return cat, nil
}

func loadEnums(ctx context.Context, q Querier, cat Catalog, schema string) error {
	rows, err := q.Query(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder`, schema)
	if err != nil {
		return fmt.Errorf("introspect enums: %w", err)
	}
	defer rows.Close()

	members := map[string][]string{}
	for rows.Next() {
		var typ, label string
		if err := rows.Scan(&typ, &label); err != nil {
			return fmt.Errorf("scan enum row: %w", err)
		}
		members[typ] = append(members[typ], label)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read enums: %w", err)
	}

	for _, t := range cat {
		for _, col := range t.Columns {
			if m, ok := members[col.DataType]; ok {
				col.EnumMembers = m
			}
		}
	}
	return nil
}

func loadKeys(ctx context.Context, q Querier, cat Catalog, schema string) error {
	// Single-column constraints only: primary keys, unique keys and foreign
	// keys spanning more than one column never participate in association
	// resolution.
	rows, err := q.Query(ctx, `
		SELECT tc.constraint_name, tc.constraint_type, kcu.table_name, kcu.column_name,
		       COALESCE(ccu.table_name, ''), COALESCE(ccu.column_name, '')
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema
		 AND tc.constraint_type = 'FOREIGN KEY'
		WHERE tc.constraint_schema = $1
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE', 'FOREIGN KEY')
		  AND (SELECT COUNT(*) FROM information_schema.key_column_usage k2
		       WHERE k2.constraint_name = tc.constraint_name AND k2.constraint_schema = tc.constraint_schema) = 1`, schema)
	if err != nil {
		return fmt.Errorf("introspect keys: %w", err)
	}
	defer rows.Close()

	unique := map[string]map[string]bool{} // table -> column -> has unique/pk constraint
	type fkRow struct{ table, column, refTable, refColumn string }
	var fks []fkRow

	for rows.Next() {
		var name, kind, table, column, refTable, refColumn string
		if err := rows.Scan(&name, &kind, &table, &column, &refTable, &refColumn); err != nil {
			return fmt.Errorf("scan key row: %w", err)
		}
		switch kind {
		case "PRIMARY KEY":
			if t := cat[table]; t != nil {
				if t.PrimaryKey != "" && t.PrimaryKey != column {
					t.PrimaryKey = "" // composite; treated as absent
				} else {
					t.PrimaryKey = column
				}
			}
			markUnique(unique, table, column)
		case "UNIQUE":
			markUnique(unique, table, column)
		case "FOREIGN KEY":
			fks = append(fks, fkRow{table, column, refTable, refColumn})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read keys: %w", err)
	}

	for _, fk := range fks {
		t := cat[fk.table]
		if t == nil {
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
			Column:    fk.column,
			RefTable:  fk.refTable,
			RefColumn: fk.refColumn,
			Unique:    unique[fk.table][fk.column],
		})
	}
	for _, t := range cat {
		sort.Slice(t.ForeignKeys, func(i, j int) bool { return t.ForeignKeys[i].Column < t.ForeignKeys[j].Column })
	}
	return nil
}

func markUnique(m map[string]map[string]bool, table, column string) {
	if m[table] == nil {
		m[table] = map[string]bool{}
	}
	m[table][column] = true
}
