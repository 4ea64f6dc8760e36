package record

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the slice of pgx this package needs. It is satisfied by
// *pgxpool.Pool, *pgxpool.Conn and pgx.Tx, so the same code runs inside
// and outside a transaction.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// NestedRow is one joined result row regrouped per table alias, plus the
// table-less bag of computed expressions (hex-rendered digests). A select
// column named `alias.col` lands in Tables[alias][col]; one named
// `#alias.col` lands in Bag[alias][col].
type NestedRow struct {
	Tables map[string]map[string]interface{}
	Bag    map[string]map[string]interface{}
}

func fetchNested(ctx context.Context, q Querier, sql string, args []interface{}) ([]NestedRow, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	var out []NestedRow
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		nr := NestedRow{
			Tables: map[string]map[string]interface{}{},
			Bag:    map[string]map[string]interface{}{},
		}
		for i, fd := range fds {
			name := string(fd.Name)
			dest := nr.Tables
			if strings.HasPrefix(name, "#") {
				dest = nr.Bag
				name = name[1:]
			}
			dot := strings.IndexByte(name, '.')
			if dot < 0 {
				continue
			}
			alias, col := name[:dot], name[dot+1:]
			if dest[alias] == nil {
				dest[alias] = map[string]interface{}{}
			}
			dest[alias][col] = normalizeValue(vals[i])
		}
		out = append(out, nr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalizeValue maps driver-native scalars onto the representations the
// field descriptors work with. pgx hands uuid columns back as [16]byte
// when no codec is registered.
func normalizeValue(v interface{}) interface{} {
	switch x := v.(type) {
	case [16]byte:
		return uuidString(x)
	case int32:
		return int64(x)
	case int16:
		return int64(x)
	}
	return v
}

func uuidString(b [16]byte) string {
	const hexdigits = "0123456789abcdef"
	buf := make([]byte, 36)
	p := 0
	for i, c := range b {
		switch i {
		case 4, 6, 8, 10:
			buf[p] = '-'
			p++
		}
		buf[p] = hexdigits[c>>4]
		buf[p+1] = hexdigits[c&0xf]
		p += 2
	}
	return string(buf)
}
