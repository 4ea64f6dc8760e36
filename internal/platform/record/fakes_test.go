package record

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeRows is a canned pgx.Rows result set.
type fakeRows struct {
	fields []pgconn.FieldDescription
	rows   [][]interface{}
	idx    int
	err    error
}

func newFakeRows(cols []string, rows ...[]interface{}) *fakeRows {
	fds := make([]pgconn.FieldDescription, len(cols))
	for i, c := range cols {
		fds[i] = pgconn.FieldDescription{Name: c}
	}
	return &fakeRows{fields: fds, rows: rows, idx: -1}
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}
func (r *fakeRows) Values() ([]interface{}, error) { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte            { return nil }
func (r *fakeRows) Conn() *pgx.Conn                { return nil }
func (r *fakeRows) Scan(dest ...interface{}) error {
	return scanInto(r.rows[r.idx], dest)
}

var selectAliasPattern = regexp.MustCompile(`AS "([^"]+)"`)

// statementRows builds a result set shaped exactly like the select list of
// sql: one column per aliased select expression, values supplied by name.
// Anything a row leaves out comes back as NULL, so a test can only see a
// value the statement actually asks for.
func statementRows(sql string, rows ...map[string]interface{}) *fakeRows {
	var cols []string
	for _, m := range selectAliasPattern.FindAllStringSubmatch(sql, -1) {
		if strings.Contains(m[1], ".") {
			cols = append(cols, m[1])
		}
	}
	data := make([][]interface{}, len(rows))
	for i, vals := range rows {
		row := make([]interface{}, len(cols))
		for j, c := range cols {
			row[j] = vals[c]
		}
		data[i] = row
	}
	return newFakeRows(cols, data...)
}

// fakeRow is a canned pgx.Row. A nil values slice reports pgx.ErrNoRows.
type fakeRow struct {
	values []interface{}
	err    error
}

func (r *fakeRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	if r.values == nil {
		return pgx.ErrNoRows
	}
	return scanInto(r.values, dest)
}

func scanInto(vals []interface{}, dest []interface{}) error {
	if len(vals) != len(dest) {
		return errors.New("fake scan: arity mismatch")
	}
	for i, v := range vals {
		switch d := dest[i].(type) {
		case *int64:
			*d = asInt64(v)
		case *int:
			*d = int(asInt64(v))
		case *string:
			s, _ := v.(string)
			*d = s
		case *bool:
			b, _ := v.(bool)
			*d = b
		case *time.Time:
			t, _ := v.(time.Time)
			*d = t
		case *interface{}:
			*d = v
		default:
			return errors.New("fake scan: unsupported destination type")
		}
	}
	return nil
}

// call is one statement the fake saw, for asserting order and shape.
type call struct {
	kind string // "query", "queryrow", "exec"
	sql  string
	args []interface{}
}

// fakeDB scripts responses by SQL fragment and records every statement.
// It satisfies Querier and, through Begin, hands out fake transactions.
type fakeDB struct {
	calls []call

	queryFn    func(sql string, args []interface{}) (*fakeRows, error)
	queryRowFn func(sql string, args []interface{}) *fakeRow
	execFn     func(sql string, args []interface{}) (pgconn.CommandTag, error)

	begun      int
	committed  int
	rolledBack int
	beginErr   error
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	d.calls = append(d.calls, call{"query", sql, args})
	if d.queryFn == nil {
		return newFakeRows(nil), nil
	}
	rows, err := d.queryFn(sql, args)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	d.calls = append(d.calls, call{"queryrow", sql, args})
	if d.queryRowFn == nil {
		return &fakeRow{}
	}
	return d.queryRowFn(sql, args)
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	d.calls = append(d.calls, call{"exec", sql, args})
	if d.execFn == nil {
		return pgconn.NewCommandTag("UPDATE 1"), nil
	}
	return d.execFn(sql, args)
}

func (d *fakeDB) Begin(_ context.Context) (pgx.Tx, error) {
	if d.beginErr != nil {
		return nil, d.beginErr
	}
	d.begun++
	return &fakeTx{db: d}, nil
}

func (d *fakeDB) sqlCalls(fragment string) []call {
	var out []call
	for _, c := range d.calls {
		if strings.Contains(c.sql, fragment) {
			out = append(out, c)
		}
	}
	return out
}

// fakeTx forwards statements to its database and records the outcome. The
// embedded interface covers the pgx.Tx methods this package never touches.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.committed++
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	t.db.rolledBack++
	return nil
}
