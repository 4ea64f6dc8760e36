package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

type beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// inTransaction runs fn inside a database transaction. When q already is a
// transaction the ambient one is reused; transactions are never nested.
func inTransaction(ctx context.Context, q Querier, fn func(ctx context.Context, q Querier) error) error {
	if _, isTx := q.(pgx.Tx); isTx {
		return fn(ctx, q)
	}
	b, ok := q.(beginner)
	if !ok {
		return fn(ctx, q)
	}
	tx, err := b.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ownerRef injects the owner's key into a child row at insert time, for
// associations where the owned table holds the foreign key.
type ownerRef struct {
	column string
	id     int64
}

// Insert validates src, persists the record and its whole owned tree and
// returns the constructed instance. Validation problems anywhere in the
// tree are collected into verrs (allocated when nil); a non-empty list
// rolls the entire transaction back and is returned as the error, so a
// request either commits completely or reports every problem at once.
func (t *Type) Insert(ctx context.Context, q Querier, src map[string]interface{}, verrs *ValidationErrors) (*Record, error) {
	if verrs == nil {
		verrs = &ValidationErrors{}
	}
	var rec *Record
	var after []func()
	run := func(ctx context.Context, q Querier) error {
		r, err := t.insertTree(ctx, q, src, "", "", nil, verrs, &after)
		if err != nil {
			return err
		}
		if !verrs.Empty() {
			return verrs
		}
		rec = r
		return nil
	}
	var err error
	if t.touchesSubTables(src) {
		err = inTransaction(ctx, q, run)
	} else {
		err = run(ctx, q)
	}
	if err != nil {
		return nil, err
	}
	// In-memory wiring is deferred until the transaction is known to have
	// committed, so a rollback never leaves objects half-linked.
	for _, f := range after {
		f()
	}
	return rec, nil
}

func (t *Type) touchesSubTables(src map[string]interface{}) bool {
	for _, a := range t.assocs {
		if a.Kind == Referenced {
			continue
		}
		if _, ok := src[a.Property]; ok {
			return true
		}
	}
	return false
}

func (t *Type) insertTree(ctx context.Context, q Querier, src map[string]interface{}, path, feedAlias string, owner *ownerRef, verrs *ValidationErrors, after *[]func()) (*Record, error) {
	r := t.New()
	colVals := map[string]interface{}{}

	if t.FeedItem {
		if v, ok := src["feedAlias"].(string); ok && v != "" {
			feedAlias = v
		}
	}

	// Owned children whose key we hold must exist before our own row can
	// reference them.
	for _, a := range t.assocs {
		if a.Kind != UniOwned || !a.fromOwner {
			continue
		}
		at := joinPath(path, a.Property)
		sub, present := src[a.Property]
		if !present || sub == nil {
			if !a.nullable {
				verrs.Add(at, "is required")
			}
			continue
		}
		subMap, ok := sub.(map[string]interface{})
		if !ok {
			verrs.Add(at, "must be an object")
			continue
		}
		child, err := a.Target.insertTree(ctx, q, subMap, at, feedAlias, nil, verrs, after)
		if err != nil {
			return nil, err
		}
		if child.ID() != 0 {
			colVals[a.column] = child.ID()
		}
		a, child := a, child
		*after = append(*after, func() { r.single[a.Property] = child })
	}

	// Referenced feed items are resolved by UUID to their surrogate ids; a
	// miss is reported as a validation problem, never thrown.
	for _, a := range t.assocs {
		if a.Kind != Referenced || !a.fromOwner {
			continue
		}
		at := joinPath(path, a.Property)
		v, present := src[a.Property]
		if !present || v == nil {
			if !a.nullable {
				verrs.Add(at, "is required")
			}
			continue
		}
		itemUUID, ok := v.(string)
		if !ok {
			verrs.Add(at, "must be a %s UUID", a.Target.Name)
			continue
		}
		id, found, err := a.Target.resolveReference(ctx, q, itemUUID, feedAlias)
		if err != nil {
			return nil, err
		}
		if !found {
			verrs.Add(at, "references unknown %s %s", a.Target.Name, itemUUID)
			continue
		}
		colVals[a.column] = id
		stub := a.Target.newReferenceStub(id, itemUUID, feedAlias)
		a := a
		*after = append(*after, func() { r.single[a.Property] = stub })
	}

	for _, f := range t.allFields() {
		v, present := src[f.Property]
		if !present && f.Column == colFeedAlias && feedAlias != "" {
			v = feedAlias
		}
		cv, ok := f.validateAndConvert(v, path, verrs)
		if ok && cv != nil {
			colVals[f.Column] = cv
		}
	}

	if owner != nil {
		colVals[owner.column] = owner.id
	}

	// The row is only written while the shared error list is still clean;
	// once any problem exists every further write is skipped and the walk
	// continues purely to finish validating.
	if verrs.Empty() {
		if err := r.insertRow(ctx, q, colVals); err != nil {
			return nil, err
		}
	}

	// Children pointing back at us need our generated id first.
	for _, a := range t.assocs {
		if a.Kind != UniOwned || a.fromOwner {
			continue
		}
		at := joinPath(path, a.Property)
		sub, present := src[a.Property]
		if !present || sub == nil {
			continue
		}
		subMap, ok := sub.(map[string]interface{})
		if !ok {
			verrs.Add(at, "must be an object")
			continue
		}
		child, err := a.Target.insertTree(ctx, q, subMap, at, feedAlias, &ownerRef{column: a.column, id: r.ID()}, verrs, after)
		if err != nil {
			return nil, err
		}
		a, child := a, child
		*after = append(*after, func() { r.single[a.Property] = child })
	}

	for _, a := range t.assocs {
		if a.Kind != MultiOwned {
			continue
		}
		at := joinPath(path, a.Property)
		sub, present := src[a.Property]
		if !present || sub == nil {
			continue
		}
		items, ok := asList(sub)
		if !ok {
			verrs.Add(at, "must be a list")
			continue
		}
		for i, item := range items {
			itemAt := fmt.Sprintf("%s[%d]", at, i)
			itemMap, ok := item.(map[string]interface{})
			if !ok {
				verrs.Add(itemAt, "must be an object")
				continue
			}
			child, err := a.Target.insertTree(ctx, q, itemMap, itemAt, feedAlias, &ownerRef{column: a.column, id: r.ID()}, verrs, after)
			if err != nil {
				return nil, err
			}
			a, child := a, child
			*after = append(*after, func() { r.multi[a.Property] = append(r.multi[a.Property], child) })
		}
	}

	return r, nil
}

// newReferenceStub is the minimal in-memory stand-in for a referenced feed
// item: enough identity for projections, no owned payload.
func (t *Type) newReferenceStub(id int64, itemUUID, feedAlias string) *Record {
	stub := t.New()
	stub.persisted[colID] = id
	stub.persisted[colFeedItemID] = itemUUID
	if feedAlias != "" {
		stub.persisted[colFeedAlias] = feedAlias
	}
	return stub
}

func asList(v interface{}) ([]interface{}, bool) {
	switch xs := v.(type) {
	case []interface{}:
		return xs, true
	case []map[string]interface{}:
		out := make([]interface{}, len(xs))
		for i, m := range xs {
			out[i] = m
		}
		return out, true
	}
	return nil, false
}

func (r *Record) insertRow(ctx context.Context, q Querier, colVals map[string]interface{}) error {
	t := r.typ
	cols := orderedColumns(t, colVals)
	args := make([]interface{}, len(cols))
	ph := make([]string, len(cols))
	for i, col := range cols {
		v := colVals[col]
		if f := t.fieldByColumn(col); f != nil {
			v = f.bindValue(v)
		}
		args[i] = v
		ph[i] = "$" + strconv.Itoa(i+1)
	}
	sql := "INSERT INTO " + t.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" + strings.Join(ph, ", ") + ")" +
		" RETURNING id, row_version, row_created, row_persisted"
	var id, ver int64
	var created, persisted time.Time
	if err := q.QueryRow(ctx, sql, args...).Scan(&id, &ver, &created, &persisted); err != nil {
		return fmt.Errorf("insert %s: %w", t.Name, err)
	}
	for col, v := range colVals {
		r.persisted[col] = v
	}
	r.persisted[colID] = id
	r.persisted[colRowVersion] = ver
	r.persisted[colRowCreated] = created
	r.persisted[colRowPersisted] = persisted
	return nil
}

// orderedColumns renders colVals keys in declaration order (feed identity,
// declared fields, then any remaining join columns sorted) so statements
// are deterministic.
func orderedColumns(t *Type, colVals map[string]interface{}) []string {
	var cols []string
	used := map[string]bool{}
	for _, f := range t.allFields() {
		if _, ok := colVals[f.Column]; ok {
			cols = append(cols, f.Column)
			used[f.Column] = true
		}
	}
	var rest []string
	for col := range colVals {
		if !used[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}

// UpdateWithCandidate applies a candidate object to a fetched record:
// scalar fields diff into the pending map, owned children recurse, missing
// children retire, new children insert, and the row-version protocol
// guards the flat update. Returns *ValidationErrors or *ConflictErrors on
// the respective aggregate outcome.
func (r *Record) UpdateWithCandidate(ctx context.Context, q Querier, candidate map[string]interface{}) error {
	verrs := &ValidationErrors{}
	confls := &ConflictErrors{}
	var after []func()
	run := func(ctx context.Context, q Querier) error {
		if err := r.updateTree(ctx, q, candidate, "", verrs, confls, &after); err != nil {
			return err
		}
		if !verrs.Empty() {
			return verrs
		}
		if !confls.Empty() {
			return confls
		}
		return nil
	}
	var err error
	if len(r.typ.assocs) > 0 {
		err = inTransaction(ctx, q, run)
	} else {
		err = run(ctx, q)
	}
	if err != nil {
		return err
	}
	for _, f := range after {
		f()
	}
	return nil
}

// Update flushes changes recorded through Set using the row-version
// protocol. No-op when nothing is pending.
func (r *Record) Update(ctx context.Context, q Querier) error {
	if !r.Dirty() {
		return nil
	}
	confls := &ConflictErrors{}
	var after []func()
	if err := r.updateRow(ctx, q, confls, &after); err != nil {
		return err
	}
	if !confls.Empty() {
		return confls
	}
	for _, f := range after {
		f()
	}
	return nil
}

func (r *Record) updateTree(ctx context.Context, q Querier, cand map[string]interface{}, path string, verrs *ValidationErrors, confls *ConflictErrors, after *[]func()) error {
	t := r.typ

	for _, f := range t.allFields() {
		if f.InsertOnly {
			continue
		}
		v, present := cand[f.Property]
		if !present {
			continue
		}
		cv, ok := f.validateAndConvert(v, path, verrs)
		if !ok {
			continue
		}
		if f.columnEqual(cv, r.persisted[f.Column]) {
			delete(r.pending, f.Column)
		} else {
			r.pending[f.Column] = cv
		}
	}

	for _, a := range t.assocs {
		if a.Kind != Referenced || !a.fromOwner {
			continue
		}
		at := joinPath(path, a.Property)
		v, present := cand[a.Property]
		if !present {
			continue
		}
		if v == nil {
			if !a.nullable {
				verrs.Add(at, "is required")
				continue
			}
			if r.persisted[a.column] != nil {
				r.pending[a.column] = nil
				a := a
				*after = append(*after, func() { delete(r.single, a.Property) })
			}
			continue
		}
		itemUUID, ok := v.(string)
		if !ok {
			verrs.Add(at, "must be a %s UUID", a.Target.Name)
			continue
		}
		id, found, err := a.Target.resolveReference(ctx, q, itemUUID, r.FeedAlias())
		if err != nil {
			return err
		}
		if !found {
			verrs.Add(at, "references unknown %s %s", a.Target.Name, itemUUID)
			continue
		}
		if asInt64(r.persisted[a.column]) != id {
			r.pending[a.column] = id
			stub := a.Target.newReferenceStub(id, itemUUID, r.FeedAlias())
			a := a
			*after = append(*after, func() { r.single[a.Property] = stub })
		}
	}

	// Removing a child row has to wait until our own row no longer points
	// at it, so hard deletes cannot trip the foreign key.
	var removals []func() error

	for _, a := range t.assocs {
		if a.Kind != UniOwned {
			continue
		}
		at := joinPath(path, a.Property)
		v, present := cand[a.Property]
		child := r.single[a.Property]

		switch {
		case present && v != nil && child != nil:
			subMap, ok := v.(map[string]interface{})
			if !ok {
				verrs.Add(at, "must be an object")
				continue
			}
			if err := child.updateTree(ctx, q, subMap, at, verrs, confls, after); err != nil {
				return err
			}
		case present && v != nil && child == nil:
			subMap, ok := v.(map[string]interface{})
			if !ok {
				verrs.Add(at, "must be an object")
				continue
			}
			var owner *ownerRef
			if !a.fromOwner {
				owner = &ownerRef{column: a.column, id: r.ID()}
			}
			newChild, err := a.Target.insertTree(ctx, q, subMap, at, r.FeedAlias(), owner, verrs, after)
			if err != nil {
				return err
			}
			if a.fromOwner && newChild.ID() != 0 {
				r.pending[a.column] = newChild.ID()
			}
			a, newChild := a, newChild
			*after = append(*after, func() { r.single[a.Property] = newChild })
		case present && v == nil && child != nil, !present && child != nil:
			if a.fromOwner {
				if !a.nullable {
					verrs.Add(at, "is required")
					continue
				}
				r.pending[a.column] = nil
			}
			child := child
			removals = append(removals, func() error { return child.retireOrDelete(ctx, q, after) })
			a := a
			*after = append(*after, func() { delete(r.single, a.Property) })
		}
	}

	// A candidate is the full representation: an absent or null collection
	// means empty, retiring every persisted child, just like an absent
	// UniOwned child does.
	for _, a := range t.assocs {
		if a.Kind != MultiOwned {
			continue
		}
		at := joinPath(path, a.Property)
		var items []interface{}
		if v := cand[a.Property]; v != nil {
			var ok bool
			items, ok = asList(v)
			if !ok {
				verrs.Add(at, "must be a list")
				continue
			}
		}
		if err := r.diffMultiOwned(ctx, q, a, items, at, verrs, confls, after, &removals); err != nil {
			return err
		}
	}

	if len(r.pending) > 0 && verrs.Empty() {
		if err := r.updateRow(ctx, q, confls, after); err != nil {
			return err
		}
	}
	for _, rm := range removals {
		if err := rm(); err != nil {
			return err
		}
	}
	return nil
}

// diffMultiOwned reconciles a persisted collection with its candidate set.
// Matching is by feed item UUID first, then by backend correlation id;
// matched children recurse, unmatched persisted children retire (or
// delete), unmatched candidates insert as new.
func (r *Record) diffMultiOwned(ctx context.Context, q Querier, a *assoc, items []interface{}, at string, verrs *ValidationErrors, confls *ConflictErrors, after *[]func(), removals *[]func() error) error {
	persisted := r.multi[a.Property]
	consumed := make([]bool, len(persisted))

	match := func(itemMap map[string]interface{}) *Record {
		if u, ok := itemMap["feedItemId"].(string); ok && u != "" {
			for i, p := range persisted {
				if !consumed[i] && p.FeedItemID() == u {
					consumed[i] = true
					return p
				}
			}
			return nil
		}
		if b, ok := itemMap["backendItemId"].(string); ok && b != "" {
			for i, p := range persisted {
				if !consumed[i] && p.BackendItemID() == b {
					consumed[i] = true
					return p
				}
			}
		}
		return nil
	}

	newList := make([]*Record, 0, len(items))
	for i, item := range items {
		itemAt := fmt.Sprintf("%s[%d]", at, i)
		itemMap, ok := item.(map[string]interface{})
		if !ok {
			verrs.Add(itemAt, "must be an object")
			continue
		}
		if p := match(itemMap); p != nil {
			if err := p.updateTree(ctx, q, itemMap, itemAt, verrs, confls, after); err != nil {
				return err
			}
			newList = append(newList, p)
			continue
		}
		child, err := a.Target.insertTree(ctx, q, itemMap, itemAt, r.FeedAlias(), &ownerRef{column: a.column, id: r.ID()}, verrs, after)
		if err != nil {
			return err
		}
		newList = append(newList, child)
	}

	for i, p := range persisted {
		if consumed[i] {
			continue
		}
		p := p
		*removals = append(*removals, func() error { return p.retireOrDelete(ctx, q, after) })
	}

	a2 := a
	*after = append(*after, func() { r.multi[a2.Property] = newList })
	return nil
}

// updateRow is the optimistic flat-row update: write guarded by the known
// row version; on a miss, re-read and three-way compare each intended
// column against its previously known value. Only a substantive
// divergence is a conflict; a bare version race retries against the
// refreshed baseline.
func (r *Record) updateRow(ctx context.Context, q Querier, confls *ConflictErrors, after *[]func()) error {
	t := r.typ
	pendingCols := make([]string, 0, len(r.pending))
	for col := range r.pending {
		pendingCols = append(pendingCols, col)
	}
	sort.Strings(pendingCols)

	baseline := make(map[string]interface{}, len(r.persisted))
	for k, v := range r.persisted {
		baseline[k] = v
	}

	for attempt := 0; attempt < t.maxUpdateRetries; attempt++ {
		sets := make([]string, 0, len(pendingCols)+2)
		args := make([]interface{}, 0, len(pendingCols)+2)
		for _, col := range pendingCols {
			v := r.pending[col]
			if f := t.fieldByColumn(col); f != nil {
				v = f.bindValue(v)
			}
			args = append(args, v)
			sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
		}
		sets = append(sets, "row_version = row_version + 1", "row_persisted = now()")
		args = append(args, r.ID(), asInt64(baseline[colRowVersion]))
		sql := "UPDATE " + t.Table + " SET " + strings.Join(sets, ", ") +
			" WHERE id = $" + strconv.Itoa(len(args)-1) + " AND row_version = $" + strconv.Itoa(len(args))

		tag, err := q.Exec(ctx, sql, args...)
		if err != nil {
			return fmt.Errorf("update %s: %w", t.Name, err)
		}
		if tag.RowsAffected() == 1 {
			newVersion := asInt64(baseline[colRowVersion]) + 1
			*after = append(*after, func() {
				for col, v := range r.pending {
					if v == nil {
						delete(r.persisted, col)
						continue
					}
					r.persisted[col] = v
				}
				r.persisted[colRowVersion] = newVersion
				r.persisted[colRowPersisted] = time.Now().UTC()
				r.pending = map[string]interface{}{}
			})
			return nil
		}

		current, err := t.fetchOwnRow(ctx, q, r.ID())
		if err != nil {
			return err
		}
		if current == nil {
			confls.Add(Conflict{Table: t.Table, Column: colID, Known: r.ID(), Persisted: nil, Candidate: r.ID()})
			return nil
		}
		if current[colRowRetired] != nil && baseline[colRowRetired] == nil {
			// A concurrently retired row always conflicts.
			confls.Add(Conflict{Table: t.Table, Column: colRowRetired, Known: nil, Persisted: current[colRowRetired]})
			return nil
		}
		dirty := false
		for _, col := range pendingCols {
			f := t.fieldByColumn(col)
			equal := current[col] == baseline[col]
			if f != nil {
				equal = f.columnEqual(current[col], baseline[col])
			}
			if !equal {
				confls.Add(Conflict{Table: t.Table, Column: col, Known: baseline[col], Persisted: current[col], Candidate: r.pending[col]})
				dirty = true
			}
		}
		if dirty {
			return nil
		}
		// Pure version race: someone changed columns we are not touching.
		// Re-derive the compare baseline and try again.
		baseline = current
	}
	return fmt.Errorf("update %s id=%d: %w", t.Name, r.ID(), ErrRetryExhausted)
}

// fetchOwnRow reads the current persisted state of this record's own
// columns, used to derive conflict baselines. nil map means the row is
// gone.
func (t *Type) fetchOwnRow(ctx context.Context, q Querier, id int64) (map[string]interface{}, error) {
	exprs := []string{colID, colRowVersion, colRowCreated, colRowPersisted}
	if t.retirable {
		exprs = append(exprs, colRowRetired)
	}
	names := append([]string{}, exprs...)
	for _, f := range t.allFields() {
		if f.Kind == SHA256 {
			exprs = append(exprs, "encode("+f.Column+", 'hex')")
		} else {
			exprs = append(exprs, f.Column)
		}
		names = append(names, f.Column)
	}
	for _, col := range t.joinKeyColumns() {
		exprs = append(exprs, col)
		names = append(names, col)
	}
	sql := "SELECT " + strings.Join(exprs, ", ") + " FROM " + t.Table + " WHERE id = $1"
	rows, err := q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("refetch %s: %w", t.Name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("refetch %s: %w", t.Name, err)
		}
		return nil, nil
	}
	vals, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("refetch %s values: %w", t.Name, err)
	}
	row := map[string]interface{}{}
	for i, name := range names {
		if v := normalizeValue(vals[i]); v != nil {
			row[name] = v
		}
	}
	return row, nil
}

// Retire soft-deletes the record and its owned children. Retiring an
// already retired record is a no-op.
func (r *Record) Retire(ctx context.Context, q Querier) error {
	if !r.typ.retirable {
		return fmt.Errorf("%s does not support retirement", r.typ.Name)
	}
	var after []func()
	run := func(ctx context.Context, q Querier) error {
		return r.retireCascade(ctx, q, &after)
	}
	var err error
	if r.hasOwnedChildren() {
		err = inTransaction(ctx, q, run)
	} else {
		err = run(ctx, q)
	}
	if err != nil {
		return err
	}
	for _, f := range after {
		f()
	}
	return nil
}

func (r *Record) hasOwnedChildren() bool {
	for _, a := range r.typ.assocs {
		if a.Kind == Referenced {
			continue
		}
		if r.single[a.Property] != nil || len(r.multi[a.Property]) > 0 {
			return true
		}
	}
	return false
}

func (r *Record) retireCascade(ctx context.Context, q Querier, after *[]func()) error {
	for _, a := range r.typ.assocs {
		if a.Kind == Referenced {
			continue
		}
		if c := r.single[a.Property]; c != nil {
			if a.fromOwner && !a.Target.retirable {
				// Our surviving row still points at the child, so its hard
				// delete needs the key cleared first. A NOT NULL key cannot
				// be cleared; that child outlives the retirement.
				if !a.nullable {
					continue
				}
				if err := r.clearJoinKey(ctx, q, a.column, after); err != nil {
					return err
				}
			}
			if err := c.retireOrDelete(ctx, q, after); err != nil {
				return err
			}
		}
		for _, c := range r.multi[a.Property] {
			if err := c.retireOrDelete(ctx, q, after); err != nil {
				return err
			}
		}
	}
	return r.retireRow(ctx, q, after)
}

func (r *Record) clearJoinKey(ctx context.Context, q Querier, column string, after *[]func()) error {
	sql := "UPDATE " + r.typ.Table + " SET " + column + " = NULL WHERE id = $1"
	if _, err := q.Exec(ctx, sql, r.ID()); err != nil {
		return fmt.Errorf("detach %s.%s: %w", r.typ.Name, column, err)
	}
	*after = append(*after, func() { delete(r.persisted, column) })
	return nil
}

func (r *Record) retireRow(ctx context.Context, q Querier, after *[]func()) error {
	t := r.typ
	sql := "UPDATE " + t.Table + " SET row_retired = now() WHERE id = $1 AND row_retired IS NULL RETURNING row_retired"
	var retired time.Time
	err := q.QueryRow(ctx, sql, r.ID()).Scan(&retired)
	if err != nil {
		if isNoRows(err) {
			return nil // already retired
		}
		return fmt.Errorf("retire %s: %w", t.Name, err)
	}
	*after = append(*after, func() { r.persisted[colRowRetired] = retired })
	return nil
}

// retireOrDelete removes a child record the way its table allows: soft
// delete when a retirement column exists, hard delete otherwise. Cascades
// through the child's own owned tree. In-memory effects join the caller's
// after list so a later rollback discards them too.
func (r *Record) retireOrDelete(ctx context.Context, q Querier, after *[]func()) error {
	if r.typ.retirable {
		return r.retireCascade(ctx, q, after)
	}
	return r.deleteCascade(ctx, q, after)
}

// Delete hard-deletes the record and its owned children.
func (r *Record) Delete(ctx context.Context, q Querier) error {
	var after []func()
	run := func(ctx context.Context, q Querier) error {
		return r.deleteCascade(ctx, q, &after)
	}
	var err error
	if r.hasOwnedChildren() {
		err = inTransaction(ctx, q, run)
	} else {
		err = run(ctx, q)
	}
	if err != nil {
		return err
	}
	for _, f := range after {
		f()
	}
	return nil
}

func (r *Record) deleteCascade(ctx context.Context, q Querier, after *[]func()) error {
	// Children holding a key to us must go first; children we point at can
	// only go once our row is gone.
	for _, a := range r.typ.assocs {
		if a.Kind == Referenced || a.fromOwner {
			continue
		}
		if c := r.single[a.Property]; c != nil {
			if err := c.deleteCascade(ctx, q, after); err != nil {
				return err
			}
		}
		for _, c := range r.multi[a.Property] {
			if err := c.deleteCascade(ctx, q, after); err != nil {
				return err
			}
		}
	}
	if _, err := q.Exec(ctx, "DELETE FROM "+r.typ.Table+" WHERE id = $1", r.ID()); err != nil {
		return fmt.Errorf("delete %s: %w", r.typ.Name, err)
	}
	for _, a := range r.typ.assocs {
		if a.Kind != UniOwned || !a.fromOwner {
			continue
		}
		if c := r.single[a.Property]; c != nil {
			if err := c.deleteCascade(ctx, q, after); err != nil {
				return err
			}
		}
	}
	return nil
}

// Retire soft-deletes one row by id without loading it; a zero-row result
// (already retired, or alias mismatch) is a no-op, not an error.
func (t *Type) Retire(ctx context.Context, q Querier, id int64, feedAlias string) (bool, error) {
	if !t.retirable {
		return false, fmt.Errorf("%s does not support retirement", t.Name)
	}
	sql := "UPDATE " + t.Table + " SET row_retired = now() WHERE id = $1 AND row_retired IS NULL"
	args := []interface{}{id}
	if feedAlias != "" {
		sql += " AND feed_alias = $2"
		args = append(args, feedAlias)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("retire %s: %w", t.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RetireByUUID soft-deletes a feed item row by its external identity.
func (t *Type) RetireByUUID(ctx context.Context, q Querier, itemUUID, feedAlias string) (bool, error) {
	if !t.retirable {
		return false, fmt.Errorf("%s does not support retirement", t.Name)
	}
	if !t.FeedItem {
		return false, fmt.Errorf("%s is not a feed item type", t.Name)
	}
	sql := "UPDATE " + t.Table + " SET row_retired = now() WHERE feed_item_id = $1 AND row_retired IS NULL"
	args := []interface{}{itemUUID}
	if feedAlias != "" {
		sql += " AND feed_alias = $2"
		args = append(args, feedAlias)
	}
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("retire %s: %w", t.Name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
