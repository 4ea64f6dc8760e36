package record

import (
	"context"
	"fmt"
	"strconv"
)

// QueryOptions tunes GetWithCriteria. Limit/Offset apply to the top-level
// entity only; multi-owned statements are restricted through the semi-join
// and never paginated themselves.
type QueryOptions struct {
	Limit          int
	Offset         int
	OrderBy        string // defaults to the primary key
	IncludeRetired bool
}

// GetWithCriteria fetches every record matching a WHERE fragment written
// against the entity's table columns (e.g. "patient.feed_alias = $1"),
// with its full owned/referenced tree and, in a second pass, its
// multi-owned collections.
func (t *Type) GetWithCriteria(ctx context.Context, q Querier, where string, args []interface{}, opts *QueryOptions) ([]*Record, error) {
	if opts == nil {
		opts = &QueryOptions{}
	}
	where = t.scopeWhere(where, opts.IncludeRetired)

	extra := "ORDER BY " + t.Table + ".id"
	if opts.OrderBy != "" {
		extra = "ORDER BY " + opts.OrderBy
	}
	topArgs := args
	if opts.Limit > 0 {
		extra += " LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
		topArgs = append(append([]interface{}{}, args...), opts.Limit, opts.Offset)
	}

	rows, err := fetchNested(ctx, q, t.flat.selectSQL(where, extra), topArgs)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", t.Name, err)
	}

	owners := ownerIndex{}
	recs := make([]*Record, 0, len(rows))
	for _, nr := range rows {
		if r := buildNode(t.flat.root, nr, owners); r != nil {
			recs = append(recs, r)
		}
	}

	if t.hasMult && len(recs) > 0 {
		for _, mq := range t.multi {
			sql := mq.selectSQL(where, opts.IncludeRetired)
			mrows, err := fetchNested(ctx, q, sql, args)
			if err != nil {
				return nil, fmt.Errorf("fetch %s %s: %w", t.Name, mq.target.Name, err)
			}
			for _, nr := range mrows {
				rec := buildNode(mq.target.flat.root, nr, owners)
				if rec == nil {
					continue
				}
				attachMulti(mq, rec, owners)
			}
		}
	}
	return recs, nil
}

// GetByID fetches one record by surrogate id. feedAlias additionally
// scopes feed item types; pass "" to skip the check.
func (t *Type) GetByID(ctx context.Context, q Querier, id int64, feedAlias string) (*Record, error) {
	where := t.Table + ".id = $1"
	args := []interface{}{id}
	if feedAlias != "" {
		where += " AND " + t.Table + ".feed_alias = $2"
		args = append(args, feedAlias)
	}
	return t.getOne(ctx, q, where, args)
}

// GetByUUID fetches one feed item record by its externally visible UUID
// within a feed alias.
func (t *Type) GetByUUID(ctx context.Context, q Querier, itemUUID, feedAlias string) (*Record, error) {
	if !t.FeedItem {
		return nil, fmt.Errorf("%s is not a feed item type", t.Name)
	}
	where := t.Table + ".feed_item_id = $1"
	args := []interface{}{itemUUID}
	if feedAlias != "" {
		where += " AND " + t.Table + ".feed_alias = $2"
		args = append(args, feedAlias)
	}
	return t.getOne(ctx, q, where, args)
}

func (t *Type) getOne(ctx context.Context, q Querier, where string, args []interface{}) (*Record, error) {
	recs, err := t.GetWithCriteria(ctx, q, where, args, nil)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return recs[0], nil
}

func (t *Type) scopeWhere(where string, includeRetired bool) string {
	if t.retirable && !includeRetired {
		live := t.Table + ".row_retired IS NULL"
		if where == "" {
			return live
		}
		return "(" + where + ") AND " + live
	}
	return where
}

// resolveReference looks up the surrogate id of a referenced feed item by
// UUID within the caller's feed alias. A miss is a validation problem, not
// a hard failure.
func (t *Type) resolveReference(ctx context.Context, q Querier, itemUUID, feedAlias string) (int64, bool, error) {
	sql := "SELECT id FROM " + t.Table + " WHERE feed_item_id = $1 AND feed_alias = $2"
	if t.retirable {
		sql += " AND row_retired IS NULL"
	}
	var id int64
	err := q.QueryRow(ctx, sql, itemUUID, feedAlias).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolve %s reference: %w", t.Name, err)
	}
	return id, true, nil
}
