package record

import (
	"fmt"
	"sort"
	"strings"
)

// joinNode is one position in the owned/referenced join tree. The same
// table may appear at several positions; each gets its own path-composed
// alias (e.g. selfContact, selfContact_address) so columns never collide.
type joinNode struct {
	typ      *Type
	a        *assoc // nil at the root
	alias    string
	parent   *joinNode
	children []*joinNode
}

func (n *joinNode) isRoot() bool { return n.parent == nil }

// ref renders a column reference for this node. The root keeps its bare
// table name so caller-supplied criteria can use it; joined nodes use
// quoted aliases because property paths are case-sensitive.
func (n *joinNode) ref(column string) string {
	if n.isRoot() {
		return n.typ.Table + "." + column
	}
	return `"` + n.alias + `".` + column
}

// flatQuery is the precomputed single-statement fetch for an entity and
// its transitive UniOwned/Referenced closure. MultiOwned branches are
// excluded; they get statements of their own.
type flatQuery struct {
	root       *joinNode
	selectList string
	joins      string
}

// multiPath is one ownership path from the top entity down to a MultiOwned
// anchor, rendered as the join chain of an EXISTS semi-join.
type multiPath struct {
	anchor     *assoc
	rootTable  string // the top entity's table, the FROM of the semi-join
	ownerIDRef string // reference to the owner's primary key inside the chain
	chain      string // JOIN fragments between the top table and the owner
	depth      int
}

// multiQuery fetches one MultiOwned table (with its own owned/referenced
// closure) restricted to the top-level query's row set. Several paths to
// the same table merge into one statement with OR-ed semi-join predicates.
type multiQuery struct {
	target *Type
	paths  []*multiPath
}

func (t *Type) buildSQL() error {
	root, err := t.buildFlatTree()
	if err != nil {
		return err
	}
	t.flat = buildFlatQuery(root)

	byTable := map[string]*multiQuery{}
	if err := t.findMultiPaths(root, nil, byTable); err != nil {
		return err
	}
	t.multi = t.multi[:0]
	for _, mq := range byTable {
		t.multi = append(t.multi, mq)
	}
	// Shorter paths first so owners fetched by one statement are already
	// registered when a deeper statement's rows attach to them.
	sort.Slice(t.multi, func(i, j int) bool {
		if t.multi[i].minDepth() != t.multi[j].minDepth() {
			return t.multi[i].minDepth() < t.multi[j].minDepth()
		}
		return t.multi[i].target.Table < t.multi[j].target.Table
	})
	t.hasMult = len(t.multi) > 0
	return nil
}

func (mq *multiQuery) minDepth() int {
	d := mq.paths[0].depth
	for _, p := range mq.paths[1:] {
		if p.depth < d {
			d = p.depth
		}
	}
	return d
}

func (t *Type) buildFlatTree() (*joinNode, error) {
	root := &joinNode{typ: t, alias: t.Table}
	if err := expandNode(root, map[*Type]bool{t: true}); err != nil {
		return nil, err
	}
	return root, nil
}

func expandNode(n *joinNode, onPath map[*Type]bool) error {
	for _, a := range n.typ.assocs {
		if a.Kind == MultiOwned {
			continue
		}
		if onPath[a.Target] {
			return setupErrf(n.typ.Name, "association %q: cyclic join path through %s", a.Property, a.Target.Name)
		}
		child := &joinNode{
			typ:    a.Target,
			a:      a,
			alias:  childAlias(n, a.Property),
			parent: n,
		}
		n.children = append(n.children, child)
		onPath[a.Target] = true
		if err := expandNode(child, onPath); err != nil {
			return err
		}
		delete(onPath, a.Target)
	}
	return nil
}

func childAlias(parent *joinNode, prop string) string {
	if parent.isRoot() {
		return prop
	}
	return parent.alias + "_" + prop
}

func buildFlatQuery(root *joinNode) *flatQuery {
	var cols, joins []string
	var walk func(n *joinNode)
	walk = func(n *joinNode) {
		cols = append(cols, nodeColumns(n)...)
		for _, c := range n.children {
			joins = append(joins, joinClause(c))
			walk(c)
		}
	}
	walk(root)
	return &flatQuery{
		root:       root,
		selectList: strings.Join(cols, ", "),
		joins:      strings.Join(joins, " "),
	}
}

// nodeColumns renders the select expressions of one node. Every column is
// re-aliased under the node's path alias so the driver can regroup the
// flat row per table position. SHA-256 bytea columns are hex-rendered into
// the table-less bag (marked with a leading '#'). Join key columns ride
// along even though no property exposes them: association wiring and the
// update diff both read them off the persisted snapshot.
func nodeColumns(n *joinNode) []string {
	t := n.typ
	cols := []string{
		fmt.Sprintf(`%s AS "%s.%s"`, n.ref(colID), n.alias, colID),
		fmt.Sprintf(`%s AS "%s.%s"`, n.ref(colRowVersion), n.alias, colRowVersion),
		fmt.Sprintf(`%s AS "%s.%s"`, n.ref(colRowCreated), n.alias, colRowCreated),
		fmt.Sprintf(`%s AS "%s.%s"`, n.ref(colRowPersisted), n.alias, colRowPersisted),
	}
	if t.retirable {
		cols = append(cols, fmt.Sprintf(`%s AS "%s.%s"`, n.ref(colRowRetired), n.alias, colRowRetired))
	}
	for _, f := range t.allFields() {
		if f.Kind == SHA256 {
			cols = append(cols, fmt.Sprintf(`encode(%s, 'hex') AS "#%s.%s"`, n.ref(f.Column), n.alias, f.Column))
			continue
		}
		cols = append(cols, fmt.Sprintf(`%s AS "%s.%s"`, n.ref(f.Column), n.alias, f.Column))
	}
	for _, col := range t.joinKeyColumns() {
		cols = append(cols, fmt.Sprintf(`%s AS "%s.%s"`, n.ref(col), n.alias, col))
	}
	return cols
}

// joinKeyColumns lists the table's foreign key columns that are not mapped
// as fields, sorted for deterministic statements.
func (t *Type) joinKeyColumns() []string {
	var cols []string
	seen := map[string]bool{}
	for _, fk := range t.schema.ForeignKeys {
		if seen[fk.Column] || t.fieldByColumn(fk.Column) != nil {
			continue
		}
		seen[fk.Column] = true
		cols = append(cols, fk.Column)
	}
	sort.Strings(cols)
	return cols
}

// joinClause renders the JOIN for a non-root node. A nullable join column
// demands a LEFT JOIN so the owner row still comes back when the sub-entity
// is absent; a NOT NULL column gets a plain (inner) JOIN.
func joinClause(n *joinNode) string {
	kind := "JOIN"
	if n.a.nullable {
		kind = "LEFT JOIN"
	}
	var on string
	if n.a.fromOwner {
		on = fmt.Sprintf("%s = %s", n.parent.ref(n.a.column), n.ref(n.typ.schema.PrimaryKey))
	} else {
		on = fmt.Sprintf("%s = %s", n.ref(n.a.column), n.parent.ref(n.parent.typ.schema.PrimaryKey))
	}
	return fmt.Sprintf(`%s %s AS "%s" ON %s`, kind, n.typ.Table, n.alias, on)
}

// findMultiPaths walks the full association graph (through MultiOwned
// edges as well) collecting, per distinct MultiOwned table, every
// ownership path and its minimal join chain. Only joins on the path are
// materialized; an owner at the top needs no join at all.
func (t *Type) findMultiPaths(owner *joinNode, chain []string, byTable map[string]*multiQuery) error {
	if len(chain) > 8 {
		return setupErrf(t.Name, "ownership graph nests deeper than 8 joins; likely a multiOwned cycle")
	}
	for _, a := range owner.typ.assocs {
		if a.Kind == MultiOwned {
			if a.Target.Table == t.Table {
				return setupErrf(t.Name, "association %q: self-referential multiOwned is not supported", a.Property)
			}
			mq := byTable[a.Target.Table]
			if mq == nil {
				mq = &multiQuery{target: a.Target}
				byTable[a.Target.Table] = mq
			}
			mq.paths = append(mq.paths, &multiPath{
				anchor:     a,
				rootTable:  t.Table,
				ownerIDRef: owner.ref(owner.typ.schema.PrimaryKey),
				chain:      strings.Join(chain, " "),
				depth:      len(chain),
			})
			// Walk into the multi subtree for deeper anchors. Its join
			// chain goes through this anchor's own join, and its owned/
			// referenced closure is re-rooted under the path alias.
			child := &joinNode{typ: a.Target, a: a, alias: childAlias(owner, a.Property), parent: owner}
			if err := expandNode(child, map[*Type]bool{t: true, a.Target: true}); err != nil {
				return err
			}
			deeper := append(append([]string{}, chain...), multiJoinClause(child))
			if err := t.findMultiPaths(child, deeper, byTable); err != nil {
				return err
			}
			continue
		}
	}
	for _, c := range owner.children {
		deeper := append(append([]string{}, chain...), joinClause(c))
		if err := t.findMultiPaths(c, deeper, byTable); err != nil {
			return err
		}
	}
	return nil
}

func multiJoinClause(n *joinNode) string {
	// MultiOwned: the owned table always holds the key.
	return fmt.Sprintf(`JOIN %s AS "%s" ON %s = %s`,
		n.typ.Table, n.alias, n.ref(n.a.column), n.parent.ref(n.parent.typ.schema.PrimaryKey))
}

// selectSQL renders the top-level statement. where may be empty; extra
// carries ORDER BY / LIMIT / OFFSET and applies to the top entity only.
func (fq *flatQuery) selectSQL(where, extra string) string {
	sql := "SELECT " + fq.selectList + " FROM " + fq.root.typ.Table
	if fq.joins != "" {
		sql += " " + fq.joins
	}
	if where != "" {
		sql += " WHERE " + where
	}
	if extra != "" {
		sql += " " + extra
	}
	return sql
}

// selectSQL renders one MultiOwned statement: the target's own flat tree
// filtered by a semi-join back to the top entity's criteria. Each
// reachable path contributes one EXISTS clause; they are OR-ed together.
func (mq *multiQuery) selectSQL(where string, includeRetired bool) string {
	fq := mq.target.flat
	var semis []string
	for _, p := range mq.paths {
		inner := "SELECT 1 FROM " + p.rootTable
		if p.chain != "" {
			inner += " " + p.chain
		}
		inner += " WHERE " + p.ownerIDRef + " = " + fq.root.ref(p.anchor.column)
		if where != "" {
			inner += " AND (" + where + ")"
		}
		semis = append(semis, "EXISTS ("+inner+")")
	}
	sql := "SELECT " + fq.selectList + " FROM " + fq.root.typ.Table
	if fq.joins != "" {
		sql += " " + fq.joins
	}
	sql += " WHERE (" + strings.Join(semis, " OR ") + ")"
	if mq.target.retirable && !includeRetired {
		sql += " AND " + fq.root.ref(colRowRetired) + " IS NULL"
	}
	sql += " ORDER BY " + fq.root.ref(colID)
	return sql
}
