package record

// ownerIndex tracks constructed records that can still receive MultiOwned
// children, keyed by table name and surrogate id. Populated while
// demultiplexing the top-level rows (and shallower multi statements), read
// by the second pass that attaches each multi-owned row to its owner.
type ownerIndex map[string]map[int64]*Record

func (ix ownerIndex) register(table string, r *Record) {
	if ix[table] == nil {
		ix[table] = map[int64]*Record{}
	}
	ix[table][r.ID()] = r
}

func (ix ownerIndex) lookup(table string, id int64) *Record {
	return ix[table][id]
}

// buildNode reconstructs the record for one join-tree position out of a
// nested row, wiring already-built children into their association slots.
// A sub-table whose columns are all NULL is a LEFT JOIN miss: the
// association property stays absent and no record is built.
func buildNode(n *joinNode, nr NestedRow, owners ownerIndex) *Record {
	group := nr.Tables[n.alias]
	if !anyValue(group) {
		return nil
	}
	r := n.typ.New()
	for col, v := range group {
		if v != nil {
			r.persisted[col] = v
		}
	}
	// Hex-decoded binary columns ride in the table-less bag and are folded
	// into the owning sub-row before construction completes.
	for col, v := range nr.Bag[n.alias] {
		if v != nil {
			r.persisted[col] = v
		}
	}
	for _, c := range n.children {
		if cr := buildNode(c, nr, owners); cr != nil {
			r.single[c.a.Property] = cr
		}
	}
	if n.typ.hasMult {
		owners.register(n.typ.Table, r)
	}
	return r
}

func anyValue(group map[string]interface{}) bool {
	for _, v := range group {
		if v != nil {
			return true
		}
	}
	return false
}

// attachMulti wires one fetched multi-owned record into its owner's
// collection. Owners outside the current result page simply miss the
// index lookup and the row is dropped.
func attachMulti(mq *multiQuery, rec *Record, owners ownerIndex) {
	seen := map[*assoc]bool{}
	for _, p := range mq.paths {
		a := p.anchor
		if seen[a] {
			continue
		}
		seen[a] = true
		fkv := rec.persisted[a.column]
		if fkv == nil {
			continue
		}
		owner := owners.lookup(a.owner.Table, asInt64(fkv))
		if owner == nil {
			continue
		}
		owner.multi[a.Property] = append(owner.multi[a.Property], rec)
	}
}
