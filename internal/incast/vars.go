package incast

// FindVars returns the identifiers that occur in n in variable position,
// in order of first appearance. Function names and the relation and map
// fields of updates and clauses are not included; a relation referenced
// through a Name node is.
func FindVars(n Node) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(names ...string) {
		for _, v := range names {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	Walk(n, func(n Node) bool {
		switch n := n.(type) {
		case *Name:
			add(n.Ident)
		case *Fun:
			add(n.Args...)
		case *For:
			add(n.Target)
		case *DecompFor:
			add(n.Vars...)
		case *Assign:
			add(n.Target)
		case *DecompAssign:
			add(n.Vars...)
		case *RelUpdate:
			add(n.Elem)
		case *ImgLookup:
			add(n.Bounds...)
		case *AggrRestr:
			add(n.Params...)
		case *RelMember:
			add(n.Vars...)
		case *SingMember:
			add(n.Vars...)
		case *VarsMember:
			add(n.Vars...)
		case *MapMember:
			add(n.Key, n.Value)
		}
		return true
	})
	return out
}

// RenameVars returns n with every variable identifier x replaced by
// rename(x). Relation, map and function names are left alone.
func RenameVars(n Node, rename func(string) string) Node {
	names := func(vs []string) []string {
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = rename(v)
		}
		return out
	}
	return Rewrite(n, func(n Node) Node {
		switch n := n.(type) {
		case *Name:
			return NewName(rename(n.Ident))
		case *Fun:
			return &Fun{Name: n.Name, Args: names(n.Args), Body: n.Body}
		case *For:
			return &For{Target: rename(n.Target), Iter: n.Iter, Body: n.Body}
		case *DecompFor:
			return &DecompFor{Vars: names(n.Vars), Iter: n.Iter, Body: n.Body}
		case *Assign:
			return &Assign{Target: rename(n.Target), Value: n.Value}
		case *DecompAssign:
			return &DecompAssign{Vars: names(n.Vars), Value: n.Value}
		case *RelUpdate:
			return &RelUpdate{Rel: n.Rel, Op: n.Op, Elem: rename(n.Elem)}
		case *ImgLookup:
			return &ImgLookup{Set: n.Set, Mask: n.Mask, Bounds: names(n.Bounds)}
		case *AggrRestr:
			return &AggrRestr{Op: n.Op, Value: n.Value, Params: names(n.Params), Restr: n.Restr}
		case *RelMember:
			return &RelMember{Vars: names(n.Vars), Rel: n.Rel}
		case *SingMember:
			return &SingMember{Vars: names(n.Vars), Value: n.Value}
		case *VarsMember:
			return &VarsMember{Vars: names(n.Vars), Iter: n.Iter}
		case *MapMember:
			return &MapMember{Key: rename(n.Key), Value: rename(n.Value), Map: n.Map}
		}
		return n
	})
}

// RenameMap returns a rename function that maps the keys of m and leaves
// other names unchanged.
func RenameMap(m map[string]string) func(string) string {
	return func(v string) string {
		if r, ok := m[v]; ok {
			return r
		}
		return v
	}
}

// ContainsNode reports whether a node with the given ID occurs in n.
func ContainsNode(n Node, id NodeID) bool {
	found := false
	Walk(n, func(c Node) bool {
		if c.ID() == id {
			found = true
		}
		return !found
	})
	return found
}

// FindQueries returns the Query nodes in n in pre-order.
func FindQueries(n Node) []*Query {
	var out []*Query
	Walk(n, func(c Node) bool {
		if q, ok := c.(*Query); ok {
			out = append(out, q)
		}
		return true
	})
	return out
}
