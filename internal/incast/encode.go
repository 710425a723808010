package incast

import "fmt"

// Encode converts a node into its kind-discriminated map form. The result
// holds only maps, slices, strings, int64 and bool values, so it can be
// written as YAML or JSON and fed to MarshalCanonical.
func Encode(n Node) map[string]any {
	switch n := n.(type) {
	case *Module:
		return obj("module", "decls", encodeStmts(n.Decls))
	case *Fun:
		return obj("fun", "name", n.Name, "args", strs(n.Args), "body", encodeStmts(n.Body))
	case *For:
		return obj("for", "target", n.Target, "iter", Encode(n.Iter), "body", encodeStmts(n.Body))
	case *DecompFor:
		return obj("decompfor", "vars", strs(n.Vars), "iter", Encode(n.Iter), "body", encodeStmts(n.Body))
	case *While:
		return obj("while", "test", Encode(n.Test), "body", encodeStmts(n.Body))
	case *If:
		return obj("if", "test", Encode(n.Test), "body", encodeStmts(n.Body), "orelse", encodeStmts(n.Orelse))
	case *Pass:
		return obj("pass")
	case *Break:
		return obj("break")
	case *Continue:
		return obj("continue")
	case *Return:
		if n.Value == nil {
			return obj("return")
		}
		return obj("return", "value", Encode(n.Value))
	case *ExprStmt:
		return obj("expr", "value", Encode(n.Value))
	case *Assign:
		return obj("assign", "target", n.Target, "value", Encode(n.Value))
	case *DecompAssign:
		return obj("decompassign", "vars", strs(n.Vars), "value", Encode(n.Value))
	case *SetUpdate:
		return obj("setupdate", "target", Encode(n.Target), "op", string(n.Op), "value", Encode(n.Value))
	case *SetClear:
		return obj("setclear", "target", Encode(n.Target))
	case *RelUpdate:
		return obj("relupdate", "rel", n.Rel, "op", string(n.Op), "elem", n.Elem)
	case *RelClear:
		return obj("relclear", "rel", n.Rel)
	case *DictAssign:
		return obj("dictassign", "target", Encode(n.Target), "key", Encode(n.Key), "value", Encode(n.Value))
	case *DictDelete:
		return obj("dictdelete", "target", Encode(n.Target), "key", Encode(n.Key))
	case *DictClear:
		return obj("dictclear", "target", Encode(n.Target))
	case *MapAssign:
		return obj("mapassign", "map", n.Map, "key", Encode(n.Key), "value", Encode(n.Value))
	case *MapDelete:
		return obj("mapdelete", "map", n.Map, "key", Encode(n.Key))
	case *MapClear:
		return obj("mapclear", "map", n.Map)

	case *Name:
		return obj("name", "id", n.Ident)
	case *Num:
		return obj("num", "value", n.Value)
	case *Str:
		return obj("str", "value", n.Value)
	case *Bool:
		return obj("bool", "value", n.Value)
	case *None:
		return obj("none")
	case *Tuple:
		return obj("tuple", "elts", encodeExprs(n.Elts))
	case *List:
		return obj("list", "elts", encodeExprs(n.Elts))
	case *SetLit:
		return obj("set", "elts", encodeExprs(n.Elts))
	case *UnaryOp:
		return obj("unaryop", "op", string(n.Op), "operand", Encode(n.Operand))
	case *BoolOp:
		return obj("boolop", "op", string(n.Op), "values", encodeExprs(n.Values))
	case *BinOp:
		return obj("binop", "left", Encode(n.Left), "op", string(n.Op), "right", Encode(n.Right))
	case *Compare:
		return obj("compare", "left", Encode(n.Left), "op", string(n.Op), "right", Encode(n.Right))
	case *IfExp:
		return obj("ifexp", "test", Encode(n.Test), "body", Encode(n.Body), "orelse", Encode(n.Orelse))
	case *Call:
		return obj("call", "func", n.Func, "args", encodeExprs(n.Args))
	case *GeneralCall:
		return obj("generalcall", "func", Encode(n.Func), "args", encodeExprs(n.Args))
	case *Attribute:
		return obj("attribute", "value", Encode(n.Value), "attr", n.Attr)
	case *Subscript:
		return obj("subscript", "value", Encode(n.Value), "index", Encode(n.Index))
	case *DictLookup:
		m := obj("dictlookup", "value", Encode(n.Value), "key", Encode(n.Key))
		if n.Default != nil {
			m["default"] = Encode(n.Default)
		}
		return m
	case *MapLookup:
		m := obj("maplookup", "map", n.Map, "key", Encode(n.Key))
		if n.Default != nil {
			m["default"] = Encode(n.Default)
		}
		return m
	case *ImgLookup:
		return obj("imglookup", "set", Encode(n.Set), "mask", string(n.Mask), "bounds", strs(n.Bounds))
	case *SetFromMap:
		return obj("setfrommap", "map", n.Map, "mask", string(n.Mask))
	case *Unwrap:
		return obj("unwrap", "value", Encode(n.Value))
	case *GetCount:
		return obj("getcount", "rel", n.Rel, "elem", Encode(n.Elem))
	case *Comp:
		cls := make([]any, len(n.Clauses))
		for i, c := range n.Clauses {
			cls[i] = Encode(c)
		}
		return obj("comp", "resexp", Encode(n.Resexp), "clauses", cls)
	case *Aggr:
		return obj("aggr", "op", string(n.Op), "value", Encode(n.Value))
	case *AggrRestr:
		return obj("aggrrestr", "op", string(n.Op), "value", Encode(n.Value),
			"params", strs(n.Params), "restr", Encode(n.Restr))
	case *Query:
		return obj("query", "name", n.Name, "query", Encode(n.Query))
	case *FirstThen:
		return obj("firstthen", "first", Encode(n.First), "then", Encode(n.Then))

	case *RelMember:
		return obj("relmember", "vars", strs(n.Vars), "rel", n.Rel)
	case *SingMember:
		return obj("singmember", "vars", strs(n.Vars), "value", Encode(n.Value))
	case *VarsMember:
		return obj("member", "vars", strs(n.Vars), "iter", Encode(n.Iter))
	case *MapMember:
		return obj("mapmember", "key", n.Key, "value", n.Value, "map", n.Map)
	case *Cond:
		return obj("cond", "cond", Encode(n.Cond))
	}
	panic(fmt.Sprintf("incast: no encoding for %T", n))
}

// EncodeProgram converts a program into the map form read by
// DecodeProgram.
func EncodeProgram(p *Program) map[string]any {
	m := map[string]any{
		"relations": strs(p.Relations),
		"maps":      strs(p.Maps),
		"decls":     encodeStmts(p.Module.Decls),
	}
	if len(p.Counted) > 0 {
		m["counted"] = strs(p.Counted)
	}
	return m
}

func obj(kind string, kv ...any) map[string]any {
	m := map[string]any{"kind": kind}
	for i := 0; i+1 < len(kv); i += 2 {
		m[kv[i].(string)] = kv[i+1]
	}
	return m
}

func strs(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func encodeStmts(ss []Stmt) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = Encode(s)
	}
	return out
}

func encodeExprs(es []Expr) []any {
	out := make([]any, len(es))
	for i, e := range es {
		out[i] = Encode(e)
	}
	return out
}
