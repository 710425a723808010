package incast

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ParseProgram reads a program written as YAML (or JSON) in the map form
// produced by EncodeProgram:
//
//	relations: [S]
//	maps: [M]
//	decls:
//	  - kind: fun
//	    name: main
//	    body: [...]
//
// Inside expressions a bare string is shorthand for a Name, an integer for
// a Num, a boolean for a Bool and null for None.
func ParseProgram(data []byte) (*Program, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{Message: err.Error()}
	}
	return DecodeProgram(raw)
}

// DecodeProgram decodes the map form of a program.
func DecodeProgram(raw any) (*Program, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, &DecodeError{Message: "program must be a mapping"}
	}
	d := &decoder{}
	p := &Program{Module: &Module{}}
	var err error
	if p.Relations, err = d.optStrings(m, "relations"); err != nil {
		return nil, err
	}
	if p.Counted, err = d.optStrings(m, "counted"); err != nil {
		return nil, err
	}
	if p.Maps, err = d.optStrings(m, "maps"); err != nil {
		return nil, err
	}
	if p.Module.Decls, err = d.stmts(m, "decls"); err != nil {
		return nil, err
	}
	return p, nil
}

// Decode decodes a single node from its map form.
func Decode(raw any) (Node, error) {
	d := &decoder{}
	if m, ok := raw.(map[string]any); ok {
		kind, _ := m["kind"].(string)
		switch {
		case kind == "module":
			decls, err := d.stmts(m, "decls")
			if err != nil {
				return nil, err
			}
			return &Module{Decls: decls}, nil
		case clauseKinds[kind]:
			return d.clause(raw)
		case stmtKinds[kind]:
			return d.stmt(raw)
		}
	}
	return d.expr(raw)
}

var clauseKinds = map[string]bool{
	"relmember": true, "singmember": true, "member": true, "mapmember": true, "cond": true,
}

var stmtKinds = map[string]bool{
	"fun": true, "for": true, "decompfor": true, "while": true, "if": true,
	"pass": true, "break": true, "continue": true, "return": true, "expr": true,
	"assign": true, "decompassign": true, "setupdate": true, "setclear": true,
	"relupdate": true, "relclear": true, "dictassign": true, "dictdelete": true,
	"dictclear": true, "mapassign": true, "mapdelete": true, "mapclear": true,
}

// decoder tracks the path to the value being decoded for error messages.
type decoder struct {
	path []string
}

func (d *decoder) push(seg string) { d.path = append(d.path, seg) }
func (d *decoder) pop()            { d.path = d.path[:len(d.path)-1] }

func (d *decoder) errorf(format string, args ...any) error {
	p := ""
	for _, seg := range d.path {
		if p != "" && seg[0] != '[' {
			p += "."
		}
		p += seg
	}
	return &DecodeError{Path: p, Message: fmt.Sprintf(format, args...)}
}

func (d *decoder) field(m map[string]any, key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, d.errorf("missing field %q", key)
	}
	return v, nil
}

func (d *decoder) str(m map[string]any, key string) (string, error) {
	v, err := d.field(m, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		d.push(key)
		defer d.pop()
		return "", d.errorf("expected string, got %T", v)
	}
	return s, nil
}

func (d *decoder) optStrings(m map[string]any, key string) ([]string, error) {
	if _, ok := m[key]; !ok {
		return nil, nil
	}
	return d.strings(m, key)
}

func (d *decoder) strings(m map[string]any, key string) ([]string, error) {
	v, err := d.field(m, key)
	if err != nil {
		return nil, err
	}
	d.push(key)
	defer d.pop()
	if v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, d.errorf("expected list of names, got %T", v)
	}
	out := make([]string, len(list))
	for i, e := range list {
		s, ok := e.(string)
		if !ok {
			return nil, d.errorf("element %d: expected name, got %T", i, e)
		}
		out[i] = s
	}
	return out, nil
}

func (d *decoder) list(m map[string]any, key string, optional bool) ([]any, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if optional || ok {
			return nil, nil
		}
		return nil, d.errorf("missing field %q", key)
	}
	list, ok := v.([]any)
	if !ok {
		d.push(key)
		defer d.pop()
		return nil, d.errorf("expected list, got %T", v)
	}
	return list, nil
}

func (d *decoder) stmts(m map[string]any, key string) ([]Stmt, error) {
	list, err := d.list(m, key, key == "orelse")
	if err != nil {
		return nil, err
	}
	out := make([]Stmt, len(list))
	for i, raw := range list {
		d.push(key)
		d.push("[" + strconv.Itoa(i) + "]")
		s, err := d.stmt(raw)
		d.pop()
		d.pop()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func (d *decoder) exprs(m map[string]any, key string) ([]Expr, error) {
	list, err := d.list(m, key, false)
	if err != nil {
		return nil, err
	}
	out := make([]Expr, len(list))
	for i, raw := range list {
		d.push(key)
		d.push("[" + strconv.Itoa(i) + "]")
		e, err := d.expr(raw)
		d.pop()
		d.pop()
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func (d *decoder) clauses(m map[string]any, key string) ([]Clause, error) {
	list, err := d.list(m, key, false)
	if err != nil {
		return nil, err
	}
	out := make([]Clause, len(list))
	for i, raw := range list {
		d.push(key)
		d.push("[" + strconv.Itoa(i) + "]")
		c, err := d.clause(raw)
		d.pop()
		d.pop()
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (d *decoder) sub(m map[string]any, key string) (Expr, error) {
	v, err := d.field(m, key)
	if err != nil {
		return nil, err
	}
	d.push(key)
	defer d.pop()
	return d.expr(v)
}

func (d *decoder) optSub(m map[string]any, key string) (Expr, error) {
	if _, ok := m[key]; !ok {
		return nil, nil
	}
	return d.sub(m, key)
}

func (d *decoder) kindOf(raw any) (map[string]any, string, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, "", d.errorf("expected node mapping, got %T", raw)
	}
	kind, ok := m["kind"].(string)
	if !ok {
		return nil, "", d.errorf("node has no kind")
	}
	return m, kind, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n), true
		}
	}
	return 0, false
}

func (d *decoder) stmt(raw any) (Stmt, error) {
	m, kind, err := d.kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "fun":
		name, err := d.str(m, "name")
		if err != nil {
			return nil, err
		}
		args, err := d.optStrings(m, "args")
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(m, "body")
		if err != nil {
			return nil, err
		}
		return &Fun{Name: name, Args: args, Body: body}, nil
	case "for":
		target, err := d.str(m, "target")
		if err != nil {
			return nil, err
		}
		iter, err := d.sub(m, "iter")
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(m, "body")
		if err != nil {
			return nil, err
		}
		return &For{Target: target, Iter: iter, Body: body}, nil
	case "decompfor":
		vars, err := d.strings(m, "vars")
		if err != nil {
			return nil, err
		}
		iter, err := d.sub(m, "iter")
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(m, "body")
		if err != nil {
			return nil, err
		}
		return &DecompFor{Vars: vars, Iter: iter, Body: body}, nil
	case "while":
		test, err := d.sub(m, "test")
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(m, "body")
		if err != nil {
			return nil, err
		}
		return &While{Test: test, Body: body}, nil
	case "if":
		test, err := d.sub(m, "test")
		if err != nil {
			return nil, err
		}
		body, err := d.stmts(m, "body")
		if err != nil {
			return nil, err
		}
		orelse, err := d.stmts(m, "orelse")
		if err != nil {
			return nil, err
		}
		return &If{Test: test, Body: body, Orelse: orelse}, nil
	case "pass":
		return &Pass{}, nil
	case "break":
		return &Break{}, nil
	case "continue":
		return &Continue{}, nil
	case "return":
		v, err := d.optSub(m, "value")
		if err != nil {
			return nil, err
		}
		return &Return{Value: v}, nil
	case "expr":
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Value: v}, nil
	case "assign":
		target, err := d.str(m, "target")
		if err != nil {
			return nil, err
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &Assign{Target: target, Value: v}, nil
	case "decompassign":
		vars, err := d.strings(m, "vars")
		if err != nil {
			return nil, err
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &DecompAssign{Vars: vars, Value: v}, nil
	case "setupdate":
		target, err := d.sub(m, "target")
		if err != nil {
			return nil, err
		}
		op, err := d.str(m, "op")
		if err != nil {
			return nil, err
		}
		if !SetUpdateOp(op).Valid() {
			return nil, d.errorf("unknown set operation %q", op)
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &SetUpdate{Target: target, Op: SetUpdateOp(op), Value: v}, nil
	case "setclear":
		target, err := d.sub(m, "target")
		if err != nil {
			return nil, err
		}
		return &SetClear{Target: target}, nil
	case "relupdate":
		rel, err := d.str(m, "rel")
		if err != nil {
			return nil, err
		}
		op, err := d.str(m, "op")
		if err != nil {
			return nil, err
		}
		switch RelUpdateOp(op) {
		case RelAdd, RelRemove, RelIncCount, RelDecCount:
		default:
			return nil, d.errorf("unknown relation operation %q", op)
		}
		elem, err := d.str(m, "elem")
		if err != nil {
			return nil, err
		}
		return &RelUpdate{Rel: rel, Op: RelUpdateOp(op), Elem: elem}, nil
	case "relclear":
		rel, err := d.str(m, "rel")
		if err != nil {
			return nil, err
		}
		return &RelClear{Rel: rel}, nil
	case "dictassign":
		target, err := d.sub(m, "target")
		if err != nil {
			return nil, err
		}
		k, err := d.sub(m, "key")
		if err != nil {
			return nil, err
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &DictAssign{Target: target, Key: k, Value: v}, nil
	case "dictdelete":
		target, err := d.sub(m, "target")
		if err != nil {
			return nil, err
		}
		k, err := d.sub(m, "key")
		if err != nil {
			return nil, err
		}
		return &DictDelete{Target: target, Key: k}, nil
	case "dictclear":
		target, err := d.sub(m, "target")
		if err != nil {
			return nil, err
		}
		return &DictClear{Target: target}, nil
	case "mapassign":
		mp, err := d.str(m, "map")
		if err != nil {
			return nil, err
		}
		k, err := d.sub(m, "key")
		if err != nil {
			return nil, err
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &MapAssign{Map: mp, Key: k, Value: v}, nil
	case "mapdelete":
		mp, err := d.str(m, "map")
		if err != nil {
			return nil, err
		}
		k, err := d.sub(m, "key")
		if err != nil {
			return nil, err
		}
		return &MapDelete{Map: mp, Key: k}, nil
	case "mapclear":
		mp, err := d.str(m, "map")
		if err != nil {
			return nil, err
		}
		return &MapClear{Map: mp}, nil
	}
	return nil, d.errorf("unknown statement kind %q", kind)
}

func (d *decoder) expr(raw any) (Expr, error) {
	switch v := raw.(type) {
	case nil:
		return &None{}, nil
	case string:
		return NewName(v), nil
	case bool:
		return &Bool{Value: v}, nil
	case []any:
		return nil, d.errorf("expected expression, got list")
	case map[string]any:
	default:
		if n, ok := toInt64(v); ok {
			return NewNum(n), nil
		}
		return nil, d.errorf("unsupported literal %v (%T)", v, v)
	}
	m, kind, err := d.kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "name":
		id, err := d.str(m, "id")
		if err != nil {
			return nil, err
		}
		return NewName(id), nil
	case "num":
		v, err := d.field(m, "value")
		if err != nil {
			return nil, err
		}
		n, ok := toInt64(v)
		if !ok {
			return nil, d.errorf("num value must be an integer, got %v", v)
		}
		return NewNum(n), nil
	case "str":
		s, err := d.str(m, "value")
		if err != nil {
			return nil, err
		}
		return NewStr(s), nil
	case "bool":
		v, err := d.field(m, "value")
		if err != nil {
			return nil, err
		}
		b, ok := v.(bool)
		if !ok {
			return nil, d.errorf("bool value must be true or false")
		}
		return &Bool{Value: b}, nil
	case "none":
		return &None{}, nil
	case "tuple", "list", "set":
		elts, err := d.exprs(m, "elts")
		if err != nil {
			return nil, err
		}
		switch kind {
		case "tuple":
			return &Tuple{Elts: elts}, nil
		case "list":
			return &List{Elts: elts}, nil
		}
		return &SetLit{Elts: elts}, nil
	case "unaryop":
		op, err := d.str(m, "op")
		if err != nil {
			return nil, err
		}
		if UnaryOpKind(op) != Not && UnaryOpKind(op) != USub {
			return nil, d.errorf("unknown unary operator %q", op)
		}
		operand, err := d.sub(m, "operand")
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: UnaryOpKind(op), Operand: operand}, nil
	case "boolop":
		op, err := d.str(m, "op")
		if err != nil {
			return nil, err
		}
		if BoolOpKind(op) != And && BoolOpKind(op) != Or {
			return nil, d.errorf("unknown boolean operator %q", op)
		}
		values, err := d.exprs(m, "values")
		if err != nil {
			return nil, err
		}
		return &BoolOp{Op: BoolOpKind(op), Values: values}, nil
	case "binop", "compare":
		l, err := d.sub(m, "left")
		if err != nil {
			return nil, err
		}
		op, err := d.str(m, "op")
		if err != nil {
			return nil, err
		}
		r, err := d.sub(m, "right")
		if err != nil {
			return nil, err
		}
		if kind == "binop" {
			switch BinOpKind(op) {
			case Add, Sub, Mult, Div, Mod:
				return &BinOp{Left: l, Op: BinOpKind(op), Right: r}, nil
			}
			return nil, d.errorf("unknown arithmetic operator %q", op)
		}
		switch CmpOp(op) {
		case Eq, NotEq, Lt, LtE, Gt, GtE, In, NotIn:
			return &Compare{Left: l, Op: CmpOp(op), Right: r}, nil
		}
		return nil, d.errorf("unknown comparison operator %q", op)
	case "ifexp":
		t, err := d.sub(m, "test")
		if err != nil {
			return nil, err
		}
		b, err := d.sub(m, "body")
		if err != nil {
			return nil, err
		}
		o, err := d.sub(m, "orelse")
		if err != nil {
			return nil, err
		}
		return &IfExp{Test: t, Body: b, Orelse: o}, nil
	case "call":
		fn, err := d.str(m, "func")
		if err != nil {
			return nil, err
		}
		args, err := d.exprs(m, "args")
		if err != nil {
			return nil, err
		}
		return &Call{Func: fn, Args: args}, nil
	case "generalcall":
		fn, err := d.sub(m, "func")
		if err != nil {
			return nil, err
		}
		args, err := d.exprs(m, "args")
		if err != nil {
			return nil, err
		}
		return &GeneralCall{Func: fn, Args: args}, nil
	case "attribute":
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		attr, err := d.str(m, "attr")
		if err != nil {
			return nil, err
		}
		return &Attribute{Value: v, Attr: attr}, nil
	case "subscript":
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		i, err := d.sub(m, "index")
		if err != nil {
			return nil, err
		}
		return &Subscript{Value: v, Index: i}, nil
	case "dictlookup":
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		k, err := d.sub(m, "key")
		if err != nil {
			return nil, err
		}
		def, err := d.optSub(m, "default")
		if err != nil {
			return nil, err
		}
		return &DictLookup{Value: v, Key: k, Default: def}, nil
	case "maplookup":
		mp, err := d.str(m, "map")
		if err != nil {
			return nil, err
		}
		k, err := d.sub(m, "key")
		if err != nil {
			return nil, err
		}
		def, err := d.optSub(m, "default")
		if err != nil {
			return nil, err
		}
		return &MapLookup{Map: mp, Key: k, Default: def}, nil
	case "imglookup":
		set, err := d.sub(m, "set")
		if err != nil {
			return nil, err
		}
		mask, err := d.mask(m)
		if err != nil {
			return nil, err
		}
		bounds, err := d.strings(m, "bounds")
		if err != nil {
			return nil, err
		}
		if mask.Bound() != len(bounds) {
			return nil, d.errorf("mask %q has %d bound positions but %d bounds given", mask, mask.Bound(), len(bounds))
		}
		return &ImgLookup{Set: set, Mask: mask, Bounds: bounds}, nil
	case "setfrommap":
		mp, err := d.str(m, "map")
		if err != nil {
			return nil, err
		}
		mask, err := d.mask(m)
		if err != nil {
			return nil, err
		}
		return &SetFromMap{Map: mp, Mask: mask}, nil
	case "unwrap":
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &Unwrap{Value: v}, nil
	case "getcount":
		rel, err := d.str(m, "rel")
		if err != nil {
			return nil, err
		}
		e, err := d.sub(m, "elem")
		if err != nil {
			return nil, err
		}
		return &GetCount{Rel: rel, Elem: e}, nil
	case "comp":
		res, err := d.sub(m, "resexp")
		if err != nil {
			return nil, err
		}
		cls, err := d.clauses(m, "clauses")
		if err != nil {
			return nil, err
		}
		return &Comp{Resexp: res, Clauses: cls}, nil
	case "aggr", "aggrrestr":
		op, err := d.str(m, "op")
		if err != nil {
			return nil, err
		}
		if !AggrOp(op).Valid() {
			return nil, d.errorf("unknown aggregate %q", op)
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		if kind == "aggr" {
			return &Aggr{Op: AggrOp(op), Value: v}, nil
		}
		params, err := d.strings(m, "params")
		if err != nil {
			return nil, err
		}
		restr, err := d.sub(m, "restr")
		if err != nil {
			return nil, err
		}
		return &AggrRestr{Op: AggrOp(op), Value: v, Params: params, Restr: restr}, nil
	case "query":
		name, err := d.str(m, "name")
		if err != nil {
			return nil, err
		}
		q, err := d.sub(m, "query")
		if err != nil {
			return nil, err
		}
		return &Query{Name: name, Query: q}, nil
	case "firstthen":
		f, err := d.sub(m, "first")
		if err != nil {
			return nil, err
		}
		t, err := d.sub(m, "then")
		if err != nil {
			return nil, err
		}
		return &FirstThen{First: f, Then: t}, nil
	}
	return nil, d.errorf("unknown expression kind %q", kind)
}

func (d *decoder) mask(m map[string]any) (Mask, error) {
	s, err := d.str(m, "mask")
	if err != nil {
		return "", err
	}
	mask := Mask(s)
	if !mask.Valid() {
		return "", d.errorf("invalid mask %q", s)
	}
	return mask, nil
}

func (d *decoder) clause(raw any) (Clause, error) {
	m, kind, err := d.kindOf(raw)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "relmember":
		vars, err := d.strings(m, "vars")
		if err != nil {
			return nil, err
		}
		rel, err := d.str(m, "rel")
		if err != nil {
			return nil, err
		}
		return &RelMember{Vars: vars, Rel: rel}, nil
	case "singmember":
		vars, err := d.strings(m, "vars")
		if err != nil {
			return nil, err
		}
		v, err := d.sub(m, "value")
		if err != nil {
			return nil, err
		}
		return &SingMember{Vars: vars, Value: v}, nil
	case "member":
		vars, err := d.strings(m, "vars")
		if err != nil {
			return nil, err
		}
		iter, err := d.sub(m, "iter")
		if err != nil {
			return nil, err
		}
		return &VarsMember{Vars: vars, Iter: iter}, nil
	case "mapmember":
		k, err := d.str(m, "key")
		if err != nil {
			return nil, err
		}
		v, err := d.str(m, "value")
		if err != nil {
			return nil, err
		}
		mp, err := d.str(m, "map")
		if err != nil {
			return nil, err
		}
		return &MapMember{Key: k, Value: v, Map: mp}, nil
	case "cond":
		c, err := d.sub(m, "cond")
		if err != nil {
			return nil, err
		}
		return &Cond{Cond: c}, nil
	}
	return nil, d.errorf("unknown clause kind %q", kind)
}
