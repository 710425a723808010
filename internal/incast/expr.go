package incast

// Name reads or, in write context, writes a variable.
type Name struct {
	base
	Ident string
}

// Num is an integer literal.
type Num struct {
	base
	Value int64
}

// Str is a string literal.
type Str struct {
	base
	Value string
}

// Bool is True or False.
type Bool struct {
	base
	Value bool
}

// None is the None literal.
type None struct{ base }

// Tuple builds a tuple.
type Tuple struct {
	base
	Elts []Expr
}

// List builds a list.
type List struct {
	base
	Elts []Expr
}

// SetLit builds a fresh set.
type SetLit struct {
	base
	Elts []Expr
}

// UnaryOpKind is a unary operator.
type UnaryOpKind string

const (
	Not  UnaryOpKind = "not"
	USub UnaryOpKind = "-"
)

// UnaryOp applies a unary operator.
type UnaryOp struct {
	base
	Op      UnaryOpKind
	Operand Expr
}

// BoolOpKind is a short-circuit connective.
type BoolOpKind string

const (
	And BoolOpKind = "and"
	Or  BoolOpKind = "or"
)

// BoolOp combines two or more operands with And or Or.
type BoolOp struct {
	base
	Op     BoolOpKind
	Values []Expr
}

// BinOpKind is an arithmetic operator.
type BinOpKind string

const (
	Add  BinOpKind = "+"
	Sub  BinOpKind = "-"
	Mult BinOpKind = "*"
	Div  BinOpKind = "//"
	Mod  BinOpKind = "%"
)

// BinOp applies an arithmetic operator.
type BinOp struct {
	base
	Left  Expr
	Op    BinOpKind
	Right Expr
}

// CmpOp is a comparison operator.
type CmpOp string

const (
	Eq    CmpOp = "=="
	NotEq CmpOp = "!="
	Lt    CmpOp = "<"
	LtE   CmpOp = "<="
	Gt    CmpOp = ">"
	GtE   CmpOp = ">="
	In    CmpOp = "in"
	NotIn CmpOp = "not in"
)

// Compare applies a comparison operator.
type Compare struct {
	base
	Left  Expr
	Op    CmpOp
	Right Expr
}

// IfExp is a conditional expression.
type IfExp struct {
	base
	Test   Expr
	Body   Expr
	Orelse Expr
}

// Call calls a named function or builtin.
type Call struct {
	base
	Func string
	Args []Expr
}

// GeneralCall calls a computed function value. It is outside the
// compilable dialect.
type GeneralCall struct {
	base
	Func Expr
	Args []Expr
}

// Attribute reads a field. It is outside the compilable dialect.
type Attribute struct {
	base
	Value Expr
	Attr  string
}

// Subscript indexes a tuple or list.
type Subscript struct {
	base
	Value Expr
	Index Expr
}

// DictLookup looks up a key in a general dict-valued expression. Default
// may be nil, in which case the key must be present.
type DictLookup struct {
	base
	Value   Expr
	Key     Expr
	Default Expr
}

// MapLookup looks up a key in map Map. Default may be nil.
type MapLookup struct {
	base
	Map     string
	Key     Expr
	Default Expr
}

// ImgLookup returns the image of the bound variables under Mask in the set
// Set, as a set of tuples of the unbound components.
type ImgLookup struct {
	base
	Set    Expr
	Mask   Mask
	Bounds []string
}

// SetFromMap reshapes map Map into a set of tuples according to Mask.
type SetFromMap struct {
	base
	Map  string
	Mask Mask
}

// Unwrap turns a set of singleton tuples into a set of their components.
type Unwrap struct {
	base
	Value Expr
}

// GetCount reads the reference count of an element of counted relation Rel.
type GetCount struct {
	base
	Rel  string
	Elem Expr
}

// Comp is a set comprehension.
type Comp struct {
	base
	Resexp  Expr
	Clauses []Clause
}

// AggrOp is an aggregate operator.
type AggrOp string

const (
	Count AggrOp = "count"
	Sum   AggrOp = "sum"
	Min   AggrOp = "min"
	Max   AggrOp = "max"
)

// Valid reports whether op is a known aggregate operator.
func (op AggrOp) Valid() bool {
	switch op {
	case Count, Sum, Min, Max:
		return true
	}
	return false
}

// Aggr reduces a collection to a scalar.
type Aggr struct {
	base
	Op    AggrOp
	Value Expr
}

// AggrRestr is an aggregate grouped by Params whose groups are only
// maintained for parameter tuples in the demand relation Restr.
type AggrRestr struct {
	base
	Op     AggrOp
	Value  Expr
	Params []string
	Restr  Expr
}

// Query marks an occurrence of the named query.
type Query struct {
	base
	Name  string
	Query Expr
}

// FirstThen evaluates First for its effect, then yields Then.
type FirstThen struct {
	base
	First Expr
	Then  Expr
}

func (*Name) writable()       {}
func (*DictLookup) writable() {}

func (*Name) node()        {}
func (*Num) node()         {}
func (*Str) node()         {}
func (*Bool) node()        {}
func (*None) node()        {}
func (*Tuple) node()       {}
func (*List) node()        {}
func (*SetLit) node()      {}
func (*UnaryOp) node()     {}
func (*BoolOp) node()      {}
func (*BinOp) node()       {}
func (*Compare) node()     {}
func (*IfExp) node()       {}
func (*Call) node()        {}
func (*GeneralCall) node() {}
func (*Attribute) node()   {}
func (*Subscript) node()   {}
func (*DictLookup) node()  {}
func (*MapLookup) node()   {}
func (*ImgLookup) node()   {}
func (*SetFromMap) node()  {}
func (*Unwrap) node()      {}
func (*GetCount) node()    {}
func (*Comp) node()        {}
func (*Aggr) node()        {}
func (*AggrRestr) node()   {}
func (*Query) node()       {}
func (*FirstThen) node()   {}

func (*Name) exprNode()        {}
func (*Num) exprNode()         {}
func (*Str) exprNode()         {}
func (*Bool) exprNode()        {}
func (*None) exprNode()        {}
func (*Tuple) exprNode()       {}
func (*List) exprNode()        {}
func (*SetLit) exprNode()      {}
func (*UnaryOp) exprNode()     {}
func (*BoolOp) exprNode()      {}
func (*BinOp) exprNode()       {}
func (*Compare) exprNode()     {}
func (*IfExp) exprNode()       {}
func (*Call) exprNode()        {}
func (*GeneralCall) exprNode() {}
func (*Attribute) exprNode()   {}
func (*Subscript) exprNode()   {}
func (*DictLookup) exprNode()  {}
func (*MapLookup) exprNode()   {}
func (*ImgLookup) exprNode()   {}
func (*SetFromMap) exprNode()  {}
func (*Unwrap) exprNode()      {}
func (*GetCount) exprNode()    {}
func (*Comp) exprNode()        {}
func (*Aggr) exprNode()        {}
func (*AggrRestr) exprNode()   {}
func (*Query) exprNode()       {}
func (*FirstThen) exprNode()   {}

// Clauses.

// RelMember binds Vars to the components of each tuple of relation Rel.
type RelMember struct {
	base
	Vars []string
	Rel  string
}

// SingMember binds Vars to the components of the single tuple Value.
type SingMember struct {
	base
	Vars  []string
	Value Expr
}

// VarsMember binds Vars to the components of each tuple of an arbitrary
// iterable expression.
type VarsMember struct {
	base
	Vars []string
	Iter Expr
}

// MapMember binds Key and Value to each entry of map Map.
type MapMember struct {
	base
	Key   string
	Value string
	Map   string
}

// Cond filters on a boolean expression.
type Cond struct {
	base
	Cond Expr
}

func (*RelMember) node()  {}
func (*SingMember) node() {}
func (*VarsMember) node() {}
func (*MapMember) node()  {}
func (*Cond) node()       {}

func (*RelMember) clauseNode()  {}
func (*SingMember) clauseNode() {}
func (*VarsMember) clauseNode() {}
func (*MapMember) clauseNode()  {}
func (*Cond) clauseNode()       {}
