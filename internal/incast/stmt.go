package incast

// Module is the root of a program tree.
type Module struct {
	base
	Decls []Stmt
}

// Fun is a function definition.
type Fun struct {
	base
	Name string
	Args []string
	Body []Stmt
}

// For iterates a single variable over a set or list.
type For struct {
	base
	Target string
	Iter   Expr
	Body   []Stmt
}

// DecompFor iterates a tuple pattern over a collection of tuples.
type DecompFor struct {
	base
	Vars []string
	Iter Expr
	Body []Stmt
}

// While loops while Test holds.
type While struct {
	base
	Test Expr
	Body []Stmt
}

// If is a two-way conditional. Orelse may be empty.
type If struct {
	base
	Test   Expr
	Body   []Stmt
	Orelse []Stmt
}

// Pass does nothing.
type Pass struct{ base }

// Break exits the innermost loop.
type Break struct{ base }

// Continue skips to the next loop iteration.
type Continue struct{ base }

// Return exits the current function. Value may be nil.
type Return struct {
	base
	Value Expr
}

// ExprStmt evaluates an expression for its effect.
type ExprStmt struct {
	base
	Value Expr
}

// Assign binds a variable.
type Assign struct {
	base
	Target string
	Value  Expr
}

// DecompAssign binds a tuple pattern.
type DecompAssign struct {
	base
	Vars  []string
	Value Expr
}

// SetUpdateOp names a mutating set method.
type SetUpdateOp string

const (
	SetAdd                       SetUpdateOp = "add"
	SetRemove                    SetUpdateOp = "remove"
	SetUnion                     SetUpdateOp = "update"
	SetIntersectionUpdate        SetUpdateOp = "intersection_update"
	SetDifferenceUpdate          SetUpdateOp = "difference_update"
	SetSymmetricDifferenceUpdate SetUpdateOp = "symmetric_difference_update"
	SetCopyUpdate                SetUpdateOp = "copy_update"
)

// Valid reports whether op is a known set method.
func (op SetUpdateOp) Valid() bool {
	switch op {
	case SetAdd, SetRemove, SetUnion, SetIntersectionUpdate,
		SetDifferenceUpdate, SetSymmetricDifferenceUpdate, SetCopyUpdate:
		return true
	}
	return false
}

// Bulk reports whether op takes a collection rather than an element.
func (op SetUpdateOp) Bulk() bool {
	return op != SetAdd && op != SetRemove
}

// SetUpdate mutates a general set-valued expression.
type SetUpdate struct {
	base
	Target Expr
	Op     SetUpdateOp
	Value  Expr
}

// SetClear empties a general set-valued expression.
type SetClear struct {
	base
	Target Expr
}

// RelUpdateOp names an element-wise relation update.
type RelUpdateOp string

const (
	RelAdd      RelUpdateOp = "add"
	RelRemove   RelUpdateOp = "remove"
	RelIncCount RelUpdateOp = "inccount"
	RelDecCount RelUpdateOp = "deccount"
)

// RelUpdate adds or removes the value of the variable Elem in relation Rel.
type RelUpdate struct {
	base
	Rel  string
	Op   RelUpdateOp
	Elem string
}

// RelClear empties relation Rel.
type RelClear struct {
	base
	Rel string
}

// DictAssign stores into a general dict-valued expression.
type DictAssign struct {
	base
	Target Expr
	Key    Expr
	Value  Expr
}

// DictDelete deletes from a general dict-valued expression.
type DictDelete struct {
	base
	Target Expr
	Key    Expr
}

// DictClear empties a general dict-valued expression.
type DictClear struct {
	base
	Target Expr
}

// MapAssign binds Key to Value in map Map.
type MapAssign struct {
	base
	Map   string
	Key   Expr
	Value Expr
}

// MapDelete strictly deletes Key from map Map.
type MapDelete struct {
	base
	Map string
	Key Expr
}

// MapClear empties map Map.
type MapClear struct {
	base
	Map string
}

func (*Module) node()       {}
func (*Fun) node()          {}
func (*For) node()          {}
func (*DecompFor) node()    {}
func (*While) node()        {}
func (*If) node()           {}
func (*Pass) node()         {}
func (*Break) node()        {}
func (*Continue) node()     {}
func (*Return) node()       {}
func (*ExprStmt) node()     {}
func (*Assign) node()       {}
func (*DecompAssign) node() {}
func (*SetUpdate) node()    {}
func (*SetClear) node()     {}
func (*RelUpdate) node()    {}
func (*RelClear) node()     {}
func (*DictAssign) node()   {}
func (*DictDelete) node()   {}
func (*DictClear) node()    {}
func (*MapAssign) node()    {}
func (*MapDelete) node()    {}
func (*MapClear) node()     {}

func (*Fun) stmtNode()          {}
func (*For) stmtNode()          {}
func (*DecompFor) stmtNode()    {}
func (*While) stmtNode()        {}
func (*If) stmtNode()           {}
func (*Pass) stmtNode()         {}
func (*Break) stmtNode()        {}
func (*Continue) stmtNode()     {}
func (*Return) stmtNode()       {}
func (*ExprStmt) stmtNode()     {}
func (*Assign) stmtNode()       {}
func (*DecompAssign) stmtNode() {}
func (*SetUpdate) stmtNode()    {}
func (*SetClear) stmtNode()     {}
func (*RelUpdate) stmtNode()    {}
func (*RelClear) stmtNode()     {}
func (*DictAssign) stmtNode()   {}
func (*DictDelete) stmtNode()   {}
func (*DictClear) stmtNode()    {}
func (*MapAssign) stmtNode()    {}
func (*MapDelete) stmtNode()    {}
func (*MapClear) stmtNode()     {}
