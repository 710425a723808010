package incast

import (
	"fmt"
	"strconv"
	"strings"
)

const indentUnit = "    "

// Format renders a node as deterministic source-like text.
func Format(n Node) string {
	switch n := n.(type) {
	case *Module:
		var b strings.Builder
		for i, d := range n.Decls {
			if i > 0 {
				if _, ok := d.(*Fun); ok {
					b.WriteByte('\n')
				}
			}
			formatStmt(&b, d, 0)
		}
		return b.String()
	case Stmt:
		var b strings.Builder
		formatStmt(&b, n, 0)
		return strings.TrimSuffix(b.String(), "\n")
	case Expr:
		return formatExpr(n)
	case Clause:
		return formatClause(n)
	}
	return fmt.Sprintf("<%T>", n)
}

func writeLine(b *strings.Builder, indent int, line string) {
	b.WriteString(strings.Repeat(indentUnit, indent))
	b.WriteString(line)
	b.WriteByte('\n')
}

func formatBody(b *strings.Builder, body []Stmt, indent int) {
	if len(body) == 0 {
		writeLine(b, indent, "pass")
		return
	}
	for _, s := range body {
		formatStmt(b, s, indent)
	}
}

func formatStmt(b *strings.Builder, s Stmt, indent int) {
	switch s := s.(type) {
	case *Fun:
		writeLine(b, indent, fmt.Sprintf("def %s(%s):", s.Name, strings.Join(s.Args, ", ")))
		formatBody(b, s.Body, indent+1)
	case *For:
		writeLine(b, indent, fmt.Sprintf("for %s in %s:", s.Target, formatExpr(s.Iter)))
		formatBody(b, s.Body, indent+1)
	case *DecompFor:
		writeLine(b, indent, fmt.Sprintf("for %s in %s:", formatVars(s.Vars), formatExpr(s.Iter)))
		formatBody(b, s.Body, indent+1)
	case *While:
		writeLine(b, indent, fmt.Sprintf("while %s:", formatExpr(s.Test)))
		formatBody(b, s.Body, indent+1)
	case *If:
		writeLine(b, indent, fmt.Sprintf("if %s:", formatExpr(s.Test)))
		formatBody(b, s.Body, indent+1)
		if len(s.Orelse) > 0 {
			writeLine(b, indent, "else:")
			formatBody(b, s.Orelse, indent+1)
		}
	case *Pass:
		writeLine(b, indent, "pass")
	case *Break:
		writeLine(b, indent, "break")
	case *Continue:
		writeLine(b, indent, "continue")
	case *Return:
		if s.Value == nil {
			writeLine(b, indent, "return")
		} else {
			writeLine(b, indent, "return "+formatExpr(s.Value))
		}
	case *ExprStmt:
		writeLine(b, indent, formatExpr(s.Value))
	case *Assign:
		writeLine(b, indent, s.Target+" = "+formatExpr(s.Value))
	case *DecompAssign:
		writeLine(b, indent, formatVars(s.Vars)+" = "+formatExpr(s.Value))
	case *SetUpdate:
		writeLine(b, indent, fmt.Sprintf("%s.%s(%s)", formatExpr(s.Target), s.Op, formatExpr(s.Value)))
	case *SetClear:
		writeLine(b, indent, formatExpr(s.Target)+".clear()")
	case *RelUpdate:
		method := string(s.Op)
		if s.Op == RelAdd || s.Op == RelRemove {
			method = "rel" + method
		}
		writeLine(b, indent, fmt.Sprintf("%s.%s(%s)", s.Rel, method, s.Elem))
	case *RelClear:
		writeLine(b, indent, s.Rel+".relclear()")
	case *DictAssign:
		writeLine(b, indent, fmt.Sprintf("%s[%s] = %s", formatExpr(s.Target), formatExpr(s.Key), formatExpr(s.Value)))
	case *DictDelete:
		writeLine(b, indent, fmt.Sprintf("del %s[%s]", formatExpr(s.Target), formatExpr(s.Key)))
	case *DictClear:
		writeLine(b, indent, formatExpr(s.Target)+".dictclear()")
	case *MapAssign:
		writeLine(b, indent, fmt.Sprintf("%s.mapassign(%s, %s)", s.Map, formatExpr(s.Key), formatExpr(s.Value)))
	case *MapDelete:
		writeLine(b, indent, fmt.Sprintf("%s.mapdelete(%s)", s.Map, formatExpr(s.Key)))
	case *MapClear:
		writeLine(b, indent, s.Map+".mapclear()")
	default:
		panic(fmt.Sprintf("incast: no format rule for %T", s))
	}
}

// formatVars renders a tuple pattern.
func formatVars(vars []string) string {
	if len(vars) == 1 {
		return "(" + vars[0] + ",)"
	}
	return "(" + strings.Join(vars, ", ") + ")"
}

func formatExprs(es []Expr) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = formatExpr(e)
	}
	return out
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)
	return "'" + r.Replace(s) + "'"
}

func formatExpr(e Expr) string {
	switch e := e.(type) {
	case *Name:
		return e.Ident
	case *Num:
		return strconv.FormatInt(e.Value, 10)
	case *Str:
		return quote(e.Value)
	case *Bool:
		if e.Value {
			return "True"
		}
		return "False"
	case *None:
		return "None"
	case *Tuple:
		parts := formatExprs(e.Elts)
		if len(parts) == 1 {
			return "(" + parts[0] + ",)"
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case *List:
		return "[" + strings.Join(formatExprs(e.Elts), ", ") + "]"
	case *SetLit:
		if len(e.Elts) == 0 {
			return "set()"
		}
		return "{" + strings.Join(formatExprs(e.Elts), ", ") + "}"
	case *UnaryOp:
		if e.Op == Not {
			return "(not " + formatExpr(e.Operand) + ")"
		}
		return "(" + string(e.Op) + formatExpr(e.Operand) + ")"
	case *BoolOp:
		return "(" + strings.Join(formatExprs(e.Values), " "+string(e.Op)+" ") + ")"
	case *BinOp:
		return fmt.Sprintf("(%s %s %s)", formatExpr(e.Left), e.Op, formatExpr(e.Right))
	case *Compare:
		return fmt.Sprintf("(%s %s %s)", formatExpr(e.Left), e.Op, formatExpr(e.Right))
	case *IfExp:
		return fmt.Sprintf("(%s if %s else %s)", formatExpr(e.Body), formatExpr(e.Test), formatExpr(e.Orelse))
	case *Call:
		return e.Func + "(" + strings.Join(formatExprs(e.Args), ", ") + ")"
	case *GeneralCall:
		return formatExpr(e.Func) + "(" + strings.Join(formatExprs(e.Args), ", ") + ")"
	case *Attribute:
		return formatExpr(e.Value) + "." + e.Attr
	case *Subscript:
		return fmt.Sprintf("%s[%s]", formatExpr(e.Value), formatExpr(e.Index))
	case *DictLookup:
		if e.Default == nil {
			return fmt.Sprintf("%s[%s]", formatExpr(e.Value), formatExpr(e.Key))
		}
		return fmt.Sprintf("%s.get(%s, %s)", formatExpr(e.Value), formatExpr(e.Key), formatExpr(e.Default))
	case *MapLookup:
		if e.Default == nil {
			return fmt.Sprintf("%s[%s]", e.Map, formatExpr(e.Key))
		}
		return fmt.Sprintf("%s.get(%s, %s)", e.Map, formatExpr(e.Key), formatExpr(e.Default))
	case *ImgLookup:
		return fmt.Sprintf("%s.imglookup(%s, %s)", formatExpr(e.Set), quote(string(e.Mask)), formatExpr(Tuplify(e.Bounds)))
	case *SetFromMap:
		return fmt.Sprintf("%s.setfrommap(%s)", e.Map, quote(string(e.Mask)))
	case *Unwrap:
		return "unwrap(" + formatExpr(e.Value) + ")"
	case *GetCount:
		return fmt.Sprintf("%s.getcount(%s)", e.Rel, formatExpr(e.Elem))
	case *Comp:
		parts := []string{formatExpr(e.Resexp)}
		for _, c := range e.Clauses {
			parts = append(parts, formatClause(c))
		}
		return "{" + strings.Join(parts, " ") + "}"
	case *Aggr:
		return fmt.Sprintf("%s(%s)", e.Op, formatExpr(e.Value))
	case *AggrRestr:
		return fmt.Sprintf("%s(%s, params=%s, restr=%s)", e.Op, formatExpr(e.Value),
			formatExpr(Tuplify(e.Params)), formatExpr(e.Restr))
	case *Query:
		return fmt.Sprintf("QUERY(%s, %s)", quote(e.Name), formatExpr(e.Query))
	case *FirstThen:
		return fmt.Sprintf("FIRSTTHEN(%s, %s)", formatExpr(e.First), formatExpr(e.Then))
	}
	panic(fmt.Sprintf("incast: no format rule for %T", e))
}

func formatClause(c Clause) string {
	switch c := c.(type) {
	case *RelMember:
		return fmt.Sprintf("for %s in %s", formatVars(c.Vars), c.Rel)
	case *SingMember:
		return fmt.Sprintf("for %s in {%s}", formatVars(c.Vars), formatExpr(c.Value))
	case *VarsMember:
		return fmt.Sprintf("for %s in %s", formatVars(c.Vars), formatExpr(c.Iter))
	case *MapMember:
		return fmt.Sprintf("for (%s, %s) in %s.items()", c.Key, c.Value, c.Map)
	case *Cond:
		return "if " + formatExpr(c.Cond)
	}
	panic(fmt.Sprintf("incast: no format rule for %T", c))
}
