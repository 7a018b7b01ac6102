package optimizer

import (
	"fmt"
	"strings"

	"github.com/tyl-lang/tyl/internal/ast"
)

// commutativeOps lists operators whose operand order does not affect the
// computed value, so "a+b" and "b+a" must hash identically.
var commutativeOps = map[string]bool{
	"+": true, "*": true, "&": true, "|": true, "^": true,
	"==": true, "!=": true, "and": true, "or": true, "&&": true, "||": true,
}

// CSEPass implements common-subexpression elimination as a local,
// pre-SSA, structural-hash-based pass kept distinct from the SSA-level
// value numbering in internal/ssa (spec §4.5's optimizer pipeline; see
// SPEC_FULL.md's CSE-vs-GVN split). Within a single block it recognises
// a later pure expression identical (up to commutative operand order) to
// one already bound by an earlier immutable `let`/`const` declaration, and
// replaces it with a read of that binding.
type CSEPass struct{ count int }

func (p *CSEPass) Name() string { return "cse" }

func (p *CSEPass) Run(prog *ast.Program) int {
	p.count = 0
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d)
	}
	return p.count
}

func (p *CSEPass) stmt(s ast.Statement) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		p.cseBlock(st)
	case *ast.FuncDecl:
		if st.Body != nil {
			st.Body = p.stmt(st.Body).(*ast.Block)
		}
	case *ast.IfStmt:
		st.Then = p.stmt(st.Then).(*ast.Block)
		if st.Else != nil {
			st.Else = p.stmt(st.Else)
		}
	case *ast.WhileStmt:
		st.Body = p.stmt(st.Body).(*ast.Block)
	case *ast.ForStmt:
		st.Body = p.stmt(st.Body).(*ast.Block)
	case *ast.LoopStmt:
		st.Body = p.stmt(st.Body).(*ast.Block)
	case *ast.MatchStmt:
		for i := range st.Arms {
			st.Arms[i].Body = p.stmt(st.Arms[i].Body).(*ast.Block)
		}
	}
	return s
}

// cseBlock scans a single block's statements linearly, maintaining a map
// from canonical expression key to the immutable binding that already
// holds that value, invalidated whenever one of its free variables is
// reassigned.
func (p *CSEPass) cseBlock(b *ast.Block) {
	values := map[string]string{}
	freeVarsOf := map[string]map[string]bool{}

	invalidate := func(name string) {
		for key, fv := range freeVarsOf {
			if fv[name] {
				delete(values, key)
				delete(freeVarsOf, key)
			}
		}
	}

	for _, s := range b.Stmts {
		switch st := s.(type) {
		case *ast.ExprStmt:
			st.X = p.substitute(st.X, values)
			if target, ok := assignTarget(st); ok {
				invalidate(target)
			}
		case *ast.VarDecl:
			if st.Init != nil {
				st.Init = p.substitute(st.Init, values)
			}
			if st.Kind == ast.VarMut {
				invalidate(st.Name)
			} else if st.Init != nil && isCoseable(st.Init) {
				key := canonicalKey(st.Init)
				if _, seen := values[key]; !seen {
					values[key] = st.Name
					fv := map[string]bool{}
					freeReads(st.Init, fv)
					freeVarsOf[key] = fv
				}
			}
		case *ast.ReturnStmt:
			if st.Value != nil {
				st.Value = p.substitute(st.Value, values)
			}
		case *ast.IfStmt:
			st.Cond = p.substitute(st.Cond, values)
			p.stmt(st.Then)
			if st.Else != nil {
				p.stmt(st.Else)
			}
		case *ast.WhileStmt:
			st.Cond = p.substitute(st.Cond, values)
			p.stmt(st.Body)
		case *ast.ForStmt:
			p.stmt(st.Body)
		}
	}
}

// substitute replaces any subexpression whose canonical key names a known
// immutable binding with a read of that binding, working bottom-up so
// nested matches are found first.
func (p *CSEPass) substitute(x ast.Expression, values map[string]string) ast.Expression {
	switch ex := x.(type) {
	case *ast.BinaryExpr:
		ex.Left = p.substitute(ex.Left, values)
		ex.Right = p.substitute(ex.Right, values)
	case *ast.UnaryExpr:
		ex.Operand = p.substitute(ex.Operand, values)
	case *ast.TernaryExpr:
		ex.Cond = p.substitute(ex.Cond, values)
		ex.Then = p.substitute(ex.Then, values)
		ex.Else = p.substitute(ex.Else, values)
	case *ast.CallExpr:
		for i := range ex.Args {
			ex.Args[i].Value = p.substitute(ex.Args[i].Value, values)
		}
		return ex
	default:
		return x
	}
	if isCoseable(x) {
		if holder, ok := values[canonicalKey(x)]; ok {
			if ident, isIdent := x.(*ast.Identifier); !isIdent || ident.Name != holder {
				p.count++
				return &ast.Identifier{Base: ast.Base{Loc: x.Location()}, Name: holder}
			}
		}
	}
	return x
}

// isCoseable reports whether x is safe to hash and replace: no call, no
// mutation, nothing whose evaluation could observe external state.
func isCoseable(x ast.Expression) bool {
	switch ex := x.(type) {
	case *ast.Identifier, *ast.IntegerLiteral, *ast.FloatLiteral, *ast.BoolLiteral, *ast.StringLiteral:
		return true
	case *ast.BinaryExpr:
		return isCoseable(ex.Left) && isCoseable(ex.Right)
	case *ast.UnaryExpr:
		return isCoseable(ex.Operand)
	default:
		return false
	}
}

// canonicalKey builds a structural hash key for x, normalising operand
// order for commutative operators so "a+b" and "b+a" collide.
func canonicalKey(x ast.Expression) string {
	switch ex := x.(type) {
	case *ast.Identifier:
		return "id:" + ex.Name
	case *ast.IntegerLiteral:
		return fmt.Sprintf("int:%d", ex.Value)
	case *ast.FloatLiteral:
		return fmt.Sprintf("flt:%v", ex.Value)
	case *ast.BoolLiteral:
		return fmt.Sprintf("bool:%v", ex.Value)
	case *ast.StringLiteral:
		return "str:" + ex.Value
	case *ast.UnaryExpr:
		return "u(" + ex.Op + "," + canonicalKey(ex.Operand) + ")"
	case *ast.BinaryExpr:
		l, r := canonicalKey(ex.Left), canonicalKey(ex.Right)
		if commutativeOps[ex.Op] && strings.Compare(l, r) > 0 {
			l, r = r, l
		}
		return "b(" + ex.Op + "," + l + "," + r + ")"
	default:
		return fmt.Sprintf("opaque:%p", x)
	}
}
