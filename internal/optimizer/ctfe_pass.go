package optimizer

import (
	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/ctfe"
)

// CTFEPass wraps internal/ctfe as an optimizer pass: it collapses calls to
// @comptime functions, and calls to any function proven pure whose
// arguments are all compile-time constants, into a single literal node
// (spec §4.5.5, §8 scenario S4).
type CTFEPass struct {
	Funcs map[string]*ast.FuncDecl
	count int
}

func (p *CTFEPass) Name() string { return "ctfe" }

func (p *CTFEPass) Run(prog *ast.Program) int {
	p.count = 0
	interp := ctfe.New(p.Funcs)
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d, interp)
	}
	return p.count
}

func (p *CTFEPass) stmt(s ast.Statement, interp *ctfe.Interpreter) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		for i, inner := range st.Stmts {
			st.Stmts[i] = p.stmt(inner, interp)
		}
	case *ast.ExprStmt:
		st.X = p.expr(st.X, interp)
	case *ast.VarDecl:
		if st.Init != nil {
			st.Init = p.expr(st.Init, interp)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			st.Value = p.expr(st.Value, interp)
		}
	case *ast.IfStmt:
		st.Cond = p.expr(st.Cond, interp)
		p.stmt(st.Then, interp)
		if st.Else != nil {
			p.stmt(st.Else, interp)
		}
	case *ast.WhileStmt:
		p.stmt(st.Body, interp)
	case *ast.ForStmt:
		p.stmt(st.Body, interp)
	case *ast.FuncDecl:
		if st.Body != nil {
			p.stmt(st.Body, interp)
		}
	}
	return s
}

func (p *CTFEPass) expr(x ast.Expression, interp *ctfe.Interpreter) ast.Expression {
	switch ex := x.(type) {
	case *ast.BinaryExpr:
		ex.Left = p.expr(ex.Left, interp)
		ex.Right = p.expr(ex.Right, interp)
		return ex
	case *ast.TernaryExpr:
		ex.Cond = p.expr(ex.Cond, interp)
		ex.Then = p.expr(ex.Then, interp)
		ex.Else = p.expr(ex.Else, interp)
		return ex
	case *ast.CallExpr:
		for i := range ex.Args {
			ex.Args[i].Value = p.expr(ex.Args[i].Value, interp)
		}
		return p.tryEval(ex, interp)
	default:
		return x
	}
}

// tryEval attempts to fold a single call site: the callee must resolve to
// a known function, every argument must already be a literal, and CTFE
// evaluation must succeed within its bounds (spec §4.5.5).
func (p *CTFEPass) tryEval(call *ast.CallExpr, interp *ctfe.Interpreter) ast.Expression {
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return call
	}
	fn, ok := p.Funcs[ident.Name]
	if !ok || !interp.IsPure(ident.Name) {
		return call
	}
	args := make([]ast.Value, 0, len(call.Args))
	for _, a := range call.Args {
		v, ok := literalValue(a.Value)
		if !ok {
			return call
		}
		args = append(args, v)
	}
	result, ok := interp.Eval(fn, args)
	if !ok {
		return call
	}
	lit := createLiteral(result, call.Base)
	if lit == nil {
		return call
	}
	p.count++
	return lit
}
