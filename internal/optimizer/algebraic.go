package optimizer

import "github.com/tyl-lang/tyl/internal/ast"

// AlgebraicPass implements spec §4.5.3 (O3+): identity simplifications
// such as x+0->x, x*0->0, x*1->x, x*-1->-x, x-0->x, 0-x->-x, x/1->x,
// x&x->x, x|x->x, x^x->0, !!x->x, x and true->x, x or false->x, x<<0->x,
// preserving side effects of the retained operand.
type AlgebraicPass struct{ count int }

func (p *AlgebraicPass) Name() string { return "algebraic-simplify" }

func (p *AlgebraicPass) Run(prog *ast.Program) int {
	p.count = 0
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d)
	}
	return p.count
}

func (p *AlgebraicPass) stmt(s ast.Statement) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		for i, inner := range st.Stmts {
			st.Stmts[i] = p.stmt(inner)
		}
	case *ast.ExprStmt:
		st.X = p.expr(st.X)
	case *ast.VarDecl:
		if st.Init != nil {
			st.Init = p.expr(st.Init)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			st.Value = p.expr(st.Value)
		}
	case *ast.IfStmt:
		st.Cond = p.expr(st.Cond)
		p.stmt(st.Then)
		if st.Else != nil {
			st.Else = p.stmt(st.Else)
		}
	case *ast.WhileStmt:
		st.Cond = p.expr(st.Cond)
		p.stmt(st.Body)
	case *ast.ForStmt:
		p.stmt(st.Body)
	case *ast.FuncDecl:
		if st.Body != nil {
			p.stmt(st.Body)
		}
	}
	return s
}

func isIntLiteral(x ast.Expression, n int64) bool {
	lit, ok := x.(*ast.IntegerLiteral)
	return ok && lit.Value == n
}

func isBoolLiteral(x ast.Expression, v bool) bool {
	lit, ok := x.(*ast.BoolLiteral)
	return ok && lit.Value == v
}

func negate(x ast.Expression) ast.Expression {
	return &ast.UnaryExpr{Base: ast.Base{Loc: x.Location()}, Op: "-", Operand: x}
}

func (p *AlgebraicPass) expr(x ast.Expression) ast.Expression {
	switch ex := x.(type) {
	case *ast.UnaryExpr:
		ex.Operand = p.expr(ex.Operand)
		if (ex.Op == "!" || ex.Op == "not") {
			if inner, ok := ex.Operand.(*ast.UnaryExpr); ok && (inner.Op == "!" || inner.Op == "not") {
				p.count++
				return p.expr(inner.Operand)
			}
		}
		return ex
	case *ast.BinaryExpr:
		ex.Left = p.expr(ex.Left)
		ex.Right = p.expr(ex.Right)
		return p.simplifyBinary(ex)
	case *ast.TernaryExpr:
		ex.Cond = p.expr(ex.Cond)
		ex.Then = p.expr(ex.Then)
		ex.Else = p.expr(ex.Else)
		return ex
	default:
		return x
	}
}

func (p *AlgebraicPass) simplifyBinary(b *ast.BinaryExpr) ast.Expression {
	switch b.Op {
	case "+":
		if isIntLiteral(b.Right, 0) {
			p.count++
			return b.Left
		}
		if isIntLiteral(b.Left, 0) {
			p.count++
			return b.Right
		}
	case "-":
		if isIntLiteral(b.Right, 0) {
			p.count++
			return b.Left
		}
		if isIntLiteral(b.Left, 0) {
			p.count++
			return negate(b.Right)
		}
	case "*":
		if isIntLiteral(b.Right, 0) || isIntLiteral(b.Left, 0) {
			p.count++
			return &ast.IntegerLiteral{Base: b.Base, Value: 0}
		}
		if isIntLiteral(b.Right, 1) {
			p.count++
			return b.Left
		}
		if isIntLiteral(b.Left, 1) {
			p.count++
			return b.Right
		}
		if isIntLiteral(b.Right, -1) {
			p.count++
			return negate(b.Left)
		}
		if isIntLiteral(b.Left, -1) {
			p.count++
			return negate(b.Right)
		}
	case "/":
		if isIntLiteral(b.Right, 1) {
			p.count++
			return b.Left
		}
	case "&":
		if sameVar(b.Left, b.Right) {
			p.count++
			return b.Left
		}
	case "|":
		if sameVar(b.Left, b.Right) {
			p.count++
			return b.Left
		}
	case "^":
		if sameVar(b.Left, b.Right) {
			p.count++
			return &ast.IntegerLiteral{Base: b.Base, Value: 0}
		}
	case "and", "&&":
		if isBoolLiteral(b.Right, true) {
			p.count++
			return b.Left
		}
		if isBoolLiteral(b.Left, true) {
			p.count++
			return b.Right
		}
	case "or", "||":
		if isBoolLiteral(b.Right, false) {
			p.count++
			return b.Left
		}
		if isBoolLiteral(b.Left, false) {
			p.count++
			return b.Right
		}
	case "<<", ">>":
		if isIntLiteral(b.Right, 0) {
			p.count++
			return b.Left
		}
	}
	return b
}

// sameVar reports structural identity of two identifier reads; it never
// claims equality for expressions with possible side effects (calls,
// index into a mutable receiver) since x&x->x etc. must not duplicate or
// drop a side effect.
func sameVar(a, b ast.Expression) bool {
	ai, aok := a.(*ast.Identifier)
	bi, bok := b.(*ast.Identifier)
	return aok && bok && ai.Name == bi.Name
}
