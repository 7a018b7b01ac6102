package optimizer

import "github.com/tyl-lang/tyl/internal/ast"

// StrengthReductionPass implements spec §4.5.4 (O3+): integer multiply,
// divide, and modulo by a power of two become shift / shift / bit-and;
// divide by a negative power of two shifts then negates. For and while
// loop bodies are reached by this pass's own statement walk; LoopOptPass
// does not call strengthReduceExpr.
type StrengthReductionPass struct{ count int }

func (p *StrengthReductionPass) Name() string { return "strength-reduction" }

func (p *StrengthReductionPass) Run(prog *ast.Program) int {
	p.count = 0
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d)
	}
	return p.count
}

func (p *StrengthReductionPass) stmt(s ast.Statement) ast.Statement {
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
		p.stmt(st.Then)
		if st.Else != nil {
			st.Else = p.stmt(st.Else)
		}
	case *ast.WhileStmt:
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

func (p *StrengthReductionPass) expr(x ast.Expression) ast.Expression {
	switch ex := x.(type) {
	case *ast.BinaryExpr:
		ex.Left = p.expr(ex.Left)
		ex.Right = p.expr(ex.Right)
		if reduced, ok := strengthReduceExpr(ex); ok {
			p.count++
			return reduced
		}
		return ex
	default:
		return x
	}
}

// powerOfTwoLog2 returns (log2(n), true) if n is a positive power of two,
// or (log2(-n), false-negative-sign) handling negative powers of two for
// the division case.
func powerOfTwoLog2(n int64) (shift int, negative bool, ok bool) {
	if n == 0 {
		return 0, false, false
	}
	abs := n
	if abs < 0 {
		abs = -abs
		negative = true
	}
	if abs&(abs-1) != 0 {
		return 0, false, false
	}
	shift = 0
	for v := abs; v > 1; v >>= 1 {
		shift++
	}
	return shift, negative, true
}

// strengthReduceExpr applies the power-of-two rewrite to a single binary
// expression.
func strengthReduceExpr(b *ast.BinaryExpr) (ast.Expression, bool) {
	rhs, ok := b.Right.(*ast.IntegerLiteral)
	if !ok {
		return nil, false
	}
	shift, negative, ok := powerOfTwoLog2(rhs.Value)
	if !ok {
		return nil, false
	}
	switch b.Op {
	case "*":
		shl := &ast.BinaryExpr{Base: b.Base, Op: "<<", Left: b.Left, Right: &ast.IntegerLiteral{Value: int64(shift)}}
		if negative {
			return negate(shl), true
		}
		return shl, true
	case "/":
		shr := &ast.BinaryExpr{Base: b.Base, Op: ">>", Left: b.Left, Right: &ast.IntegerLiteral{Value: int64(shift)}}
		if negative {
			return negate(shr), true
		}
		return shr, true
	case "%":
		if negative {
			return nil, false // modulo by a negative power of two is left to codegen
		}
		mask := (int64(1) << uint(shift)) - 1
		return &ast.BinaryExpr{Base: b.Base, Op: "&", Left: b.Left, Right: &ast.IntegerLiteral{Value: mask}}, true
	}
	return nil, false
}
