package optimizer

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
)

func wrapMain(stmts ...ast.Statement) *ast.Program {
	return &ast.Program{Decls: []ast.Statement{
		&ast.FuncDecl{Name: "main", Body: &ast.Block{Stmts: stmts}},
	}}
}

func TestFoldPassDivisionByZeroLeftUnchanged(t *testing.T) {
	ret := &ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "/", Left: intLit(10), Right: intLit(0)}}
	prog := wrapMain(ret)

	(&FoldPass{}).Run(prog)

	if _, ok := ret.Value.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected division by zero left as a BinaryExpr (no panic, no fold), got %T", ret.Value)
	}
}

func TestAlgebraicSimplifyIdentities(t *testing.T) {
	cases := []struct {
		name string
		expr *ast.BinaryExpr
		want func(ast.Expression) bool
	}{
		{"x+0", &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "x"}, Right: intLit(0)},
			func(e ast.Expression) bool { id, ok := e.(*ast.Identifier); return ok && id.Name == "x" }},
		{"x*0", &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "x"}, Right: intLit(0)},
			func(e ast.Expression) bool { lit, ok := e.(*ast.IntegerLiteral); return ok && lit.Value == 0 }},
		{"x*1", &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "x"}, Right: intLit(1)},
			func(e ast.Expression) bool { id, ok := e.(*ast.Identifier); return ok && id.Name == "x" }},
		{"x^x", &ast.BinaryExpr{Op: "^", Left: &ast.Identifier{Name: "x"}, Right: &ast.Identifier{Name: "x"}},
			func(e ast.Expression) bool { lit, ok := e.(*ast.IntegerLiteral); return ok && lit.Value == 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ret := &ast.ReturnStmt{Value: c.expr}
			prog := wrapMain(ret)
			(&AlgebraicPass{}).Run(prog)
			if !c.want(ret.Value) {
				t.Fatalf("%s: unexpected result %#v", c.name, ret.Value)
			}
		})
	}
}

func TestStrengthReductionPowerOfTwo(t *testing.T) {
	ret := &ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "x"}, Right: intLit(8)}}
	prog := wrapMain(ret)

	(&StrengthReductionPass{}).Run(prog)

	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok || bin.Op != "<<" {
		t.Fatalf("expected x*8 -> x<<3, got %#v", ret.Value)
	}
	shift, ok := bin.Right.(*ast.IntegerLiteral)
	if !ok || shift.Value != 3 {
		t.Fatalf("expected shift amount 3, got %#v", bin.Right)
	}
}

func TestStrengthReductionModuloPowerOfTwo(t *testing.T) {
	ret := &ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "%", Left: &ast.Identifier{Name: "x"}, Right: intLit(16)}}
	prog := wrapMain(ret)

	(&StrengthReductionPass{}).Run(prog)

	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok || bin.Op != "&" {
		t.Fatalf("expected x%%16 -> x&15, got %#v", ret.Value)
	}
	mask, ok := bin.Right.(*ast.IntegerLiteral)
	if !ok || mask.Value != 15 {
		t.Fatalf("expected mask 15, got %#v", bin.Right)
	}
}

func TestDCERemovesCodeAfterReturn(t *testing.T) {
	body := &ast.Block{Stmts: []ast.Statement{
		&ast.ReturnStmt{Value: intLit(1)},
		&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "unreachable"}}},
	}}
	prog := &ast.Program{Decls: []ast.Statement{&ast.FuncDecl{Name: "main", Body: body}}}

	(&DCEPass{}).Run(prog)

	if len(body.Stmts) != 1 {
		t.Fatalf("expected the statement after return to be removed, got %d", len(body.Stmts))
	}
}

// TestLoopUnrollWithinBounds verifies a `for i in 0..4` loop (trip count 4,
// the lower bound of spec §4.5.6's window) unrolls into flat statements.
func TestLoopUnrollWithinBounds(t *testing.T) {
	loop := &ast.ForStmt{
		VarName: "i",
		Iter:    &ast.RangeExpr{From: intLit(0), To: intLit(4), Inclusive: false},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "use"}, Args: []ast.Arg{{Value: &ast.Identifier{Name: "i"}}}}},
		}},
	}
	body := &ast.Block{Stmts: []ast.Statement{loop}}
	prog := &ast.Program{Decls: []ast.Statement{&ast.FuncDecl{Name: "main", Body: body}}}

	n := (&LoopOptPass{}).Run(prog)
	if n == 0 {
		t.Fatal("expected the loop to be unrolled")
	}
	if len(body.Stmts) != 4 {
		t.Fatalf("expected 4 unrolled statements, got %d: %#v", len(body.Stmts), body.Stmts)
	}
	for idx, s := range body.Stmts {
		call := s.(*ast.ExprStmt).X.(*ast.CallExpr)
		lit, ok := call.Args[0].Value.(*ast.IntegerLiteral)
		if !ok || lit.Value != int64(idx) {
			t.Fatalf("expected unrolled copy %d to substitute i=%d, got %#v", idx, idx, call.Args[0].Value)
		}
	}
}

// TestLoopUnrollSkippedOutsideBounds ensures a trip count below the
// minimum is left as a real loop.
func TestLoopUnrollSkippedOutsideBounds(t *testing.T) {
	loop := &ast.ForStmt{
		VarName: "i",
		Iter:    &ast.RangeExpr{From: intLit(0), To: intLit(2), Inclusive: false},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "use"}, Args: []ast.Arg{{Value: &ast.Identifier{Name: "i"}}}}},
		}},
	}
	body := &ast.Block{Stmts: []ast.Statement{loop}}
	prog := &ast.Program{Decls: []ast.Statement{&ast.FuncDecl{Name: "main", Body: body}}}

	(&LoopOptPass{}).Run(prog)

	if len(body.Stmts) != 1 {
		t.Fatalf("expected the loop left intact below the trip-count threshold, got %d statements", len(body.Stmts))
	}
	if _, ok := body.Stmts[0].(*ast.ForStmt); !ok {
		t.Fatalf("expected a ForStmt, got %T", body.Stmts[0])
	}
}

// TestLoopInvariantHoisting verifies a loop-invariant declaration at the
// top of a loop body is hoisted before the loop (spec §4.5.6 LICM).
func TestLoopInvariantHoisting(t *testing.T) {
	loop := &ast.WhileStmt{
		Cond: &ast.BinaryExpr{Op: "<", Left: &ast.Identifier{Name: "i"}, Right: intLit(100)},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.VarDecl{Kind: ast.VarLet, Name: "limit", Init: &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "width"}, Right: &ast.Identifier{Name: "height"}}},
			&ast.ExprStmt{X: &ast.AssignExpr{Op: "+=", Target: &ast.Identifier{Name: "i"}, Value: &ast.Identifier{Name: "limit"}}},
		}},
	}
	body := &ast.Block{Stmts: []ast.Statement{loop}}
	prog := &ast.Program{Decls: []ast.Statement{&ast.FuncDecl{Name: "main", Body: body}}}

	(&LoopOptPass{}).Run(prog)

	if len(body.Stmts) != 2 {
		t.Fatalf("expected the invariant decl hoisted before the loop, got %d statements: %#v", len(body.Stmts), body.Stmts)
	}
	if _, ok := body.Stmts[0].(*ast.VarDecl); !ok {
		t.Fatalf("expected a hoisted VarDecl first, got %T", body.Stmts[0])
	}
	if _, ok := body.Stmts[1].(*ast.WhileStmt); !ok {
		t.Fatalf("expected the while loop second, got %T", body.Stmts[1])
	}
}
