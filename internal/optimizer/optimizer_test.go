package optimizer

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
)

func intLit(v int64) *ast.IntegerLiteral { return &ast.IntegerLiteral{Value: v} }

// TestS1FoldsToSingleLiteral: fn main() -> int { return 2+3*4 } at -O1
// folds to a single IntegerLiteral(14) (spec §8 scenario S1).
func TestS1FoldsToSingleLiteral(t *testing.T) {
	main := &ast.FuncDecl{Name: "main", RetType: "int", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: intLit(2),
			Right: &ast.BinaryExpr{Op: "*", Left: intLit(3), Right: intLit(4)}}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{main}}

	d := NewDriver(O1, false)
	d.Run(prog)

	ret := main.Body.Stmts[0].(*ast.ReturnStmt)
	lit, ok := ret.Value.(*ast.IntegerLiteral)
	if !ok {
		t.Fatalf("expected IntegerLiteral, got %T", ret.Value)
	}
	if lit.Value != 14 {
		t.Fatalf("expected 14, got %d", lit.Value)
	}
}

// TestS2ConstNeverEmittedAsRuntimeVar: const N :: 10; fn main() { return N+1 }
// propagates N directly and drops its declaration (spec §8 scenario S2).
func TestS2ConstNeverEmittedAsRuntimeVar(t *testing.T) {
	constDecl := &ast.VarDecl{Kind: ast.VarConst, Name: "N", Init: intLit(10)}
	main := &ast.FuncDecl{Name: "main", RetType: "int", Body: &ast.Block{Stmts: []ast.Statement{
		constDecl,
		&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "N"}, Right: intLit(1)}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{main}}

	d := NewDriver(O2, false)
	d.Run(prog)

	if len(main.Body.Stmts) != 1 {
		t.Fatalf("expected N's declaration to be eliminated as dead, got %d statements", len(main.Body.Stmts))
	}
	ret := main.Body.Stmts[0].(*ast.ReturnStmt)
	lit, ok := ret.Value.(*ast.IntegerLiteral)
	if !ok || lit.Value != 11 {
		t.Fatalf("expected folded literal 11, got %#v", ret.Value)
	}
}

// TestS3AccumulatorCollapsesLoop: mut x = 0; for i in 1..=5 { x = x + i };
// return x at -O2 collapses to mut x = 15; return x (spec §8 scenario S3).
func TestS3AccumulatorCollapsesLoop(t *testing.T) {
	xDecl := &ast.VarDecl{Kind: ast.VarMut, Name: "x", Init: intLit(0)}
	loop := &ast.ForStmt{
		VarName: "i",
		Iter:    &ast.RangeExpr{From: intLit(1), To: intLit(5), Inclusive: true},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ExprStmt{X: &ast.AssignExpr{Op: "=", Target: &ast.Identifier{Name: "x"},
				Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "x"}, Right: &ast.Identifier{Name: "i"}}}},
		}},
	}
	main := &ast.FuncDecl{Name: "main", RetType: "int", Body: &ast.Block{Stmts: []ast.Statement{
		xDecl, loop, &ast.ReturnStmt{Value: &ast.Identifier{Name: "x"}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{main}}

	d := NewDriver(O2, false)
	d.Run(prog)

	if len(main.Body.Stmts) != 2 {
		t.Fatalf("expected the loop to collapse away, got %d statements: %#v", len(main.Body.Stmts), main.Body.Stmts)
	}
	decl, ok := main.Body.Stmts[0].(*ast.VarDecl)
	if !ok || decl.Name != "x" {
		t.Fatalf("expected leading x decl, got %#v", main.Body.Stmts[0])
	}
	lit, ok := decl.Init.(*ast.IntegerLiteral)
	if !ok || lit.Value != 15 {
		t.Fatalf("expected x initialised to 15, got %#v", decl.Init)
	}
}

// TestO0RunsNoPasses verifies -O0 leaves the program untouched (spec §4.5's
// pass table: O0 has an empty pass list).
func TestO0RunsNoPasses(t *testing.T) {
	main := &ast.FuncDecl{Name: "main", RetType: "int", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: intLit(2), Right: intLit(2)}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{main}}

	d := NewDriver(O0, false)
	n := d.Run(prog)

	if n != 0 {
		t.Fatalf("expected zero transformations at -O0, got %d", n)
	}
	ret := main.Body.Stmts[0].(*ast.ReturnStmt)
	if _, ok := ret.Value.(*ast.BinaryExpr); !ok {
		t.Fatalf("expected the binary expression left unfolded at -O0, got %T", ret.Value)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"O0": O0, "O1": O1, "O2": O2, "O3": O3, "Os": Os, "Oz": Oz, "Ofast": Ofast}
	for flag, want := range cases {
		got, err := ParseLevel(flag)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", flag, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", flag, got, want)
		}
	}
	if _, err := ParseLevel("O9"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}
