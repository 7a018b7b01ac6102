package optimizer

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
)

// sumToDecl builds:
//
//	fn sumTo(n, acc) -> int {
//	    if n <= 0 { return acc }
//	    return sumTo(n-1, acc+n)
//	}
func sumToDecl() *ast.FuncDecl {
	return &ast.FuncDecl{
		Name:   "sumTo",
		Params: []ast.Param{{Name: "n", Type: "int"}, {Name: "acc", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.IfStmt{
				Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.Identifier{Name: "n"}, Right: intLit(0)},
				Then: &ast.Block{Stmts: []ast.Statement{&ast.ReturnStmt{Value: &ast.Identifier{Name: "acc"}}}},
			},
			&ast.ReturnStmt{Value: &ast.CallExpr{Callee: &ast.Identifier{Name: "sumTo"}, Args: []ast.Arg{
				{Value: &ast.BinaryExpr{Op: "-", Left: &ast.Identifier{Name: "n"}, Right: intLit(1)}},
				{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "acc"}, Right: &ast.Identifier{Name: "n"}}},
			}}},
		}},
	}
}

// TestTailCallConvertedToLoop verifies a self-tail-call in tail position is
// converted into a parameter reassignment followed by continue, with the
// whole body wrapped in a loop (spec §4.5.8).
func TestTailCallConvertedToLoop(t *testing.T) {
	sumTo := sumToDecl()
	prog := &ast.Program{Decls: []ast.Statement{sumTo}}

	p := &TCOPass{}
	n := p.Run(prog)
	if n != 1 {
		t.Fatalf("expected exactly one function converted, got %d", n)
	}

	if len(sumTo.Body.Stmts) != 1 {
		t.Fatalf("expected the body to be replaced by a single loop statement, got %d", len(sumTo.Body.Stmts))
	}
	loop, ok := sumTo.Body.Stmts[0].(*ast.LoopStmt)
	if !ok {
		t.Fatalf("expected a LoopStmt, got %T", sumTo.Body.Stmts[0])
	}

	// the if-statement (early return) survives unchanged at the top.
	if _, ok := loop.Body.Stmts[0].(*ast.IfStmt); !ok {
		t.Fatalf("expected the base-case if to remain first, got %T", loop.Body.Stmts[0])
	}

	// the former `return sumTo(...)` becomes temp decls + assigns + continue.
	tail := loop.Body.Stmts[1:]
	if len(tail) == 0 {
		t.Fatal("expected converted tail-call statements")
	}
	last := tail[len(tail)-1]
	if _, ok := last.(*ast.ContinueStmt); !ok {
		t.Fatalf("expected the converted tail call to end in continue, got %T", last)
	}

	sawAssignTo := map[string]bool{}
	for _, s := range tail {
		if es, ok := s.(*ast.ExprStmt); ok {
			if assign, ok := es.X.(*ast.AssignExpr); ok {
				if ident, ok := assign.Target.(*ast.Identifier); ok {
					sawAssignTo[ident.Name] = true
				}
			}
		}
	}
	if !sawAssignTo["n"] || !sawAssignTo["acc"] {
		t.Fatalf("expected both n and acc reassigned, got %#v", sawAssignTo)
	}
}

// TestNonTailRecursionLeftAlone ensures a self-call that is not in tail
// position (its result feeds an enclosing expression) is never converted.
func TestNonTailRecursionLeftAlone(t *testing.T) {
	fact := &ast.FuncDecl{
		Name:   "fact",
		Params: []ast.Param{{Name: "n", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: &ast.TernaryExpr{
				Cond: &ast.BinaryExpr{Op: "<=", Left: &ast.Identifier{Name: "n"}, Right: intLit(1)},
				Then: intLit(1),
				Else: &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "n"},
					Right: &ast.CallExpr{Callee: &ast.Identifier{Name: "fact"},
						Args: []ast.Arg{{Value: &ast.BinaryExpr{Op: "-", Left: &ast.Identifier{Name: "n"}, Right: intLit(1)}}}}},
			}},
		}},
	}
	prog := &ast.Program{Decls: []ast.Statement{fact}}

	p := &TCOPass{}
	n := p.Run(prog)
	if n != 0 {
		t.Fatalf("expected no conversion for non-tail recursion, got %d", n)
	}
	if _, ok := fact.Body.Stmts[0].(*ast.LoopStmt); ok {
		t.Fatal("fact's body must not be wrapped in a loop")
	}
}
