package optimizer

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
)

func addOneDecl() *ast.FuncDecl {
	return &ast.FuncDecl{
		Name:   "addOne",
		Params: []ast.Param{{Name: "n", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "n"}, Right: intLit(1)}},
		}},
	}
}

// TestExpressionLevelInlineSubstitutesArgumentOnce verifies a pure,
// single-return callee's body is substituted directly into the call site
// with the argument expression appearing exactly once (spec §8 property 6).
func TestExpressionLevelInlineSubstitutesArgumentOnce(t *testing.T) {
	addOne := addOneDecl()
	main := &ast.FuncDecl{Name: "main", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ReturnStmt{Value: &ast.CallExpr{Callee: &ast.Identifier{Name: "addOne"},
			Args: []ast.Arg{{Value: intLit(41)}}}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{addOne, main}}

	p := &InlinePass{Funcs: map[string]*ast.FuncDecl{"addOne": addOne, "main": main}}
	n := p.Run(prog)
	if n == 0 {
		t.Fatal("expected at least one inlining transformation")
	}

	ret := main.Body.Stmts[0].(*ast.ReturnStmt)
	bin, ok := ret.Value.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected the call site to become the callee's body, got %T", ret.Value)
	}
	lit, ok := bin.Left.(*ast.IntegerLiteral)
	if !ok || lit.Value != 41 {
		t.Fatalf("expected the argument literal substituted for n, got %#v", bin.Left)
	}
}

// TestRecursiveFunctionNeverInlined ensures a self-recursive function is
// left alone regardless of purity or single-return shape (spec §4.5.7).
func TestRecursiveFunctionNeverInlined(t *testing.T) {
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
	main := &ast.FuncDecl{Name: "main", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ReturnStmt{Value: &ast.CallExpr{Callee: &ast.Identifier{Name: "fact"}, Args: []ast.Arg{{Value: intLit(5)}}}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{fact, main}}

	p := &InlinePass{Funcs: map[string]*ast.FuncDecl{"fact": fact, "main": main}}
	p.Run(prog)

	ret := main.Body.Stmts[0].(*ast.ReturnStmt)
	if _, ok := ret.Value.(*ast.CallExpr); !ok {
		t.Fatalf("expected the call to fact to remain a call, got %T", ret.Value)
	}
}

// TestMainNeverInlined ensures main itself is never a candidate callee.
func TestMainNeverInlined(t *testing.T) {
	main := &ast.FuncDecl{Name: "main", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ReturnStmt{Value: intLit(0)},
	}}}
	caller := &ast.FuncDecl{Name: "caller", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "main"}}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{main, caller}}

	p := &InlinePass{Funcs: map[string]*ast.FuncDecl{"main": main, "caller": caller}}
	if p.eligible(main) {
		t.Fatal("expected eligible(main) to be false")
	}
	p.Run(prog)
	es := caller.Body.Stmts[0].(*ast.ExprStmt)
	if _, ok := es.X.(*ast.CallExpr); !ok {
		t.Fatalf("expected the call to main to remain a call, got %T", es.X)
	}
}

// TestStatementLevelInlineRenamesLocals verifies a simple multi-statement
// callee is spliced into the caller's block with its locals renamed so
// repeated inlining never collides (spec §4.5.7).
func TestStatementLevelInlineRenamesLocals(t *testing.T) {
	helper := &ast.FuncDecl{
		Name:   "helper",
		Params: []ast.Param{{Name: "n", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.VarDecl{Kind: ast.VarLet, Name: "tmp", Init: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "n"}, Right: intLit(1)}},
			&ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "log"}, Args: []ast.Arg{{Value: &ast.Identifier{Name: "tmp"}}}}},
			&ast.ReturnStmt{Value: &ast.Identifier{Name: "tmp"}},
		}},
	}
	main := &ast.FuncDecl{Name: "main", Body: &ast.Block{Stmts: []ast.Statement{
		&ast.VarDecl{Kind: ast.VarLet, Name: "result", Init: &ast.CallExpr{Callee: &ast.Identifier{Name: "helper"}, Args: []ast.Arg{{Value: intLit(9)}}}},
		&ast.ReturnStmt{Value: &ast.Identifier{Name: "result"}},
	}}}
	prog := &ast.Program{Decls: []ast.Statement{helper, main}}

	p := &InlinePass{Funcs: map[string]*ast.FuncDecl{"helper": helper, "main": main}}
	n := p.Run(prog)
	if n == 0 {
		t.Fatal("expected a statement-level inlining transformation")
	}

	if len(main.Body.Stmts) < 3 {
		t.Fatalf("expected the caller's block to grow with the spliced body, got %d statements", len(main.Body.Stmts))
	}
	firstDecl, ok := main.Body.Stmts[0].(*ast.VarDecl)
	if !ok || firstDecl.Name == "tmp" {
		t.Fatalf("expected helper's local `tmp` to be renamed, got %#v", main.Body.Stmts[0])
	}
}
