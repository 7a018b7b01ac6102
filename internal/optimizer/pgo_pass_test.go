package optimizer

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/pgo"
	"github.com/tyl-lang/tyl/internal/token"
)

// TestPGOReordersColdFirstBranch verifies an if/else whose else arm was
// taken far more often gets swapped to the front, with the condition
// negated to preserve behaviour.
func TestPGOReordersColdFirstBranch(t *testing.T) {
	hotBranch := &ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "hotPath"}}}
	coldBranch := &ast.ExprStmt{X: &ast.CallExpr{Callee: &ast.Identifier{Name: "coldPath"}}}
	ifStmt := &ast.IfStmt{
		Base: ast.Base{Loc: token.Location{Filename: "x.tyl", Line: 5}},
		Cond: &ast.Identifier{Name: "rare"},
		Then: &ast.Block{Stmts: []ast.Statement{coldBranch}},
		Else: &ast.Block{Stmts: []ast.Statement{hotBranch}},
	}
	main := &ast.FuncDecl{Name: "main", Body: &ast.Block{Stmts: []ast.Statement{ifStmt}}}
	prog := &ast.Program{Decls: []ast.Statement{main}}

	profile := &pgo.Profile{
		Funcs: map[string]pgo.FuncProfile{},
		Branches: []pgo.BranchProfile{
			{Func: "main", Line: 5, Taken: 2, NotTaken: 100},
		},
	}

	p := &PGOPass{Profile: profile}
	n := p.Run(prog)
	if n != 1 {
		t.Fatalf("expected one reordering, got %d", n)
	}
	if !ifStmt.Unless {
		t.Fatal("expected the condition to be negated")
	}
	if ifStmt.Then.Stmts[0] != ast.Statement(hotBranch) {
		t.Fatalf("expected the hot branch moved to Then, got %#v", ifStmt.Then.Stmts[0])
	}
}

// TestPGONilProfileIsNoOp ensures the pass is always safe to wire in.
func TestPGONilProfileIsNoOp(t *testing.T) {
	main := &ast.FuncDecl{Name: "main", Body: &ast.Block{}}
	prog := &ast.Program{Decls: []ast.Statement{main}}
	if n := (&PGOPass{}).Run(prog); n != 0 {
		t.Fatalf("expected no-op with a nil profile, got %d", n)
	}
}
