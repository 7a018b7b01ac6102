package ctfe

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
)

// factorial builds `fn fact(n) -> int { return 1 if n <= 1 else n * fact(n-1) }`
// (spec §8 scenario S4).
func factorial() *ast.FuncDecl {
	nRef := func() ast.Expression { return &ast.Identifier{Name: "n"} }
	cond := &ast.BinaryExpr{Op: "<=", Left: nRef(), Right: &ast.IntegerLiteral{Value: 1}}
	recurse := &ast.CallExpr{
		Callee: &ast.Identifier{Name: "fact"},
		Args:   []ast.Arg{{Value: &ast.BinaryExpr{Op: "-", Left: nRef(), Right: &ast.IntegerLiteral{Value: 1}}}},
	}
	body := &ast.TernaryExpr{
		Cond: cond,
		Then: &ast.IntegerLiteral{Value: 1},
		Else: &ast.BinaryExpr{Op: "*", Left: nRef(), Right: recurse},
	}
	return &ast.FuncDecl{
		Name:   "fact",
		Params: []ast.Param{{Name: "n", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: body},
		}},
	}
}

func TestFactorialCollapsesToConstant(t *testing.T) {
	fact := factorial()
	funcs := map[string]*ast.FuncDecl{"fact": fact}
	interp := New(funcs)
	if !interp.IsPure("fact") {
		t.Fatalf("expected fact to be proven pure")
	}
	result, ok := interp.Eval(fact, []ast.Value{ast.IntValue(5)})
	if !ok {
		t.Fatalf("expected CTFE to succeed")
	}
	if result.Kind != ast.ValInt || result.Int != 120 {
		t.Fatalf("expected 120, got %+v", result)
	}
}

func TestRecursionDepthBoundAborts(t *testing.T) {
	// fn loopy(n) -> int { return loopy(n+1) } never terminates and must
	// abort once it exceeds the 100-frame bound (spec §4.5.5, §8 property 10).
	fn := &ast.FuncDecl{
		Name:   "loopy",
		Params: []ast.Param{{Name: "n", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: &ast.CallExpr{
				Callee: &ast.Identifier{Name: "loopy"},
				Args:   []ast.Arg{{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "n"}, Right: &ast.IntegerLiteral{Value: 1}}}},
			}},
		}},
	}
	funcs := map[string]*ast.FuncDecl{"loopy": fn}
	interp := New(funcs)
	_, ok := interp.Eval(fn, []ast.Value{ast.IntValue(0)})
	if ok {
		t.Fatalf("expected CTFE to abort on unbounded recursion")
	}
}

func TestDivisionByZeroAbortsRatherThanPanics(t *testing.T) {
	fn := &ast.FuncDecl{
		Name: "divz",
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "/", Left: &ast.IntegerLiteral{Value: 1}, Right: &ast.IntegerLiteral{Value: 0}}},
		}},
	}
	funcs := map[string]*ast.FuncDecl{"divz": fn}
	interp := New(funcs)
	_, ok := interp.Eval(fn, nil)
	if ok {
		t.Fatalf("expected division by zero to abort CTFE")
	}
}
