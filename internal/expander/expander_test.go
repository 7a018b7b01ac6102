package expander

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/macro"
)

func TestInfixOperatorRewrite(t *testing.T) {
	reg := macro.NewRegistry()
	reg.RegisterInfix("<+>", 5)

	prog := &ast.Program{
		Decls: []ast.Statement{
			&ast.ExprStmt{X: &ast.BinaryExpr{
				Op:   "<+>",
				Left: &ast.IntegerLiteral{Value: 1},
				Right: &ast.IntegerLiteral{Value: 2},
			}},
		},
	}
	Expand(prog, reg)
	es := prog.Decls[0].(*ast.ExprStmt)
	call, ok := es.X.(*ast.CallExpr)
	if !ok {
		t.Fatalf("expected rewrite to CallExpr, got %T", es.X)
	}
	ident := call.Callee.(*ast.Identifier)
	if ident.Name != "__infix_<+>" {
		t.Fatalf("unexpected mangled name %q", ident.Name)
	}
	if len(call.Args) != 2 {
		t.Fatalf("expected 2 args, got %d", len(call.Args))
	}
}

func TestUnregisteredCustomOpFallsBackToMangledName(t *testing.T) {
	reg := macro.NewRegistry()
	prog := &ast.Program{
		Decls: []ast.Statement{
			&ast.ExprStmt{X: &ast.BinaryExpr{
				Op:    "**",
				Left:  &ast.IntegerLiteral{Value: 2},
				Right: &ast.IntegerLiteral{Value: 10},
			}},
		},
	}
	Expand(prog, reg)
	call := prog.Decls[0].(*ast.ExprStmt).X.(*ast.CallExpr)
	if call.Callee.(*ast.Identifier).Name != "__op_starstar" {
		t.Fatalf("expected __op_starstar, got %s", call.Callee.(*ast.Identifier).Name)
	}
}

func TestMacroCallExpandsToTailExpression(t *testing.T) {
	reg := macro.NewRegistry()
	reg.RegisterMacro("double", macro.Declarative{
		Name:   "double",
		Params: []string{"x"},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "x"}, Right: &ast.IntegerLiteral{Value: 2}}},
		}},
	})
	prog := &ast.Program{
		Decls: []ast.Statement{
			&ast.ExprStmt{X: &ast.CallExpr{
				Callee: &ast.Identifier{Name: "double"},
				Args:   []ast.Arg{{Value: &ast.IntegerLiteral{Value: 21}}},
			}},
		},
	}
	Expand(prog, reg)
	es := prog.Decls[0].(*ast.ExprStmt)
	bin, ok := es.X.(*ast.BinaryExpr)
	if !ok {
		t.Fatalf("expected macro call to expand into its tail expression, got %T", es.X)
	}
	lit, ok := bin.Left.(*ast.IntegerLiteral)
	if !ok || lit.Value != 21 {
		t.Fatalf("expected substituted argument 21, got %+v", bin.Left)
	}
}
