package ssa

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
)

func intLit(v int64) *ast.IntegerLiteral { return &ast.IntegerLiteral{Value: v} }

// TestStraightLineFunction builds:
//
//	fn add(a, b) -> int { return a + b }
func TestStraightLineFunction(t *testing.T) {
	fn := &ast.FuncDecl{
		Name:   "add",
		Params: []ast.Param{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "a"}, Right: &ast.Identifier{Name: "b"}}},
		}},
	}
	f, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(f.Blocks) != 1 {
		t.Fatalf("expected a single block, got %d", len(f.Blocks))
	}
	term := f.Entry.Term
	if term.Kind != "return" || !term.HasRet {
		t.Fatalf("expected a return terminator, got %#v", term)
	}
	retVal := f.Value(term.Ret)
	if retVal.Op != "binop" || retVal.Sym != "+" {
		t.Fatalf("expected the returned value to be an add, got %#v", retVal)
	}
}

// TestIfElseProducesPhi builds:
//
//	fn choose(c, a, b) -> int {
//	    mut r = 0
//	    if c { r = a } else { r = b }
//	    return r
//	}
//
// and verifies the join block's read of r resolves to a genuine
// (non-trivial) phi merging the two assignments.
func TestIfElseProducesPhi(t *testing.T) {
	fn := &ast.FuncDecl{
		Name:   "choose",
		Params: []ast.Param{{Name: "c", Type: "bool"}, {Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.VarDecl{Kind: ast.VarMut, Name: "r", Init: intLit(0)},
			&ast.IfStmt{
				Cond: &ast.Identifier{Name: "c"},
				Then: &ast.Block{Stmts: []ast.Statement{
					&ast.ExprStmt{X: &ast.AssignExpr{Op: "=", Target: &ast.Identifier{Name: "r"}, Value: &ast.Identifier{Name: "a"}}},
				}},
				Else: &ast.Block{Stmts: []ast.Statement{
					&ast.ExprStmt{X: &ast.AssignExpr{Op: "=", Target: &ast.Identifier{Name: "r"}, Value: &ast.Identifier{Name: "b"}}},
				}},
			},
			&ast.ReturnStmt{Value: &ast.Identifier{Name: "r"}},
		}},
	}
	f, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	var retBlock *Block
	for _, b := range f.Blocks {
		if b.Term.Kind == "return" {
			retBlock = b
		}
	}
	if retBlock == nil {
		t.Fatal("no return block found")
	}
	retVal := f.Value(retBlock.Term.Ret)
	if retVal.Op != "phi" {
		t.Fatalf("expected the returned value to be a phi merging both branches, got %#v", retVal)
	}
	if len(retVal.Args) != 2 {
		t.Fatalf("expected the phi to have 2 operands, got %d", len(retVal.Args))
	}
}

// TestLoopProducesResolvedPhi builds:
//
//	fn countUp(n) -> int {
//	    mut i = 0
//	    while i < n { i = i + 1 }
//	    return i
//	}
//
// The header's read of i is initially an incomplete phi (the loop's back
// edge isn't known yet); sealing the header after the body is built must
// resolve it into a genuine 2-operand phi (entry value, incremented value).
func TestLoopProducesResolvedPhi(t *testing.T) {
	fn := &ast.FuncDecl{
		Name:   "countUp",
		Params: []ast.Param{{Name: "n", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.VarDecl{Kind: ast.VarMut, Name: "i", Init: intLit(0)},
			&ast.WhileStmt{
				Cond: &ast.BinaryExpr{Op: "<", Left: &ast.Identifier{Name: "i"}, Right: &ast.Identifier{Name: "n"}},
				Body: &ast.Block{Stmts: []ast.Statement{
					&ast.ExprStmt{X: &ast.AssignExpr{Op: "+=", Target: &ast.Identifier{Name: "i"}, Value: intLit(1)}},
				}},
			},
			&ast.ReturnStmt{Value: &ast.Identifier{Name: "i"}},
		}},
	}
	f, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var header *Block
	for _, b := range f.Blocks {
		if b.Term.Kind == "branch" {
			header = b
		}
	}
	if header == nil {
		t.Fatal("expected a header block ending in a branch")
	}
	if !header.Sealed {
		t.Fatal("expected the header to be sealed once the back edge is known")
	}
	iVal := f.ReadVariable("i", header)
	phi := f.Value(iVal)
	if phi.Op != "phi" {
		t.Fatalf("expected the loop-carried i to be a phi, got %#v", phi)
	}
	if len(phi.Args) != 2 {
		t.Fatalf("expected 2 phi operands (preheader, back edge), got %d: %#v", len(phi.Args), phi.Args)
	}
}

// TestOptimizeDedupesIdenticalBinops exercises the post-SSA local CSE pass
// over commutative operands.
func TestOptimizeDedupesIdenticalBinops(t *testing.T) {
	fn := &ast.FuncDecl{
		Name:   "dup",
		Params: []ast.Param{{Name: "x", Type: "int"}, {Name: "y", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.VarDecl{Kind: ast.VarLet, Name: "a", Init: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "x"}, Right: &ast.Identifier{Name: "y"}}},
			&ast.VarDecl{Kind: ast.VarLet, Name: "b", Init: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "y"}, Right: &ast.Identifier{Name: "x"}}},
			&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "a"}, Right: &ast.Identifier{Name: "b"}}},
		}},
	}
	f, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	Optimize(f)

	retVal := f.Value(f.Entry.Term.Ret)
	if retVal.Op != "binop" {
		t.Fatalf("expected the return value to remain a binop, got %#v", retVal)
	}
	if retVal.Args[0] != retVal.Args[1] {
		t.Fatalf("expected both operands of a+b to collapse onto the same deduped value, got %v and %v", retVal.Args[0], retVal.Args[1])
	}
}

// TestOptimizeRemovesDeadValues verifies a computed-but-unused value is
// dropped from its block's instruction list.
func TestOptimizeRemovesDeadValues(t *testing.T) {
	fn := &ast.FuncDecl{
		Name:   "waste",
		Params: []ast.Param{{Name: "x", Type: "int"}},
		Body: &ast.Block{Stmts: []ast.Statement{
			&ast.VarDecl{Kind: ast.VarLet, Name: "unused", Init: &ast.BinaryExpr{Op: "*", Left: &ast.Identifier{Name: "x"}, Right: intLit(2)}},
			&ast.ReturnStmt{Value: &ast.Identifier{Name: "x"}},
		}},
	}
	f, err := Build(fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	before := len(f.Entry.Instrs)
	Optimize(f)
	after := len(f.Entry.Instrs)
	if after >= before {
		t.Fatalf("expected the dead multiply to be eliminated, before=%d after=%d", before, after)
	}
}
