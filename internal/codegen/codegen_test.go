package codegen

import (
	"testing"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/types"
)

func TestEmitMovRegImm32(t *testing.T) {
	buf := NewCodeBuffer()
	buf.MovRegImm32(RAX, 42)
	want := []byte{0x48, 0xC7, 0xC0, 0x2A, 0x00, 0x00, 0x00}
	if !bytesEqual(buf.Bytes, want) {
		t.Fatalf("got % x, want % x", buf.Bytes, want)
	}
}

func TestEmitAddRegRegUsesREXForExtendedRegs(t *testing.T) {
	buf := NewCodeBuffer()
	buf.AddRegReg(R12, R13)
	// REX.W + REX.R (src=r13 extends reg field) + REX.B (dst=r12 extends rm) = 0x4D
	want := []byte{0x4D, 0x01, modrm(3, R13.low3(), R12.low3())}
	if !bytesEqual(buf.Bytes, want) {
		t.Fatalf("got % x, want % x", buf.Bytes, want)
	}
}

func TestPushPopExtendedRegisterEmitsRexB(t *testing.T) {
	buf := NewCodeBuffer()
	buf.Push(R15)
	want := []byte{0x41, 0x57}
	if !bytesEqual(buf.Bytes, want) {
		t.Fatalf("push r15: got % x, want % x", buf.Bytes, want)
	}
	buf = NewCodeBuffer()
	buf.Pop(R15)
	want = []byte{0x41, 0x5F}
	if !bytesEqual(buf.Bytes, want) {
		t.Fatalf("pop r15: got % x, want % x", buf.Bytes, want)
	}
}

func TestResolveRIPRelativeCall(t *testing.T) {
	buf := NewCodeBuffer()
	buf.Label("start")
	buf.CallRel32("target")
	buf.Label("pad")
	buf.Emit(0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90)
	buf.Label("target")
	if err := buf.Resolve(); err != nil {
		t.Fatal(err)
	}
	siteEnd := 5 // opcode byte + 4-byte disp
	disp := int32(buf.Bytes[1]) | int32(buf.Bytes[2])<<8 | int32(buf.Bytes[3])<<16 | int32(buf.Bytes[4])<<24
	gotTarget := siteEnd + int(disp)
	wantTarget := buf.Symbols["target"].Offset
	if gotTarget != wantTarget {
		t.Fatalf("rip-relative disp resolves to %d, want %d", gotTarget, wantTarget)
	}
}

func TestResolveFailsOnUndefinedSymbol(t *testing.T) {
	buf := NewCodeBuffer()
	buf.CallRel32("nowhere")
	if err := buf.Resolve(); err == nil {
		t.Fatal("expected an error resolving an undeclared target")
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func constDecl(name string, v int64) *ast.VarDecl {
	return &ast.VarDecl{Kind: ast.VarConst, Name: name, Init: &ast.IntegerLiteral{Value: v}}
}

func TestClassifyConstTakesNoStorage(t *testing.T) {
	c := NewClassifier(nil, types.NewRegistry(), nil)
	cl := c.Classify(constDecl("limit", 10))
	if cl.Category != CatConst || cl.ConstInt != 10 {
		t.Fatalf("got %+v", cl)
	}
}

func TestClassifyFuncPointerFromKnownFuncName(t *testing.T) {
	c := NewClassifier(nil, types.NewRegistry(), map[string]bool{"helper": true})
	decl := &ast.VarDecl{Kind: ast.VarLet, Name: "f", Init: &ast.Identifier{Name: "helper"}}
	cl := c.Classify(decl)
	if cl.Category != CatFuncPointer {
		t.Fatalf("got %+v, want CatFuncPointer", cl)
	}
}

func TestClassifyOrdinaryVariableCopyIsNotFuncPointer(t *testing.T) {
	c := NewClassifier(nil, types.NewRegistry(), map[string]bool{"helper": true})
	decl := &ast.VarDecl{Kind: ast.VarLet, Name: "y", Init: &ast.Identifier{Name: "x"}}
	cl := c.Classify(decl)
	if cl.Category == CatFuncPointer {
		t.Fatalf("plain variable copy misclassified as function pointer: %+v", cl)
	}
}

func TestClassifyDefaultsToInt(t *testing.T) {
	c := NewClassifier(nil, types.NewRegistry(), nil)
	decl := &ast.VarDecl{Kind: ast.VarLet, Name: "n", Init: &ast.IntegerLiteral{Value: 5}}
	cl := c.Classify(decl)
	if cl.Category != CatInt {
		t.Fatalf("got %+v, want CatInt", cl)
	}
}

func TestClassifyRecordConstructorWithDropForcesStack(t *testing.T) {
	c := NewClassifier(map[string]bool{"File": true}, types.NewRegistry(), nil)
	decl := &ast.VarDecl{Kind: ast.VarLet, Name: "f", Init: &ast.CallExpr{Callee: &ast.Identifier{Name: "File"}}}
	cl := c.Classify(decl)
	if cl.Category != CatRecord || !cl.RecordHasDrop || !cl.ForceStack {
		t.Fatalf("got %+v", cl)
	}
}

func fn(name string, params []ast.Param, body *ast.Block) *ast.FuncDecl {
	return &ast.FuncDecl{Name: name, Params: params, Body: body}
}

func block(stmts ...ast.Statement) *ast.Block { return &ast.Block{Stmts: stmts} }

func TestGenerateAddFunction(t *testing.T) {
	// fn add(a, b) { return a + b }
	addFn := fn("add", []ast.Param{{Name: "a"}, {Name: "b"}}, block(
		&ast.ReturnStmt{Value: &ast.BinaryExpr{Op: "+", Left: &ast.Identifier{Name: "a"}, Right: &ast.Identifier{Name: "b"}}},
	))
	prog := &ast.Program{Decls: []ast.Statement{addFn}}

	g := NewGenerator(nil, types.NewRegistry(), map[string]bool{"add": true})
	if !g.GenerateProgram(prog) {
		t.Fatalf("unexpected diagnostics: %+v", g.Diags.Items())
	}
	sym, ok := g.Buf.Symbols["add"]
	if !ok {
		t.Fatal("expected a label for add")
	}
	if sym.Offset != 0 {
		t.Fatalf("add should be the first thing emitted, got offset %d", sym.Offset)
	}
	// push rbp is always the first instruction of a non-main function's prologue.
	if g.Buf.Bytes[0] != 0x55 {
		t.Fatalf("expected `push rbp` (0x55) first, got 0x%02x", g.Buf.Bytes[0])
	}
}

func TestGenerateMainExitsWithReturnValue(t *testing.T) {
	// fn main() { return 14 }
	mainFn := fn("main", nil, block(&ast.ReturnStmt{Value: &ast.IntegerLiteral{Value: 14}}))
	prog := &ast.Program{Decls: []ast.Statement{mainFn}}

	g := NewGenerator(nil, types.NewRegistry(), map[string]bool{"main": true})
	if !g.GenerateProgram(prog) {
		t.Fatalf("unexpected diagnostics: %+v", g.Diags.Items())
	}
	if _, ok := g.Buf.Symbols["ExitProcess"]; !ok {
		t.Fatal("expected ExitProcess declared as an external symbol")
	}
}

func TestGenerateIfElseDoesNotErrorAndResolves(t *testing.T) {
	// fn choose(c) { mut r = 0; if c { r = 1 } else { r = 2 }; return r }
	chooseFn := fn("choose", []ast.Param{{Name: "c"}}, block(
		&ast.VarDecl{Kind: ast.VarMut, Name: "r", Init: &ast.IntegerLiteral{Value: 0}},
		&ast.IfStmt{
			Cond: &ast.Identifier{Name: "c"},
			Then: block(&ast.ExprStmt{X: &ast.AssignExpr{Op: "=", Target: &ast.Identifier{Name: "r"}, Value: &ast.IntegerLiteral{Value: 1}}}),
			Else: block(&ast.ExprStmt{X: &ast.AssignExpr{Op: "=", Target: &ast.Identifier{Name: "r"}, Value: &ast.IntegerLiteral{Value: 2}}}),
		},
		&ast.ReturnStmt{Value: &ast.Identifier{Name: "r"}},
	))
	prog := &ast.Program{Decls: []ast.Statement{chooseFn}}

	g := NewGenerator(nil, types.NewRegistry(), map[string]bool{"choose": true})
	if !g.GenerateProgram(prog) {
		t.Fatalf("unexpected diagnostics: %+v", g.Diags.Items())
	}
}

func TestGenerateFixedArrayAllocatesAndIndexes(t *testing.T) {
	// fn f() { let a: [int;4] = [10, 20, 30, 40]; return a[2] }
	f := fn("f", nil, block(
		&ast.VarDecl{
			Kind: ast.VarLet, Name: "a", Type: "[int;4]",
			Init: &ast.ListExpr{Elements: []ast.Expression{
				&ast.IntegerLiteral{Value: 10}, &ast.IntegerLiteral{Value: 20},
				&ast.IntegerLiteral{Value: 30}, &ast.IntegerLiteral{Value: 40},
			}},
		},
		&ast.ReturnStmt{Value: &ast.IndexExpr{Receiver: &ast.Identifier{Name: "a"}, Index: &ast.IntegerLiteral{Value: 2}}},
	))
	prog := &ast.Program{Decls: []ast.Statement{f}}

	g := NewGenerator(nil, types.NewRegistry(), map[string]bool{"f": true})
	if !g.GenerateProgram(prog) {
		t.Fatalf("unexpected diagnostics: %+v", g.Diags.Items())
	}
	if _, ok := g.Buf.Symbols["GetProcessHeap"]; !ok {
		t.Fatal("expected GetProcessHeap declared as an external symbol")
	}
	if _, ok := g.Buf.Symbols["HeapAlloc"]; !ok {
		t.Fatal("expected HeapAlloc declared as an external symbol")
	}
}

func TestGenerateFloatDeclDoesNotError(t *testing.T) {
	// fn f() { let x: f64 = 1.5; return 0 }
	f := fn("f", nil, block(
		&ast.VarDecl{Kind: ast.VarLet, Name: "x", Type: "f64", Init: &ast.FloatLiteral{Value: 1.5}},
		&ast.ReturnStmt{Value: &ast.IntegerLiteral{Value: 0}},
	))
	prog := &ast.Program{Decls: []ast.Statement{f}}

	g := NewGenerator(nil, types.NewRegistry(), map[string]bool{"f": true})
	if !g.GenerateProgram(prog) {
		t.Fatalf("unexpected diagnostics: %+v", g.Diags.Items())
	}
}

func TestApplyBinOpShiftUsesOperandCountNotZero(t *testing.T) {
	// Regression: applyBinOp("<<", ...) once hardcoded `shl dst, 0`,
	// ignoring the actual right-hand operand entirely.
	buf := NewCodeBuffer()
	applyBinOp(buf, "<<", RCX, R8)
	for _, b := range buf.Bytes {
		if b == 0xD3 {
			return // shl/sar reg, cl encodes the count in CL, never as an immediate 0 byte
		}
	}
	t.Fatalf("expected a D3 /4 (shl ..., cl) opcode in % x", buf.Bytes)
}

func TestApplyBinOpSupportsRightShift(t *testing.T) {
	buf := NewCodeBuffer()
	applyBinOp(buf, ">>", RCX, R8)
	found := false
	for i, b := range buf.Bytes {
		if b == 0xD3 && i+1 < len(buf.Bytes) && (buf.Bytes[i+1]>>3)&7 == 7 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a D3 /7 (sar ..., cl) opcode in % x", buf.Bytes)
	}
}

func TestUnsupportedCategoryReportsDiagnosticInsteadOfMiscompiling(t *testing.T) {
	// fn f() { let xs = [1]; return }
	f := fn("f", nil, block(
		&ast.VarDecl{Kind: ast.VarLet, Name: "xs", Init: &ast.ListExpr{Elements: []ast.Expression{&ast.IntegerLiteral{Value: 1}}}},
		&ast.ReturnStmt{},
	))
	prog := &ast.Program{Decls: []ast.Statement{f}}

	g := NewGenerator(nil, types.NewRegistry(), map[string]bool{"f": true})
	if g.GenerateProgram(prog) {
		t.Fatal("expected a diagnostic for an unsupported list VarDecl category")
	}
	if !g.Diags.HasErrors() {
		t.Fatal("expected HasErrors to be true")
	}
}
