package codegen

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/diag"
	"github.com/tyl-lang/tyl/internal/token"
	"github.com/tyl-lang/tyl/internal/types"
)

// Generator lowers a Program into machine code (spec §4.6). It implements
// the scalar integer/float/control-flow core of the classification rules in
// full, plus fixed arrays (heap-allocated via GetProcessHeap/HeapAlloc,
// spec §8 property 9); categories that need heap layouts this generator
// doesn't yet model (dynamic lists, records, concurrency handles, smart
// pointers) are classified correctly by Classifier but surface as a fatal
// E4xxx diagnostic rather than silently miscompiling, matching spec §7's
// "Codegen: unsupported feature at this level" policy.
type Generator struct {
	Buf        *CodeBuffer
	Classifier *Classifier
	Diags      *diag.Bag

	fn           *ast.FuncDecl
	locals       map[string]*local
	constVars    map[string]Classification
	frameSize    int
	labelCounter int
	dataCounter  int
	data         []dataEntry
}

type dataEntry struct {
	label string
	bytes []byte
}

type local struct {
	class       Classification
	reg         Reg
	hasReg      bool
	stackOffset int32 // negative, relative to RBP
}

func NewGenerator(dropTypes map[string]bool, refinements *types.Registry, funcNames map[string]bool) *Generator {
	return &Generator{
		Buf:        NewCodeBuffer(),
		Classifier: NewClassifier(dropTypes, refinements, funcNames),
		Diags:      diag.NewBag(),
	}
}

// GenerateProgram lowers every top-level function. It returns false if a
// fatal codegen diagnostic was recorded, matching the driver's "refuses to
// advance" policy at every other stage (spec §7).
func (g *Generator) GenerateProgram(prog *ast.Program) bool {
	DeclareRuntimeImports(g.Buf)
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			g.genFunc(fn)
		}
	}
	for _, e := range g.data {
		g.Buf.Label(e.label)
		g.Buf.Emit(e.bytes...)
	}
	if g.Diags.HasErrors() {
		return false
	}
	if err := g.Buf.Resolve(); err != nil {
		g.Diags.Add(diag.Diagnostic{Level: diag.Fatal, Code: "E4099", Message: err.Error()})
		return false
	}
	return true
}

func (g *Generator) fail(at token.Location, format string, args ...interface{}) {
	g.Diags.Add(diag.Diagnostic{Level: diag.Error, Code: "E4000", Message: fmt.Sprintf(format, args...), Span: at})
}

func (g *Generator) newLabel(prefix string) string {
	g.labelCounter++
	return fmt.Sprintf("$%s_%d", prefix, g.labelCounter)
}

// internString registers s in the data section (as-is, no trailing NUL —
// WriteConsoleA takes an explicit length) and returns its label plus a
// paired "written" DWORD label for the lpNumberOfCharsWritten out-param.
func (g *Generator) internString(s string) (msgLabel, writtenLabel string) {
	g.dataCounter++
	msgLabel = fmt.Sprintf("$str_%d", g.dataCounter)
	writtenLabel = fmt.Sprintf("$written_%d", g.dataCounter)
	g.data = append(g.data, dataEntry{label: msgLabel, bytes: []byte(s)})
	g.data = append(g.data, dataEntry{label: writtenLabel, bytes: make([]byte, 4)})
	return msgLabel, writtenLabel
}

// internFloat registers v's raw IEEE-754 bit pattern in the data section
// (spec §4.6.1: floats live in XMM registers, loaded from memory via
// movsd) and returns its label.
func (g *Generator) internFloat(v float64) string {
	g.dataCounter++
	label := fmt.Sprintf("$flt_%d", g.dataCounter)
	bits := make([]byte, 8)
	binary.LittleEndian.PutUint64(bits, math.Float64bits(v))
	g.data = append(g.data, dataEntry{label: label, bytes: bits})
	return label
}

func (g *Generator) genFunc(fn *ast.FuncDecl) {
	if fn.Body == nil || fn.Flags.Extern {
		return // declaration only; nothing to emit
	}
	g.fn = fn
	g.locals = map[string]*local{}
	g.constVars = map[string]Classification{}
	g.frameSize = 0

	g.Buf.Label(fn.Name)
	g.Buf.Push(RBP)
	g.Buf.MovRegReg(RBP, RSP)
	subPatchSite := g.reserveFrameSub()

	g.bindParams(fn)
	g.allocateLocals(fn.Body)

	fallOff := g.genBlock(fn.Body)
	if fallOff {
		g.Buf.XorRegReg(RAX, RAX)
		g.emitEpilogue(nil)
	}

	g.patchFrameSub(subPatchSite)
}

// reserveFrameSub emits a placeholder `sub rsp, 0` and returns the offset of
// its immediate field so it can be patched once the frame size is known
// (locals are discovered by a pre-pass over the body that runs after the
// prologue bytes are already emitted, mirroring a single-pass emitter that
// back-patches its own frame setup).
func (g *Generator) reserveFrameSub() int {
	g.Buf.SubRspImm32(0)
	return g.Buf.Offset() - 4
}

func (g *Generator) patchFrameSub(immSite int) {
	n := int32(AlignStack16(g.frameSize + ShadowSpace))
	patchU32(g.Buf.Bytes, immSite, uint32(n))
}

func (g *Generator) bindParams(fn *ast.FuncDecl) {
	for i, p := range fn.Params {
		if i >= len(IntArgRegs) {
			break // additional args spill to the caller's stack; not modelled here
		}
		g.allocSlot(p.Name, Classification{Category: CatInt})
		l := g.locals[p.Name]
		if l.hasReg {
			g.Buf.MovRegReg(l.reg, IntArgRegs[i])
		} else {
			g.storeReg(l, IntArgRegs[i])
		}
	}
}

// allocateLocals pre-classifies and assigns storage to every VarDecl in fn's
// body before any code for the body is emitted, so reads of a not-yet-
// declared-in-this-block local (forward within the same function, e.g. a
// loop referencing a variable declared above it) always resolve.
func (g *Generator) allocateLocals(b *ast.Block) {
	var walk func(*ast.Block)
	walkStmt := func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.VarDecl:
			g.allocSlot(st.Name, g.Classifier.Classify(st))
		case *ast.IfStmt:
			walk(st.Then)
			if eb, ok := st.Else.(*ast.Block); ok {
				walk(eb)
			}
		case *ast.WhileStmt:
			walk(st.Body)
		case *ast.ForStmt:
			g.allocSlot(st.VarName, Classification{Category: CatInt})
			walk(st.Body)
		case *ast.LoopStmt:
			walk(st.Body)
		case *ast.Block:
			walk(st)
		}
	}
	walk = func(blk *ast.Block) {
		for _, s := range blk.Stmts {
			walkStmt(s)
		}
	}
	walk(b)
}

func (g *Generator) allocSlot(name string, class Classification) {
	if _, exists := g.locals[name]; exists {
		return
	}
	if class.Category == CatConst {
		g.constVars[name] = class
		return // rule 1: no storage at all
	}
	l := &local{class: class}
	needsStack := class.ForceStack || class.Category == CatFloat
	if !needsStack {
		used := 0
		for _, other := range g.locals {
			if other.hasReg {
				used++
			}
		}
		if used < len(IntVarHints) {
			l.hasReg = true
			l.reg = IntVarHints[used]
		} else {
			needsStack = true
		}
	}
	if needsStack {
		g.frameSize += 8
		l.stackOffset = -int32(g.frameSize)
	}
	g.locals[name] = l
}

func (g *Generator) storeReg(l *local, src Reg) {
	g.Buf.MovMemDisp8(RBP, int8(l.stackOffset), src)
}

func (g *Generator) loadReg(dst Reg, l *local) {
	g.Buf.MovRegMemDisp8(dst, RBP, int8(l.stackOffset))
}

// genBlock lowers every statement, returning true if control can fall off
// the end (no statement unconditionally returned/jumped).
func (g *Generator) genBlock(b *ast.Block) bool {
	for _, s := range b.Stmts {
		if !g.genStmt(s) {
			return false
		}
	}
	return true
}

func (g *Generator) genStmt(s ast.Statement) bool {
	switch st := s.(type) {
	case *ast.VarDecl:
		g.genVarDecl(st)
		return true
	case *ast.ExprStmt:
		g.genExprDiscard(st.X)
		return true
	case *ast.ReturnStmt:
		var v Reg
		if st.Value != nil {
			v = g.genExpr(st.Value)
		} else {
			g.Buf.XorRegReg(RAX, RAX)
			v = RAX
		}
		g.emitEpilogue(&v)
		return false
	case *ast.IfStmt:
		return g.genIf(st)
	case *ast.WhileStmt:
		g.genWhile(st)
		return true
	default:
		g.fail(s.Location(), "unsupported statement at this optimisation/codegen level")
		return true
	}
}

func (g *Generator) genVarDecl(st *ast.VarDecl) {
	l := g.locals[st.Name]
	if l == nil {
		if _, isConst := g.constVars[st.Name]; isConst {
			return // rule 1: evaluated only at use sites
		}
		g.fail(st.Location(), "internal: %q was not pre-allocated", st.Name)
		return
	}
	switch l.class.Category {
	case CatList, CatRecord, CatConcurrencyHandle, CatAtomic, CatSmartPointer, CatClosure, CatFuncPointer:
		g.fail(st.Location(), "codegen for %v variables is not implemented at this level", l.class.Category)
		return
	case CatRefinement:
		g.genRefinementDecl(st, l)
		return
	case CatFixedArray:
		g.genFixedArrayDecl(st, l)
		return
	case CatFloat:
		g.genFloatDecl(st, l)
		return
	}
	if st.Init == nil {
		return
	}
	v := g.genExpr(st.Init)
	g.storeLocal(l, v)
}

// genFixedArrayDecl allocates a heap block sized ElemSize*ArrayLen bytes
// (spec §8 property 9: a `[int;4]` is 32 bytes at offsets 0/8/16/24) via
// GetProcessHeap/HeapAlloc, stores the returned pointer in l's slot, then
// stores each element of a list-literal initializer at its offset.
func (g *Generator) genFixedArrayDecl(st *ast.VarDecl, l *local) {
	size := int32(l.class.ElemSize) * int32(l.class.ArrayLen)

	g.Buf.SubRspImm32(ShadowSpace)
	g.Buf.CallIndirectRip("GetProcessHeap")
	g.Buf.AddRspImm32(ShadowSpace)
	g.Buf.MovRegReg(RCX, RAX)
	g.Buf.XorRegReg(RDX, RDX)
	g.Buf.MovRegImm32(R8, size)
	g.Buf.SubRspImm32(ShadowSpace)
	g.Buf.CallIndirectRip("HeapAlloc")
	g.Buf.AddRspImm32(ShadowSpace)
	g.storeLocal(l, RAX)

	list, ok := st.Init.(*ast.ListExpr)
	if !ok {
		return
	}
	for i, elem := range list.Elements {
		v := g.genExpr(elem)
		if v != RDX {
			g.Buf.MovRegReg(RDX, v)
		}
		base := g.loadLocal(l)
		if base != RCX {
			g.Buf.MovRegReg(RCX, base)
		}
		g.Buf.MovMemDisp8(RCX, int8(i*l.class.ElemSize), RDX)
	}
}

// genIndex loads one element out of a fixed array (spec §4.6.1: fixed
// arrays are 0-indexed and contiguous).
func (g *Generator) genIndex(e *ast.IndexExpr) Reg {
	ident, ok := e.Receiver.(*ast.Identifier)
	if !ok {
		g.fail(e.Location(), "unsupported index receiver at this codegen level")
		return RAX
	}
	l, ok := g.locals[ident.Name]
	if !ok || l.class.Category != CatFixedArray {
		g.fail(e.Location(), "%q is not a fixed array at codegen", ident.Name)
		return RAX
	}
	if lit, ok := e.Index.(*ast.IntegerLiteral); ok {
		base := g.loadLocal(l)
		if base != RAX {
			g.Buf.MovRegReg(RAX, base)
		}
		g.Buf.MovRegMemDisp8(RAX, RAX, int8(int(lit.Value)*l.class.ElemSize))
		return RAX
	}
	idx := g.genExpr(e.Index)
	g.Buf.Push(idx)
	base := g.loadLocal(l)
	g.Buf.MovRegReg(RCX, base)
	g.Buf.Pop(RAX)
	g.Buf.IMulRegImm32(RAX, int32(l.class.ElemSize))
	g.Buf.AddRegReg(RCX, RAX)
	g.Buf.MovRegMemDisp8(RAX, RCX, 0)
	return RAX
}

// genFloatDecl evaluates a float initializer into xmm0 and spills it to l's
// stack slot (spec §4.6.1: floats live in XMM registers).
func (g *Generator) genFloatDecl(st *ast.VarDecl, l *local) {
	if st.Init == nil {
		return
	}
	g.genFloatExpr(st.Init, 0)
	g.Buf.MovsdStoreMem(RBP, int8(l.stackOffset), 0)
}

// genFloatExpr evaluates x into xmm[xmm], promoting plain integer
// subexpressions with cvtsi2sd (spec §4.6.2 rule 4: mixed int/float
// operands promote to float).
func (g *Generator) genFloatExpr(x ast.Expression, xmm int) {
	switch e := x.(type) {
	case *ast.FloatLiteral:
		label := g.internFloat(e.Value)
		g.Buf.MovsdLoadRip(xmm, label)
	case *ast.Identifier:
		if l, ok := g.locals[e.Name]; ok && l.class.Category == CatFloat {
			g.Buf.MovsdLoadMem(xmm, RBP, int8(l.stackOffset))
			return
		}
		v := g.genExpr(x)
		g.Buf.Cvtsi2sd(xmm, v)
	case *ast.BinaryExpr:
		g.genFloatExpr(e.Left, xmm)
		next := xmm + 1
		g.genFloatExpr(e.Right, next)
		switch e.Op {
		case "+":
			g.Buf.AddsdRegReg(xmm, next)
		case "-":
			g.Buf.SubsdRegReg(xmm, next)
		case "*":
			g.Buf.MulsdRegReg(xmm, next)
		case "/":
			g.Buf.DivsdRegReg(xmm, next)
		default:
			g.fail(e.Location(), "unsupported float operator %q at this codegen level", e.Op)
		}
	default:
		v := g.genExpr(x)
		g.Buf.Cvtsi2sd(xmm, v)
	}
}

func (g *Generator) storeLocal(l *local, v Reg) {
	if l.hasReg {
		if l.reg != v {
			g.Buf.MovRegReg(l.reg, v)
		}
		return
	}
	g.storeReg(l, v)
}

func (g *Generator) genRefinementDecl(st *ast.VarDecl, l *local) {
	v := g.genExpr(st.Init)
	if v != RAX {
		g.Buf.MovRegReg(RAX, v)
	}
	op, operand := refinementCheckOperands(l.class.Refinement.Constraint)
	g.Buf.MovRegImm32(RCX, operand)
	msgLabel, writtenLabel := g.internString(RefinementFailureMessage(l.class.Refinement.Name))
	EmitRefinementCheck(g.Buf, l.class.Refinement.Name, op, RCX, msgLabel, writtenLabel, g.newLabel("refok"))
	g.storeLocal(l, RAX)
}

// refinementCheckOperands extracts a simple `_ OP literal` constraint
// (e.g. "_ > 0") into the comparison the runtime check needs. Only a single
// comparison against an integer literal is understood; a constraint with none
// of the listed operators yields ">= 0". The constraint is not evaluated at
// compile time anywhere in this package.
func refinementCheckOperands(constraint string) (op string, operand int32) {
	for _, candidate := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if i := indexOf(constraint, candidate); i >= 0 {
			n := parseTrailingInt(constraint[i+len(candidate):])
			return candidate, int32(n)
		}
	}
	return ">=", 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func parseTrailingInt(s string) int {
	neg := false
	n := 0
	started := false
	for _, r := range s {
		switch {
		case r == ' ':
			if started {
				return sign(neg, n)
			}
		case r == '-' && !started:
			neg = true
			started = true
		case r >= '0' && r <= '9':
			started = true
			n = n*10 + int(r-'0')
		default:
			return sign(neg, n)
		}
	}
	return sign(neg, n)
}

func sign(neg bool, n int) int {
	if neg {
		return -n
	}
	return n
}

func (g *Generator) genIf(st *ast.IfStmt) bool {
	elseLabel := g.newLabel("else")
	endLabel := g.newLabel("endif")
	g.genBranchFalse(st.Cond, st.Unless, elseLabel)

	thenFalls := g.genBlock(st.Then)
	hasElse := st.Else != nil
	if thenFalls && hasElse {
		g.Buf.JmpRel32(endLabel)
	}
	g.Buf.Label(elseLabel)

	elseFalls := true
	if hasElse {
		switch e := st.Else.(type) {
		case *ast.Block:
			elseFalls = g.genBlock(e)
		default:
			elseFalls = g.genStmt(e)
		}
	}
	if hasElse {
		g.Buf.Label(endLabel)
	}
	if !hasElse {
		return true // the false branch always falls straight through to elseLabel
	}
	return thenFalls || elseFalls
}

// genBranchFalse evaluates cond and jumps to label when it is false (or
// true, if unless negates it), leaving nothing live across the branch.
func (g *Generator) genBranchFalse(cond ast.Expression, unless bool, label string) {
	if bin, ok := cond.(*ast.BinaryExpr); ok && isComparisonOp(bin.Op) {
		// Stage through the stack, exactly like genBinary: both sides
		// typically evaluate into RAX (every leaf expression does), so
		// evaluating the right side before the left is safely parked would
		// clobber it.
		l := g.genExpr(bin.Left)
		g.Buf.Push(l)
		r := g.genExpr(bin.Right)
		if r != RDX {
			g.Buf.MovRegReg(RDX, r)
		}
		g.Buf.Pop(RCX)
		g.Buf.CmpRegReg(RCX, RDX)
		op := bin.Op
		if unless {
			op = negateComparison(op)
		}
		g.Buf.JccRel32(negateComparison(op), label)
		return
	}
	v := g.genExpr(cond)
	g.Buf.XorRegReg(RCX, RCX)
	g.Buf.CmpRegReg(v, RCX)
	if unless {
		g.Buf.JccRel32("!=", label)
	} else {
		g.Buf.JccRel32("==", label)
	}
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func negateComparison(op string) string {
	switch op {
	case "==":
		return "!="
	case "!=":
		return "=="
	case "<":
		return ">="
	case "<=":
		return ">"
	case ">":
		return "<="
	case ">=":
		return "<"
	}
	return op
}

func (g *Generator) genWhile(st *ast.WhileStmt) {
	headLabel := g.newLabel("whilehead")
	endLabel := g.newLabel("whileend")
	g.Buf.Label(headLabel)
	g.genBranchFalse(st.Cond, false, endLabel)
	if g.genBlock(st.Body) {
		g.Buf.JmpRel32(headLabel)
	}
	g.Buf.Label(endLabel)
}

// emitEpilogue moves ret (if non-nil) into RAX, tears down the frame, and
// returns. main is special-cased per spec §8 scenarios S1-S3: its return
// value becomes the process exit code via ExitProcess rather than a plain
// ret into an absent caller.
func (g *Generator) emitEpilogue(ret *Reg) {
	if ret != nil && *ret != RAX {
		g.Buf.MovRegReg(RAX, *ret)
	}
	if g.fn.Name == "main" {
		g.Buf.MovRegReg(RCX, RAX)
		g.Buf.CallIndirectRip("ExitProcess")
		return
	}
	g.Buf.MovRegReg(RSP, RBP)
	g.Buf.Pop(RBP)
	g.Buf.Ret()
}

func (g *Generator) genExprDiscard(x ast.Expression) {
	if assign, ok := x.(*ast.AssignExpr); ok {
		g.genAssign(assign)
		return
	}
	g.genExpr(x)
}

func (g *Generator) genAssign(a *ast.AssignExpr) {
	ident, ok := a.Target.(*ast.Identifier)
	if !ok {
		g.fail(a.Location(), "unsupported assignment target at this codegen level")
		return
	}
	l, isLocal := g.locals[ident.Name]
	if !isLocal {
		g.fail(a.Location(), "assignment to unknown or const variable %q", ident.Name)
		return
	}
	// Park the new value in RCX before reading the current value: a stack
	// local's read goes through RAX (loadLocal), and most leaf expressions
	// also evaluate into RAX, so evaluating in the order
	// "value, then current" would otherwise let the read clobber the value.
	v := g.genExpr(a.Value)
	if v != RCX {
		g.Buf.MovRegReg(RCX, v)
		v = RCX
	}
	if a.Op != "=" {
		cur := g.loadLocal(l)
		applyBinOp(g.Buf, compoundOp(a.Op), cur, v)
		v = cur
	}
	g.storeLocal(l, v)
}

func compoundOp(op string) string {
	switch op {
	case "+=":
		return "+"
	case "-=":
		return "-"
	case "*=":
		return "*"
	case "&=":
		return "&"
	case "|=":
		return "|"
	case "^=":
		return "^"
	case "/=":
		return "/"
	case "%=":
		return "%"
	}
	return op
}

func (g *Generator) loadLocal(l *local) Reg {
	if l.hasReg {
		return l.reg
	}
	g.loadReg(RAX, l)
	return RAX
}

// genExpr lowers x and returns the register holding its value. Results come
// back in a register; genBinary and genCall park pending operands and
// arguments on the machine stack with push/pop while the rest is evaluated.
func (g *Generator) genExpr(x ast.Expression) Reg {
	switch e := x.(type) {
	case *ast.IntegerLiteral:
		g.Buf.MovRegImm32(RAX, int32(e.Value))
		return RAX
	case *ast.BoolLiteral:
		if e.Value {
			g.Buf.MovRegImm32(RAX, 1)
		} else {
			g.Buf.XorRegReg(RAX, RAX)
		}
		return RAX
	case *ast.FloatLiteral:
		label := g.internFloat(e.Value)
		g.Buf.MovsdLoadRip(0, label)
		g.Buf.Cvttsd2si(RAX, 0)
		return RAX
	case *ast.Identifier:
		if cv, ok := g.constVars[e.Name]; ok {
			g.Buf.MovRegImm32(RAX, int32(cv.ConstInt))
			return RAX
		}
		if l, ok := g.locals[e.Name]; ok {
			if l.class.Category == CatFloat {
				g.Buf.MovsdLoadMem(0, RBP, int8(l.stackOffset))
				g.Buf.Cvttsd2si(RAX, 0)
				return RAX
			}
			return g.loadLocal(l)
		}
		g.fail(e.Location(), "undefined variable %q at codegen", e.Name)
		return RAX
	case *ast.IndexExpr:
		return g.genIndex(e)
	case *ast.UnaryExpr:
		v := g.genExpr(e.Operand)
		switch e.Op {
		case "-":
			g.Buf.XorRegReg(RCX, RCX)
			g.Buf.SubRegReg(RCX, v)
			return RCX
		case "!", "not":
			g.Buf.XorRegReg(RAX, RAX)
			g.Buf.CmpRegReg(v, RAX)
			return RAX // approximate: caller branches on comparison result, not a boolean value
		}
		return v
	case *ast.BinaryExpr:
		return g.genBinary(e)
	case *ast.CallExpr:
		return g.genCall(e)
	default:
		g.fail(x.Location(), "unsupported expression at this codegen level")
		return RAX
	}
}

// genBinary combines its operands in RCX/R8. The left operand is pushed onto
// the stack before the right operand is evaluated, rather than parked in a
// fixed register: a nested binary expression on either side recurses through
// genBinary itself, which needs RCX/R8 as its own scratch, so a register
// holding the outer left operand would get clobbered the moment the right
// subexpression turns out to be non-trivial. The push/pop pair nests
// correctly under arbitrarily deep recursion the same way genCall's argument
// staging does.
func (g *Generator) genBinary(e *ast.BinaryExpr) Reg {
	l := g.genExpr(e.Left)
	g.Buf.Push(l)
	r := g.genExpr(e.Right)
	if r != R8 {
		g.Buf.MovRegReg(R8, r)
	}
	g.Buf.Pop(RCX)
	applyBinOp(g.Buf, e.Op, RCX, R8)
	return RCX
}

func applyBinOp(buf *CodeBuffer, op string, dst, src Reg) {
	switch op {
	case "+":
		buf.AddRegReg(dst, src)
	case "-":
		buf.SubRegReg(dst, src)
	case "*":
		buf.IMulRegReg(dst, src)
	case "&":
		buf.AndRegReg(dst, src)
	case "|":
		buf.OrRegReg(dst, src)
	case "^":
		buf.XorRegReg(dst, src)
	case "<<", ">>":
		// The ISA hardcodes the shift count to CL, and dst/src can land on
		// either side of RCX depending on the caller (genBinary vs. the
		// compound-assign path in genAssign), so park the value in RAX first
		// and only move src into RCX when it isn't already there.
		buf.MovRegReg(RAX, dst)
		if src != RCX {
			buf.MovRegReg(RCX, src)
		}
		if op == "<<" {
			buf.ShlRegCl(RAX)
		} else {
			buf.SarRegCl(RAX)
		}
		if dst != RAX {
			buf.MovRegReg(dst, RAX)
		}
	case "/":
		if dst != RAX {
			buf.MovRegReg(RAX, dst)
		}
		buf.Cqo()
		buf.IDivReg(src)
		if dst != RAX {
			buf.MovRegReg(dst, RAX)
		}
	case "%":
		if dst != RAX {
			buf.MovRegReg(RAX, dst)
		}
		buf.Cqo()
		buf.IDivReg(src)
		if dst != RDX {
			buf.MovRegReg(dst, RDX)
		}
	case "==", "!=", "<", "<=", ">", ">=":
		buf.CmpRegReg(dst, src)
	}
}

func (g *Generator) genCall(call *ast.CallExpr) Reg {
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		g.fail(call.Location(), "unsupported callee at this codegen level")
		return RAX
	}
	n := len(call.Args)
	if n > len(IntArgRegs) {
		g.fail(call.Location(), "more than %d arguments is not supported at this codegen level", len(IntArgRegs))
		n = len(IntArgRegs)
	}
	// Evaluate every argument before moving any of them into an argument
	// register: a later argument's subexpression may itself use RCX/R8 as
	// scratch (genBinary) or call a function whose own argument shuffling
	// reuses RCX/RDX/R8/R9, so placing arg i directly into IntArgRegs[i]
	// before arg i+1 is evaluated would let it get clobbered. Pushing each
	// result as it's computed, then popping them into place in reverse once
	// every argument is safely on the stack, sidesteps that regardless of
	// how deeply nested the argument expressions are; the pushes and pops
	// balance before the call's own shadow-space reservation, so they don't
	// disturb the 16-byte alignment the ABI requires at the call site.
	for _, a := range call.Args[:n] {
		v := g.genExpr(a.Value)
		g.Buf.Push(v)
	}
	for i := n - 1; i >= 0; i-- {
		g.Buf.Pop(IntArgRegs[i])
	}
	g.Buf.SubRspImm32(ShadowSpace)
	g.Buf.CallRel32(id.Name)
	g.Buf.AddRspImm32(ShadowSpace)
	return RAX
}
