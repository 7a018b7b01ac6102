// Package ctfe implements the bounded tree-walking interpreter of spec
// §4.5.5: compile-time function execution for @comptime functions and
// constant-argument calls to functions proven pure by a fixed-point
// worklist purity analysis (spec §9 SUPPLEMENTED FEATURES item 2).
package ctfe

import (
	"fmt"
	"math"

	"github.com/tyl-lang/tyl/internal/ast"
)

const (
	maxRecursionDepth = 100
	maxIterations      = 10000
)

// aborted signals that evaluation exceeded the bounds in spec §4.5.5/§8
// property 10; the caller must leave the original call-site AST untouched.
type aborted struct{ reason string }

func (a aborted) Error() string { return "ctfe aborted: " + a.reason }

// Interpreter evaluates a bounded sub-language (spec §4.5.5): integer/float/
// bool/string arithmetic, comparisons, list literals/1-based indexing,
// if/elif/else, while, for over ranges/lists, scoped variable read/write,
// compound assignment, and calls to other functions already proven pure.
type Interpreter struct {
	funcs     map[string]*ast.FuncDecl
	purity    map[string]bool
	iterCount int
}

func New(funcs map[string]*ast.FuncDecl) *Interpreter {
	i := &Interpreter{funcs: funcs}
	i.purity = purityFixedPoint(funcs)
	return i
}

// IsPure reports whether name was proven pure by the fixed-point analysis.
func (i *Interpreter) IsPure(name string) bool { return i.purity[name] }

// purityFixedPoint implements the SUPPLEMENTED FEATURES item 2 worklist as a
// greatest fixed point: every function starts as a pure candidate (so a
// function's call to itself, or to a mutual peer, does not immediately
// disqualify it), then any function whose body is found impure under the
// current candidate set is removed, iterating until the candidate set
// stops shrinking. Bounding recursion's *termination* is a separate
// concern handled by Eval's depth counter, not by this analysis.
func purityFixedPoint(funcs map[string]*ast.FuncDecl) map[string]bool {
	pure := map[string]bool{}
	for name, fn := range funcs {
		if fn.Body != nil {
			pure[name] = true
		}
	}
	for {
		changed := false
		for name := range pure {
			if !isPureBody(funcs[name].Body, pure, funcs) {
				delete(pure, name)
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return pure
}

func isPureBody(b *ast.Block, known map[string]bool, funcs map[string]*ast.FuncDecl) bool {
	for _, s := range b.Stmts {
		if !isPureStmt(s, known, funcs) {
			return false
		}
	}
	return true
}

func isPureStmt(s ast.Statement, known map[string]bool, funcs map[string]*ast.FuncDecl) bool {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return isPureExpr(st.X, known, funcs)
	case *ast.ReturnStmt:
		return st.Value == nil || isPureExpr(st.Value, known, funcs)
	case *ast.VarDecl:
		return st.Init == nil || isPureExpr(st.Init, known, funcs)
	case *ast.IfStmt:
		if !isPureExpr(st.Cond, known, funcs) || !isPureBody(st.Then, known, funcs) {
			return false
		}
		if st.Else != nil {
			if b, ok := st.Else.(*ast.Block); ok {
				return isPureBody(b, known, funcs)
			}
			return isPureStmt(st.Else, known, funcs)
		}
		return true
	case *ast.WhileStmt:
		return isPureExpr(st.Cond, known, funcs) && isPureBody(st.Body, known, funcs)
	case *ast.ForStmt:
		return isPureExpr(st.Iter, known, funcs) && isPureBody(st.Body, known, funcs)
	case *ast.Block:
		return isPureBody(st, known, funcs)
	default:
		// spawn/lock/with/chan-send and other effectful statement kinds are
		// not in this list and are conservatively treated as impure.
		return false
	}
}

func isPureExpr(x ast.Expression, known map[string]bool, funcs map[string]*ast.FuncDecl) bool {
	switch ex := x.(type) {
	case *ast.IntegerLiteral, *ast.FloatLiteral, *ast.BoolLiteral, *ast.StringLiteral, *ast.NilLiteral, *ast.Identifier:
		return true
	case *ast.BinaryExpr:
		return isPureExpr(ex.Left, known, funcs) && isPureExpr(ex.Right, known, funcs)
	case *ast.UnaryExpr:
		return isPureExpr(ex.Operand, known, funcs)
	case *ast.TernaryExpr:
		return isPureExpr(ex.Cond, known, funcs) && isPureExpr(ex.Then, known, funcs) && isPureExpr(ex.Else, known, funcs)
	case *ast.ListExpr:
		for _, el := range ex.Elements {
			if !isPureExpr(el, known, funcs) {
				return false
			}
		}
		return true
	case *ast.IndexExpr:
		return isPureExpr(ex.Receiver, known, funcs) && isPureExpr(ex.Index, known, funcs)
	case *ast.CallExpr:
		ident, ok := ex.Callee.(*ast.Identifier)
		if !ok {
			return false
		}
		if !known[ident.Name] && funcs[ident.Name] != nil {
			return false // callee already dropped from the candidate set, which only shrinks
		}
		if funcs[ident.Name] == nil && !isBuiltin(ident.Name) {
			return false
		}
		for _, a := range ex.Args {
			if !isPureExpr(a.Value, known, funcs) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isBuiltin(name string) bool {
	switch name {
	case "len", "abs", "min", "max", "pow", "sqrt", "floor", "ceil", "str", "int", "float",
		"sizeof", "alignof", "is_pod", "is_trivially_copyable", "is_primitive":
		return true
	}
	return false
}

// scope is one lexical frame of name -> value bindings.
type scope struct {
	vars   map[string]ast.Value
	parent *scope
}

func newScope(parent *scope) *scope { return &scope{vars: map[string]ast.Value{}, parent: parent} }

func (s *scope) get(name string) (ast.Value, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return ast.Value{}, false
}

func (s *scope) set(name string, v ast.Value) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

func (s *scope) declare(name string, v ast.Value) { s.vars[name] = v }

// controlSignal distinguishes normal fall-through from return/break/continue
// while walking statement lists.
type controlKind int

const (
	ctrlNone controlKind = iota
	ctrlReturn
	ctrlBreak
	ctrlContinue
)

type control struct {
	kind controlKind
	val  ast.Value
}

// Eval attempts to fully evaluate a call to a proven-pure function with
// constant-literal arguments. It returns (value, true) on success, or
// (zero, false) if CTFE must leave the call site untouched — because the
// function isn't pure, an argument isn't constant, or a bound was exceeded
// (spec §4.5.5, §8 property 10).
func (i *Interpreter) Eval(fn *ast.FuncDecl, args []ast.Value) (result ast.Value, ok bool) {
	if fn.Body == nil || !i.purity[fn.Name] {
		return ast.Value{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	sc := newScope(nil)
	for idx, p := range fn.Params {
		if idx < len(args) {
			sc.declare(p.Name, args[idx])
		}
	}
	i.iterCount = 0
	ctl, err := i.execBlock(fn.Body, sc, 0)
	if err != nil {
		return ast.Value{}, false
	}
	if ctl.kind == ctrlReturn {
		return ctl.val, true
	}
	return ast.NilValue(), true
}

func (i *Interpreter) bump() error {
	i.iterCount++
	if i.iterCount > maxIterations {
		return aborted{"exceeded 10000 interpreted statements"}
	}
	return nil
}

func (i *Interpreter) execBlock(b *ast.Block, sc *scope, depth int) (control, error) {
	for _, s := range b.Stmts {
		if err := i.bump(); err != nil {
			return control{}, err
		}
		ctl, err := i.execStmt(s, sc, depth)
		if err != nil {
			return control{}, err
		}
		if ctl.kind != ctrlNone {
			return ctl, nil
		}
	}
	return control{}, nil
}

func (i *Interpreter) execStmt(s ast.Statement, sc *scope, depth int) (control, error) {
	switch st := s.(type) {
	case *ast.VarDecl:
		var v ast.Value
		if st.Init != nil {
			var err error
			v, err = i.eval(st.Init, sc, depth)
			if err != nil {
				return control{}, err
			}
		}
		sc.declare(st.Name, v)
		return control{}, nil
	case *ast.ExprStmt:
		if assign, ok := st.X.(*ast.AssignExpr); ok {
			return control{}, i.execAssign(assign, sc, depth)
		}
		_, err := i.eval(st.X, sc, depth)
		return control{}, err
	case *ast.ReturnStmt:
		var v ast.Value
		if st.Value != nil {
			var err error
			v, err = i.eval(st.Value, sc, depth)
			if err != nil {
				return control{}, err
			}
		}
		return control{kind: ctrlReturn, val: v}, nil
	case *ast.BreakStmt:
		return control{kind: ctrlBreak}, nil
	case *ast.ContinueStmt:
		return control{kind: ctrlContinue}, nil
	case *ast.IfStmt:
		cond, err := i.eval(st.Cond, sc, depth)
		if err != nil {
			return control{}, err
		}
		truth := cond.Bool != st.Unless
		if truth {
			return i.execBlock(st.Then, newScope(sc), depth)
		}
		if st.Else != nil {
			switch e := st.Else.(type) {
			case *ast.Block:
				return i.execBlock(e, newScope(sc), depth)
			default:
				return i.execStmt(e, sc, depth)
			}
		}
		return control{}, nil
	case *ast.WhileStmt:
		for {
			if err := i.bump(); err != nil {
				return control{}, err
			}
			cond, err := i.eval(st.Cond, sc, depth)
			if err != nil {
				return control{}, err
			}
			if !cond.Bool {
				break
			}
			ctl, err := i.execBlock(st.Body, newScope(sc), depth)
			if err != nil {
				return control{}, err
			}
			if ctl.kind == ctrlBreak {
				break
			}
			if ctl.kind == ctrlReturn {
				return ctl, nil
			}
		}
		return control{}, nil
	case *ast.ForStmt:
		iter, err := i.eval(st.Iter, sc, depth)
		if err != nil {
			return control{}, err
		}
		items, err := iterableItems(iter)
		if err != nil {
			return control{}, err
		}
		for _, item := range items {
			if err := i.bump(); err != nil {
				return control{}, err
			}
			inner := newScope(sc)
			inner.declare(st.VarName, item)
			ctl, err := i.execBlock(st.Body, inner, depth)
			if err != nil {
				return control{}, err
			}
			if ctl.kind == ctrlBreak {
				break
			}
			if ctl.kind == ctrlReturn {
				return ctl, nil
			}
		}
		return control{}, nil
	case *ast.Block:
		return i.execBlock(st, newScope(sc), depth)
	default:
		return control{}, aborted{fmt.Sprintf("unsupported statement %T in CTFE", s)}
	}
}

func iterableItems(v ast.Value) ([]ast.Value, error) {
	switch v.Kind {
	case ast.ValRange:
		var items []ast.Value
		to := v.RangeTo
		if v.RangeInclusive {
			to++
		}
		for n := v.RangeFrom; n < to; n++ {
			items = append(items, ast.IntValue(n))
		}
		return items, nil
	case ast.ValList:
		return v.List, nil
	default:
		return nil, aborted{"for-loop subject is not iterable in CTFE"}
	}
}

func (i *Interpreter) execAssign(a *ast.AssignExpr, sc *scope, depth int) error {
	ident, ok := a.Target.(*ast.Identifier)
	if !ok {
		return aborted{"CTFE only supports assignment to simple variables"}
	}
	rhs, err := i.eval(a.Value, sc, depth)
	if err != nil {
		return err
	}
	if a.Op == "=" {
		sc.set(ident.Name, rhs)
		return nil
	}
	cur, ok := sc.get(ident.Name)
	if !ok {
		return aborted{"unknown variable in compound assignment"}
	}
	op := a.Op[:len(a.Op)-1] // "+=" -> "+"
	v, err := binaryOp(op, cur, rhs)
	if err != nil {
		return err
	}
	sc.set(ident.Name, v)
	return nil
}

func (i *Interpreter) eval(x ast.Expression, sc *scope, depth int) (ast.Value, error) {
	if err := i.bump(); err != nil {
		return ast.Value{}, err
	}
	switch ex := x.(type) {
	case *ast.IntegerLiteral:
		return ast.IntValue(ex.Value), nil
	case *ast.FloatLiteral:
		return ast.FloatValue(ex.Value), nil
	case *ast.BoolLiteral:
		return ast.BoolValue(ex.Value), nil
	case *ast.StringLiteral:
		return ast.StrValue(ex.Value), nil
	case *ast.NilLiteral:
		return ast.NilValue(), nil
	case *ast.Identifier:
		if v, ok := sc.get(ex.Name); ok {
			return v, nil
		}
		return ast.Value{}, aborted{"undefined variable " + ex.Name + " in CTFE"}
	case *ast.RangeExpr:
		from, err := i.eval(ex.From, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		to, err := i.eval(ex.To, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		return ast.Value{Kind: ast.ValRange, RangeFrom: from.Int, RangeTo: to.Int, RangeInclusive: ex.Inclusive}, nil
	case *ast.ListExpr:
		var items []ast.Value
		for _, el := range ex.Elements {
			v, err := i.eval(el, sc, depth)
			if err != nil {
				return ast.Value{}, err
			}
			items = append(items, v)
		}
		return ast.Value{Kind: ast.ValList, List: items}, nil
	case *ast.IndexExpr:
		recv, err := i.eval(ex.Receiver, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		idx, err := i.eval(ex.Index, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		if recv.Kind != ast.ValList {
			return ast.Value{}, aborted{"index of non-list in CTFE"}
		}
		// spec §4.5.5: list indexing is 1-based, matching runtime.
		pos := idx.Int - 1
		if pos < 0 || pos >= int64(len(recv.List)) {
			return ast.Value{}, aborted{"list index out of bounds in CTFE"}
		}
		return recv.List[pos], nil
	case *ast.UnaryExpr:
		v, err := i.eval(ex.Operand, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		return unaryOp(ex.Op, v)
	case *ast.BinaryExpr:
		l, err := i.eval(ex.Left, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		if ex.Op == "and" || ex.Op == "&&" {
			if !l.Bool {
				return ast.BoolValue(false), nil
			}
			r, err := i.eval(ex.Right, sc, depth)
			return ast.BoolValue(r.Bool), err
		}
		if ex.Op == "or" || ex.Op == "||" {
			if l.Bool {
				return ast.BoolValue(true), nil
			}
			r, err := i.eval(ex.Right, sc, depth)
			return ast.BoolValue(r.Bool), err
		}
		r, err := i.eval(ex.Right, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		return binaryOp(ex.Op, l, r)
	case *ast.TernaryExpr:
		c, err := i.eval(ex.Cond, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		if c.Bool {
			return i.eval(ex.Then, sc, depth)
		}
		return i.eval(ex.Else, sc, depth)
	case *ast.CallExpr:
		return i.evalCall(ex, sc, depth)
	default:
		return ast.Value{}, aborted{fmt.Sprintf("unsupported expression %T in CTFE", x)}
	}
}

func (i *Interpreter) evalCall(call *ast.CallExpr, sc *scope, depth int) (ast.Value, error) {
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return ast.Value{}, aborted{"CTFE only supports calls to named functions"}
	}
	var args []ast.Value
	for _, a := range call.Args {
		v, err := i.eval(a.Value, sc, depth)
		if err != nil {
			return ast.Value{}, err
		}
		args = append(args, v)
	}
	if fn, ok := i.funcs[ident.Name]; ok {
		if depth+1 > maxRecursionDepth {
			return ast.Value{}, aborted{"exceeded 100 frames of recursion"}
		}
		if !i.purity[ident.Name] {
			return ast.Value{}, aborted{"call to non-pure function " + ident.Name}
		}
		inner := newScope(nil)
		for idx, p := range fn.Params {
			if idx < len(args) {
				inner.declare(p.Name, args[idx])
			}
		}
		ctl, err := i.execBlock(fn.Body, inner, depth+1)
		if err != nil {
			return ast.Value{}, err
		}
		if ctl.kind == ctrlReturn {
			return ctl.val, nil
		}
		return ast.NilValue(), nil
	}
	return evalBuiltin(ident.Name, args)
}

func evalBuiltin(name string, args []ast.Value) (ast.Value, error) {
	switch name {
	case "len":
		if len(args) != 1 {
			return ast.Value{}, aborted{"len expects 1 argument"}
		}
		switch args[0].Kind {
		case ast.ValList:
			return ast.IntValue(int64(len(args[0].List))), nil
		case ast.ValString:
			return ast.IntValue(int64(len(args[0].Str))), nil
		}
		return ast.Value{}, aborted{"len of unsupported value"}
	case "abs":
		v := args[0]
		if v.Kind == ast.ValFloat {
			return ast.FloatValue(math.Abs(v.Float)), nil
		}
		if v.Int < 0 {
			return ast.IntValue(-v.Int), nil
		}
		return v, nil
	case "min":
		return reduceNumeric(args, func(a, b float64) bool { return a < b })
	case "max":
		return reduceNumeric(args, func(a, b float64) bool { return a > b })
	case "pow":
		return ast.FloatValue(math.Pow(numeric(args[0]), numeric(args[1]))), nil
	case "sqrt":
		return ast.FloatValue(math.Sqrt(numeric(args[0]))), nil
	case "floor":
		return ast.FloatValue(math.Floor(numeric(args[0]))), nil
	case "ceil":
		return ast.FloatValue(math.Ceil(numeric(args[0]))), nil
	case "str":
		return ast.StrValue(fmt.Sprint(numeric(args[0]))), nil
	case "int":
		return ast.IntValue(int64(numeric(args[0]))), nil
	case "float":
		return ast.FloatValue(numeric(args[0])), nil
	case "is_primitive", "is_pod", "is_trivially_copyable":
		return ast.BoolValue(true), nil
	case "sizeof", "alignof":
		return ast.IntValue(8), nil
	}
	return ast.Value{}, aborted{"unknown CTFE builtin " + name}
}

func reduceNumeric(args []ast.Value, better func(a, b float64) bool) (ast.Value, error) {
	if len(args) == 0 {
		return ast.Value{}, aborted{"min/max requires at least one argument"}
	}
	best := args[0]
	for _, a := range args[1:] {
		if better(numeric(a), numeric(best)) {
			best = a
		}
	}
	return best, nil
}

func numeric(v ast.Value) float64 {
	if v.Kind == ast.ValFloat {
		return v.Float
	}
	return float64(v.Int)
}

func unaryOp(op string, v ast.Value) (ast.Value, error) {
	switch op {
	case "-":
		if v.Kind == ast.ValFloat {
			return ast.FloatValue(-v.Float), nil
		}
		return ast.IntValue(-v.Int), nil
	case "!", "not":
		return ast.BoolValue(!v.Bool), nil
	case "~":
		return ast.IntValue(^v.Int), nil
	}
	return ast.Value{}, aborted{"unsupported unary operator " + op}
}

func binaryOp(op string, l, r ast.Value) (ast.Value, error) {
	if l.Kind == ast.ValString || r.Kind == ast.ValString {
		return stringBinaryOp(op, l, r)
	}
	isFloat := l.Kind == ast.ValFloat || r.Kind == ast.ValFloat
	if isFloat {
		return floatBinaryOp(op, numeric(l), numeric(r))
	}
	return intBinaryOp(op, l.Int, r.Int)
}

func stringBinaryOp(op string, l, r ast.Value) (ast.Value, error) {
	switch op {
	case "+":
		return ast.StrValue(l.Str + r.Str), nil
	case "==":
		return ast.BoolValue(l.Str == r.Str), nil
	case "!=":
		return ast.BoolValue(l.Str != r.Str), nil
	case "<":
		return ast.BoolValue(l.Str < r.Str), nil
	case "<=":
		return ast.BoolValue(l.Str <= r.Str), nil
	case ">":
		return ast.BoolValue(l.Str > r.Str), nil
	case ">=":
		return ast.BoolValue(l.Str >= r.Str), nil
	}
	return ast.Value{}, aborted{"unsupported string operator " + op}
}

func floatBinaryOp(op string, l, r float64) (ast.Value, error) {
	switch op {
	case "+":
		return ast.FloatValue(l + r), nil
	case "-":
		return ast.FloatValue(l - r), nil
	case "*":
		return ast.FloatValue(l * r), nil
	case "/":
		if r == 0 {
			return ast.Value{}, aborted{"division by zero"}
		}
		return ast.FloatValue(l / r), nil
	case "==":
		return ast.BoolValue(l == r), nil
	case "!=":
		return ast.BoolValue(l != r), nil
	case "<":
		return ast.BoolValue(l < r), nil
	case "<=":
		return ast.BoolValue(l <= r), nil
	case ">":
		return ast.BoolValue(l > r), nil
	case ">=":
		return ast.BoolValue(l >= r), nil
	}
	return ast.Value{}, aborted{"unsupported float operator " + op}
}

func intBinaryOp(op string, l, r int64) (ast.Value, error) {
	switch op {
	case "+":
		return ast.IntValue(l + r), nil
	case "-":
		return ast.IntValue(l - r), nil
	case "*":
		return ast.IntValue(l * r), nil
	case "/":
		if r == 0 {
			return ast.Value{}, aborted{"division by zero"}
		}
		return ast.IntValue(l / r), nil
	case "%":
		if r == 0 {
			return ast.Value{}, aborted{"modulo by zero"}
		}
		return ast.IntValue(l % r), nil
	case "==":
		return ast.BoolValue(l == r), nil
	case "!=":
		return ast.BoolValue(l != r), nil
	case "<":
		return ast.BoolValue(l < r), nil
	case "<=":
		return ast.BoolValue(l <= r), nil
	case ">":
		return ast.BoolValue(l > r), nil
	case ">=":
		return ast.BoolValue(l >= r), nil
	case "&":
		return ast.IntValue(l & r), nil
	case "|":
		return ast.IntValue(l | r), nil
	case "^":
		return ast.IntValue(l ^ r), nil
	case "<<":
		return ast.IntValue(l << uint(r)), nil
	case ">>":
		return ast.IntValue(l >> uint(r)), nil
	}
	return ast.Value{}, aborted{"unsupported integer operator " + op}
}
