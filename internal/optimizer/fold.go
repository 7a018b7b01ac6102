package optimizer

import (
	"github.com/tyl-lang/tyl/internal/ast"
)

// FoldPass implements spec §4.5.1: constant folding over integers, floats
// (with cross-promotion), booleans, and strings. Division/modulo by zero
// leaves the node unchanged (spec §8 property 3).
type FoldPass struct{ count int }

func (p *FoldPass) Name() string { return "fold" }

func (p *FoldPass) Run(prog *ast.Program) int {
	p.count = 0
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d)
	}
	return p.count
}

func (p *FoldPass) stmt(s ast.Statement) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		for i, inner := range st.Stmts {
			st.Stmts[i] = p.stmt(inner)
		}
	case *ast.ExprStmt:
		st.X = p.expr(st.X)
	case *ast.VarDecl:
		if st.Init != nil {
			st.Init = p.expr(st.Init)
		}
	case *ast.IfStmt:
		st.Cond = p.expr(st.Cond)
		p.stmt(st.Then)
		if st.Else != nil {
			st.Else = p.stmt(st.Else)
		}
		return foldIfLiteralCond(st, &p.count)
	case *ast.WhileStmt:
		st.Cond = p.expr(st.Cond)
		p.stmt(st.Body)
	case *ast.ForStmt:
		st.Iter = p.expr(st.Iter)
		p.stmt(st.Body)
	case *ast.LoopStmt:
		p.stmt(st.Body)
	case *ast.ReturnStmt:
		if st.Value != nil {
			st.Value = p.expr(st.Value)
		}
	case *ast.FuncDecl:
		if st.Body != nil {
			p.stmt(st.Body)
		}
	case *ast.MatchStmt:
		st.Subject = p.expr(st.Subject)
		for i := range st.Arms {
			p.stmt(st.Arms[i].Body)
		}
	}
	return s
}

// foldIfLiteralCond implements the if-elimination rule bundled with §4.5.2:
// an if whose condition is literally true/false collapses to the selected
// branch; a false condition with no else leaves an empty block, which
// DCEPass then removes from the parent's statement list.
func foldIfLiteralCond(st *ast.IfStmt, count *int) ast.Statement {
	lit, ok := st.Cond.(*ast.BoolLiteral)
	if !ok {
		return st
	}
	truth := lit.Value != st.Unless
	*count++
	if truth {
		return st.Then
	}
	if st.Else != nil {
		return st.Else
	}
	return &ast.Block{Base: st.Base}
}

func (p *FoldPass) expr(x ast.Expression) ast.Expression {
	switch ex := x.(type) {
	case *ast.UnaryExpr:
		ex.Operand = p.expr(ex.Operand)
		if v, ok := literalValue(ex.Operand); ok {
			if folded, ok := foldUnary(ex.Op, v, ex.Base); ok {
				p.count++
				return folded
			}
		}
		return ex
	case *ast.BinaryExpr:
		ex.Left = p.expr(ex.Left)
		ex.Right = p.expr(ex.Right)
		lv, lok := literalValue(ex.Left)
		rv, rok := literalValue(ex.Right)
		if lok && rok {
			if folded, ok := foldBinary(ex.Op, lv, rv, ex.Base); ok {
				p.count++
				return folded
			}
		}
		return ex
	case *ast.TernaryExpr:
		ex.Cond = p.expr(ex.Cond)
		ex.Then = p.expr(ex.Then)
		ex.Else = p.expr(ex.Else)
		if lit, ok := ex.Cond.(*ast.BoolLiteral); ok {
			p.count++
			if lit.Value {
				return ex.Then
			}
			return ex.Else
		}
		return ex
	case *ast.CallExpr:
		for i := range ex.Args {
			ex.Args[i].Value = p.expr(ex.Args[i].Value)
		}
		return ex
	default:
		return x
	}
}

// literalValue extracts the folding-relevant constant value from a literal
// AST node, if x is one.
func literalValue(x ast.Expression) (ast.Value, bool) {
	switch l := x.(type) {
	case *ast.IntegerLiteral:
		return ast.IntValue(l.Value), true
	case *ast.FloatLiteral:
		return ast.FloatValue(l.Value), true
	case *ast.BoolLiteral:
		return ast.BoolValue(l.Value), true
	case *ast.StringLiteral:
		return ast.StrValue(l.Value), true
	}
	return ast.Value{}, false
}

// createLiteral is the inverse of literalValue: spec §8 property 3 requires
// the folded AST to equal exactly `createLiteral(eval(e))`.
func createLiteral(v ast.Value, base ast.Base) ast.Expression {
	switch v.Kind {
	case ast.ValInt:
		return &ast.IntegerLiteral{Base: base, Value: v.Int}
	case ast.ValFloat:
		return &ast.FloatLiteral{Base: base, Value: v.Float}
	case ast.ValBool:
		return &ast.BoolLiteral{Base: base, Value: v.Bool}
	case ast.ValString:
		return &ast.StringLiteral{Base: base, Value: v.Str}
	}
	return nil
}

func foldUnary(op string, v ast.Value, base ast.Base) (ast.Expression, bool) {
	switch op {
	case "-":
		if v.Kind == ast.ValFloat {
			return createLiteral(ast.FloatValue(-v.Float), base), true
		}
		if v.Kind == ast.ValInt {
			return createLiteral(ast.IntValue(-v.Int), base), true
		}
	case "~":
		if v.Kind == ast.ValInt {
			return createLiteral(ast.IntValue(^v.Int), base), true
		}
	case "!", "not":
		if v.Kind == ast.ValBool {
			return createLiteral(ast.BoolValue(!v.Bool), base), true
		}
	}
	return nil, false
}

func foldBinary(op string, l, r ast.Value, base ast.Base) (ast.Expression, bool) {
	if l.Kind == ast.ValString && r.Kind == ast.ValString {
		return foldStringBinary(op, l.Str, r.Str, base)
	}
	if l.Kind == ast.ValBool && r.Kind == ast.ValBool {
		return foldBoolBinary(op, l.Bool, r.Bool, base)
	}
	isFloat := l.Kind == ast.ValFloat || r.Kind == ast.ValFloat
	if isFloat {
		lf, rf := asFloat(l), asFloat(r)
		return foldFloatBinary(op, lf, rf, base)
	}
	if l.Kind == ast.ValInt && r.Kind == ast.ValInt {
		return foldIntBinary(op, l.Int, r.Int, base)
	}
	return nil, false
}

func asFloat(v ast.Value) float64 {
	if v.Kind == ast.ValFloat {
		return v.Float
	}
	return float64(v.Int)
}

func foldBoolBinary(op string, l, r bool, base ast.Base) (ast.Expression, bool) {
	switch op {
	case "and", "&&":
		return createLiteral(ast.BoolValue(l && r), base), true
	case "or", "||":
		return createLiteral(ast.BoolValue(l || r), base), true
	case "==":
		return createLiteral(ast.BoolValue(l == r), base), true
	case "!=":
		return createLiteral(ast.BoolValue(l != r), base), true
	}
	return nil, false
}

func foldStringBinary(op string, l, r string, base ast.Base) (ast.Expression, bool) {
	switch op {
	case "+":
		return createLiteral(ast.StrValue(l+r), base), true
	case "==":
		return createLiteral(ast.BoolValue(l == r), base), true
	case "!=":
		return createLiteral(ast.BoolValue(l != r), base), true
	}
	return nil, false
}

func foldFloatBinary(op string, l, r float64, base ast.Base) (ast.Expression, bool) {
	switch op {
	case "+":
		return createLiteral(ast.FloatValue(l+r), base), true
	case "-":
		return createLiteral(ast.FloatValue(l-r), base), true
	case "*":
		return createLiteral(ast.FloatValue(l*r), base), true
	case "/":
		if r == 0 {
			return nil, false // spec §8 property 3 exception
		}
		return createLiteral(ast.FloatValue(l/r), base), true
	case "==":
		return createLiteral(ast.BoolValue(l == r), base), true
	case "!=":
		return createLiteral(ast.BoolValue(l != r), base), true
	case "<":
		return createLiteral(ast.BoolValue(l < r), base), true
	case "<=":
		return createLiteral(ast.BoolValue(l <= r), base), true
	case ">":
		return createLiteral(ast.BoolValue(l > r), base), true
	case ">=":
		return createLiteral(ast.BoolValue(l >= r), base), true
	}
	return nil, false
}

func foldIntBinary(op string, l, r int64, base ast.Base) (ast.Expression, bool) {
	switch op {
	case "+":
		return createLiteral(ast.IntValue(l+r), base), true
	case "-":
		return createLiteral(ast.IntValue(l-r), base), true
	case "*":
		return createLiteral(ast.IntValue(l*r), base), true
	case "/":
		if r == 0 {
			return nil, false
		}
		return createLiteral(ast.IntValue(l/r), base), true
	case "%":
		if r == 0 {
			return nil, false
		}
		return createLiteral(ast.IntValue(l%r), base), true
	case "==":
		return createLiteral(ast.BoolValue(l == r), base), true
	case "!=":
		return createLiteral(ast.BoolValue(l != r), base), true
	case "<":
		return createLiteral(ast.BoolValue(l < r), base), true
	case "<=":
		return createLiteral(ast.BoolValue(l <= r), base), true
	case ">":
		return createLiteral(ast.BoolValue(l > r), base), true
	case ">=":
		return createLiteral(ast.BoolValue(l >= r), base), true
	case "&":
		return createLiteral(ast.IntValue(l&r), base), true
	case "|":
		return createLiteral(ast.IntValue(l|r), base), true
	case "^":
		return createLiteral(ast.IntValue(l^r), base), true
	case "<<":
		return createLiteral(ast.IntValue(l<<uint(r)), base), true
	case ">>":
		return createLiteral(ast.IntValue(l>>uint(r)), base), true
	}
	return nil, false
}
