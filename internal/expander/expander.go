// Package expander implements the macro/DSL expansion pre-pass of spec §4.3:
// declarative macro substitution, infix-operator rewriting, and DSL-block
// transformation, all consulting the shared internal/macro registry.
package expander

import (
	"fmt"

	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/macro"
)

// Expander walks a Program and rewrites macro call sites, user infix
// operators, and DSL blocks in place, following spec §4.3 steps 1-4.
type Expander struct {
	reg    *macro.Registry
	ctr    int // renamer counter for macro-body locals, mirrors inliner's $inline_name_ctr scheme
}

func New(reg *macro.Registry) *Expander { return &Expander{reg: reg} }

// Expand performs the single pre-pass over the whole program: infix
// operators and `syntax` names were already registered by the parser's
// pre-scan; collectDeclarations registers macro and layer declarations
// (step 1), then steps 2-4 run over every declaration.
func Expand(prog *ast.Program, reg *macro.Registry) *ast.Program {
	e := New(reg)
	e.collectDeclarations(prog)
	for i, d := range prog.Decls {
		prog.Decls[i] = e.stmt(d)
	}
	return prog
}

// collectDeclarations registers macro/syntax/layer declarations found at
// top level (spec §4.3 step 1) and activates `use layer "name"`.
func (e *Expander) collectDeclarations(prog *ast.Program) {
	for _, d := range prog.Decls {
		switch decl := d.(type) {
		case *ast.MacroDecl:
			e.reg.RegisterMacro(decl.Name, macro.Declarative{Name: decl.Name, Params: decl.Params, Body: decl.Body})
		case *ast.LayerDecl:
			var macros []macro.Declarative
			for _, m := range decl.Members {
				if md, ok := m.(*ast.MacroDecl); ok {
					macros = append(macros, macro.Declarative{Name: md.Name, Params: md.Params, Body: md.Body})
				}
			}
			e.reg.Layers[decl.Name] = macros
		case *ast.UseDecl:
			if len(decl.Names) == 1 && decl.Names[0] == "layer" {
				e.reg.ActivateLayer(decl.Path)
			}
		}
	}
}

func (e *Expander) stmt(s ast.Statement) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		for i, inner := range st.Stmts {
			st.Stmts[i] = e.stmt(inner)
		}
		return st
	case *ast.ExprStmt:
		st.X = e.expr(st.X)
		return st
	case *ast.VarDecl:
		if st.Init != nil {
			st.Init = e.expr(st.Init)
		}
		return st
	case *ast.IfStmt:
		st.Cond = e.expr(st.Cond)
		st.Then = e.stmt(st.Then).(*ast.Block)
		if st.Else != nil {
			st.Else = e.stmt(st.Else)
		}
		return st
	case *ast.WhileStmt:
		st.Cond = e.expr(st.Cond)
		st.Body = e.stmt(st.Body).(*ast.Block)
		return st
	case *ast.ForStmt:
		st.Iter = e.expr(st.Iter)
		st.Body = e.stmt(st.Body).(*ast.Block)
		return st
	case *ast.LoopStmt:
		st.Body = e.stmt(st.Body).(*ast.Block)
		return st
	case *ast.MatchStmt:
		st.Subject = e.expr(st.Subject)
		for i := range st.Arms {
			if st.Arms[i].Guard != nil {
				st.Arms[i].Guard = e.expr(st.Arms[i].Guard)
			}
			st.Arms[i].Body = e.stmt(st.Arms[i].Body).(*ast.Block)
		}
		return st
	case *ast.ReturnStmt:
		if st.Value != nil {
			st.Value = e.expr(st.Value)
		}
		return st
	case *ast.FuncDecl:
		if st.Body != nil {
			st.Body = e.stmt(st.Body).(*ast.Block)
		}
		return st
	case *ast.LockStmt:
		st.Target = e.expr(st.Target)
		st.Body = e.stmt(st.Body).(*ast.Block)
		return st
	case *ast.WithStmt:
		st.Acquire = e.expr(st.Acquire)
		st.Body = e.stmt(st.Body).(*ast.Block)
		return st
	case *ast.ScopeStmt:
		st.Body = e.stmt(st.Body).(*ast.Block)
		return st
	case *ast.SyntaxMacroDecl:
		return e.expandDSL(st)
	default:
		return s
	}
}

func (e *Expander) expr(x ast.Expression) ast.Expression {
	switch ex := x.(type) {
	case *ast.BinaryExpr:
		ex.Left = e.expr(ex.Left)
		ex.Right = e.expr(ex.Right)
		return e.maybeInfix(ex)
	case *ast.UnaryExpr:
		ex.Operand = e.expr(ex.Operand)
		return ex
	case *ast.TernaryExpr:
		ex.Cond = e.expr(ex.Cond)
		ex.Then = e.expr(ex.Then)
		ex.Else = e.expr(ex.Else)
		return ex
	case *ast.CallExpr:
		ex.Callee = e.expr(ex.Callee)
		for i := range ex.Args {
			ex.Args[i].Value = e.expr(ex.Args[i].Value)
		}
		return e.maybeMacroCall(ex)
	case *ast.MethodCallExpr:
		ex.Receiver = e.expr(ex.Receiver)
		for i := range ex.Args {
			ex.Args[i].Value = e.expr(ex.Args[i].Value)
		}
		return ex
	case *ast.AssignExpr:
		ex.Target = e.expr(ex.Target)
		ex.Value = e.expr(ex.Value)
		return ex
	default:
		return x
	}
}

// maybeInfix implements spec §4.3 step 3: `a op b` where op is a registered
// user operator becomes a call to the registered/mangled function name.
func (e *Expander) maybeInfix(b *ast.BinaryExpr) ast.Expression {
	symbol := b.Op
	_, isUser := e.reg.IsUserOperator(symbol)
	if !isUser && !macro.IsMangledCustomOp(symbol) {
		return b
	}
	fn := macro.MangleInfix(symbol)
	if op, ok := e.reg.IsUserOperator(symbol); ok {
		fn = op.FuncName
	}
	return &ast.CallExpr{
		Base:   ast.Base{Loc: b.Location()},
		Callee: &ast.Identifier{Base: ast.Base{Loc: b.Location()}, Name: fn},
		Args: []ast.Arg{
			{Value: b.Left},
			{Value: b.Right},
		},
	}
}

// maybeMacroCall implements spec §4.3 step 2: substitute argument
// expressions into a cloned macro body; if the last statement is an
// `if … : then else else` it becomes a ternary, otherwise the last
// expression/return becomes the call's result. A `__dsl_<name>` call built
// by the parser for a DSL block is handed to the registered transformer for
// <name>, or replaced by its raw string literal (spec §4.3 step 4).
func (e *Expander) maybeMacroCall(call *ast.CallExpr) ast.Expression {
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return call
	}
	if len(ident.Name) > 6 && ident.Name[:6] == "__dsl_" && len(call.Args) == 1 {
		if raw, ok := call.Args[0].Value.(*ast.StringLiteral); ok {
			if t, ok := e.reg.DSL[ident.Name[6:]]; ok {
				if expr, err := t(raw.Value); err == nil {
					return expr
				}
			}
			return raw
		}
	}
	m, ok := e.reg.Lookup(ident.Name)
	if !ok {
		return call
	}
	subst := map[string]ast.Expression{}
	for i, p := range m.Params {
		if i < len(call.Args) {
			subst[p] = call.Args[i].Value
		}
	}
	e.ctr++
	body := cloneBlock(m.Body, subst, fmt.Sprintf("$inline_%s_%d", ident.Name, e.ctr))
	if len(body.Stmts) == 0 {
		return call
	}
	last := body.Stmts[len(body.Stmts)-1]
	if ifs, ok := last.(*ast.IfStmt); ok && ifs.Else != nil {
		thenExpr := blockTailExpr(ifs.Then)
		elseExpr := blockTailExpr(ifs.Else.(*ast.Block))
		if thenExpr != nil && elseExpr != nil {
			return &ast.TernaryExpr{Base: ast.Base{Loc: call.Location()}, Cond: ifs.Cond, Then: thenExpr, Else: elseExpr}
		}
	}
	if ret, ok := last.(*ast.ReturnStmt); ok && ret.Value != nil {
		return ret.Value
	}
	if es, ok := last.(*ast.ExprStmt); ok {
		return es.X
	}
	return call
}

func blockTailExpr(b *ast.Block) ast.Expression {
	if b == nil || len(b.Stmts) == 0 {
		return nil
	}
	switch last := b.Stmts[len(b.Stmts)-1].(type) {
	case *ast.ExprStmt:
		return last.X
	case *ast.ReturnStmt:
		return last.Value
	}
	return nil
}

// cloneBlock substitutes parameter identifiers for their argument
// expressions and renames any locally-declared variable with a unique
// prefix so repeated macro expansions never collide (mirrors the
// inliner's `$inline_name_ctr` renaming scheme, spec §4.5.7).
func cloneBlock(b *ast.Block, subst map[string]ast.Expression, prefix string) *ast.Block {
	if b == nil {
		return &ast.Block{}
	}
	out := &ast.Block{Base: b.Base}
	for _, s := range b.Stmts {
		out.Stmts = append(out.Stmts, cloneStmt(s, subst, prefix))
	}
	return out
}

func cloneStmt(s ast.Statement, subst map[string]ast.Expression, prefix string) ast.Statement {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return &ast.ExprStmt{Base: st.Base, X: cloneExpr(st.X, subst, prefix)}
	case *ast.ReturnStmt:
		var v ast.Expression
		if st.Value != nil {
			v = cloneExpr(st.Value, subst, prefix)
		}
		return &ast.ReturnStmt{Base: st.Base, Value: v}
	case *ast.IfStmt:
		var elseClone ast.Statement
		if st.Else != nil {
			elseClone = cloneStmt(st.Else, subst, prefix)
		}
		return &ast.IfStmt{
			Base: st.Base, Unless: st.Unless,
			Cond: cloneExpr(st.Cond, subst, prefix),
			Then: cloneBlock(st.Then, subst, prefix),
			Else: elseClone,
		}
	case *ast.Block:
		return cloneBlock(st, subst, prefix)
	case *ast.VarDecl:
		newName := prefix + "_" + st.Name
		var init ast.Expression
		if st.Init != nil {
			init = cloneExpr(st.Init, subst, prefix)
		}
		subst[st.Name] = &ast.Identifier{Base: st.Base, Name: newName}
		return &ast.VarDecl{Base: st.Base, Kind: st.Kind, Name: newName, Type: st.Type, Init: init}
	default:
		return s
	}
}

func cloneExpr(x ast.Expression, subst map[string]ast.Expression, prefix string) ast.Expression {
	switch ex := x.(type) {
	case *ast.Identifier:
		if v, ok := subst[ex.Name]; ok {
			return v
		}
		return ex
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Base: ex.Base, Op: ex.Op,
			Left: cloneExpr(ex.Left, subst, prefix), Right: cloneExpr(ex.Right, subst, prefix)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Base: ex.Base, Op: ex.Op, Operand: cloneExpr(ex.Operand, subst, prefix)}
	case *ast.CallExpr:
		args := make([]ast.Arg, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = ast.Arg{Name: a.Name, Value: cloneExpr(a.Value, subst, prefix)}
		}
		return &ast.CallExpr{Base: ex.Base, Callee: cloneExpr(ex.Callee, subst, prefix), Args: args, TypeArg: ex.TypeArg}
	default:
		return x
	}
}

// expandDSL implements spec §4.3 step 4: the raw content of a DSL block is
// passed to a registered transformer, or wrapped as a string literal.
func (e *Expander) expandDSL(d *ast.SyntaxMacroDecl) ast.Statement {
	if t, ok := e.reg.DSL[d.Name]; ok {
		if expr, err := t(d.RawBody); err == nil {
			return &ast.ExprStmt{Base: d.Base, X: expr}
		}
	}
	return &ast.ExprStmt{Base: d.Base, X: &ast.StringLiteral{Base: d.Base, Value: d.RawBody}}
}
