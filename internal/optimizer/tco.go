package optimizer

import (
	"fmt"

	"github.com/tyl-lang/tyl/internal/ast"
)

// TCOPass implements spec §4.5.8: a self-tail-call `return f(args...)`
// sitting in tail position is converted into parameter reassignment
// followed by `continue`, with the whole body wrapped in an infinite loop.
// Only tail position (the last statement of the function, recursing
// through if/else chains that are themselves last) is converted; a
// self-call anywhere else is left as ordinary recursion.
type TCOPass struct{ count int }

func (p *TCOPass) Name() string { return "tail-call" }

func (p *TCOPass) Run(prog *ast.Program) int {
	p.count = 0
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok {
			p.convertFunc(fn)
		}
	}
	return p.count
}

func (p *TCOPass) convertFunc(fn *ast.FuncDecl) {
	if fn.Body == nil || fn.Flags.Async || fn.Flags.Extern {
		return
	}
	if !hasTailSelfCall(fn.Body, fn) {
		return
	}
	newBody := p.rewriteTailBlock(fn.Body, fn)
	fn.Body = &ast.Block{Base: fn.Body.Base, Stmts: []ast.Statement{
		&ast.LoopStmt{Base: fn.Body.Base, Body: newBody},
	}}
	p.count++
}

func isSelfTailCall(s ast.Statement, fn *ast.FuncDecl) bool {
	ret, ok := s.(*ast.ReturnStmt)
	if !ok || ret.Value == nil {
		return false
	}
	call, ok := ret.Value.(*ast.CallExpr)
	if !ok {
		return false
	}
	ident, ok := call.Callee.(*ast.Identifier)
	return ok && ident.Name == fn.Name && len(call.Args) == len(fn.Params)
}

// hasTailSelfCall reports whether b's tail position(s) contain at least one
// self-call, recursing through an if/else chain when the if is itself the
// last statement of b.
func hasTailSelfCall(b *ast.Block, fn *ast.FuncDecl) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	return tailPositionHasSelfCall(b.Stmts[len(b.Stmts)-1], fn)
}

func tailPositionHasSelfCall(s ast.Statement, fn *ast.FuncDecl) bool {
	switch st := s.(type) {
	case *ast.ReturnStmt:
		return isSelfTailCall(st, fn)
	case *ast.IfStmt:
		if hasTailSelfCall(st.Then, fn) {
			return true
		}
		if st.Else == nil {
			return false
		}
		switch e := st.Else.(type) {
		case *ast.Block:
			return hasTailSelfCall(e, fn)
		default:
			return tailPositionHasSelfCall(e, fn)
		}
	default:
		return false
	}
}

// rewriteTailBlock replaces b's tail statement(s) with converted
// self-tail-calls, leaving every earlier statement untouched.
func (p *TCOPass) rewriteTailBlock(b *ast.Block, fn *ast.FuncDecl) *ast.Block {
	if len(b.Stmts) == 0 {
		return b
	}
	out := make([]ast.Statement, len(b.Stmts)-1, len(b.Stmts))
	copy(out, b.Stmts[:len(b.Stmts)-1])
	last := b.Stmts[len(b.Stmts)-1]
	out = append(out, p.rewriteTailStmt(last, fn)...)
	return &ast.Block{Base: b.Base, Stmts: out}
}

func (p *TCOPass) rewriteTailStmt(s ast.Statement, fn *ast.FuncDecl) []ast.Statement {
	switch st := s.(type) {
	case *ast.ReturnStmt:
		if isSelfTailCall(st, fn) {
			return tailCallToAssignments(st.Value.(*ast.CallExpr), fn)
		}
		return []ast.Statement{st}
	case *ast.IfStmt:
		newThen := p.rewriteTailBlock(st.Then, fn)
		var newElse ast.Statement
		if st.Else != nil {
			switch e := st.Else.(type) {
			case *ast.Block:
				newElse = p.rewriteTailBlock(e, fn)
			default:
				converted := p.rewriteTailStmt(e, fn)
				if len(converted) == 1 {
					newElse = converted[0]
				} else {
					newElse = &ast.Block{Base: ast.Base{Loc: e.Location()}, Stmts: converted}
				}
			}
		}
		return []ast.Statement{&ast.IfStmt{Base: st.Base, Unless: st.Unless, Cond: st.Cond, Then: newThen, Else: newElse}}
	default:
		return []ast.Statement{st}
	}
}

// tailCallToAssignments lowers `return f(newArgs...)` into: evaluate every
// new argument into a fresh temporary (so a parameter read by a later
// argument expression still sees its old value), assign temporaries into
// the parameters, then continue the wrapping loop.
func tailCallToAssignments(call *ast.CallExpr, fn *ast.FuncDecl) []ast.Statement {
	var out []ast.Statement
	temps := make([]string, len(call.Args))
	for i, a := range call.Args {
		temps[i] = fmt.Sprintf("$tco_%s_%d", fn.Name, i)
		out = append(out, &ast.VarDecl{Base: ast.Base{Loc: a.Value.Location()}, Kind: ast.VarLet, Name: temps[i], Init: a.Value})
	}
	for i, param := range fn.Params {
		out = append(out, &ast.ExprStmt{X: &ast.AssignExpr{
			Op:     "=",
			Target: &ast.Identifier{Name: param.Name},
			Value:  &ast.Identifier{Name: temps[i]},
		}})
	}
	out = append(out, &ast.ContinueStmt{})
	return out
}
