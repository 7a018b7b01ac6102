package optimizer

import (
	"fmt"

	"github.com/tyl-lang/tyl/internal/ast"
)

const (
	maxInlineStatements = 8
	maxInlineCallCount  = 32
)

// InlinePass implements spec §4.5.7: pure single-return functions are
// inlined expression-level directly into the call expression; simple
// non-recursive functions get statement-level inlining with renamed
// locals. main, extern, async, and recursive functions are never inlined.
type InlinePass struct {
	Funcs map[string]*ast.FuncDecl
	count int
	calls map[string]int
	ctr   int
}

func (p *InlinePass) Name() string { return "inline" }

func (p *InlinePass) Run(prog *ast.Program) int {
	p.count = 0
	p.calls = map[string]int{}
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d)
	}
	return p.count
}

func (p *InlinePass) eligible(fn *ast.FuncDecl) bool {
	if fn.Name == "main" || fn.Flags.Extern || fn.Flags.Async || fn.Body == nil {
		return false
	}
	if hasRecursion(fn) {
		return false
	}
	return true
}

func hasRecursion(fn *ast.FuncDecl) bool {
	found := false
	var walk func(ast.Expression)
	var walkStmt func(ast.Statement)
	walk = func(x ast.Expression) {
		if x == nil || found {
			return
		}
		switch ex := x.(type) {
		case *ast.CallExpr:
			if ident, ok := ex.Callee.(*ast.Identifier); ok && ident.Name == fn.Name {
				found = true
			}
			for _, a := range ex.Args {
				walk(a.Value)
			}
		case *ast.BinaryExpr:
			walk(ex.Left)
			walk(ex.Right)
		case *ast.UnaryExpr:
			walk(ex.Operand)
		case *ast.TernaryExpr:
			walk(ex.Cond)
			walk(ex.Then)
			walk(ex.Else)
		}
	}
	walkStmt = func(s ast.Statement) {
		if found {
			return
		}
		switch st := s.(type) {
		case *ast.Block:
			for _, inner := range st.Stmts {
				walkStmt(inner)
			}
		case *ast.ExprStmt:
			walk(st.X)
		case *ast.ReturnStmt:
			walk(st.Value)
		case *ast.IfStmt:
			walk(st.Cond)
			walkStmt(st.Then)
			if st.Else != nil {
				walkStmt(st.Else)
			}
		case *ast.WhileStmt:
			walk(st.Cond)
			walkStmt(st.Body)
		case *ast.ForStmt:
			walkStmt(st.Body)
		}
	}
	walkStmt(fn.Body)
	return found
}

func isSingleReturn(fn *ast.FuncDecl) bool {
	count := 0
	var walk func(ast.Statement)
	walk = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.Block:
			for _, inner := range st.Stmts {
				walk(inner)
			}
		case *ast.ReturnStmt:
			count++
		case *ast.IfStmt:
			walk(st.Then)
			if st.Else != nil {
				walk(st.Else)
			}
		}
	}
	walk(fn.Body)
	return count == 1
}

func countStatements(b *ast.Block) int {
	n := 0
	for _, s := range b.Stmts {
		n++
		if inner, ok := s.(*ast.Block); ok {
			n += countStatements(inner)
		}
	}
	return n
}

func isPureFunction(fn *ast.FuncDecl) bool {
	pure := true
	var walkStmt func(ast.Statement)
	var walkExpr func(ast.Expression)
	walkExpr = func(x ast.Expression) {
		switch ex := x.(type) {
		case *ast.CallExpr, *ast.MethodCallExpr, *ast.SpawnExpr, *ast.ChanSendExpr, *ast.AwaitExpr:
			_ = ex
			pure = false
		case *ast.BinaryExpr:
			walkExpr(ex.Left)
			walkExpr(ex.Right)
		case *ast.UnaryExpr:
			walkExpr(ex.Operand)
		case *ast.TernaryExpr:
			walkExpr(ex.Cond)
			walkExpr(ex.Then)
			walkExpr(ex.Else)
		}
	}
	walkStmt = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.Block:
			for _, inner := range st.Stmts {
				walkStmt(inner)
			}
		case *ast.ExprStmt:
			walkExpr(st.X)
		case *ast.ReturnStmt:
			if st.Value != nil {
				walkExpr(st.Value)
			}
		case *ast.VarDecl:
			if st.Init != nil {
				walkExpr(st.Init)
			}
		case *ast.IfStmt:
			walkExpr(st.Cond)
			walkStmt(st.Then)
			if st.Else != nil {
				walkStmt(st.Else)
			}
		case *ast.LockStmt, *ast.WithStmt, *ast.DeleteStmt:
			pure = false
		}
	}
	walkStmt(fn.Body)
	return pure
}

func (p *InlinePass) stmt(s ast.Statement) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		var out []ast.Statement
		for _, inner := range st.Stmts {
			if spliced, ok := p.tryInlineStatementLevel(inner); ok {
				out = append(out, spliced...)
				continue
			}
			out = append(out, p.stmt(inner))
		}
		st.Stmts = out
	case *ast.ExprStmt:
		st.X = p.expr(st.X)
	case *ast.VarDecl:
		if st.Init != nil {
			st.Init = p.expr(st.Init)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			st.Value = p.expr(st.Value)
		}
	case *ast.IfStmt:
		st.Cond = p.expr(st.Cond)
		st.Then = p.stmt(st.Then).(*ast.Block)
		if st.Else != nil {
			st.Else = p.stmt(st.Else)
		}
	case *ast.WhileStmt:
		st.Cond = p.expr(st.Cond)
		st.Body = p.stmt(st.Body).(*ast.Block)
	case *ast.ForStmt:
		st.Body = p.stmt(st.Body).(*ast.Block)
	case *ast.FuncDecl:
		if st.Body != nil {
			st.Body = p.stmt(st.Body).(*ast.Block)
		}
	}
	return s
}

// tryInlineStatementLevel implements the "simple non-recursive
// statement-level inlining" half of spec §4.5.7: a call to a simple,
// non-recursive, non-pure-single-return function appearing as a bare
// expression statement or as a VarDecl's initialiser is replaced by a
// renamed-locals copy of the callee's body, with the return expression (if
// the statement needs a value) lifted into a trailing declaration of the
// bound variable.
func (p *InlinePass) tryInlineStatementLevel(s ast.Statement) ([]ast.Statement, bool) {
	var call *ast.CallExpr
	var bindName string
	var declKind ast.VarDeclKind
	switch st := s.(type) {
	case *ast.ExprStmt:
		c, ok := st.X.(*ast.CallExpr)
		if !ok {
			return nil, false
		}
		call = c
	case *ast.VarDecl:
		c, ok := st.Init.(*ast.CallExpr)
		if !ok {
			return nil, false
		}
		call = c
		bindName = st.Name
		declKind = st.Kind
	default:
		return nil, false
	}
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return nil, false
	}
	fn, ok := p.Funcs[ident.Name]
	if !ok || !p.eligible(fn) {
		return nil, false
	}
	if isPureFunction(fn) && isSingleReturn(fn) {
		return nil, false // handled by expression-level inlining instead
	}
	if countStatements(fn.Body) > maxInlineStatements {
		return nil, false
	}
	if p.calls[fn.Name] >= maxInlineCallCount {
		return nil, false
	}

	subst := map[string]ast.Expression{}
	for i, param := range fn.Params {
		if i < len(call.Args) {
			subst[param.Name] = call.Args[i].Value
		}
	}
	renames := p.renamedLocals(fn)
	var resultExpr ast.Expression
	var out []ast.Statement
	for _, inner := range fn.Body.Stmts {
		if ret, ok := inner.(*ast.ReturnStmt); ok {
			if ret.Value != nil {
				resultExpr = renameIdents(substituteParams(ret.Value, subst), renames)
			}
			continue
		}
		out = append(out, renameIdentsStmt(substStmtParams(inner, subst), renames))
	}
	if bindName != "" && resultExpr != nil {
		out = append(out, &ast.VarDecl{Kind: declKind, Name: bindName, Init: resultExpr})
	}
	p.count++
	p.calls[fn.Name]++
	return out, true
}

// renamedLocals assigns every local variable fn.Body declares (excluding
// parameters) a fresh `$inline_name_ctr` name (spec §4.5.7), so repeated
// statement-level inlining of the same callee never collides.
func (p *InlinePass) renamedLocals(fn *ast.FuncDecl) map[string]string {
	isParam := map[string]bool{}
	for _, param := range fn.Params {
		isParam[param.Name] = true
	}
	renames := map[string]string{}
	var walk func(ast.Statement)
	walk = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.Block:
			for _, inner := range st.Stmts {
				walk(inner)
			}
		case *ast.VarDecl:
			if !isParam[st.Name] {
				if _, ok := renames[st.Name]; !ok {
					renames[st.Name] = p.renamedLocal(fn.Name, st.Name)
				}
			}
		case *ast.IfStmt:
			walk(st.Then)
			if st.Else != nil {
				walk(st.Else)
			}
		case *ast.WhileStmt:
			walk(st.Body)
		case *ast.ForStmt:
			walk(st.Body)
		}
	}
	walk(fn.Body)
	return renames
}

// renameIdents/renameIdentsStmt substitute every identifier read matching a
// renamed local with its fresh name, leaving parameters and free globals
// untouched.
func renameIdents(x ast.Expression, renames map[string]string) ast.Expression {
	switch ex := x.(type) {
	case *ast.Identifier:
		if nn, ok := renames[ex.Name]; ok {
			return &ast.Identifier{Base: ex.Base, Name: nn}
		}
		return ex
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Base: ex.Base, Op: ex.Op,
			Left: renameIdents(ex.Left, renames), Right: renameIdents(ex.Right, renames)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Base: ex.Base, Op: ex.Op, Operand: renameIdents(ex.Operand, renames)}
	case *ast.TernaryExpr:
		return &ast.TernaryExpr{Base: ex.Base,
			Cond: renameIdents(ex.Cond, renames), Then: renameIdents(ex.Then, renames), Else: renameIdents(ex.Else, renames)}
	case *ast.AssignExpr:
		return &ast.AssignExpr{Base: ex.Base, Op: ex.Op,
			Target: renameIdents(ex.Target, renames), Value: renameIdents(ex.Value, renames)}
	case *ast.CallExpr:
		args := make([]ast.Arg, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = ast.Arg{Name: a.Name, Value: renameIdents(a.Value, renames)}
		}
		return &ast.CallExpr{Base: ex.Base, Callee: ex.Callee, Args: args, TypeArg: ex.TypeArg}
	case *ast.IndexExpr:
		return &ast.IndexExpr{Base: ex.Base, Receiver: renameIdents(ex.Receiver, renames), Index: renameIdents(ex.Index, renames)}
	default:
		return x
	}
}

func renameIdentsStmt(s ast.Statement, renames map[string]string) ast.Statement {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return &ast.ExprStmt{Base: st.Base, X: renameIdents(st.X, renames)}
	case *ast.VarDecl:
		name := st.Name
		if nn, ok := renames[name]; ok {
			name = nn
		}
		var init ast.Expression
		if st.Init != nil {
			init = renameIdents(st.Init, renames)
		}
		return &ast.VarDecl{Base: st.Base, Kind: st.Kind, Name: name, Type: st.Type, Init: init}
	case *ast.IfStmt:
		var elseClone ast.Statement
		if st.Else != nil {
			elseClone = renameIdentsStmt(st.Else, renames)
		}
		return &ast.IfStmt{Base: st.Base, Unless: st.Unless, Cond: renameIdents(st.Cond, renames),
			Then: renameIdentsBlock(st.Then, renames), Else: elseClone}
	case *ast.Block:
		return renameIdentsBlock(st, renames)
	default:
		return s
	}
}

func renameIdentsBlock(b *ast.Block, renames map[string]string) *ast.Block {
	out := &ast.Block{Base: b.Base}
	for _, s := range b.Stmts {
		out.Stmts = append(out.Stmts, renameIdentsStmt(s, renames))
	}
	return out
}

func substStmtParams(s ast.Statement, subst map[string]ast.Expression) ast.Statement {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return &ast.ExprStmt{Base: st.Base, X: substituteParams(st.X, subst)}
	case *ast.VarDecl:
		var init ast.Expression
		if st.Init != nil {
			init = substituteParams(st.Init, subst)
		}
		return &ast.VarDecl{Base: st.Base, Kind: st.Kind, Name: st.Name, Type: st.Type, Init: init}
	default:
		return s
	}
}

func (p *InlinePass) expr(x ast.Expression) ast.Expression {
	switch ex := x.(type) {
	case *ast.BinaryExpr:
		ex.Left = p.expr(ex.Left)
		ex.Right = p.expr(ex.Right)
		return ex
	case *ast.TernaryExpr:
		ex.Cond = p.expr(ex.Cond)
		ex.Then = p.expr(ex.Then)
		ex.Else = p.expr(ex.Else)
		return ex
	case *ast.CallExpr:
		for i := range ex.Args {
			ex.Args[i].Value = p.expr(ex.Args[i].Value)
		}
		return p.tryInlineExpr(ex)
	default:
		return x
	}
}

// tryInlineExpr implements expression-level inlining: a pure, single-return
// callee's return expression is substituted directly into the call site,
// with arguments substituted for parameters (spec §8 property 6: each
// argument expression appears exactly once in the result).
func (p *InlinePass) tryInlineExpr(call *ast.CallExpr) ast.Expression {
	ident, ok := call.Callee.(*ast.Identifier)
	if !ok {
		return call
	}
	fn, ok := p.Funcs[ident.Name]
	if !ok || !p.eligible(fn) {
		return call
	}
	if p.calls[fn.Name] >= maxInlineCallCount {
		return call
	}
	if isPureFunction(fn) && isSingleReturn(fn) {
		ret := singleReturnValue(fn.Body)
		if ret == nil {
			return call
		}
		subst := map[string]ast.Expression{}
		for i, param := range fn.Params {
			if i < len(call.Args) {
				subst[param.Name] = call.Args[i].Value
			}
		}
		p.count++
		p.calls[fn.Name]++
		return substituteParams(ret, subst)
	}
	return call
}

func singleReturnValue(b *ast.Block) ast.Expression {
	if len(b.Stmts) != 1 {
		return nil
	}
	ret, ok := b.Stmts[0].(*ast.ReturnStmt)
	if !ok {
		return nil
	}
	return ret.Value
}

func substituteParams(x ast.Expression, subst map[string]ast.Expression) ast.Expression {
	switch ex := x.(type) {
	case *ast.Identifier:
		if v, ok := subst[ex.Name]; ok {
			return v
		}
		return ex
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Base: ex.Base, Op: ex.Op,
			Left: substituteParams(ex.Left, subst), Right: substituteParams(ex.Right, subst)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Base: ex.Base, Op: ex.Op, Operand: substituteParams(ex.Operand, subst)}
	case *ast.TernaryExpr:
		return &ast.TernaryExpr{Base: ex.Base,
			Cond: substituteParams(ex.Cond, subst), Then: substituteParams(ex.Then, subst), Else: substituteParams(ex.Else, subst)}
	case *ast.CallExpr:
		args := make([]ast.Arg, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = ast.Arg{Name: a.Name, Value: substituteParams(a.Value, subst)}
		}
		return &ast.CallExpr{Base: ex.Base, Callee: ex.Callee, Args: args, TypeArg: ex.TypeArg}
	default:
		return x
	}
}

// renamedLocal produces the `$inline_name_ctr` local name spec §4.5.7
// specifies for statement-level inlining's renamed locals.
func (p *InlinePass) renamedLocal(fn, name string) string {
	p.ctr++
	return fmt.Sprintf("$inline_%s_%s_%d", fn, name, p.ctr)
}
