package optimizer

import "github.com/tyl-lang/tyl/internal/ast"

const (
	minTripCount = 4
	maxTripCount = 64
)

// LoopOptPass implements spec §4.5.6: loop-invariant code motion over for
// and while loops, followed by bounded unrolling of `for i in a..b` loops
// with integer-literal bounds.
type LoopOptPass struct{ count int }

func (p *LoopOptPass) Name() string { return "loop-optimizer" }

func (p *LoopOptPass) Run(prog *ast.Program) int {
	p.count = 0
	for i, d := range prog.Decls {
		prog.Decls[i] = p.stmt(d)
	}
	return p.count
}

func (p *LoopOptPass) stmt(s ast.Statement) ast.Statement {
	switch st := s.(type) {
	case *ast.Block:
		p.rewriteBlock(st)
	case *ast.FuncDecl:
		if st.Body != nil {
			st.Body = p.stmt(st.Body).(*ast.Block)
		}
	case *ast.IfStmt:
		st.Then = p.stmt(st.Then).(*ast.Block)
		if st.Else != nil {
			st.Else = p.stmt(st.Else)
		}
	}
	return s
}

// rewriteBlock walks a flat statement list, recursing into nested blocks
// and — for each for/while loop found directly in this list — hoisting its
// loop-invariant declarations to just before the loop statement (spec
// §4.5.6 LICM) before attempting bounded unrolling on what remains.
func (p *LoopOptPass) rewriteBlock(b *ast.Block) {
	var out []ast.Statement
	for _, s := range b.Stmts {
		switch loop := s.(type) {
		case *ast.ForStmt:
			p.rewriteBlock(loop.Body)
			hoisted := p.extractInvariants(loop.Body, loop.VarName)
			out = append(out, hoisted...)
			if unrolled, ok := p.tryUnroll(loop); ok {
				p.count++
				out = append(out, unrolled.(*ast.Block).Stmts...)
				continue
			}
			out = append(out, loop)
		case *ast.WhileStmt:
			p.rewriteBlock(loop.Body)
			hoisted := p.extractInvariants(loop.Body, "")
			out = append(out, hoisted...)
			out = append(out, loop)
		case *ast.IfStmt:
			loop.Then = p.stmt(loop.Then).(*ast.Block)
			if loop.Else != nil {
				loop.Else = p.stmt(loop.Else)
			}
			out = append(out, loop)
		case *ast.Block:
			p.rewriteBlock(loop)
			out = append(out, loop)
		default:
			out = append(out, s)
		}
	}
	b.Stmts = out
}

// tryUnroll implements the bounded-unrolling sub-pass: `for i in a..b`
// (or `a..=b`) with integer-literal bounds and a trip count within
// [minTripCount, maxTripCount], whose body contains no break/continue,
// emits one cloned copy of the body per iteration with the induction
// variable substituted by the literal offset.
func (p *LoopOptPass) tryUnroll(f *ast.ForStmt) (ast.Statement, bool) {
	rng, ok := f.Iter.(*ast.RangeExpr)
	if !ok {
		return nil, false
	}
	from, ok1 := rng.From.(*ast.IntegerLiteral)
	to, ok2 := rng.To.(*ast.IntegerLiteral)
	if !ok1 || !ok2 {
		return nil, false
	}
	hi := to.Value
	if rng.Inclusive {
		hi++
	}
	trip := hi - from.Value
	if trip < minTripCount || trip > maxTripCount {
		return nil, false
	}
	if containsLoopEscape(f.Body) {
		return nil, false
	}
	out := &ast.Block{Base: f.Base}
	for n := from.Value; n < hi; n++ {
		clone := substituteIdentConst(cloneBlockPlain(f.Body), f.VarName, n)
		out.Stmts = append(out.Stmts, clone.Stmts...)
	}
	return out, true
}

// containsLoopEscape reports whether body contains a break/continue that
// targets this loop (an unlabelled one, or conservatively any labelled
// one — unrolling is skipped either way per spec §4.5.6).
func containsLoopEscape(b *ast.Block) bool {
	found := false
	var walk func(ast.Statement)
	walk = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.BreakStmt, *ast.ContinueStmt:
			found = true
		case *ast.Block:
			for _, inner := range st.Stmts {
				walk(inner)
			}
		case *ast.IfStmt:
			walk(st.Then)
			if st.Else != nil {
				walk(st.Else)
			}
		case *ast.MatchStmt:
			for _, arm := range st.Arms {
				walk(arm.Body)
			}
		}
		// nested for/while/loop introduce their own break/continue scope
		// and are not walked further.
	}
	walk(b)
	return found
}

func cloneBlockPlain(b *ast.Block) *ast.Block {
	out := &ast.Block{Base: b.Base}
	out.Stmts = append(out.Stmts, b.Stmts...)
	return out
}

// substituteIdentConst replaces every read of name within b with the
// integer literal n (the induction-variable offset for this unrolled copy).
func substituteIdentConst(b *ast.Block, name string, n int64) *ast.Block {
	out := &ast.Block{Base: b.Base}
	for _, s := range b.Stmts {
		out.Stmts = append(out.Stmts, substStmt(s, name, n))
	}
	return out
}

func substStmt(s ast.Statement, name string, n int64) ast.Statement {
	switch st := s.(type) {
	case *ast.ExprStmt:
		return &ast.ExprStmt{Base: st.Base, X: substExpr(st.X, name, n)}
	case *ast.VarDecl:
		var init ast.Expression
		if st.Init != nil {
			init = substExpr(st.Init, name, n)
		}
		return &ast.VarDecl{Base: st.Base, Kind: st.Kind, Name: st.Name, Type: st.Type, Init: init}
	case *ast.ReturnStmt:
		var v ast.Expression
		if st.Value != nil {
			v = substExpr(st.Value, name, n)
		}
		return &ast.ReturnStmt{Base: st.Base, Value: v}
	case *ast.IfStmt:
		var elseClone ast.Statement
		if st.Else != nil {
			elseClone = substStmt(st.Else, name, n)
		}
		return &ast.IfStmt{Base: st.Base, Unless: st.Unless, Cond: substExpr(st.Cond, name, n),
			Then: substituteIdentConst(st.Then, name, n), Else: elseClone}
	case *ast.Block:
		return substituteIdentConst(st, name, n)
	default:
		return s
	}
}

func substExpr(x ast.Expression, name string, n int64) ast.Expression {
	switch ex := x.(type) {
	case *ast.Identifier:
		if ex.Name == name {
			return &ast.IntegerLiteral{Base: ex.Base, Value: n}
		}
		return ex
	case *ast.BinaryExpr:
		return &ast.BinaryExpr{Base: ex.Base, Op: ex.Op, Left: substExpr(ex.Left, name, n), Right: substExpr(ex.Right, name, n)}
	case *ast.UnaryExpr:
		return &ast.UnaryExpr{Base: ex.Base, Op: ex.Op, Operand: substExpr(ex.Operand, name, n)}
	case *ast.AssignExpr:
		return &ast.AssignExpr{Base: ex.Base, Op: ex.Op, Target: substExpr(ex.Target, name, n), Value: substExpr(ex.Value, name, n)}
	case *ast.CallExpr:
		args := make([]ast.Arg, len(ex.Args))
		for i, a := range ex.Args {
			args[i] = ast.Arg{Name: a.Name, Value: substExpr(a.Value, name, n)}
		}
		return &ast.CallExpr{Base: ex.Base, Callee: ex.Callee, Args: args, TypeArg: ex.TypeArg}
	case *ast.IndexExpr:
		return &ast.IndexExpr{Base: ex.Base, Receiver: substExpr(ex.Receiver, name, n), Index: substExpr(ex.Index, name, n)}
	default:
		return x
	}
}

// extractInvariants implements spec §4.5.6 LICM: compute modifiedVars over
// the loop body; leading statements whose reads are disjoint from
// modifiedVars (and are side-effect-free) are removed from body and
// returned so the caller can splice them in before the loop.
func (p *LoopOptPass) extractInvariants(body *ast.Block, inductionVar string) []ast.Statement {
	modified := modifiedVars(body)
	if inductionVar != "" {
		modified[inductionVar] = true
	}
	var invariant []ast.Statement
	i := 0
	for i < len(body.Stmts) && isLoopInvariant(body.Stmts[i], modified) {
		invariant = append(invariant, body.Stmts[i])
		p.count++
		i++
	}
	body.Stmts = body.Stmts[i:]
	return invariant
}

// isLoopInvariant reports whether s's reads are disjoint from modified and
// s has no side effect that must stay inside the loop (calls are
// conservatively treated as loop-dependent).
func isLoopInvariant(s ast.Statement, modified map[string]bool) bool {
	vd, ok := s.(*ast.VarDecl)
	if !ok || vd.Init == nil {
		return false
	}
	if containsCall(vd.Init) {
		return false
	}
	reads := map[string]bool{}
	freeReads(vd.Init, reads)
	for name := range reads {
		if modified[name] {
			return false
		}
	}
	return true
}

func containsCall(x ast.Expression) bool {
	switch ex := x.(type) {
	case *ast.CallExpr, *ast.MethodCallExpr:
		return true
	case *ast.BinaryExpr:
		return containsCall(ex.Left) || containsCall(ex.Right)
	case *ast.UnaryExpr:
		return containsCall(ex.Operand)
	}
	return false
}
