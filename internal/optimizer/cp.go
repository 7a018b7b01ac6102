package optimizer

import "github.com/tyl-lang/tyl/internal/ast"

// ConstPropPass implements spec §4.5.2: constant propagation of immutables
// only (a mutable declaration never enters knownValues, even when it is
// assigned just once), preceded by the accumulator-recognition pre-pass and followed by the dead-store
// elimination tail pass, both operating on flat statement lists.
type ConstPropPass struct{ count int }

func (p *ConstPropPass) Name() string { return "const-propagation" }

func (p *ConstPropPass) Run(prog *ast.Program) int {
	p.count = 0
	for _, d := range prog.Decls {
		p.stmt(d)
	}
	return p.count
}

func (p *ConstPropPass) stmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.Block:
		p.count += accumulatorPass(st)
		p.propagateBlock(st)
		p.count += deadStoreElim(st)
		for _, inner := range st.Stmts {
			p.stmt(inner)
		}
	case *ast.FuncDecl:
		if st.Body != nil {
			p.stmt(st.Body)
		}
	case *ast.IfStmt:
		p.stmt(st.Then)
		if st.Else != nil {
			p.stmt(st.Else)
		}
	case *ast.WhileStmt:
		p.stmt(st.Body)
	case *ast.ForStmt:
		p.stmt(st.Body)
	case *ast.LoopStmt:
		p.stmt(st.Body)
	case *ast.MatchStmt:
		for i := range st.Arms {
			p.stmt(st.Arms[i].Body)
		}
	}
}

// propagateBlock maintains knownValues (name -> constant) over a flat
// statement list: an immutable `let`/`const` decl whose initialiser is
// constant is propagated into later reads; any assignment to a mutable
// invalidates its entry.
func (p *ConstPropPass) propagateBlock(b *ast.Block) {
	known := map[string]ast.Value{}
	for i, s := range b.Stmts {
		switch st := s.(type) {
		case *ast.VarDecl:
			if st.Init != nil {
				st.Init = p.substitute(st.Init, known)
			}
			if v, ok := literalValue(st.Init); ok && st.Kind != ast.VarMut {
				known[st.Name] = v
			} else {
				delete(known, st.Name)
			}
		case *ast.ExprStmt:
			if assign, ok := st.X.(*ast.AssignExpr); ok {
				assign.Value = p.substitute(assign.Value, known)
				if ident, ok := assign.Target.(*ast.Identifier); ok {
					delete(known, ident.Name)
				}
			} else {
				st.X = p.substitute(st.X, known)
			}
		case *ast.ReturnStmt:
			if st.Value != nil {
				st.Value = p.substitute(st.Value, known)
			}
		case *ast.IfStmt:
			st.Cond = p.substitute(st.Cond, known)
		case *ast.WhileStmt:
			st.Cond = p.substitute(st.Cond, known)
			clearMutated(st.Body, known)
		case *ast.ForStmt:
			st.Iter = p.substitute(st.Iter, known)
			clearMutated(st.Body, known)
		}
		b.Stmts[i] = s
	}
}

// substitute replaces identifier reads with their known constant value.
func (p *ConstPropPass) substitute(x ast.Expression, known map[string]ast.Value) ast.Expression {
	switch ex := x.(type) {
	case *ast.Identifier:
		if v, ok := known[ex.Name]; ok {
			p.count++
			return createLiteral(v, ex.Base)
		}
		return ex
	case *ast.BinaryExpr:
		ex.Left = p.substitute(ex.Left, known)
		ex.Right = p.substitute(ex.Right, known)
		return ex
	case *ast.UnaryExpr:
		ex.Operand = p.substitute(ex.Operand, known)
		return ex
	case *ast.TernaryExpr:
		ex.Cond = p.substitute(ex.Cond, known)
		ex.Then = p.substitute(ex.Then, known)
		ex.Else = p.substitute(ex.Else, known)
		return ex
	case *ast.CallExpr:
		for i := range ex.Args {
			ex.Args[i].Value = p.substitute(ex.Args[i].Value, known)
		}
		return ex
	case *ast.IndexExpr:
		ex.Receiver = p.substitute(ex.Receiver, known)
		ex.Index = p.substitute(ex.Index, known)
		return ex
	default:
		return x
	}
}

// clearMutated invalidates knownValues entries for every name assigned
// anywhere inside body, conservatively handling loops whose bodies may run
// zero or many times.
func clearMutated(body *ast.Block, known map[string]ast.Value) {
	for name := range modifiedVars(body) {
		delete(known, name)
	}
}

// modifiedVars collects every variable name assigned anywhere within a
// block, used both by constant propagation's loop guard and by LICM
// (spec §4.5.6).
func modifiedVars(b *ast.Block) map[string]bool {
	out := map[string]bool{}
	var walkStmt func(ast.Statement)
	walkStmt = func(s ast.Statement) {
		switch st := s.(type) {
		case *ast.Block:
			for _, inner := range st.Stmts {
				walkStmt(inner)
			}
		case *ast.ExprStmt:
			if assign, ok := st.X.(*ast.AssignExpr); ok {
				if ident, ok := assign.Target.(*ast.Identifier); ok {
					out[ident.Name] = true
				}
			}
		case *ast.VarDecl:
			out[st.Name] = true
		case *ast.IfStmt:
			walkStmt(st.Then)
			if st.Else != nil {
				walkStmt(st.Else)
			}
		case *ast.WhileStmt:
			walkStmt(st.Body)
		case *ast.ForStmt:
			out[st.VarName] = true
			walkStmt(st.Body)
		case *ast.LoopStmt:
			walkStmt(st.Body)
		}
	}
	walkStmt(b)
	return out
}

// freeReads collects every identifier *read* by an expression (not counting
// assignment targets), used by dead-store elimination and LICM.
func freeReads(x ast.Expression, out map[string]bool) {
	switch ex := x.(type) {
	case *ast.Identifier:
		out[ex.Name] = true
	case *ast.BinaryExpr:
		freeReads(ex.Left, out)
		freeReads(ex.Right, out)
	case *ast.UnaryExpr:
		freeReads(ex.Operand, out)
	case *ast.TernaryExpr:
		freeReads(ex.Cond, out)
		freeReads(ex.Then, out)
		freeReads(ex.Else, out)
	case *ast.CallExpr:
		freeReads(ex.Callee, out)
		for _, a := range ex.Args {
			freeReads(a.Value, out)
		}
	case *ast.MethodCallExpr:
		freeReads(ex.Receiver, out)
		for _, a := range ex.Args {
			freeReads(a.Value, out)
		}
	case *ast.IndexExpr:
		freeReads(ex.Receiver, out)
		freeReads(ex.Index, out)
	case *ast.MemberExpr:
		freeReads(ex.Receiver, out)
	case *ast.ListExpr:
		for _, el := range ex.Elements {
			freeReads(el, out)
		}
	}
}

// stmtReads collects every identifier read by statement s's own
// expressions (not recursing into nested blocks) — used by dead-store
// elimination's backward scan.
func stmtReads(s ast.Statement) map[string]bool {
	out := map[string]bool{}
	switch st := s.(type) {
	case *ast.ExprStmt:
		if assign, ok := st.X.(*ast.AssignExpr); ok {
			freeReads(assign.Value, out)
			if assign.Op != "=" {
				// compound assignment reads its own target too (spec §4.5.2).
				freeReads(assign.Target, out)
			}
		} else {
			freeReads(st.X, out)
		}
	case *ast.VarDecl:
		if st.Init != nil {
			freeReads(st.Init, out)
		}
	case *ast.ReturnStmt:
		if st.Value != nil {
			freeReads(st.Value, out)
		}
	case *ast.IfStmt:
		freeReads(st.Cond, out)
	case *ast.WhileStmt:
		freeReads(st.Cond, out)
		for name := range modifiedVars(st.Body) {
			out[name] = true // conservative: loop may read before writing
		}
	case *ast.ForStmt:
		freeReads(st.Iter, out)
	}
	return out
}

func assignTarget(s ast.Statement) (string, bool) {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return "", false
	}
	assign, ok := es.X.(*ast.AssignExpr)
	if !ok {
		return "", false
	}
	ident, ok := assign.Target.(*ast.Identifier)
	if !ok {
		return "", false
	}
	return ident.Name, true
}

// deadStoreElim implements spec §4.5.2's tail pass: scan backward tracking
// "was read since last write"; an assignment whose target is not read
// before the next assignment to it is removed. A side-effect-free,
// immutable declaration whose value was already propagated into every read
// (so its own name is never read again) is dropped entirely — this is what
// keeps a folded `const` from ever reaching codegen as a runtime variable
// (spec §8 scenario S2).
func deadStoreElim(b *ast.Block) int {
	readSinceWrite := map[string]bool{}
	writtenLater := map[string]bool{}
	keep := make([]bool, len(b.Stmts))
	for i := len(b.Stmts) - 1; i >= 0; i-- {
		s := b.Stmts[i]
		keep[i] = true
		if name, ok := assignTarget(s); ok {
			if writtenLater[name] && !readSinceWrite[name] {
				keep[i] = false
			} else {
				readSinceWrite[name] = false
			}
			writtenLater[name] = true
		} else if decl, ok := s.(*ast.VarDecl); ok && decl.Kind != ast.VarMut {
			if !readSinceWrite[decl.Name] && (decl.Init == nil || isCoseable(decl.Init)) {
				keep[i] = false
			}
		}
		for name := range stmtReads(s) {
			readSinceWrite[name] = true
		}
	}
	removed := 0
	out := b.Stmts[:0]
	for i, s := range b.Stmts {
		if keep[i] {
			out = append(out, s)
		} else {
			removed++
		}
	}
	b.Stmts = out
	return removed
}
