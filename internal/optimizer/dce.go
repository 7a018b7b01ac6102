package optimizer

import "github.com/tyl-lang/tyl/internal/ast"

// DCEPass removes statements that can never execute: anything following an
// unconditional return/break/continue in the same block, and empty blocks
// produced by earlier passes (spec §2's "DCE" row, §4.5 table).
type DCEPass struct{ count int }

func (p *DCEPass) Name() string { return "dce" }

func (p *DCEPass) Run(prog *ast.Program) int {
	p.count = 0
	for _, d := range prog.Decls {
		p.stmt(d)
	}
	return p.count
}

func (p *DCEPass) stmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.Block:
		p.trimUnreachable(st)
		kept := st.Stmts[:0]
		for _, inner := range st.Stmts {
			if blk, ok := inner.(*ast.Block); ok && len(blk.Stmts) == 0 {
				p.count++
				continue
			}
			kept = append(kept, inner)
		}
		st.Stmts = kept
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

func (p *DCEPass) trimUnreachable(b *ast.Block) {
	for i, s := range b.Stmts {
		if isTerminator(s) && i < len(b.Stmts)-1 {
			p.count += len(b.Stmts) - i - 1
			b.Stmts = b.Stmts[:i+1]
			return
		}
	}
}

func isTerminator(s ast.Statement) bool {
	switch s.(type) {
	case *ast.ReturnStmt, *ast.BreakStmt, *ast.ContinueStmt:
		return true
	}
	return false
}
