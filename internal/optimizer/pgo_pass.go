package optimizer

import (
	"github.com/tyl-lang/tyl/internal/ast"
	"github.com/tyl-lang/tyl/internal/pgo"
)

// PGOPass reorders an `if` whose else is a plain block so the branch a
// profiling run found more probable comes first (spec §4.5.10, Ofast only);
// an `elif` chain keeps its order. The pass does not mark functions hot or
// cold, and neither InlinePass nor LoopOptPass consults
// Profile.InlineThresholdScale / UnrollThresholdScale. A nil Profile makes
// this a no-op so the pass is always safe to wire into the table.
type PGOPass struct {
	Profile *pgo.Profile
	fn      string
	count   int
}

func (p *PGOPass) Name() string { return "pgo" }

func (p *PGOPass) Run(prog *ast.Program) int {
	if p.Profile == nil {
		return 0
	}
	p.count = 0
	for _, d := range prog.Decls {
		if fn, ok := d.(*ast.FuncDecl); ok && fn.Body != nil {
			p.fn = fn.Name
			p.block(fn.Body)
		}
	}
	return p.count
}

func (p *PGOPass) block(b *ast.Block) {
	for _, s := range b.Stmts {
		p.stmt(s)
	}
}

func (p *PGOPass) stmt(s ast.Statement) {
	switch st := s.(type) {
	case *ast.IfStmt:
		p.reorderIf(st)
		p.block(st.Then)
		if st.Else != nil {
			p.stmt(st.Else)
		}
	case *ast.WhileStmt:
		p.block(st.Body)
	case *ast.ForStmt:
		p.block(st.Body)
	case *ast.LoopStmt:
		p.block(st.Body)
	case *ast.Block:
		p.block(st)
	}
}

// reorderIf swaps an if/else pair when the profile recorded the else arm
// taken more often: `if c { A } else { B }` where B is hot becomes
// `if !c { B } else { A }`, keeping behaviour identical while putting the
// likelier path first for the branch predictor / cheaper fallthrough.
func (p *PGOPass) reorderIf(st *ast.IfStmt) {
	elseBlock, ok := st.Else.(*ast.Block)
	if !ok || elseBlock == nil {
		return
	}
	line := st.Location().Line
	takenMoreOften, confident := p.Profile.BranchBias(p.fn, line)
	if !confident || takenMoreOften {
		return // condition already the likelier arm, or no usable sample
	}
	st.Then, st.Else = elseBlock, st.Then
	st.Unless = !st.Unless
	p.count++
}
