package optimizer

import "github.com/tyl-lang/tyl/internal/ast"

// accumulatorPass implements spec §4.5.2's accumulator-recognition
// pre-pass: `mut x = N; x = x op K; ...; x = x op K;` with op in {+,-,*}
// and no read of x between the declaration and the last such assignment
// collapses to `mut x = foldedN`, dropping the intermediate assignments.
// This is the pass that collapses unrolled counting loops into a single
// constant (spec §8 property 4, scenario S3).
func accumulatorPass(b *ast.Block) int {
	removed := 0
	i := 0
	for i < len(b.Stmts) {
		decl, ok := b.Stmts[i].(*ast.VarDecl)
		if !ok || decl.Kind != ast.VarMut {
			i++
			continue
		}
		initVal, ok := literalValue(decl.Init)
		if !ok {
			i++
			continue
		}
		j := i + 1
		acc := initVal
		lastMatch := i
		for j < len(b.Stmts) {
			delta, op, matches := accumulatorStep(b.Stmts[j], decl.Name)
			if !matches {
				break
			}
			k, ok := literalValue(delta)
			if !ok {
				break
			}
			folded, ok := foldAccumulator(op, acc, k)
			if !ok {
				break
			}
			acc = folded
			lastMatch = j
			j++
		}
		if lastMatch > i {
			decl.Init = createLiteral(acc, ast.Base{Loc: decl.Init.Location()})
			for k := i + 1; k <= lastMatch; k++ {
				b.Stmts[k] = nil
			}
			removed += lastMatch - i
		}
		i = lastMatch + 1
	}
	if removed > 0 {
		compact := b.Stmts[:0]
		for _, s := range b.Stmts {
			if s != nil {
				compact = append(compact, s)
			}
		}
		b.Stmts = compact
	}
	return removed
}

// accumulatorStep recognises `x = x op K`, `x op= K`, or `x = K op x` (for
// commutative +/*) and returns the delta expression and operator.
func accumulatorStep(s ast.Statement, name string) (delta ast.Expression, op string, ok bool) {
	es, isExpr := s.(*ast.ExprStmt)
	if !isExpr {
		return nil, "", false
	}
	assign, isAssign := es.X.(*ast.AssignExpr)
	if !isAssign {
		return nil, "", false
	}
	ident, isIdent := assign.Target.(*ast.Identifier)
	if !isIdent || ident.Name != name {
		return nil, "", false
	}

	switch assign.Op {
	case "+=":
		return assign.Value, "+", true
	case "-=":
		return assign.Value, "-", true
	case "*=":
		return assign.Value, "*", true
	case "=":
		bin, isBin := assign.Value.(*ast.BinaryExpr)
		if !isBin {
			return nil, "", false
		}
		leftIdent, leftIsTarget := bin.Left.(*ast.Identifier)
		rightIdent, rightIsTarget := bin.Right.(*ast.Identifier)
		switch bin.Op {
		case "+", "*":
			if leftIsTarget && leftIdent.Name == name {
				return bin.Right, bin.Op, true
			}
			if rightIsTarget && rightIdent.Name == name {
				return bin.Left, bin.Op, true
			}
		case "-":
			if leftIsTarget && leftIdent.Name == name {
				return bin.Right, bin.Op, true
			}
		}
	}
	return nil, "", false
}

func foldAccumulator(op string, acc, k ast.Value) (ast.Value, bool) {
	if acc.Kind != ast.ValInt || k.Kind != ast.ValInt {
		return ast.Value{}, false
	}
	switch op {
	case "+":
		return ast.IntValue(acc.Int + k.Int), true
	case "-":
		return ast.IntValue(acc.Int - k.Int), true
	case "*":
		return ast.IntValue(acc.Int * k.Int), true
	}
	return ast.Value{}, false
}
