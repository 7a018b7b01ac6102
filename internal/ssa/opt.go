package ssa

import (
	"fmt"

	"github.com/tyl-lang/tyl/internal/ast"
)

// Optimize runs a local DCE, copy-propagation and CSE pass over f's values
// (spec §4.5.9's closing sentence). It does not touch control flow — only
// the value graph and each block's Instrs list — since SSA results here are
// a correctness cross-check, never re-lowered to AST.
func Optimize(f *Function) {
	copyPropagate(f)
	cse(f)
	deadCodeEliminate(f)
}

// copyPropagate replaces every value that is a pass-through (a phi with a
// single live operand that escaped tryRemoveTrivialPhi's first pass, or a
// unary "+"/identity op) with the value it merely forwards.
func copyPropagate(f *Function) {
	changed := true
	for changed {
		changed = false
		for id, v := range f.values {
			if v.removed {
				continue
			}
			if v.Op == "phi" {
				if same, ok := singleDistinctOperand(id, v.Args); ok {
					f.replaceAllUses(id, same)
					v.removed = true
					changed = true
				}
			} else if v.Op == "unop" && v.Sym == "+" {
				f.replaceAllUses(id, v.Args[0])
				v.removed = true
				changed = true
			}
		}
	}
}

func singleDistinctOperand(self ValueID, args []ValueID) (ValueID, bool) {
	same := undef
	for _, a := range args {
		if a == self || a == same {
			continue
		}
		if same != undef {
			return 0, false
		}
		same = a
	}
	if same == undef {
		return 0, false
	}
	return same, true
}

// cse dedupes structurally identical const/binop/unop values within each
// block — the same local, structural-hash strategy as the AST-level pass in
// internal/optimizer/cse.go, applied here to the post-SSA value graph as its
// own pass per SPEC_FULL.md's CSE-vs-GVN split.
func cse(f *Function) {
	for _, b := range f.Blocks {
		seen := map[string]ValueID{}
		for _, id := range b.Instrs {
			v := f.values[id]
			if v.removed {
				continue
			}
			key, ok := valueKey(f, v)
			if !ok {
				continue
			}
			if existing, ok := seen[key]; ok {
				f.replaceAllUses(id, existing)
				v.removed = true
				continue
			}
			seen[key] = id
		}
	}
}

func valueKey(f *Function, v *Value) (string, bool) {
	switch v.Op {
	case "const":
		return "const:" + constKey(v.Const), true
	case "param":
		return "param:" + v.Sym, true
	case "unop":
		return "unop:" + v.Sym + ":" + argKey(v.Args[0]), true
	case "binop":
		a, b := argKey(v.Args[0]), argKey(v.Args[1])
		if commutativeOp(v.Sym) && a > b {
			a, b = b, a
		}
		return "binop:" + v.Sym + ":" + a + ":" + b, true
	default:
		return "", false
	}
}

func constKey(c ast.Value) string {
	switch c.Kind {
	case ast.ValBool:
		return fmt.Sprintf("b:%v", c.Bool)
	case ast.ValInt:
		return fmt.Sprintf("i:%d", c.Int)
	case ast.ValFloat:
		return fmt.Sprintf("f:%v", c.Float)
	case ast.ValString:
		return "s:" + c.Str
	default:
		return "nil"
	}
}

func argKey(id ValueID) string {
	return fmt.Sprintf("v%d", id)
}

func commutativeOp(op string) bool {
	switch op {
	case "+", "*", "&", "|", "^", "==", "!=":
		return true
	}
	return false
}

// deadCodeEliminate drops values with no remaining users and no observable
// effect (anything other than a call, which may have side effects).
func deadCodeEliminate(f *Function) {
	changed := true
	for changed {
		changed = false
		for _, b := range f.Blocks {
			kept := b.Instrs[:0]
			for _, id := range b.Instrs {
				v := f.values[id]
				if v.removed {
					continue
				}
				if v.Op != "call" && len(f.usersOf(id)) == 0 && !isLiveOut(f, id) {
					v.removed = true
					changed = true
					continue
				}
				kept = append(kept, id)
			}
			b.Instrs = kept
		}
	}
}

func isLiveOut(f *Function, id ValueID) bool {
	for _, b := range f.Blocks {
		if b.Term.Kind == "return" && b.Term.HasRet && b.Term.Ret == id {
			return true
		}
		if b.Term.Kind == "branch" && b.Term.Cond == id {
			return true
		}
	}
	return false
}
