// Package ssa implements Braun et al.'s "Simple and Efficient Construction
// of Static Single Assignment Form" directly over a function's basic-block
// graph (spec §4.5.9, O3+): writeVariable/readVariable track the current
// definition of each source name per block; a block not yet sealed (not
// all predecessors known) gets an incomplete phi that is filled in once
// sealed; trivially-redundant phis (all operands identical, or
// self-referential) are removed and replaced by their single real operand.
//
// Results never round-trip back into the AST — SSA here exists purely to
// verify a function is well-formed under the optimizer's prior rewrites and
// to run a local DCE/copy-propagation/CSE pass over the IR as a
// correctness cross-check (spec §4.5.9's closing sentence).
package ssa

import "github.com/tyl-lang/tyl/internal/ast"

type ValueID int

const undef ValueID = -1

// Value is a single SSA value: a constant, a read of a function parameter,
// a binary/unary operation over earlier values, an (opaque) call result,
// a ternary "select", or a phi merging values from a block's predecessors.
type Value struct {
	ID    ValueID
	Op    string // "const", "param", "binop", "unop", "phi", "call", "select", "undef"
	Const ast.Value
	Sym   string // binop/unop operator, or the called function's name
	Args  []ValueID
	Block *Block
	// removed marks a value (typically a phi) as replaced by another
	// value; ReadVariable/users never observe it directly since every
	// reference is rewritten at removal time, but Build keeps the slot
	// so ValueID indices stay stable.
	removed bool
}

// Block is a basic block in the function's control-flow graph.
type Block struct {
	ID             int
	Preds          []*Block
	Sealed         bool
	Instrs         []ValueID // values, in definition order, live in this block
	defs           map[string]ValueID
	incompletePhis map[string]ValueID

	// Term describes how control leaves this block.
	Term Terminator
}

// Terminator is a basic block's exit: an unconditional jump, a two-way
// branch, or a function return.
type Terminator struct {
	Kind   string // "jump", "branch", "return", "" (not yet terminated)
	Target *Block
	Then   *Block
	Else   *Block
	Cond   ValueID
	Ret    ValueID
	HasRet bool
}

// Function is a built SSA function: its block graph plus the value table.
type Function struct {
	Name    string
	Entry   *Block
	Blocks  []*Block
	values  map[ValueID]*Value
	nextID  ValueID
	nextBID int
}

func newFunction(name string) *Function {
	return &Function{Name: name, values: map[ValueID]*Value{}}
}

func (f *Function) NewBlock() *Block {
	b := &Block{ID: f.nextBID, defs: map[string]ValueID{}, incompletePhis: map[string]ValueID{}}
	f.nextBID++
	f.Blocks = append(f.Blocks, b)
	return b
}

func (f *Function) addValue(v *Value) ValueID {
	v.ID = f.nextID
	f.nextID++
	f.values[v.ID] = v
	if v.Block != nil {
		v.Block.Instrs = append(v.Block.Instrs, v.ID)
	}
	return v.ID
}

func (f *Function) Value(id ValueID) *Value { return f.values[id] }

func (f *Function) NewConst(b *Block, c ast.Value) ValueID {
	return f.addValue(&Value{Op: "const", Const: c, Block: b})
}

func (f *Function) NewParam(b *Block, name string) ValueID {
	return f.addValue(&Value{Op: "param", Sym: name, Block: b})
}

func (f *Function) NewBinOp(b *Block, op string, x, y ValueID) ValueID {
	return f.addValue(&Value{Op: "binop", Sym: op, Args: []ValueID{x, y}, Block: b})
}

func (f *Function) NewUnOp(b *Block, op string, x ValueID) ValueID {
	return f.addValue(&Value{Op: "unop", Sym: op, Args: []ValueID{x}, Block: b})
}

func (f *Function) NewCall(b *Block, callee string, args []ValueID) ValueID {
	return f.addValue(&Value{Op: "call", Sym: callee, Args: args, Block: b})
}

func (f *Function) newPhi(b *Block) ValueID {
	return f.addValue(&Value{Op: "phi", Block: b})
}

func (f *Function) newUndef() ValueID {
	return f.addValue(&Value{Op: "undef"})
}

// WriteVariable records name's current value in block (Braun et al. §2.1).
func (f *Function) WriteVariable(name string, block *Block, value ValueID) {
	block.defs[name] = value
}

// ReadVariable looks up name's current value in block, recursing through
// predecessors (inserting a phi) if block has no local definition (Braun
// et al. §2.2).
func (f *Function) ReadVariable(name string, block *Block) ValueID {
	if v, ok := block.defs[name]; ok {
		return v
	}
	return f.readVariableRecursive(name, block)
}

func (f *Function) readVariableRecursive(name string, block *Block) ValueID {
	var val ValueID
	switch {
	case !block.Sealed:
		val = f.newPhi(block)
		block.incompletePhis[name] = val
	case len(block.Preds) == 1:
		val = f.ReadVariable(name, block.Preds[0])
	default:
		val = f.newPhi(block)
		f.WriteVariable(name, block, val) // break potential read cycles
		val = f.addPhiOperands(name, val, block)
	}
	f.WriteVariable(name, block, val)
	return val
}

// SealBlock marks block as having all its predecessors known, resolving
// any phi that was left incomplete while a predecessor was still missing
// (Braun et al. §2.3).
func (f *Function) SealBlock(block *Block) {
	for name, phi := range block.incompletePhis {
		f.addPhiOperands(name, phi, block)
	}
	block.incompletePhis = map[string]ValueID{}
	block.Sealed = true
}

func (f *Function) addPhiOperands(name string, phi ValueID, block *Block) ValueID {
	v := f.values[phi]
	for _, pred := range block.Preds {
		v.Args = append(v.Args, f.ReadVariable(name, pred))
	}
	return f.tryRemoveTrivialPhi(phi)
}

// tryRemoveTrivialPhi implements Braun et al. §3.2: a phi whose operands
// are all the same value (ignoring self-references) is redundant; it is
// replaced everywhere by that single value, and any phi user that
// referenced it is then itself re-checked for triviality.
func (f *Function) tryRemoveTrivialPhi(phi ValueID) ValueID {
	v := f.values[phi]
	same := undef
	for _, op := range v.Args {
		if op == same || op == phi {
			continue
		}
		if same != undef {
			return phi // more than one distinct operand: genuinely needed
		}
		same = op
	}
	if same == undef {
		same = f.newUndef() // unreachable: phi with no (or only self) operands
	}
	users := f.usersOf(phi)
	f.replaceAllUses(phi, same)
	v.removed = true
	for _, u := range users {
		if f.values[u].Op == "phi" {
			f.tryRemoveTrivialPhi(u)
		}
	}
	return same
}

func (f *Function) usersOf(id ValueID) []ValueID {
	var out []ValueID
	for vid, v := range f.values {
		if v.removed {
			continue
		}
		for _, a := range v.Args {
			if a == id {
				out = append(out, vid)
				break
			}
		}
	}
	return out
}

func (f *Function) replaceAllUses(old, with ValueID) {
	for _, v := range f.values {
		for i, a := range v.Args {
			if a == old {
				v.Args[i] = with
			}
		}
	}
	for _, b := range f.Blocks {
		if b.Term.Kind == "branch" && b.Term.Cond == old {
			b.Term.Cond = with
		}
		if b.Term.Kind == "return" && b.Term.Ret == old {
			b.Term.Ret = with
		}
	}
}
