package codegen

// rex builds a REX prefix byte: W sets 64-bit operand size, R extends the
// ModRM reg field, X extends SIB index, B extends ModRM rm / opcode reg.
func rex(w, r, x, b bool) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r {
		v |= 0x04
	}
	if x {
		v |= 0x02
	}
	if b {
		v |= 0x01
	}
	return v
}

func modrm(mod, reg, rm byte) byte { return mod<<6 | (reg&7)<<3 | rm&7 }

// MovRegImm64 emits `mov reg, imm64` (REX.W + B8+reg + imm64).
func (buf *CodeBuffer) MovRegImm64(dst Reg, imm uint64) {
	buf.Emit(rex(true, false, false, dst.needsREX()), 0xB8+dst.low3())
	buf.EmitU64(imm)
	buf.note("mov %s, %d", dst, imm)
}

// MovRegImm32 emits a sign-extended `mov reg, imm32` (REX.W + C7 /0 + imm32)
// for the common case of a small integer literal.
func (buf *CodeBuffer) MovRegImm32(dst Reg, imm int32) {
	buf.Emit(rex(true, false, false, dst.needsREX()), 0xC7, modrm(3, 0, dst.low3()))
	buf.EmitU32(uint32(imm))
	buf.note("mov %s, %d", dst, imm)
}

// MovRegReg emits `mov dst, src` (REX.W + 89 /r).
func (buf *CodeBuffer) MovRegReg(dst, src Reg) {
	buf.Emit(rex(true, src.needsREX(), false, dst.needsREX()), 0x89, modrm(3, src.low3(), dst.low3()))
	buf.note("mov %s, %s", dst, src)
}

// binop emits a REX.W two-register ALU instruction (add/sub/and/or/xor/cmp)
// using the opcode byte for the register-to-register "op r/m, r" form.
func (buf *CodeBuffer) binop(opcode byte, dst, src Reg) {
	buf.Emit(rex(true, src.needsREX(), false, dst.needsREX()), opcode, modrm(3, src.low3(), dst.low3()))
}

func (buf *CodeBuffer) AddRegReg(dst, src Reg) { buf.binop(0x01, dst, src); buf.note("add %s, %s", dst, src) }
func (buf *CodeBuffer) SubRegReg(dst, src Reg) { buf.binop(0x29, dst, src); buf.note("sub %s, %s", dst, src) }
func (buf *CodeBuffer) AndRegReg(dst, src Reg) { buf.binop(0x21, dst, src); buf.note("and %s, %s", dst, src) }
func (buf *CodeBuffer) OrRegReg(dst, src Reg)  { buf.binop(0x09, dst, src); buf.note("or %s, %s", dst, src) }
func (buf *CodeBuffer) XorRegReg(dst, src Reg) { buf.binop(0x31, dst, src); buf.note("xor %s, %s", dst, src) }
func (buf *CodeBuffer) CmpRegReg(dst, src Reg) { buf.binop(0x39, dst, src); buf.note("cmp %s, %s", dst, src) }

// IMulRegReg emits `imul dst, src` (REX.W + 0F AF /r): dst *= src.
func (buf *CodeBuffer) IMulRegReg(dst, src Reg) {
	buf.Emit(rex(true, dst.needsREX(), false, src.needsREX()), 0x0F, 0xAF, modrm(3, dst.low3(), src.low3()))
	buf.note("imul %s, %s", dst, src)
}

// Cqo emits `cqo`, sign-extending RAX into RDX:RAX ahead of idiv.
func (buf *CodeBuffer) Cqo() { buf.Emit(rex(true, false, false, false), 0x99); buf.note("cqo") }

// IDivReg emits `idiv reg` (REX.W + F7 /7): RDX:RAX /= reg, quotient in RAX,
// remainder in RDX.
func (buf *CodeBuffer) IDivReg(reg Reg) {
	buf.Emit(rex(true, false, false, reg.needsREX()), 0xF7, modrm(3, 7, reg.low3()))
	buf.note("idiv %s", reg)
}

// ShlRegCl emits `shl dst, cl` (REX.W + D3 /4): dst <<= CL.
func (buf *CodeBuffer) ShlRegCl(dst Reg) {
	buf.Emit(rex(true, false, false, dst.needsREX()), 0xD3, modrm(3, 4, dst.low3()))
	buf.note("shl %s, cl", dst)
}

// SarRegCl emits `sar dst, cl` (REX.W + D3 /7): dst >>= CL, arithmetic
// (sign-extending) shift.
func (buf *CodeBuffer) SarRegCl(dst Reg) {
	buf.Emit(rex(true, false, false, dst.needsREX()), 0xD3, modrm(3, 7, dst.low3()))
	buf.note("sar %s, cl", dst)
}

// IMulRegImm32 emits the three-operand `imul dst, dst, imm32` (REX.W + 69 /r
// id), used for index-scaling a fixed-array element offset by a non-literal
// index (spec §8 property 9).
func (buf *CodeBuffer) IMulRegImm32(dst Reg, imm int32) {
	buf.Emit(rex(true, dst.needsREX(), false, dst.needsREX()), 0x69, modrm(3, dst.low3(), dst.low3()))
	buf.EmitU32(uint32(imm))
	buf.note("imul %s, %s, %d", dst, dst, imm)
}

// MovMemDisp8 emits `mov [base+disp8], src` (REX.W + 89 /r), storing src to
// an arbitrary base register plus an 8-bit displacement — the general form
// of the RBP-relative local store, also used to write a heap-allocated
// fixed array's elements (spec §4.6.1).
func (buf *CodeBuffer) MovMemDisp8(base Reg, disp int8, src Reg) {
	buf.Emit(rex(true, src.needsREX(), false, base.needsREX()), 0x89, modrm(1, src.low3(), base.low3()), byte(disp))
	buf.note("mov [%s+%d], %s", base, disp, src)
}

// MovRegMemDisp8 emits `mov dst, [base+disp8]` (REX.W + 8B /r), the inverse
// load.
func (buf *CodeBuffer) MovRegMemDisp8(dst Reg, base Reg, disp int8) {
	buf.Emit(rex(true, dst.needsREX(), false, base.needsREX()), 0x8B, modrm(1, dst.low3(), base.low3()), byte(disp))
	buf.note("mov %s, [%s+%d]", dst, base, disp)
}

func (buf *CodeBuffer) Push(reg Reg) {
	if reg.needsREX() {
		buf.Emit(rex(false, false, false, true))
	}
	buf.Emit(0x50 + reg.low3())
	buf.note("push %s", reg)
}

func (buf *CodeBuffer) Pop(reg Reg) {
	if reg.needsREX() {
		buf.Emit(rex(false, false, false, true))
	}
	buf.Emit(0x58 + reg.low3())
	buf.note("pop %s", reg)
}

// SubRspImm32 emits `sub rsp, imm32`, used to reserve the stack frame.
func (buf *CodeBuffer) SubRspImm32(n int32) {
	buf.Emit(rex(true, false, false, false), 0x81, modrm(3, 5, RSP.low3()))
	buf.EmitU32(uint32(n))
	buf.note("sub rsp, %d", n)
}

// AddRspImm32 is SubRspImm32's inverse, used in the epilogue.
func (buf *CodeBuffer) AddRspImm32(n int32) {
	buf.Emit(rex(true, false, false, false), 0x81, modrm(3, 0, RSP.low3()))
	buf.EmitU32(uint32(n))
	buf.note("add rsp, %d", n)
}

func (buf *CodeBuffer) Ret() { buf.Emit(0xC3); buf.note("ret") }

// CallRel32 emits `call rel32` against an as-yet-unresolved target symbol.
func (buf *CodeBuffer) CallRel32(target string) {
	buf.Emit(0xE8)
	buf.RelocateRIP(target, 0)
	buf.note("call %s", target)
}

// JmpRel32 emits an unconditional near jump to target.
func (buf *CodeBuffer) JmpRel32(target string) {
	buf.Emit(0xE9)
	buf.RelocateRIP(target, 0)
	buf.note("jmp %s", target)
}

// condCode is the low nibble of a Jcc/SETcc opcode for a comparison
// operator, per the Intel conditional-jump encoding.
func condCode(op string) byte {
	switch op {
	case "==":
		return 0x4 // JE/JZ
	case "!=":
		return 0x5 // JNE/JNZ
	case "<":
		return 0xC // JL
	case "<=":
		return 0xE // JLE
	case ">":
		return 0xF // JG
	case ">=":
		return 0xD // JGE
	}
	return 0x4
}

// JccRel32 emits a conditional near jump (0F 8x) for comparison op.
func (buf *CodeBuffer) JccRel32(op string, target string) {
	buf.Emit(0x0F, 0x80|condCode(op))
	buf.RelocateRIP(target, 0)
	buf.note("j%s %s", jccMnemonicSuffix(op), target)
}

func jccMnemonicSuffix(op string) string {
	switch op {
	case "==":
		return "e"
	case "!=":
		return "ne"
	case "<":
		return "l"
	case "<=":
		return "le"
	case ">":
		return "g"
	case ">=":
		return "ge"
	}
	return "e"
}

// LeaRipRel emits `lea dst, [rip+disp32]` against target, used to take the
// address of a data-section string or import thunk.
func (buf *CodeBuffer) LeaRipRel(dst Reg, target string) {
	buf.Emit(rex(true, dst.needsREX(), false, false), 0x8D, modrm(0, dst.low3(), 5))
	buf.RelocateRIP(target, 0)
	buf.note("lea %s, [rip+%s]", dst, target)
}

// CallIndirectRip emits `call [rip+disp32]` against an import's IAT slot,
// the shape every kernel32/msvcrt helper call takes (spec §4.6.3).
func (buf *CodeBuffer) CallIndirectRip(target string) {
	buf.Emit(0xFF, modrm(0, 2, 5))
	buf.RelocateRIP(target, 0)
	buf.note("call [rip+%s]", target)
}

// Cvtsi2sd emits `cvtsi2sd xmm, reg` converting an integer register into a
// double in the low 64 bits of an XMM register (spec §4.6.1). xmm is the
// numeric index (0-15); only xmm0-xmm3 are ever targeted by this generator.
func (buf *CodeBuffer) Cvtsi2sd(xmm int, src Reg) {
	buf.Emit(0xF2, rex(true, xmm >= 8, false, src.needsREX()), 0x0F, 0x2A, modrm(3, byte(xmm), src.low3()))
}

// Cvttsd2si emits `cvttsd2si reg, xmm`, the inverse truncating conversion.
func (buf *CodeBuffer) Cvttsd2si(dst Reg, xmm int) {
	buf.Emit(0xF2, rex(true, dst.needsREX(), false, xmm >= 8), 0x0F, 0x2C, modrm(3, dst.low3(), byte(xmm)))
}

// MovsdLoadRip emits `movsd xmm, [rip+disp32]` (F2 0F 10 /r), loading a
// double out of a RIP-relative data label (spec §4.6.1: float literals are
// interned the same way string literals are). xmm is the numeric index
// (0-3; this generator never targets xmm4 and above).
func (buf *CodeBuffer) MovsdLoadRip(xmm int, label string) {
	buf.Emit(0xF2, 0x0F, 0x10, modrm(0, byte(xmm), 5))
	buf.RelocateRIP(label, 0)
	buf.note("movsd xmm%d, [rip+%s]", xmm, label)
}

// MovsdLoadMem emits `movsd xmm, [base+disp8]` (F2 0F 10 /r), loading a
// double out of a stack slot.
func (buf *CodeBuffer) MovsdLoadMem(xmm int, base Reg, disp int8) {
	buf.Emit(0xF2, rex(false, xmm >= 8, false, base.needsREX()), 0x0F, 0x10, modrm(1, byte(xmm), base.low3()), byte(disp))
	buf.note("movsd xmm%d, [%s+%d]", xmm, base, disp)
}

// MovsdStoreMem emits `movsd [base+disp8], xmm` (F2 0F 11 /r), the inverse
// store.
func (buf *CodeBuffer) MovsdStoreMem(base Reg, disp int8, xmm int) {
	buf.Emit(0xF2, rex(false, xmm >= 8, false, base.needsREX()), 0x0F, 0x11, modrm(1, byte(xmm), base.low3()), byte(disp))
	buf.note("movsd [%s+%d], xmm%d", base, disp, xmm)
}

// sseOp emits a scalar-double SSE2 ALU instruction (F2 0F op /r) over two
// XMM registers.
func (buf *CodeBuffer) sseOp(opcode byte, dst, src int) {
	buf.Emit(0xF2, rex(false, dst >= 8, false, src >= 8), 0x0F, opcode, modrm(3, byte(dst), byte(src)))
}

// AddsdRegReg emits `addsd dst, src`: dst += src (scalar double).
func (buf *CodeBuffer) AddsdRegReg(dst, src int) {
	buf.sseOp(0x58, dst, src)
	buf.note("addsd xmm%d, xmm%d", dst, src)
}

// SubsdRegReg emits `subsd dst, src`: dst -= src (scalar double).
func (buf *CodeBuffer) SubsdRegReg(dst, src int) {
	buf.sseOp(0x5C, dst, src)
	buf.note("subsd xmm%d, xmm%d", dst, src)
}

// MulsdRegReg emits `mulsd dst, src`: dst *= src (scalar double).
func (buf *CodeBuffer) MulsdRegReg(dst, src int) {
	buf.sseOp(0x59, dst, src)
	buf.note("mulsd xmm%d, xmm%d", dst, src)
}

// DivsdRegReg emits `divsd dst, src`: dst /= src (scalar double).
func (buf *CodeBuffer) DivsdRegReg(dst, src int) {
	buf.sseOp(0x5E, dst, src)
	buf.note("divsd xmm%d, xmm%d", dst, src)
}

// LockPrefix emits the `lock` prefix byte preceding an atomic RMW
// instruction (spec §4.6.1: every atomic mutation is lock-prefixed).
func (buf *CodeBuffer) LockPrefix() { buf.Emit(0xF0) }

// XaddRegReg emits `lock xadd dst, src` (Arc strong-count bump, spec §4.6.1).
func (buf *CodeBuffer) XaddRegReg(dst, src Reg) {
	buf.LockPrefix()
	buf.Emit(rex(true, src.needsREX(), false, dst.needsREX()), 0x0F, 0xC1, modrm(3, src.low3(), dst.low3()))
}
