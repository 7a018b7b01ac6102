// Package codegen implements the x86-64 Windows native code generator of
// spec §4.6: Microsoft x64 ABI handling, VarDecl classification driving
// register/stack placement, and a growable machine-code buffer with a
// symbol table and relocation list that internal/pe resolves into a PE32+
// executable or COFF object.
//
// This mirrors the "manual buffer of x86-64 bytes + label fix-ups" row of
// spec §9.1's re-architecture table: rather than mutate a shared byte slice
// with ad-hoc offset patches, CodeBuffer records symbols and relocations
// explicitly and a single Resolve pass performs every fix-up.
package codegen

import "fmt"

// RelocKind says how a relocation's 4-byte slot should be patched.
type RelocKind int

const (
	// RelRIPRel32 is RIP-relative: slot = target - (slot address + 4).
	RelRIPRel32 RelocKind = iota
	// RelAbs64 is an absolute 8-byte pointer, used for import-table slots
	// the PE writer itself resolves at link time.
	RelAbs64
)

// Symbol is a named offset into a buffer's byte stream — a function entry,
// a data label, or an import thunk.
type Symbol struct {
	Name   string
	Offset int
	// External symbols (imports) have no Offset in this buffer; the PE/COFF
	// writer resolves them against the import table instead.
	External bool
}

// Reloc is a fix-up site: at byte offset Site in the buffer, patch in the
// address of symbol Target once all offsets are known.
type Reloc struct {
	Site   int
	Target string
	Kind   RelocKind
	// Addend is added to the resolved target address before encoding
	// (e.g. a rel32 relocation's own instruction-length adjustment).
	Addend int
}

// CodeBuffer is a growable byte stream plus its symbol table and pending
// relocations (spec §9.1).
type CodeBuffer struct {
	Bytes   []byte
	Symbols map[string]*Symbol
	Relocs  []Reloc

	// Listing collects one line of assembly text per instruction, only when
	// non-nil (EnableListing). The -s/--asm dump path runs this text through
	// asmfmt the same way the teacher's clang-output post-processing does.
	Listing []string
}

func NewCodeBuffer() *CodeBuffer {
	return &CodeBuffer{Symbols: map[string]*Symbol{}}
}

// EnableListing turns on textual instruction tracking for the -s/--asm dump.
func (b *CodeBuffer) EnableListing() { b.Listing = []string{} }

// note appends a formatted assembly-text line if listing is enabled.
func (b *CodeBuffer) note(format string, args ...interface{}) {
	if b.Listing == nil {
		return
	}
	b.Listing = append(b.Listing, fmt.Sprintf(format, args...))
}

func (b *CodeBuffer) Offset() int { return len(b.Bytes) }

func (b *CodeBuffer) Emit(bs ...byte) { b.Bytes = append(b.Bytes, bs...) }

func (b *CodeBuffer) EmitU32(v uint32) {
	b.Emit(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (b *CodeBuffer) EmitU64(v uint64) {
	b.EmitU32(uint32(v))
	b.EmitU32(uint32(v >> 32))
}

// Label records name as pointing at the buffer's current offset.
func (b *CodeBuffer) Label(name string) {
	b.Symbols[name] = &Symbol{Name: name, Offset: b.Offset()}
	b.note("%s:", name)
}

// DeclareExternal records an import symbol with no in-buffer offset.
func (b *CodeBuffer) DeclareExternal(name string) {
	if _, ok := b.Symbols[name]; !ok {
		b.Symbols[name] = &Symbol{Name: name, External: true}
	}
}

// RelocateRIP reserves a 4-byte RIP-relative slot referring to target,
// padded with zero for now, and records the fix-up.
func (b *CodeBuffer) RelocateRIP(target string, addend int) {
	b.Relocs = append(b.Relocs, Reloc{Site: b.Offset(), Target: target, Kind: RelRIPRel32, Addend: addend})
	b.EmitU32(0)
}

// RelocateAbs64 reserves an 8-byte absolute slot for target (used for
// import-table entries the PE writer patches in).
func (b *CodeBuffer) RelocateAbs64(target string) {
	b.Relocs = append(b.Relocs, Reloc{Site: b.Offset(), Target: target, Kind: RelAbs64})
	b.EmitU64(0)
}

// Resolve patches every recorded relocation now that all labels are known.
// Relocations of either kind against an External symbol are left untouched: the
// PE/COFF writer (internal/pe) resolves those against its own import
// address table, not this buffer's local symbols.
func (b *CodeBuffer) Resolve() error {
	for _, r := range b.Relocs {
		sym, ok := b.Symbols[r.Target]
		if !ok {
			return fmt.Errorf("codegen: undefined symbol %q", r.Target)
		}
		if sym.External {
			continue
		}
		switch r.Kind {
		case RelRIPRel32:
			disp := int32(sym.Offset - (r.Site + 4) + r.Addend)
			patchU32(b.Bytes, r.Site, uint32(disp))
		case RelAbs64:
			patchU64(b.Bytes, r.Site, uint64(sym.Offset+r.Addend))
		}
	}
	return nil
}

func patchU32(buf []byte, at int, v uint32) {
	buf[at] = byte(v)
	buf[at+1] = byte(v >> 8)
	buf[at+2] = byte(v >> 16)
	buf[at+3] = byte(v >> 24)
}

func patchU64(buf []byte, at int, v uint64) {
	patchU32(buf, at, uint32(v))
	patchU32(buf, at+4, uint32(v>>32))
}
