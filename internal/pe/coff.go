// Package pe is the external PE/object-writer collaborator's Go-facing
// interface (spec §1 lists linking/object emission as outside the compiler
// core proper) together with an in-repo minimal implementation: enough of
// Microsoft COFF and PE32+ to turn a internal/codegen.CodeBuffer into a
// linkable .obj or a runnable .exe (spec §6.3).
package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/tyl-lang/tyl/internal/codegen"
)

const (
	machineAMD64 = 0x8664

	sectionCode = 0x00000020
	sectionRead = 0x40000000
	sectionExec = 0x20000000

	relAMD64Rel32 = 0x0004

	symUndefinedSection = 0
	symClassExternal    = 2
	symTypeNull         = 0
)

// WriteCOFF emits a minimal single-section Microsoft COFF object (spec
// §6.3): a .text section holding buf's bytes, one relocation per reference
// to an external (import) symbol, and a symbol table covering every label
// buf defines plus every external symbol it references. Internal
// (same-translation-unit) call/jump targets are already resolved by
// CodeBuffer.Resolve and need no COFF relocation of their own.
func WriteCOFF(buf *codegen.CodeBuffer) ([]byte, error) {
	names := sortedSymbolNames(buf)

	var strtab bytes.Buffer
	strtab.Write([]byte{0, 0, 0, 0}) // length placeholder, patched below

	type symEntry struct {
		name    string
		value   uint32
		section int16
		class   byte
	}
	var symbols []symEntry
	symIndex := map[string]int{}
	for _, name := range names {
		sym := buf.Symbols[name]
		e := symEntry{name: name, class: symClassExternal}
		if sym.External {
			e.section = symUndefinedSection
			e.value = 0
		} else {
			e.section = 1 // .text is always section 1 in this single-section object
			e.value = uint32(sym.Offset)
		}
		symIndex[name] = len(symbols)
		symbols = append(symbols, e)
	}

	var relocs bytes.Buffer
	numRelocs := 0
	for _, r := range buf.Relocs {
		sym := buf.Symbols[r.Target]
		if sym == nil || !sym.External {
			continue // already fully resolved in-buffer; no object relocation needed
		}
		if r.Kind != codegen.RelRIPRel32 {
			return nil, fmt.Errorf("pe: unsupported relocation kind against external symbol %q", r.Target)
		}
		binary.Write(&relocs, binary.LittleEndian, uint32(r.Site))
		binary.Write(&relocs, binary.LittleEndian, uint32(symIndex[r.Target]))
		binary.Write(&relocs, binary.LittleEndian, uint16(relAMD64Rel32))
		numRelocs++
	}

	const fileHeaderSize = 20
	const sectionHeaderSize = 40
	sectionDataOffset := fileHeaderSize + sectionHeaderSize
	relocOffset := sectionDataOffset + len(buf.Bytes)
	symtabOffset := relocOffset + relocs.Len()

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, uint16(machineAMD64))
	binary.Write(&out, binary.LittleEndian, uint16(1)) // NumberOfSections
	binary.Write(&out, binary.LittleEndian, uint32(0)) // TimeDateStamp: 0 for reproducible builds
	binary.Write(&out, binary.LittleEndian, uint32(symtabOffset))
	binary.Write(&out, binary.LittleEndian, uint32(len(symbols)))
	binary.Write(&out, binary.LittleEndian, uint16(0)) // SizeOfOptionalHeader: none in an object file
	binary.Write(&out, binary.LittleEndian, uint16(0)) // Characteristics

	out.Write(sectionName(".text"))
	binary.Write(&out, binary.LittleEndian, uint32(len(buf.Bytes))) // VirtualSize
	binary.Write(&out, binary.LittleEndian, uint32(0))              // VirtualAddress
	binary.Write(&out, binary.LittleEndian, uint32(len(buf.Bytes))) // SizeOfRawData
	binary.Write(&out, binary.LittleEndian, uint32(sectionDataOffset))
	binary.Write(&out, binary.LittleEndian, uint32(relocOffset))
	binary.Write(&out, binary.LittleEndian, uint32(0)) // PointerToLinenumbers
	binary.Write(&out, binary.LittleEndian, uint16(numRelocs))
	binary.Write(&out, binary.LittleEndian, uint16(0)) // NumberOfLinenumbers
	binary.Write(&out, binary.LittleEndian, uint32(sectionCode|sectionRead|sectionExec))

	out.Write(buf.Bytes)
	out.Write(relocs.Bytes())

	for _, e := range symbols {
		out.Write(symbolName(e.name, &strtab))
		binary.Write(&out, binary.LittleEndian, e.value)
		binary.Write(&out, binary.LittleEndian, e.section)
		binary.Write(&out, binary.LittleEndian, uint16(symTypeNull))
		out.WriteByte(e.class)
		out.WriteByte(0) // NumberOfAuxSymbols
	}

	strtabBytes := strtab.Bytes()
	binary.LittleEndian.PutUint32(strtabBytes[:4], uint32(len(strtabBytes)))
	out.Write(strtabBytes)

	return out.Bytes(), nil
}

func sortedSymbolNames(buf *codegen.CodeBuffer) []string {
	names := make([]string, 0, len(buf.Symbols))
	for name := range buf.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sectionName(name string) []byte {
	b := make([]byte, 8)
	copy(b, name)
	return b
}

// symbolName encodes a COFF short-name field: names of 8 bytes or fewer are
// stored inline, longer ones as a zero-padded 4-byte offset into strtab.
func symbolName(name string, strtab *bytes.Buffer) []byte {
	if len(name) <= 8 {
		return sectionName(name)
	}
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[4:], uint32(strtab.Len()))
	strtab.WriteString(name)
	strtab.WriteByte(0)
	return b
}
