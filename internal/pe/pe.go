package pe

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tyl-lang/tyl/internal/codegen"
)

const (
	imageBase          = uint64(0x140000000)
	fileAlignment      = 0x200
	sectionAlignment   = 0x1000
	ntOptHdr64Magic    = 0x20b
	subsystemConsole   = 3
	dllCharacteristics = 0x0160 // HIGH_ENTROPY_VA | DYNAMIC_BASE | NX_COMPAT

	dataDirImport = 1 // index of the import directory within DataDirectory
	numDataDirs   = 16
)

// dll groups the external symbols this program imports from one DLL, in the
// stable order they're written to the import/IAT tables.
type dll struct {
	name    string
	symbols []string
}

// WriteEXE links buf into a minimal, single-section PE32+ console executable
// (spec §6.3): one RWX section holding code, the import directory/ILT/IAT/
// hint-name tables for kernel32.dll and msvcrt.dll, and an entry point at the
// "main" label. Export tables and DLL output are out of scope for this pass
// (see DESIGN.md); WriteEXE always produces an EXE, never a DLL.
func WriteEXE(buf *codegen.CodeBuffer) ([]byte, error) {
	mainSym, ok := buf.Symbols["main"]
	if !ok || mainSym.External {
		return nil, fmt.Errorf("pe: no \"main\" function defined")
	}

	dlls := groupImportsByDLL(buf)

	// Layout the section: code first (so the entry point RVA is stable and
	// low), then the import machinery appended after it.
	codeSize := len(buf.Bytes)
	layout := newImportLayout(codeSize, dlls)

	sectionSize := layout.end
	virtualSize := uint32(sectionSize)
	rawSize := alignUp(sectionSize, fileAlignment)

	const dosStubSize = 0x40 // minimal MS-DOS stub: header through e_lfanew only
	const peHeaderSize = 4 /*sig*/ + 20 /*file hdr*/ + 112 /*opt hdr64 w/o data dirs*/ + numDataDirs*8
	const sectionHeaderSize = 40
	headersSize := dosStubSize + peHeaderSize + sectionHeaderSize
	headersRaw := alignUp(headersSize, fileAlignment)

	sectionRVA := uint32(sectionAlignment)
	sectionFileOffset := uint32(headersRaw)

	entryRVA := sectionRVA + uint32(mainSym.Offset)

	code := make([]byte, sectionSize)
	copy(code, buf.Bytes)
	layout.write(code, dlls, sectionRVA)

	if err := patchExternalRelocs(code, buf, sectionRVA, layout, dlls); err != nil {
		return nil, err
	}

	var out bytes.Buffer
	writeDOSStub(&out)
	out.Write(bytes.Repeat([]byte{0}, dosStubSize-out.Len()))

	out.Write([]byte{'P', 'E', 0, 0})

	binary.Write(&out, binary.LittleEndian, uint16(0x8664)) // Machine
	binary.Write(&out, binary.LittleEndian, uint16(1))      // NumberOfSections
	binary.Write(&out, binary.LittleEndian, uint32(0))      // TimeDateStamp
	binary.Write(&out, binary.LittleEndian, uint32(0))      // PointerToSymbolTable
	binary.Write(&out, binary.LittleEndian, uint32(0))      // NumberOfSymbols
	binary.Write(&out, binary.LittleEndian, uint16(112+numDataDirs*8))
	binary.Write(&out, binary.LittleEndian, uint16(0x22)) // Characteristics: EXECUTABLE_IMAGE | LARGE_ADDRESS_AWARE

	binary.Write(&out, binary.LittleEndian, uint16(ntOptHdr64Magic))
	out.WriteByte(0) // MajorLinkerVersion
	out.WriteByte(0) // MinorLinkerVersion
	binary.Write(&out, binary.LittleEndian, uint32(rawSize))    // SizeOfCode
	binary.Write(&out, binary.LittleEndian, uint32(0))          // SizeOfInitializedData
	binary.Write(&out, binary.LittleEndian, uint32(0))          // SizeOfUninitializedData
	binary.Write(&out, binary.LittleEndian, entryRVA)           // AddressOfEntryPoint
	binary.Write(&out, binary.LittleEndian, sectionRVA)         // BaseOfCode
	binary.Write(&out, binary.LittleEndian, imageBase)          // ImageBase
	binary.Write(&out, binary.LittleEndian, uint32(sectionAlignment))
	binary.Write(&out, binary.LittleEndian, uint32(fileAlignment))
	binary.Write(&out, binary.LittleEndian, uint16(6)) // MajorOSVersion
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint16(0)) // MajorImageVersion
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint16(6)) // MajorSubsystemVersion
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint32(0)) // Win32VersionValue
	binary.Write(&out, binary.LittleEndian, sectionRVA+uint32(alignUp(sectionSize, sectionAlignment))) // SizeOfImage
	binary.Write(&out, binary.LittleEndian, uint32(headersRaw)) // SizeOfHeaders
	binary.Write(&out, binary.LittleEndian, uint32(0))          // CheckSum
	binary.Write(&out, binary.LittleEndian, uint16(subsystemConsole))
	binary.Write(&out, binary.LittleEndian, uint16(dllCharacteristics))
	binary.Write(&out, binary.LittleEndian, uint64(0x100000)) // SizeOfStackReserve
	binary.Write(&out, binary.LittleEndian, uint64(0x1000))   // SizeOfStackCommit
	binary.Write(&out, binary.LittleEndian, uint64(0x100000)) // SizeOfHeapReserve
	binary.Write(&out, binary.LittleEndian, uint64(0x1000))   // SizeOfHeapCommit
	binary.Write(&out, binary.LittleEndian, uint32(0))        // LoaderFlags
	binary.Write(&out, binary.LittleEndian, uint32(numDataDirs))

	for i := 0; i < numDataDirs; i++ {
		if i == dataDirImport {
			binary.Write(&out, binary.LittleEndian, sectionRVA+uint32(layout.importDirRVA))
			binary.Write(&out, binary.LittleEndian, uint32(layout.importDirSize))
		} else {
			binary.Write(&out, binary.LittleEndian, uint32(0))
			binary.Write(&out, binary.LittleEndian, uint32(0))
		}
	}

	out.Write(sectionName(".text"))
	binary.Write(&out, binary.LittleEndian, virtualSize)
	binary.Write(&out, binary.LittleEndian, sectionRVA)
	binary.Write(&out, binary.LittleEndian, uint32(rawSize))
	binary.Write(&out, binary.LittleEndian, sectionFileOffset)
	binary.Write(&out, binary.LittleEndian, uint32(0)) // PointerToRelocations
	binary.Write(&out, binary.LittleEndian, uint32(0)) // PointerToLinenumbers
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint16(0))
	binary.Write(&out, binary.LittleEndian, uint32(sectionCode|sectionRead|sectionExec|0x80000000 /*MEM_WRITE, kept simple: one RWX section rather than splitting .rdata/.data*/))

	if pad := headersRaw - out.Len(); pad > 0 {
		out.Write(make([]byte, pad))
	}

	out.Write(code)
	if pad := rawSize - sectionSize; pad > 0 {
		out.Write(make([]byte, pad))
	}

	return out.Bytes(), nil
}

func writeDOSStub(out *bytes.Buffer) {
	out.Write([]byte{'M', 'Z'})
	out.Write(make([]byte, 0x3c-2)) // e_lfanew lives at offset 0x3C in IMAGE_DOS_HEADER
	binary.Write(out, binary.LittleEndian, uint32(0x40))
}

func groupImportsByDLL(buf *codegen.CodeBuffer) []dll {
	inKernel32 := map[string]bool{}
	for _, n := range codegen.Kernel32Imports {
		inKernel32[n] = true
	}
	var k32, msvcrt dll
	k32.name = "KERNEL32.dll"
	msvcrt.name = "msvcrt.dll"
	for name, sym := range buf.Symbols {
		if !sym.External {
			continue
		}
		if inKernel32[name] {
			k32.symbols = append(k32.symbols, name)
		} else {
			msvcrt.symbols = append(msvcrt.symbols, name)
		}
	}
	sortStrings(k32.symbols)
	sortStrings(msvcrt.symbols)
	var dlls []dll
	if len(k32.symbols) > 0 {
		dlls = append(dlls, k32)
	}
	if len(msvcrt.symbols) > 0 {
		dlls = append(dlls, msvcrt)
	}
	return dlls
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func alignUp(n, align int) int {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// importLayout lays out the import directory table, one ILT/IAT pair per
// DLL, and the hint/name table, all appended after the code bytes within the
// single merged section (spec DESIGN note: simplified from separate
// .idata/.rdata for this pass).
type importLayout struct {
	codeSize int

	importDirRVA  int // offset (within the section) of the import directory table
	importDirSize int

	iltOffsets  []int // per-DLL offset of its Import Lookup Table
	iatOffsets  []int // per-DLL offset of its Import Address Table (the IAT slots call sites reference)
	nameOffsets []int // per-DLL offset of its DLL name string
	hintOffsets [][]int // per-DLL, per-symbol offset of its hint/name entry

	end int
}

func newImportLayout(codeSize int, dlls []dll) *importLayout {
	l := &importLayout{codeSize: codeSize}
	off := codeSize

	l.importDirRVA = off
	l.importDirSize = (len(dlls)+1)*20 // one 20-byte descriptor per DLL plus a null terminator
	off += l.importDirSize

	l.iltOffsets = make([]int, len(dlls))
	l.iatOffsets = make([]int, len(dlls))
	l.hintOffsets = make([][]int, len(dlls))
	for i, d := range dlls {
		l.iltOffsets[i] = off
		off += (len(d.symbols) + 1) * 8
	}
	for i, d := range dlls {
		l.iatOffsets[i] = off
		off += (len(d.symbols) + 1) * 8
	}

	l.nameOffsets = make([]int, len(dlls))
	for i, d := range dlls {
		l.nameOffsets[i] = off
		off += len(d.name) + 1
	}

	for i, d := range dlls {
		l.hintOffsets[i] = make([]int, len(d.symbols))
		for j, name := range d.symbols {
			l.hintOffsets[i][j] = off
			off += alignUp(2+len(name)+1, 2) // Hint (2 bytes) + name + NUL, word-aligned
		}
	}

	l.end = off
	return l
}

// write fills the import directory/ILT/IAT/hint-name tables into section,
// whose addresses are all section-relative RVAs of sectionRVA+offset.
func (l *importLayout) write(section []byte, dlls []dll, sectionRVA uint32) {
	rva := func(off int) uint32 { return sectionRVA + uint32(off) }

	for i, d := range dlls {
		put32(section, l.importDirRVA+i*20+0, rva(l.iltOffsets[i]))
		put32(section, l.importDirRVA+i*20+12, rva(l.nameOffsets[i]))
		put32(section, l.importDirRVA+i*20+16, rva(l.iatOffsets[i]))

		for j := range d.symbols {
			hint := rva(l.hintOffsets[i][j])
			putU64(section, l.iltOffsets[i]+j*8, uint64(hint))
			putU64(section, l.iatOffsets[i]+j*8, uint64(hint))
		}

		copy(section[l.nameOffsets[i]:], d.name)

		for j, name := range d.symbols {
			off := l.hintOffsets[i][j]
			// Hint left at 0: the loader falls back to a name lookup, which
			// every documented PE loader supports regardless of hint.
			copy(section[off+2:], name)
		}
	}
}

func put32(b []byte, at int, v uint32) { binary.LittleEndian.PutUint32(b[at:], v) }
func putU64(b []byte, at int, v uint64) { binary.LittleEndian.PutUint64(b[at:], v) }

// patchExternalRelocs resolves every RIP-relative call/lea against an
// external (imported) symbol to point at that symbol's IAT slot, the last
// step CodeBuffer.Resolve deliberately left undone.
func patchExternalRelocs(code []byte, buf *codegen.CodeBuffer, sectionRVA uint32, layout *importLayout, dlls []dll) error {
	iatRVA := map[string]uint32{}
	for i, d := range dlls {
		for j, name := range d.symbols {
			iatRVA[name] = sectionRVA + uint32(layout.iatOffsets[i]+j*8)
		}
	}
	for _, r := range buf.Relocs {
		sym := buf.Symbols[r.Target]
		if sym == nil || !sym.External {
			continue
		}
		target, ok := iatRVA[r.Target]
		if !ok {
			return fmt.Errorf("pe: external symbol %q is not in any known import DLL", r.Target)
		}
		switch r.Kind {
		case codegen.RelRIPRel32:
			siteRVA := sectionRVA + uint32(r.Site)
			disp := int32(target) - int32(siteRVA+4) + int32(r.Addend)
			put32(code, r.Site, uint32(disp))
		default:
			return fmt.Errorf("pe: unsupported relocation kind against external symbol %q", r.Target)
		}
	}
	return nil
}
