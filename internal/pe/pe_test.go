package pe

import (
	"encoding/binary"
	"testing"

	"github.com/tyl-lang/tyl/internal/codegen"
)

// minimalMainBuffer builds a resolved CodeBuffer containing a "main" label
// that calls ExitProcess, the smallest shape both writers must accept.
func minimalMainBuffer(t *testing.T) *codegen.CodeBuffer {
	t.Helper()
	buf := codegen.NewCodeBuffer()
	codegen.DeclareRuntimeImports(buf)
	buf.Label("main")
	buf.MovRegImm32(codegen.RCX, 0)
	buf.CallIndirectRip("ExitProcess")
	if err := buf.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return buf
}

func TestWriteCOFFHasExpectedMachineAndSectionCount(t *testing.T) {
	buf := minimalMainBuffer(t)
	obj, err := WriteCOFF(buf)
	if err != nil {
		t.Fatalf("WriteCOFF: %v", err)
	}
	if len(obj) < 20 {
		t.Fatalf("object too short: %d bytes", len(obj))
	}
	machine := binary.LittleEndian.Uint16(obj[0:2])
	if machine != machineAMD64 {
		t.Errorf("Machine = 0x%x, want 0x%x", machine, machineAMD64)
	}
	numSections := binary.LittleEndian.Uint16(obj[2:4])
	if numSections != 1 {
		t.Errorf("NumberOfSections = %d, want 1", numSections)
	}
}

func TestWriteCOFFRecordsRelocationAgainstExternalSymbol(t *testing.T) {
	buf := minimalMainBuffer(t)
	obj, err := WriteCOFF(buf)
	if err != nil {
		t.Fatalf("WriteCOFF: %v", err)
	}
	numRelocs := binary.LittleEndian.Uint16(obj[20+32 : 20+34])
	if numRelocs != 1 {
		t.Errorf("NumberOfRelocations = %d, want 1 (the ExitProcess call)", numRelocs)
	}
}

func TestResolveRejectsBufferWithUnresolvedInternalSymbol(t *testing.T) {
	buf := codegen.NewCodeBuffer()
	buf.Label("main")
	buf.JmpRel32("nowhere")
	if err := buf.Resolve(); err == nil {
		t.Fatalf("Resolve: expected error for undefined symbol, got nil")
	}
}

func TestWriteEXEFailsWithoutMainFunction(t *testing.T) {
	buf := codegen.NewCodeBuffer()
	codegen.DeclareRuntimeImports(buf)
	buf.Label("helper")
	buf.Ret()
	if err := buf.Resolve(); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, err := WriteEXE(buf); err == nil {
		t.Fatalf("WriteEXE: expected error when no \"main\" is defined")
	}
}

func TestWriteEXEProducesValidDOSAndPEHeaders(t *testing.T) {
	buf := minimalMainBuffer(t)
	exe, err := WriteEXE(buf)
	if err != nil {
		t.Fatalf("WriteEXE: %v", err)
	}
	if string(exe[0:2]) != "MZ" {
		t.Fatalf("missing MZ signature, got %q", exe[0:2])
	}
	lfanew := binary.LittleEndian.Uint32(exe[0x3c:0x40])
	if string(exe[lfanew:lfanew+4]) != "PE\x00\x00" {
		t.Fatalf("missing PE signature at e_lfanew=%d, got %q", lfanew, exe[lfanew:lfanew+4])
	}
	magicOff := lfanew + 4 + 20
	magic := binary.LittleEndian.Uint16(exe[magicOff : magicOff+2])
	if magic != ntOptHdr64Magic {
		t.Errorf("optional header magic = 0x%x, want 0x%x (PE32+)", magic, ntOptHdr64Magic)
	}
}

func TestWriteEXEEntryPointLandsInsideTextSection(t *testing.T) {
	buf := minimalMainBuffer(t)
	exe, err := WriteEXE(buf)
	if err != nil {
		t.Fatalf("WriteEXE: %v", err)
	}
	lfanew := binary.LittleEndian.Uint32(exe[0x3c:0x40])
	optHdrOff := lfanew + 4 + 20
	entryRVA := binary.LittleEndian.Uint32(exe[optHdrOff+16 : optHdrOff+20])
	sectionRVA := binary.LittleEndian.Uint32(exe[optHdrOff+20 : optHdrOff+24])
	if entryRVA < sectionRVA {
		t.Errorf("AddressOfEntryPoint 0x%x precedes BaseOfCode 0x%x", entryRVA, sectionRVA)
	}
	if entryRVA != sectionRVA {
		t.Errorf("AddressOfEntryPoint 0x%x, want 0x%x (main is buf's first label)", entryRVA, sectionRVA)
	}
}

func TestWriteEXEIncludesImportDirectoryForKernel32(t *testing.T) {
	buf := minimalMainBuffer(t)
	exe, err := WriteEXE(buf)
	if err != nil {
		t.Fatalf("WriteEXE: %v", err)
	}
	found := false
	needle := []byte("KERNEL32.dll")
	for i := 0; i+len(needle) <= len(exe); i++ {
		if string(exe[i:i+len(needle)]) == string(needle) {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("KERNEL32.dll import name not found in image")
	}
}

func TestGroupImportsByDLLSeparatesKernel32FromMSVCRT(t *testing.T) {
	buf := codegen.NewCodeBuffer()
	buf.DeclareExternal("ExitProcess")
	buf.DeclareExternal("printf")
	dlls := groupImportsByDLL(buf)
	if len(dlls) != 2 {
		t.Fatalf("got %d dlls, want 2", len(dlls))
	}
	for _, d := range dlls {
		switch d.name {
		case "KERNEL32.dll":
			if len(d.symbols) != 1 || d.symbols[0] != "ExitProcess" {
				t.Errorf("KERNEL32.dll symbols = %v, want [ExitProcess]", d.symbols)
			}
		case "msvcrt.dll":
			if len(d.symbols) != 1 || d.symbols[0] != "printf" {
				t.Errorf("msvcrt.dll symbols = %v, want [printf]", d.symbols)
			}
		default:
			t.Errorf("unexpected dll %q", d.name)
		}
	}
}
