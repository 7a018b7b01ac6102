package codegen

// Kernel32Imports is the exact kernel32.dll symbol list spec §4.6.3 assumes
// the PE writer resolves.
var Kernel32Imports = []string{
	"GetProcessHeap", "HeapAlloc", "HeapFree",
	"GetStdHandle", "WriteConsoleA", "WriteFile", "ReadFile",
	"ExitProcess",
	"CreateThread", "WaitForSingleObject",
	"CreateMutex", "ReleaseMutex",
	"CreateEvent", "SetEvent", "ResetEvent", "WaitForMultipleObjects",
	"InitializeCriticalSection", "EnterCriticalSection", "LeaveCriticalSection",
	"QueryPerformanceCounter", "Sleep", "GetLastError",
}

// MSVCRTImports is the msvcrt.dll fallback list spec §4.6.3 names.
var MSVCRTImports = []string{"printf", "strlen", "strcpy", "strcmp", "malloc", "free"}

// DeclareRuntimeImports registers every spec §4.6.3 helper as an external
// symbol on buf so the PE/COFF writer can build the import table.
func DeclareRuntimeImports(buf *CodeBuffer) {
	for _, name := range Kernel32Imports {
		buf.DeclareExternal(name)
	}
	for _, name := range MSVCRTImports {
		buf.DeclareExternal(name)
	}
}

const stdOutputHandle = -11 // STD_OUTPUT_HANDLE, per the Windows console API

// EmitWriteMessage lowers the 5-argument WriteConsoleA call spec §4.6.4
// describes: GetStdHandle(STD_OUTPUT_HANDLE), then
// WriteConsoleA(handle, msg, len(msg), &written, nil). msgLabel must already
// be a data-section symbol registered on buf holding the message bytes.
func EmitWriteMessage(buf *CodeBuffer, msgLabel string, msgLen int, writtenLabel string) {
	buf.SubRspImm32(int32(AlignStack16(ShadowSpace + 8)))

	buf.MovRegImm32(RCX, stdOutputHandle)
	buf.CallIndirectRip("GetStdHandle")
	buf.MovRegReg(RCX, RAX) // handle

	buf.LeaRipRel(RDX, msgLabel)
	buf.MovRegImm32(R8, int32(msgLen))
	buf.LeaRipRel(R9, writtenLabel)
	// the 5th argument (lpReserved, always nil) goes in the shadow-space
	// stack slot at [rsp+32], per the Microsoft x64 ABI's 5th-arg rule.
	buf.MovRegImm32(RAX, 0)
	buf.Emit(rex(true, false, false, false), 0x89, modrm(1, RAX.low3(), RSP.low3()), 0x24, byte(ShadowSpace))
	buf.CallIndirectRip("WriteConsoleA")

	buf.AddRspImm32(int32(AlignStack16(ShadowSpace + 8)))
}

// EmitExitProcess lowers `ExitProcess(code)`.
func EmitExitProcess(buf *CodeBuffer, code int32) {
	buf.SubRspImm32(ShadowSpace)
	buf.MovRegImm32(RCX, code)
	buf.CallIndirectRip("ExitProcess")
	buf.AddRspImm32(ShadowSpace)
}

// RefinementFailureMessage is the exact text spec §4.6.2 rule 14 / §8
// property 8 requires the generated binary to write on a failed check.
func RefinementFailureMessage(typeName string) string {
	return "Refinement type constraint failed for type '" + typeName + "'"
}

// EmitRefinementCheck lowers rule 14's runtime check: compare RAX (the
// just-evaluated initialiser value) against the constraint operand in cmpReg
// using cmpOp; on failure, write RefinementFailureMessage(typeName) and
// ExitProcess(1) (spec §4.6.4). okLabel must be unique per call site (the
// caller mints it from its own site counter, since a function may declare
// more than one variable of the same refinement type).
func EmitRefinementCheck(buf *CodeBuffer, typeName string, cmpOp string, cmpReg Reg, msgLabel, writtenLabel, okLabel string) {
	buf.CmpRegReg(RAX, cmpReg)
	// jump over the failure path when the constraint holds.
	buf.JccRel32(cmpOp, okLabel)
	EmitWriteMessage(buf, msgLabel, len(RefinementFailureMessage(typeName)), writtenLabel)
	EmitExitProcess(buf, 1)
	buf.Label(okLabel)
}

// EmitDivisionByZeroGuard lowers the division-by-zero runtime check spec
// §4.6.4 requires whenever a division was not folded away: if divisor == 0,
// report E6xxx and exit 1. okLabel must be unique per call site.
func EmitDivisionByZeroGuard(buf *CodeBuffer, divisor Reg, msgLabel, writtenLabel, okLabel string) {
	buf.MovRegImm32(RAX, 0)
	buf.CmpRegReg(divisor, RAX)
	buf.JccRel32("!=", okLabel)
	EmitWriteMessage(buf, msgLabel, len("division by zero"), writtenLabel)
	EmitExitProcess(buf, 1)
	buf.Label(okLabel)
}
