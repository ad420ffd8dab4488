//go:build windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// m128a mirrors the Windows M128A structure used inside CONTEXT's FPU area.
type m128a struct {
	Low  uint64
	High uint64
}

// context64 is the amd64 CONTEXT structure laid out exactly as the Windows
// SDK defines it, following the same field-for-field approach used by
// hardware-breakpoint tooling throughout the example pack (e.g. the
// CONTEXT_AMD64 struct hand-rolled for VEH callbacks): x/sys/windows does
// not expose Dr0-Dr7 through a stable public API, so this engine declares
// its own copy rather than depending on internal layout.
type context64 struct {
	P1Home       uint64
	P2Home       uint64
	P3Home       uint64
	P4Home       uint64
	P5Home       uint64
	P6Home       uint64
	ContextFlags uint32
	MxCsr        uint32
	SegCs        uint16
	SegDs        uint16
	SegEs        uint16
	SegFs        uint16
	SegGs        uint16
	SegSs        uint16
	EFlags       uint32
	Dr0          uint64
	Dr1          uint64
	Dr2          uint64
	Dr3          uint64
	Dr6          uint64
	Dr7          uint64
	Rax          uint64
	Rcx          uint64
	Rdx          uint64
	Rbx          uint64
	Rsp          uint64
	Rbp          uint64
	Rsi          uint64
	Rdi          uint64
	R8           uint64
	R9           uint64
	R10          uint64
	R11          uint64
	R12          uint64
	R13          uint64
	R14          uint64
	R15          uint64
	Rip          uint64
	FltSave      [512]byte
	VectorReg    [26]m128a
	VectorCtl    uint64
	DebugCtl     uint64
	LBrTo        uint64
	LBrFrom      uint64
	LExTo        uint64
	LExFrom      uint64
}

const (
	contextAMD64           = 0x00100000
	contextControl         = contextAMD64 | 0x1
	contextInteger         = contextAMD64 | 0x2
	contextDebugRegisters  = contextAMD64 | 0x10
	contextFull            = contextControl | contextInteger | (contextAMD64 | 0x4)
	contextAll             = contextFull | contextDebugRegisters | (contextAMD64 | 0x8) | (contextAMD64 | 0x20)
	efResumeFlag           = 1 << 16
	exceptionBreakpoint    = 0x80000003
	exceptionSingleStep    = 0x80000004
	exceptionContinueExec  = 0xFFFFFFFF // -1 as uint32, EXCEPTION_CONTINUE_EXECUTION
	exceptionContinueSrch  = 0x0        // EXCEPTION_CONTINUE_SEARCH
)

var (
	modkernel32                  = windows.NewLazySystemDLL("kernel32.dll")
	procGetThreadContext         = modkernel32.NewProc("GetThreadContext")
	procSetThreadContext         = modkernel32.NewProc("SetThreadContext")
	procAddVectoredExceptionHndl = modkernel32.NewProc("AddVectoredExceptionHandler")
	procRemoveVectoredExceptionH = modkernel32.NewProc("RemoveVectoredExceptionHandler")
)

func getThreadContext(h windows.Handle, ctx *context64) error {
	ctx.ContextFlags = contextAll
	r, _, err := procGetThreadContext.Call(uintptr(h), uintptr(unsafe.Pointer(ctx)))
	if r == 0 {
		return wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "GetThreadContext")
	}
	return nil
}

func setThreadContext(h windows.Handle, ctx *context64) error {
	r, _, err := procSetThreadContext.Call(uintptr(h), uintptr(unsafe.Pointer(ctx)))
	if r == 0 {
		return wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "SetThreadContext")
	}
	return nil
}

// exceptionRecord and exceptionPointers mirror EXCEPTION_RECORD/EXCEPTION_POINTERS
// for the amd64 ABI, matching the layout the vectored handler callback receives.
type exceptionRecord struct {
	ExceptionCode    uint32
	ExceptionFlags   uint32
	ExceptionRecord  *exceptionRecord
	ExceptionAddress uintptr
	NumberParameters uint32
	_                [4]byte
	ExceptionInfo    [15]uintptr
}

type exceptionPointers struct {
	ExceptionRecord *exceptionRecord
	ContextRecord   *context64
}
