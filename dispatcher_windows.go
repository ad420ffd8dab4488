//go:build windows

package detour

import (
	"sync"
	"syscall"

	"golang.org/x/sys/windows"
)

var dispatcherOnce sync.Once
var dispatcherHandle uintptr

// InstallExceptionDispatcher registers the process-wide vectored exception
// handler BreakpointPatch and DebugRegisterPatch rely on (spec.md §4.3,
// §4.4). It is idempotent and, per spec.md §3, never removed during the
// life of the process: a second call is a no-op.
func InstallExceptionDispatcher() error {
	var installErr error
	dispatcherOnce.Do(func() {
		cb := syscall.NewCallback(vehHandler)
		h, _, err := procAddVectoredExceptionHndl.Call(1, cb)
		if h == 0 {
			installErr = wrapErr(ErrExceptionHandlerInstall, uintptr(errnoOf(err)), "AddVectoredExceptionHandler")
			return
		}
		dispatcherHandle = h
	})
	return installErr
}

// vehHandler is the callback AddVectoredExceptionHandler invokes on every
// first-chance exception in the process. It only claims the two exception
// codes spec.md §4.3/§4.4 define a meaning for; everything else is passed
// to the next handler in the chain.
func vehHandler(info *exceptionPointers) uintptr {
	switch info.ExceptionRecord.ExceptionCode {
	case exceptionBreakpoint:
		return dispatchBreakpoint(info)
	case exceptionSingleStep:
		return dispatchSingleStep(info)
	default:
		return exceptionContinueSrch
	}
}

// dispatchBreakpoint implements spec.md §4.3's exception path: look up the
// faulting address under a shared lock, and if a BreakpointPatch owns it,
// redirect Rip straight to detour.
func dispatchBreakpoint(info *exceptionPointers) uintptr {
	addr := info.ExceptionRecord.ExceptionAddress
	dp, ok := exceptionRegistry.lookupBreakpoint(addr)
	if !ok {
		return exceptionContinueSrch
	}
	info.ContextRecord.Rip = uint64(dp.detour)
	return exceptionContinueExec
}

// dispatchSingleStep implements spec.md §4.4's exception path: the fault
// only belongs to this engine if the calling thread has a registered Dr
// index and the corresponding Dr6 status bit is set; otherwise some other
// consumer of single-step (a debugger, another library) owns it.
func dispatchSingleStep(info *exceptionPointers) uintptr {
	tid := windows.GetCurrentThreadId()
	idx, ok := exceptionRegistry.drIndexFor(tid)
	if !ok {
		return exceptionContinueSrch
	}
	if info.ContextRecord.Dr6&(1<<uint(idx)) == 0 {
		return exceptionContinueSrch
	}

	var target uintptr
	switch idx {
	case 0:
		target = uintptr(info.ContextRecord.Dr0)
	case 1:
		target = uintptr(info.ContextRecord.Dr1)
	case 2:
		target = uintptr(info.ContextRecord.Dr2)
	case 3:
		target = uintptr(info.ContextRecord.Dr3)
	}
	dp, ok := exceptionRegistry.lookupDebugRegister(target)
	if !ok {
		return exceptionContinueSrch
	}

	info.ContextRecord.Dr6 = 0
	info.ContextRecord.Rip = uint64(dp.detour)
	info.ContextRecord.EFlags |= efResumeFlag
	return exceptionContinueExec
}
