//go:build windows

package detour

import (
	"runtime"

	"golang.org/x/sys/windows"
)

// drLocalEnableBit encodes Dr7's per-register local-enable field (spec.md
// §4.4): bit 2*i is the local-enable bit for register i. Bits 16+4*i/18+4*i
// hold the RW (execution) and LEN (1-byte) condition fields, which stay
// zero for an execution breakpoint and are not written here.
func drLocalEnableBit(index int) uint64 { return 1 << uint(2*index) }

// debugRegisterOps is the hardware debug-register strategy (spec.md §4.4):
// target bytes are never written; instead the calling thread's Dr0-Dr3 and
// Dr7 are programmed so a single-step/breakpoint exception fires when the
// CPU fetches from target, and the dispatcher rewrites Rip to detour.
var debugRegisterOps = patchOps{
	planPatchSize: func(dp *DetourPatch) int { return 1 },
	writeRedirection: func(dp *DetourPatch) error {
		if !dp.process.IsSelf() {
			return wrapErr(ErrRemoteUnsupported, 0, "debug-register patches only support the current process")
		}
		runtime.LockOSThread()
		tid := windows.GetCurrentThreadId()
		h := windows.CurrentThread()

		var ctx context64
		if err := getThreadContext(h, &ctx); err != nil {
			runtime.UnlockOSThread()
			return err
		}

		idx, err := pickFreeDRIndex(&ctx)
		if err != nil {
			runtime.UnlockOSThread()
			return err
		}

		if err := exceptionRegistry.registerDebugRegister(dp.target, dp, tid, idx); err != nil {
			runtime.UnlockOSThread()
			return err
		}

		switch idx {
		case 0:
			ctx.Dr0 = uint64(dp.target)
		case 1:
			ctx.Dr1 = uint64(dp.target)
		case 2:
			ctx.Dr2 = uint64(dp.target)
		case 3:
			ctx.Dr3 = uint64(dp.target)
		}
		ctx.Dr7 |= drLocalEnableBit(idx)
		ctx.ContextFlags = contextDebugRegisters

		if err := setThreadContext(h, &ctx); err != nil {
			exceptionRegistry.unregisterDebugRegister(dp.target, tid)
			runtime.UnlockOSThread()
			return err
		}

		dp.drTID = tid
		dp.drIndex = idx
		// The OS thread stays pinned for the lifetime of the hook: Dr0-Dr7
		// are per-thread hardware state, so Remove must run on this same
		// thread to clear them (spec.md §4.4 "only the calling thread").
		return nil
	},
	removeRedirection: func(dp *DetourPatch) error {
		h := windows.CurrentThread()

		var ctx context64
		if err := getThreadContext(h, &ctx); err != nil {
			return err
		}

		switch dp.drIndex {
		case 0:
			ctx.Dr0 = 0
		case 1:
			ctx.Dr1 = 0
		case 2:
			ctx.Dr2 = 0
		case 3:
			ctx.Dr3 = 0
		}
		ctx.Dr7 &^= drLocalEnableBit(dp.drIndex)
		ctx.ContextFlags = contextDebugRegisters

		err := setThreadContext(h, &ctx)
		exceptionRegistry.unregisterDebugRegister(dp.target, dp.drTID)
		runtime.UnlockOSThread()
		return err
	},
	supportsChain: false,
}

// pickFreeDRIndex scans the calling thread's own Dr7 local-enable bits for
// the lowest register whose local-enable bit is clear, whoever set the
// others.
// Debug registers are per-thread hardware state, so another thread's usage
// is irrelevant; only the live Dr7 value of the thread being programmed
// matters (spec.md §4.4).
func pickFreeDRIndex(ctx *context64) (int, error) {
	for i := 0; i < 4; i++ {
		if ctx.Dr7&drLocalEnableBit(i) == 0 {
			return i, nil
		}
	}
	return 0, wrapErr(ErrNoFreeDebugRegister, 0, "calling thread has all four debug registers in use")
}
