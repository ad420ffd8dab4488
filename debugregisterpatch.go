package detour

// NewDebugRegisterPatch constructs a DetourPatch using the hardware
// debug-register redirection strategy described in spec.md §4.4. Unlike
// every other patch kind, PatchSize reports 1 without that byte ever
// being written to target: it exists only so DetourPatch.Apply's busy-check
// and trampoline-size bookkeeping have a nonzero range to reason about
// (spec.md §9 flags this for verification before porting; current behavior
// is preserved here rather than "fixed").
//
// Only the calling thread is hooked, and only one DR patch may be active
// on a given thread at a time (spec.md §4.4 "Known limits"); Apply fails
// with ErrDuplicateHook if the calling thread already owns a debug
// register through this package, and with ErrUnimplemented on platforms
// that do not expose thread debug registers.
func NewDebugRegisterPatch(process *Process, target, detourAddr uintptr) *DetourPatch {
	dp := NewDetourPatch(process, target, detourAddr)
	dp.ops = debugRegisterOps
	return dp
}
