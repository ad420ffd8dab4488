package detour

// NewBreakpointPatch constructs a DetourPatch using the int3/VEH redirection
// strategy described in spec.md §4.3. The returned patch is inert until
// Apply is called; installing the process-wide vectored handler is the
// caller's responsibility via InstallExceptionDispatcher on platforms that
// support it. Apply fails with ErrUnimplemented on platforms that have no
// vectored exception dispatcher wired up.
func NewBreakpointPatch(process *Process, target, detourAddr uintptr) *DetourPatch {
	dp := NewDetourPatch(process, target, detourAddr)
	dp.ops = breakpointOps
	return dp
}
