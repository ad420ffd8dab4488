//go:build windows

package detour

// breakpointOps is the software-breakpoint strategy (spec.md §4.3): a
// single 0xCC byte replaces the target's first byte, and the process-wide
// exception dispatcher (dispatcher_windows.go) rewrites Rip to detour when
// it catches the resulting STATUS_BREAKPOINT. Unlike defaultPatchOps this
// strategy does not support hook chaining: a second patch at the same
// address is rejected rather than layered, since there is only one byte to
// own.
var breakpointOps = patchOps{
	planPatchSize: func(dp *DetourPatch) int { return 1 },
	writeRedirection: func(dp *DetourPatch) error {
		if !dp.process.IsSelf() {
			return wrapErr(ErrRemoteUnsupported, 0, "breakpoint patches only support the current process")
		}
		if err := exceptionRegistry.registerBreakpoint(dp.target, dp); err != nil {
			return err
		}
		if err := dp.memIO.WriteBytes(dp.process, dp.target, []byte{0xCC}); err != nil {
			// Roll back the map entry on failure (spec.md §4.3).
			exceptionRegistry.unregisterBreakpoint(dp.target)
			return err
		}
		return nil
	},
	removeRedirection: func(dp *DetourPatch) error {
		if err := dp.memIO.WriteBytes(dp.process, dp.target, dp.saved); err != nil {
			return err
		}
		exceptionRegistry.unregisterBreakpoint(dp.target)
		return nil
	},
	supportsChain: false,
}
