//go:build !windows

package detour

// InstallExceptionDispatcher has no non-windows implementation: there is
// no portable vectored-exception-handler equivalent this engine wires up,
// so BreakpointPatch and DebugRegisterPatch stay windows-only (spec.md's
// Platform Decision, SPEC_FULL.md).
func InstallExceptionDispatcher() error {
	return wrapErr(ErrExceptionHandlerInstall, 0, "exception dispatch requires windows")
}
