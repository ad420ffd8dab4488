//go:build !windows

package detour

// breakpointOps is unavailable outside windows: 0xCC dispatch depends on the
// vectored exception handler dispatcher_other.go refuses to install, so
// writing the byte without a handler able to catch the resulting trap would
// crash the first thread that calls through target. Both steps fail with
// ErrUnimplemented instead (spec.md's Platform Decision, SPEC_FULL.md).
var breakpointOps = patchOps{
	planPatchSize: func(dp *DetourPatch) int { return 1 },
	writeRedirection: func(dp *DetourPatch) error {
		return wrapErr(ErrUnimplemented, 0, "breakpoint patches require windows")
	},
	removeRedirection: func(dp *DetourPatch) error {
		return wrapErr(ErrUnimplemented, 0, "breakpoint patches require windows")
	},
	supportsChain: false,
}
