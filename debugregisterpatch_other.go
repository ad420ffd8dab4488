//go:build !windows

package detour

// debugRegisterOps is unavailable outside windows: this platform has no
// portable Dr0-Dr7/CONTEXT equivalent wired up, so both steps fail with
// ErrUnimplemented (spec.md's Platform Decision, SPEC_FULL.md).
var debugRegisterOps = patchOps{
	planPatchSize: func(dp *DetourPatch) int { return 1 },
	writeRedirection: func(dp *DetourPatch) error {
		return wrapErr(ErrUnimplemented, 0, "debug-register patches require windows")
	},
	removeRedirection: func(dp *DetourPatch) error {
		return wrapErr(ErrUnimplemented, 0, "debug-register patches require windows")
	},
	supportsChain: false,
}
