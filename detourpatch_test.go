package detour

import (
	"runtime"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// funcval mirrors the layout of a Go func value: a pointer to a single word
// holding the code address. Casting a funcval's address to the real func
// type lets a test call raw machine code the way a detoured caller would,
// without cgo.
type funcval struct {
	fn uintptr
}

func asUint32Func(addr uintptr) func() uint32 {
	fv := &funcval{fn: addr}
	return *(*func() uint32)(unsafe.Pointer(&fv))
}

// writeUint32Returner writes `MOV EAX, imm32; RET` (6 bytes) at addr,
// a tiny self-contained function whose return value is observable.
func writeUint32Returner(t *testing.T, proc *Process, addr uintptr, value uint32) {
	t.Helper()
	code := []byte{0xB8, byte(value), byte(value >> 8), byte(value >> 16), byte(value >> 24), 0xC3}
	require.NoError(t, defaultMemIO.WriteBytes(proc, addr, code))
	require.NoError(t, defaultMemIO.FlushICache(proc, addr, len(code)))
}

func allocExecutable(t *testing.T, proc *Process, size int) *Allocation {
	t.Helper()
	alloc, err := defaultAllocator.Alloc(proc, size)
	require.NoError(t, err)
	t.Cleanup(func() { defaultAllocator.Free(alloc) })
	return alloc
}

// TestDetourPatchNearDetourEndToEnd is spec.md §8 scenario 2 (x64 near
// detour): a 6-byte "return a constant" target is redirected to a detour
// with a different constant, and the trampoline still reaches the
// original behavior.
func TestDetourPatchNearDetourEndToEnd(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 64)
	targetAddr := region.Base
	detourAddr := region.Base + 16

	writeUint32Returner(t, proc, targetAddr, 0x11223344)
	writeUint32Returner(t, proc, detourAddr, 0xAABBCCDD)

	dp := NewDetourPatch(proc, targetAddr, detourAddr)
	require.NoError(t, dp.Apply())
	t.Cleanup(func() { dp.Detach() })

	target := asUint32Func(targetAddr)
	require.EqualValues(t, 0xAABBCCDD, target())

	trampoline := asUint32Func(dp.TrampolinePtr())
	require.EqualValues(t, 0x11223344, trampoline())

	require.NoError(t, dp.Remove())
	require.EqualValues(t, 0x11223344, target())
}

// TestDetourPatchApplyRemoveIsIdentity covers spec.md §8's "apply then
// remove is the identity on the target bytes" invariant.
func TestDetourPatchApplyRemoveIsIdentity(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 64)
	targetAddr := region.Base
	detourAddr := region.Base + 16
	writeUint32Returner(t, proc, targetAddr, 1)
	writeUint32Returner(t, proc, detourAddr, 2)

	before, err := defaultMemIO.ReadBytes(proc, targetAddr, 6)
	require.NoError(t, err)

	dp := NewDetourPatch(proc, targetAddr, detourAddr)
	require.NoError(t, dp.Apply())
	require.NoError(t, dp.Remove())
	t.Cleanup(func() { dp.Detach() })

	after, err := defaultMemIO.ReadBytes(proc, targetAddr, 6)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

// TestDetourPatchDoubleApplyAndRemoveAreIdempotent covers spec.md §8's
// idempotence invariant.
func TestDetourPatchDoubleApplyAndRemoveAreIdempotent(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 64)
	targetAddr := region.Base
	detourAddr := region.Base + 16
	writeUint32Returner(t, proc, targetAddr, 1)
	writeUint32Returner(t, proc, detourAddr, 2)

	dp := NewDetourPatch(proc, targetAddr, detourAddr)
	require.NoError(t, dp.Apply())
	require.NoError(t, dp.Apply()) // no-op per spec.md §8
	require.True(t, dp.IsApplied())

	require.NoError(t, dp.Remove())
	require.NoError(t, dp.Remove()) // no-op per spec.md §8
	require.False(t, dp.IsApplied())

	dp.Detach()
}

// TestDetourPatchRelocatesRelativeCallInPrologue is spec.md §8 scenario 4:
// the patched-over prologue contains a relative CALL, which buildTrampoline
// must relocate (on x64, to an indirect call through an island holding the
// callee's absolute address) rather than copy verbatim, or the relocated
// call would land at the wrong address.
func TestDetourPatchRelocatesRelativeCallInPrologue(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 64)
	helperAddr := region.Base + 32
	targetAddr := region.Base
	detourAddr := region.Base + 16

	writeUint32Returner(t, proc, helperAddr, 0x12345678)
	writeUint32Returner(t, proc, detourAddr, 0xDEADBEEF)

	rel32 := int32(int64(helperAddr) - int64(targetAddr+5))
	callHelper := []byte{0xE8, byte(rel32), byte(rel32 >> 8), byte(rel32 >> 16), byte(rel32 >> 24), 0xC3}
	require.NoError(t, defaultMemIO.WriteBytes(proc, targetAddr, callHelper))
	require.NoError(t, defaultMemIO.FlushICache(proc, targetAddr, len(callHelper)))

	dp := NewDetourPatch(proc, targetAddr, detourAddr)
	require.NoError(t, dp.Apply())
	t.Cleanup(func() { dp.Detach() })

	target := asUint32Func(targetAddr)
	require.EqualValues(t, 0xDEADBEEF, target())

	trampoline := asUint32Func(dp.TrampolinePtr())
	require.EqualValues(t, 0x12345678, trampoline())

	require.NoError(t, dp.Remove())
}

// TestBreakpointPatchUnimplementedOffWindows covers the non-windows half of
// breakpointOps: 0xCC dispatch needs the vectored handler dispatcher_other.go
// refuses to install, so Apply must fail closed rather than leave an
// unhandled trap byte in place.
func TestBreakpointPatchUnimplementedOffWindows(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exercises the non-windows breakpointOps stub")
	}

	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 64)
	targetAddr := region.Base
	writeUint32Returner(t, proc, targetAddr, 0x42)

	dp := NewBreakpointPatch(proc, targetAddr, targetAddr+0x100)
	err = dp.Apply()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnimplemented)
	require.False(t, dp.IsApplied())
}
