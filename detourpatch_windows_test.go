//go:build windows

package detour

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestBreakpointPatchCollision is spec.md §8 scenario 5: a second
// BreakpointPatch at an address already hooked fails with ErrDuplicateHook
// and the first patch remains applied.
func TestBreakpointPatchCollision(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 64)
	targetAddr := region.Base
	writeUint32Returner(t, proc, targetAddr, 0x42)

	dp1 := NewBreakpointPatch(proc, targetAddr, targetAddr+0x100)
	require.NoError(t, dp1.Apply())
	t.Cleanup(func() { dp1.Detach() })

	dp2 := NewBreakpointPatch(proc, targetAddr, targetAddr+0x200)
	err = dp2.Apply()
	require.Error(t, err)
	require.ErrorIs(t, err, ErrDuplicateHook)

	require.True(t, dp1.IsApplied())
	require.False(t, dp2.IsApplied())

	require.NoError(t, dp1.Remove())
}
