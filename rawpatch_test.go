package detour

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRawPatchApplyRemoveIsIdentity covers spec.md §8's "apply then remove
// is the identity on the target bytes" invariant for RawPatch.
func TestRawPatchApplyRemoveIsIdentity(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 16)
	require.NoError(t, defaultMemIO.WriteBytes(proc, region.Base, []byte{0x90, 0x90, 0x90, 0x90}))

	before, err := defaultMemIO.ReadBytes(proc, region.Base, 4)
	require.NoError(t, err)

	p := NewRawPatch(proc, region.Base, []byte{0xCC, 0xCC, 0xCC, 0xCC})
	require.NoError(t, p.Apply())

	during, err := defaultMemIO.ReadBytes(proc, region.Base, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xCC, 0xCC, 0xCC, 0xCC}, during)

	require.NoError(t, p.Remove())
	t.Cleanup(p.Detach)

	after, err := defaultMemIO.ReadBytes(proc, region.Base, 4)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

// TestRawPatchDoubleApplyAndRemoveAreIdempotent covers spec.md §8's
// idempotence invariant for RawPatch.
func TestRawPatchDoubleApplyAndRemoveAreIdempotent(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 16)
	require.NoError(t, defaultMemIO.WriteBytes(proc, region.Base, []byte{0x90, 0x90, 0x90, 0x90}))

	p := NewRawPatch(proc, region.Base, []byte{0xCC, 0xCC, 0xCC, 0xCC})
	require.NoError(t, p.Apply())
	require.NoError(t, p.Apply())
	require.True(t, p.IsApplied())

	require.NoError(t, p.Remove())
	require.NoError(t, p.Remove())
	require.False(t, p.IsApplied())

	p.Detach()
}

// TestRawPatchDetachLeavesBytesInPlace covers spec.md §4.1's Detach
// semantics: the terminal inert state is reached without touching memory.
func TestRawPatchDetachLeavesBytesInPlace(t *testing.T) {
	proc, err := CurrentProcess()
	require.NoError(t, err)

	region := allocExecutable(t, proc, 16)
	require.NoError(t, defaultMemIO.WriteBytes(proc, region.Base, []byte{0x90, 0x90, 0x90, 0x90}))

	p := NewRawPatch(proc, region.Base, []byte{0xCC, 0xCC, 0xCC, 0xCC})
	require.NoError(t, p.Apply())

	p.Detach()
	require.False(t, p.IsApplied())

	still, err := defaultMemIO.ReadBytes(proc, region.Base, 4)
	require.NoError(t, err)
	require.Equal(t, []byte{0xCC, 0xCC, 0xCC, 0xCC}, still)

	require.NoError(t, p.Apply())
	require.NoError(t, p.Remove())
}
