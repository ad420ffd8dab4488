package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshRegistry() *registry {
	return &registry{
		breakpoints: make(map[uintptr]*DetourPatch),
		debugRegs:   make(map[uintptr]*DetourPatch),
		threadDR:    make(map[uint32]int),
	}
}

func TestRegisterBreakpointRejectsDuplicate(t *testing.T) {
	r := freshRegistry()
	dp1 := &DetourPatch{target: 0x1000}
	dp2 := &DetourPatch{target: 0x1000}

	require.NoError(t, r.registerBreakpoint(0x1000, dp1))
	err := r.registerBreakpoint(0x1000, dp2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateHook)

	got, ok := r.lookupBreakpoint(0x1000)
	assert.True(t, ok)
	assert.Same(t, dp1, got)
}

func TestUnregisterBreakpointAllowsReuse(t *testing.T) {
	r := freshRegistry()
	dp1 := &DetourPatch{target: 0x2000}
	require.NoError(t, r.registerBreakpoint(0x2000, dp1))
	r.unregisterBreakpoint(0x2000)

	_, ok := r.lookupBreakpoint(0x2000)
	assert.False(t, ok)

	dp2 := &DetourPatch{target: 0x2000}
	assert.NoError(t, r.registerBreakpoint(0x2000, dp2))
}

func TestRegisterDebugRegisterRejectsSecondHookOnSameThread(t *testing.T) {
	r := freshRegistry()
	dp1 := &DetourPatch{target: 0x3000}
	dp2 := &DetourPatch{target: 0x4000}

	require.NoError(t, r.registerDebugRegister(0x3000, dp1, 42, 0))
	err := r.registerDebugRegister(0x4000, dp2, 42, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateHook)
}

func TestRegisterDebugRegisterRejectsDuplicateAddress(t *testing.T) {
	r := freshRegistry()
	dp1 := &DetourPatch{target: 0x3000}
	dp2 := &DetourPatch{target: 0x3000}

	require.NoError(t, r.registerDebugRegister(0x3000, dp1, 1, 0))
	err := r.registerDebugRegister(0x3000, dp2, 2, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateHook)
}

func TestUnregisterDebugRegisterFreesThreadSlot(t *testing.T) {
	r := freshRegistry()
	dp := &DetourPatch{target: 0x5000}
	require.NoError(t, r.registerDebugRegister(0x5000, dp, 7, 2))

	idx, ok := r.drIndexFor(7)
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	r.unregisterDebugRegister(0x5000, 7)
	_, ok = r.drIndexFor(7)
	assert.False(t, ok)

	dp2 := &DetourPatch{target: 0x5000}
	assert.NoError(t, r.registerDebugRegister(0x5000, dp2, 7, 0))
}
