package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOneDirectJump(t *testing.T) {
	// E9 disp32: JMP rel32, disp = 0x10.
	code := []byte{0xE9, 0x10, 0x00, 0x00, 0x00, 0x90, 0x90}
	inst, err := decodeOne(code, 64)
	require.NoError(t, err)
	assert.Equal(t, 5, inst.Len)
	assert.True(t, inst.isDirectBranch)
	assert.False(t, inst.isCall)
	assert.EqualValues(t, 0x10, inst.branchDisp)
}

func TestDecodeOneDirectCall(t *testing.T) {
	// E8 disp32: CALL rel32, disp = -0x20.
	code := []byte{0xE8, 0xE0, 0xFF, 0xFF, 0xFF}
	inst, err := decodeOne(code, 64)
	require.NoError(t, err)
	assert.True(t, inst.isDirectBranch)
	assert.True(t, inst.isCall)
	assert.EqualValues(t, -0x20, inst.branchDisp)
}

func TestDecodeOneRIPIndirectJump(t *testing.T) {
	// FF 25 disp32: JMP qword ptr [RIP+disp32], only meaningful in x64 mode.
	code := []byte{0xFF, 0x25, 0x08, 0x00, 0x00, 0x00}
	inst, err := decodeOne(code, 64)
	require.NoError(t, err)
	assert.Equal(t, 6, inst.Len)
	assert.True(t, inst.isRIPIndirect)
	assert.False(t, inst.isDirectBranch)
	assert.EqualValues(t, 0x08, inst.ripDisp)
}

func TestDecodeOneVerbatimInstruction(t *testing.T) {
	// 90: NOP, neither a branch nor RIP-indirect.
	code := []byte{0x90}
	inst, err := decodeOne(code, 64)
	require.NoError(t, err)
	assert.Equal(t, 1, inst.Len)
	assert.False(t, inst.isDirectBranch)
	assert.False(t, inst.isRIPIndirect)
}

func TestDecodeOneRejectsInvalidEncoding(t *testing.T) {
	_, err := decodeOne(nil, 64)
	require.Error(t, err)
}
