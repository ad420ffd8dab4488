package detour

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNearQuirk(t *testing.T) {
	// Preserves spec.md §9: positive displacements are near even beyond
	// what a rel32 can truly encode, negative displacements are never near.
	assert.True(t, isNear(0x1000, 0x2000), "small positive displacement")
	assert.False(t, isNear(0x2000, 0x1000), "negative displacement is never near")
	assert.True(t, isNear(0, 0xFFFFFFFE), "large positive displacement still reports near")
	assert.False(t, isNear(0, 5), "zero displacement after accounting for instruction length is not > 0")
}

func TestPlanPatchSizeDefault(t *testing.T) {
	assert.Equal(t, relJumpLen, planPatchSizeDefault(32, 0x1000, 0x9000000), "x86 is always 5 bytes")
	assert.Equal(t, relJumpLen, planPatchSizeDefault(64, 0x1000, 0x2000), "near x64 target uses rel32")
	assert.Equal(t, indirectLen, planPatchSizeDefault(64, 0x7FFF00000000, 0x1000), "far x64 target needs an indirect island")
}

func TestEncodeRel32(t *testing.T) {
	buf := encodeRel32(0xE9, 0x1000, 0x1010)
	require.Len(t, buf, 5)
	assert.Equal(t, byte(0xE9), buf[0])
	// disp = to - from - 5 = 0x1010 - 0x1000 - 5 = 0x0B
	assert.Equal(t, byte(0x0B), buf[1])
	assert.Equal(t, byte(0), buf[2])
	assert.Equal(t, byte(0), buf[3])
	assert.Equal(t, byte(0), buf[4])
}

func TestEncodePushRet32UsesSixBytesForLowAddresses(t *testing.T) {
	buf := encodePushRet32(0x00401000)
	require.Len(t, buf, pushRet32Len)
	assert.Equal(t, byte(0x68), buf[0])
	assert.Equal(t, byte(0xC3), buf[len(buf)-1])
}

func TestEncodePushRet64UsesFourteenBytesForHighAddresses(t *testing.T) {
	buf := encodePushRet64(0x00007FF712340000)
	require.Len(t, buf, pushRet64Len)
	assert.Equal(t, byte(0x68), buf[0])
	assert.Equal(t, byte(0xC7), buf[5])
	assert.Equal(t, byte(0xC3), buf[len(buf)-1])
}

func TestWriteJumpX86AlwaysUsesRel32(t *testing.T) {
	proc := &Process{Bitness: 32, selfProcess: true}
	wj, err := writeJump(proc, nil, 0x1000, 0x2000, false)
	require.NoError(t, err)
	assert.Len(t, wj.Code, relJumpLen)
	assert.Nil(t, wj.Island)
}

func TestWriteCallX86AlwaysUsesRel32(t *testing.T) {
	proc := &Process{Bitness: 32, selfProcess: true}
	wj, err := writeCall(proc, nil, 0x1000, 0x2000)
	require.NoError(t, err)
	assert.Len(t, wj.Code, relCallLen)
	assert.Equal(t, byte(0xE8), wj.Code[0])
}
