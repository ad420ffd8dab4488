package detour

// This file implements spec.md §4.2.1, the jump/call writer and the reach
// test it depends on.

const (
	relJumpLen  = 5 // E9 rel32
	relCallLen  = 5 // E8 rel32
	indirectLen = 6 // FF 25 00 00 00 00 (dereferences an 8-byte pointer slot)
	pushRet32Len = 6  // 68 imm32 ; C3
	pushRet64Len = 14 // 68 imm32 ; C7 44 24 04 imm32 ; C3
)

// isNear preserves spec.md §9's documented quirk verbatim: hadesmem's
// IsNear compares a signed 64-bit displacement against
// numeric_limits<uint32_t>::{min,max}, which, because intptr_t can
// represent every uint32_t value, get promoted to 0 and 4294967295 rather
// than the true signed ±2^31 range. The practical effect: negative
// displacements are never "near" (always take the far path), and positive
// displacements up to just under 4 GiB are treated as near even though a
// rel32 can only encode up to 2^31-1. This is preserved rather than fixed,
// per spec.md §9's Open Question.
func isNear(from, to uintptr) bool {
	rel := int64(to) - int64(from) - 5
	return rel > 0 && rel < 0xFFFFFFFF
}

// planPatchSizeDefault implements spec.md §4.2's patch-size planner for the
// default (detour) capability: x86 is always 5 bytes; x64 is 5 when the
// displacement from target+5 to detour is near by isNear, else 6 (indirect
// through an island).
func planPatchSizeDefault(bitness int, target, detour uintptr) int {
	if bitness == 32 {
		return relJumpLen
	}
	if isNear(target, detour) {
		return relJumpLen
	}
	return indirectLen
}

// writtenJump is the bytes to install plus any island allocation it needed.
type writtenJump struct {
	Code   []byte
	Island *Allocation
}

// writeJump implements the §4.2.1 decision tree for an unconditional jump
// from `from` (the address the jump instruction will occupy) to `to`.
// allowPushRet gates the push/ret fallback, which clobbers the top of
// stack and is only safe at the trampoline's own tail jump, never when
// relocating a branch found inside the original prologue.
func writeJump(proc *Process, alloc Allocator, from, to uintptr, allowPushRet bool) (writtenJump, error) {
	if proc.Bitness == 32 {
		return writtenJump{Code: encodeRel32(0xE9, from, to)}, nil
	}

	if isNear(from, to) {
		return writtenJump{Code: encodeRel32(0xE9, from, to)}, nil
	}

	if island, err := alloc.AllocNear(proc, 8, from); err == nil {
		disp := int64(island.Base) - int64(from) - indirectLen
		if disp == int64(int32(disp)) {
			if err := defaultMemIO.WriteBytes(proc, island.Base, encodePointer(to)); err == nil {
				return writtenJump{Code: encodeRIPIndirect(from, island.Base), Island: island}, nil
			}
		}
		alloc.Free(island)
	}

	if !allowPushRet {
		return writtenJump{}, wrapErr(ErrUnreachableTarget, 0, "no island available and push/ret not permitted here")
	}

	if to>>32 == 0 {
		return writtenJump{Code: encodePushRet32(to)}, nil
	}
	return writtenJump{Code: encodePushRet64(to)}, nil
}

// writeCall implements §4.2.1's "x64 call writer: always uses an indirect
// through a near page; no push/ret form."
func writeCall(proc *Process, alloc Allocator, from, to uintptr) (writtenJump, error) {
	if proc.Bitness == 32 {
		return writtenJump{Code: encodeRel32(0xE8, from, to)}, nil
	}

	island, err := alloc.AllocNear(proc, 8, from)
	if err != nil {
		return writtenJump{}, wrapErr(ErrUnreachableTarget, 0, "no island available for call target")
	}
	if disp := int64(island.Base) - int64(from) - indirectLen; disp != int64(int32(disp)) {
		alloc.Free(island)
		return writtenJump{}, wrapErr(ErrUnreachableTarget, 0, "island for call target is out of rel32 reach")
	}
	if err := defaultMemIO.WriteBytes(proc, island.Base, encodePointer(to)); err != nil {
		alloc.Free(island)
		return writtenJump{}, err
	}
	return writtenJump{Code: encodeRIPIndirectCall(from, island.Base), Island: island}, nil
}

func encodeRel32(opcode byte, from, to uintptr) []byte {
	disp := int32(int64(to) - int64(from) - 5)
	buf := make([]byte, 5)
	buf[0] = opcode
	buf[1] = byte(disp)
	buf[2] = byte(disp >> 8)
	buf[3] = byte(disp >> 16)
	buf[4] = byte(disp >> 24)
	return buf
}

// encodeRIPIndirect emits `FF 25 00 00 00 00` (JMP qword ptr [RIP+0]),
// which dereferences the 8-byte pointer slot placed immediately after the
// 6-byte instruction (disp32 == 0 means "the very next bytes", but here
// the pointer lives in a separate island allocation, so disp32 is computed
// relative to that island instead).
func encodeRIPIndirect(from, islandAddr uintptr) []byte {
	disp := int32(int64(islandAddr) - int64(from) - indirectLen)
	buf := []byte{0xFF, 0x25, byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)}
	return buf
}

func encodeRIPIndirectCall(from, islandAddr uintptr) []byte {
	disp := int32(int64(islandAddr) - int64(from) - indirectLen)
	return []byte{0xFF, 0x15, byte(disp), byte(disp >> 8), byte(disp >> 16), byte(disp >> 24)}
}

func encodePointer(p uintptr) []byte {
	v := uint64(p)
	buf := make([]byte, 8)
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * i))
	}
	return buf
}

// encodePushRet32 emits `PUSH imm32 ; RET` (6 bytes) for destinations whose
// high 32 bits are zero.
func encodePushRet32(to uintptr) []byte {
	v := uint32(to)
	return []byte{
		0x68, byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24),
		0xC3,
	}
}

// encodePushRet64 emits a push-low/mov-high/ret sequence (14 bytes) that
// reconstructs a full 64-bit destination on the stack before returning into
// it: `PUSH imm32(low) ; MOV dword [RSP+4], imm32(high) ; RET`.
func encodePushRet64(to uintptr) []byte {
	v := uint64(to)
	lo := uint32(v)
	hi := uint32(v >> 32)
	buf := []byte{
		0x68, byte(lo), byte(lo >> 8), byte(lo >> 16), byte(lo >> 24),
		0xC7, 0x44, 0x24, 0x04, byte(hi), byte(hi >> 8), byte(hi >> 16), byte(hi >> 24),
		0xC3,
	}
	return buf
}
