package detour

// trampolineSize is "a single allocation sized 3 × 15 bytes" (spec.md
// §4.2): up to 15 bytes per relocated x86/x64 instruction, times a scratch
// budget of 3 max-length instructions' worth of prologue.
const (
	maxInstrLen    = 15
	trampolineSize = 3 * maxInstrLen
)

// trampoline is the relocated prologue plus its tail jump back into the
// original function, and the set of island allocations any relocated
// branch or the tail jump needed to reach its destination.
type trampoline struct {
	alloc      *Allocation
	code       []byte
	islands    []*Allocation
	prologueLn int // number of source bytes consumed from target
}

// buildTrampoline implements spec.md §4.2's prologue relocation algorithm:
// disassemble target one instruction at a time until at least patchSize
// bytes are consumed, relocating direct branches and RIP-indirect jumps and
// copying everything else verbatim, then append a tail jump back to
// target+prologueLen.
func buildTrampoline(proc *Process, mem MemoryIO, alloc Allocator, target uintptr, patchSize int) (*trampoline, error) {
	scratch, err := mem.ReadBytes(proc, target, maxInstrLen*3)
	if err != nil {
		return nil, err
	}

	tAlloc, err := alloc.AllocNear(proc, trampolineSize, target)
	if err != nil {
		return nil, err
	}

	tr := &trampoline{alloc: tAlloc}

	var out []byte
	consumed := 0
	mode := proc.disasmMode()

	for consumed < patchSize {
		if consumed >= len(scratch) {
			freeIslands(alloc, tr.islands)
			alloc.Free(tAlloc)
			return nil, wrapErr(ErrDisasm, 0, "prologue longer than scratch window")
		}

		inst, err := decodeOne(scratch[consumed:], mode)
		if err != nil {
			freeIslands(alloc, tr.islands)
			alloc.Free(tAlloc)
			return nil, err
		}

		instAddr := target + uintptr(consumed)

		switch {
		case inst.isDirectBranch:
			// absolute destination = base + len + disp, where base is the
			// address of this instruction (spec.md §4.2 case 1).
			dest := uintptr(int64(instAddr) + int64(inst.Len) + inst.branchDisp)
			emitAt := tAlloc.Base + uintptr(len(out))
			var wj writtenJump
			if inst.isCall {
				wj, err = writeCall(proc, alloc, emitAt, dest)
			} else {
				wj, err = writeJump(proc, alloc, emitAt, dest, false)
			}
			if err != nil {
				freeIslands(alloc, tr.islands)
				alloc.Free(tAlloc)
				return nil, err
			}
			if wj.Island != nil {
				tr.islands = append(tr.islands, wj.Island)
			}
			out = append(out, wj.Code...)

		case inst.isRIPIndirect:
			// `JMP qword ptr [RIP+disp32]`: resolve the pointer now and
			// emit a fresh direct jump to it (spec.md §4.2 case 2).
			ptrAddr := uintptr(int64(instAddr) + int64(inst.Len) + inst.ripDisp)
			ptrBytes, err := mem.ReadBytes(proc, ptrAddr, 8)
			if err != nil {
				freeIslands(alloc, tr.islands)
				alloc.Free(tAlloc)
				return nil, err
			}
			dest := decodePointer(ptrBytes)
			emitAt := tAlloc.Base + uintptr(len(out))
			wj, err := writeJump(proc, alloc, emitAt, dest, false)
			if err != nil {
				freeIslands(alloc, tr.islands)
				alloc.Free(tAlloc)
				return nil, err
			}
			if wj.Island != nil {
				tr.islands = append(tr.islands, wj.Island)
			}
			out = append(out, wj.Code...)

		default:
			out = append(out, scratch[consumed:consumed+inst.Len]...)
		}

		consumed += inst.Len
	}

	tr.prologueLn = consumed

	// Tail jump back to target+prologueLen. This is the one writeJump call
	// permitted to fall back to push/ret (spec.md §4.2.1).
	tailFrom := tAlloc.Base + uintptr(len(out))
	tailTo := target + uintptr(consumed)
	wj, err := writeJump(proc, alloc, tailFrom, tailTo, true)
	if err != nil {
		freeIslands(alloc, tr.islands)
		alloc.Free(tAlloc)
		return nil, err
	}
	if wj.Island != nil {
		tr.islands = append(tr.islands, wj.Island)
	}
	out = append(out, wj.Code...)

	if len(out) > trampolineSize {
		freeIslands(alloc, tr.islands)
		alloc.Free(tAlloc)
		return nil, wrapErr(ErrUnreachableTarget, 0, "relocated prologue overflowed trampoline allocation")
	}

	if err := mem.WriteBytes(proc, tAlloc.Base, out); err != nil {
		freeIslands(alloc, tr.islands)
		alloc.Free(tAlloc)
		return nil, err
	}
	if err := mem.FlushICache(proc, tAlloc.Base, len(out)); err != nil {
		freeIslands(alloc, tr.islands)
		alloc.Free(tAlloc)
		return nil, err
	}

	tr.code = out
	return tr, nil
}

func decodePointer(b []byte) uintptr {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return uintptr(v)
}

func freeIslands(alloc Allocator, islands []*Allocation) {
	for _, isl := range islands {
		alloc.Free(isl)
	}
}
