package detour

import (
	"golang.org/x/arch/x86/x86asm"
)

// decodedInst is the disassembler adapter's output: spec.md §2 item 5's
// "(mnemonic, length, operand kind, operand immediate/displacement)",
// reduced to exactly what the relocator (trampoline.go) needs.
type decodedInst struct {
	Len int

	// isDirectBranch is true for JMP/CALL imm8/16/32/64 (relocation case 1).
	isDirectBranch bool
	isCall         bool
	branchDisp     int64 // x86asm.Rel: offset from the address right after this instruction

	// isRIPIndirect is true for `JMP qword ptr [RIP+disp32]` (relocation
	// case 2, x64 only).
	isRIPIndirect bool
	ripDisp       int64
}

// decodeOne decodes a single instruction from code in the given processor
// mode (32 or 64), wrapping golang.org/x/arch/x86/x86asm the way the
// teacher's analysis()/locateAfterStackCheck() helpers do.
func decodeOne(code []byte, mode int) (decodedInst, error) {
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return decodedInst{}, wrapErr(ErrDisasm, 0, err.Error())
	}

	d := decodedInst{Len: inst.Len}

	switch inst.Op {
	case x86asm.JMP, x86asm.CALL:
		d.isCall = inst.Op == x86asm.CALL
		if rel, ok := inst.Args[0].(x86asm.Rel); ok {
			d.isDirectBranch = true
			d.branchDisp = int64(rel)
			return d, nil
		}
		if mem, ok := inst.Args[0].(x86asm.Mem); ok && mode == 64 && mem.Base == x86asm.RIP && inst.Op == x86asm.JMP {
			d.isRIPIndirect = true
			d.ripDisp = mem.Disp
			return d, nil
		}
	}

	return d, nil
}
