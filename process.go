package detour

// Process is a borrowed (never owned) identity of a target address space.
// Every patch holds a *Process; none of them close it.
type Process struct {
	// PID is the numeric process id.
	PID uint32
	// Handle is the OS-level handle used for memory/thread operations. On
	// windows this is a windows.Handle; on other platforms it is unused
	// (self-process only) and left zero.
	Handle uintptr
	// Bitness is 32 or 64, the addressing width of the target process.
	Bitness int
	// selfProcess is true when Handle/PID identify the calling process,
	// which is the only configuration non-windows builds support and the
	// only one Breakpoint/DebugRegister patches support anywhere.
	selfProcess bool
}

// IsSelf reports whether this handle identifies the calling process.
func (p *Process) IsSelf() bool {
	return p != nil && p.selfProcess
}

func (p *Process) disasmMode() int {
	if p.Bitness == 32 {
		return 32
	}
	return 64
}
