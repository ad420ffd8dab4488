package detour

// ThreadEntry identifies one thread of a target process for the purposes of
// the instruction-pointer probe (spec.md §6 "is_pc_in_range").
type ThreadEntry struct {
	ThreadID uint32
}

// ThreadFreezer suspends every thread of a process except the caller's own,
// for the duration of a byte-level patch mutation, and reports whether any
// suspended thread's program counter lies inside a given half-open range.
// SuspendAllExceptCurrent returns a Guard whose Release resumes every
// thread it suspended; it is safe to call Release more than once.
type ThreadFreezer interface {
	SuspendAllExceptCurrent(proc *Process) (*FreezeGuard, error)
}

// FreezeGuard is a scoped freeze: threads are resumed when Release runs on
// every exit path, matching spec.md §5's "scoped acquisition with
// guaranteed release."
type FreezeGuard struct {
	proc     *Process
	release  func()
	released bool
	// pcInRange reports whether any frozen thread's program counter lies
	// within [lo, hi).
	pcInRange func(lo, hi uintptr) (bool, error)
}

// Release resumes every thread this guard suspended. Idempotent.
func (g *FreezeGuard) Release() {
	if g == nil || g.released {
		return
	}
	g.released = true
	if g.release != nil {
		g.release()
	}
}

// AnyThreadIn reports whether any other thread's program counter lies
// within [lo, hi). Must be called while the guard is held.
func (g *FreezeGuard) AnyThreadIn(lo, hi uintptr) (bool, error) {
	if g == nil || g.pcInRange == nil {
		return false, nil
	}
	return g.pcInRange(lo, hi)
}

var defaultThreadFreezer ThreadFreezer = newOSThreadFreezer()
