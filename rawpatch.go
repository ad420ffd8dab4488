package detour

import (
	"runtime"
	"sync"
)

// RawPatch implements spec.md §4.1: overwrite N bytes at target, restoring
// them on Remove. It shares the freeze/busy-check protocol every other
// patch kind uses but does no disassembly or trampoline work.
type RawPatch struct {
	mu sync.Mutex

	process *Process
	target  uintptr
	desired []byte
	memIO   MemoryIO
	freezer ThreadFreezer

	saved    []byte
	applied  bool
	detached bool
}

// NewRawPatch constructs an inert RawPatch. No side effects occur until
// Apply is called.
func NewRawPatch(process *Process, target uintptr, desired []byte) *RawPatch {
	p := &RawPatch{
		process: process,
		target:  target,
		desired: append([]byte(nil), desired...),
		memIO:   defaultMemIO,
		freezer: defaultThreadFreezer,
	}
	runtime.SetFinalizer(p, (*RawPatch).noThrowRemove)
	return p
}

// Apply implements spec.md §4.1's algorithm: freeze, verify no other
// thread's pc is inside the target range, read+save the original bytes,
// write desired, flush.
func (p *RawPatch) Apply() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.detached || p.applied {
		return nil
	}

	guard, err := p.freezer.SuspendAllExceptCurrent(p.process)
	if err != nil {
		return err
	}
	defer guard.Release()

	busy, err := guard.AnyThreadIn(p.target, p.target+uintptr(len(p.desired)))
	if err != nil {
		return err
	}
	if busy {
		return wrapErr(ErrBusyTarget, 0, "another thread is executing inside the patch target")
	}

	saved, err := p.memIO.ReadBytes(p.process, p.target, len(p.desired))
	if err != nil {
		return err
	}
	if err := p.memIO.WriteBytes(p.process, p.target, p.desired); err != nil {
		return err
	}
	if err := p.memIO.FlushICache(p.process, p.target, len(p.desired)); err != nil {
		return err
	}

	p.saved = saved
	p.applied = true
	return nil
}

// Remove restores the bytes RawPatch saved at Apply time. Unlike DetourPatch,
// RawPatch holds no deferred allocation, so a successful Remove needs no
// further destructor-time work; the finalizer is cleared here rather than
// left armed until Detach.
func (p *RawPatch) Remove() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.detached || !p.applied {
		return nil
	}

	guard, err := p.freezer.SuspendAllExceptCurrent(p.process)
	if err != nil {
		return err
	}
	defer guard.Release()

	busy, err := guard.AnyThreadIn(p.target, p.target+uintptr(len(p.desired)))
	if err != nil {
		return err
	}
	if busy {
		return wrapErr(ErrBusyTarget, 0, "another thread is executing inside the patch target")
	}

	if err := p.memIO.WriteBytes(p.process, p.target, p.saved); err != nil {
		return err
	}
	if err := p.memIO.FlushICache(p.process, p.target, len(p.saved)); err != nil {
		return err
	}

	p.applied = false
	runtime.SetFinalizer(p, nil)
	return nil
}

// Detach transitions the patch to a terminal inert state without touching
// the target bytes.
func (p *RawPatch) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached = true
	p.applied = false
	runtime.SetFinalizer(p, nil)
}

// IsApplied reports whether desired bytes are currently installed.
func (p *RawPatch) IsApplied() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.applied
}

func (p *RawPatch) noThrowRemove() {
	defer func() { recover() }()
	if err := p.Remove(); err != nil {
		traceLogger.Printf("destructor-time remove failed for raw patch at %#x: %v", p.target, err)
	}
	p.Detach()
}
