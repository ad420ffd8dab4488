package detour

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// patchOps is the capability set spec.md §9's Design Notes ask for in place
// of virtual GetPatchSize/WritePatch/RemovePatch/CanHookChainImpl overrides:
// DetourPatch.Apply/Remove orchestrate the algorithm in spec.md §4.2.2 and
// dispatch the three varying steps through this struct. BreakpointPatch and
// DebugRegisterPatch are constructors that build a *DetourPatch with a
// different patchOps value rather than distinct subclasses.
type patchOps struct {
	// planPatchSize returns the number of target bytes the redirection
	// overwrites (or reserves, for DebugRegisterPatch).
	planPatchSize func(dp *DetourPatch) int
	// writeRedirection installs the redirection once the trampoline is
	// built and the original prologue bytes are saved. It must not touch
	// dp.saved; DetourPatch.Apply has already populated it.
	writeRedirection func(dp *DetourPatch) error
	// removeRedirection undoes writeRedirection, restoring target to the
	// state DetourPatch.Apply found it in.
	removeRedirection func(dp *DetourPatch) error
	// supportsChain reports whether another detour may be installed on
	// top of this one's trampoline tail jump (spec.md Glossary "hook chain").
	supportsChain bool
}

// defaultPatchOps is the byte-patch (immediate jump) strategy: spec.md
// §4.2's planner picks 5 or 6 bytes, writeRedirection installs the jump
// writeJump() produced, removeRedirection restores the saved prologue.
var defaultPatchOps = patchOps{
	planPatchSize: func(dp *DetourPatch) int {
		return planPatchSizeDefault(dp.process.Bitness, dp.target, dp.detour)
	},
	writeRedirection: func(dp *DetourPatch) error {
		wj, err := writeJump(dp.process, dp.allocator, dp.target, dp.detour, false)
		if err != nil {
			return err
		}
		if wj.Island != nil {
			dp.islands = append(dp.islands, wj.Island)
		}
		return dp.memIO.WriteBytes(dp.process, dp.target, wj.Code)
	},
	removeRedirection: func(dp *DetourPatch) error {
		return dp.memIO.WriteBytes(dp.process, dp.target, dp.saved)
	},
	supportsChain: true,
}

// DetourPatch is the heart of the core (spec.md §4.2): it relocates a
// function's prologue into a generated trampoline and overwrites the
// prologue with a redirection to detour. GetTrampoline (TrampolinePtr)
// returns a pointer usable as the original function.
type DetourPatch struct {
	mu sync.Mutex

	process   *Process
	target    uintptr
	detour    uintptr
	memIO     MemoryIO
	allocator Allocator
	freezer   ThreadFreezer
	ops       patchOps

	trampoline *trampoline
	islands    []*Allocation
	saved      []byte

	// drTID/drIndex are populated by debugRegisterOps only (spec.md §4.4):
	// the OS thread id and Dr0-3 index the redirection was programmed on,
	// needed by removeRedirection to clear the same register on the same
	// thread.
	drTID   uint32
	drIndex int

	applied  bool
	detached bool

	refCount uint32 // atomic, user-managed (spec.md §5 "operator's promise")
}

// NewDetourPatch constructs an inert DetourPatch. No side effects occur
// until Apply is called.
func NewDetourPatch(process *Process, target, detourAddr uintptr) *DetourPatch {
	dp := &DetourPatch{
		process:   process,
		target:    target,
		detour:    detourAddr,
		memIO:     defaultMemIO,
		allocator: defaultAllocator,
		freezer:   defaultThreadFreezer,
		ops:       defaultPatchOps,
	}
	runtime.SetFinalizer(dp, (*DetourPatch).noThrowRemove)
	return dp
}

func (dp *DetourPatch) patchSize() int {
	return dp.ops.planPatchSize(dp)
}

// Apply implements spec.md §4.2.2's apply algorithm.
func (dp *DetourPatch) Apply() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()

	if dp.detached || dp.applied {
		return nil // idempotent (spec.md §6, §8)
	}

	cycle := uuid.New().String()
	traceLogger.Printf("apply cycle=%s target=%#x detour=%#x", cycle, dp.target, dp.detour)

	// 1. Clear any stale trampoline/islands deferred from a previous cycle
	// (spec.md §4.2.2 step 1, §5 ordering guarantee 3).
	dp.freeTrampolineAndIslands()

	size := dp.patchSize()

	guard, err := dp.freezer.SuspendAllExceptCurrent(dp.process)
	if err != nil {
		return err
	}
	defer guard.Release()

	tr, err := buildTrampoline(dp.process, dp.memIO, dp.allocator, dp.target, size)
	if err != nil {
		return err
	}

	saved, err := dp.memIO.ReadBytes(dp.process, dp.target, size)
	if err != nil {
		freeIslands(dp.allocator, tr.islands)
		dp.allocator.Free(tr.alloc)
		return err
	}

	busy, err := guard.AnyThreadIn(dp.target, dp.target+uintptr(size))
	if err != nil {
		freeIslands(dp.allocator, tr.islands)
		dp.allocator.Free(tr.alloc)
		return err
	}
	if busy {
		freeIslands(dp.allocator, tr.islands)
		dp.allocator.Free(tr.alloc)
		return wrapErr(ErrBusyTarget, 0, "another thread is executing inside the patch target")
	}

	dp.trampoline = tr
	dp.islands = append([]*Allocation(nil), tr.islands...)
	dp.saved = saved

	if err := dp.ops.writeRedirection(dp); err != nil {
		freeIslands(dp.allocator, dp.islands)
		dp.allocator.Free(tr.alloc)
		dp.trampoline, dp.islands, dp.saved = nil, nil, nil
		return err
	}
	if err := dp.memIO.FlushICache(dp.process, dp.target, size); err != nil {
		return err
	}

	dp.applied = true
	return nil
}

// Remove implements spec.md §4.2.2's remove algorithm. The trampoline is
// intentionally left allocated (freed on the next Apply or on destruction)
// per spec.md's "trampoline lifetime" design note.
func (dp *DetourPatch) Remove() error {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.removeLocked()
}

func (dp *DetourPatch) removeLocked() error {
	if dp.detached || !dp.applied {
		return nil // idempotent
	}

	guard, err := dp.freezer.SuspendAllExceptCurrent(dp.process)
	if err != nil {
		return err
	}
	defer guard.Release()

	size := dp.patchSize()

	busyTarget, err := guard.AnyThreadIn(dp.target, dp.target+uintptr(size))
	if err != nil {
		return err
	}
	var busyTramp bool
	if dp.trampoline != nil {
		busyTramp, err = guard.AnyThreadIn(dp.trampoline.alloc.Base, dp.trampoline.alloc.Base+uintptr(dp.trampoline.alloc.Size))
		if err != nil {
			return err
		}
	}
	if busyTarget || busyTramp {
		return wrapErr(ErrBusyTarget, 0, "a thread is mid-flight in the patched prologue or trampoline")
	}

	if err := dp.ops.removeRedirection(dp); err != nil {
		return err
	}
	if err := dp.memIO.FlushICache(dp.process, dp.target, size); err != nil {
		return err
	}

	dp.applied = false
	return nil
}

// Detach transitions the patch to a terminal inert state without touching
// the target bytes, so destruction performs no further syscalls (spec.md
// §3 "further operations are no-ops").
func (dp *DetourPatch) Detach() {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.detached = true
	dp.applied = false
	dp.trampoline, dp.islands, dp.saved = nil, nil, nil
	runtime.SetFinalizer(dp, nil)
}

// IsApplied reports whether the redirection is currently installed.
func (dp *DetourPatch) IsApplied() bool {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.applied
}

// TrampolinePtr returns a pointer usable as the original function, or 0 if
// the patch holds no trampoline (none built yet, or dropped by Detach or by
// an Apply that failed).
func (dp *DetourPatch) TrampolinePtr() uintptr {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	if dp.trampoline == nil {
		return 0
	}
	return dp.trampoline.alloc.Base
}

// PatchSize returns the number of target bytes this patch kind overwrites
// (for a debug-register patch, the 1 byte it reserves without writing).
func (dp *DetourPatch) PatchSize() int {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	return dp.patchSize()
}

// RefCount returns the user-managed atomic reference counter described in
// spec.md §5/§9: the library never touches it except to expose it.
func (dp *DetourPatch) RefCount() *uint32 {
	return &dp.refCount
}

// IncRef/DecRef are convenience wrappers an operator's detour body can call
// on entry/exit, per spec.md §5's "operator's promise" protocol.
func (dp *DetourPatch) IncRef() uint32 { return atomic.AddUint32(&dp.refCount, 1) }
func (dp *DetourPatch) DecRef() uint32 { return atomic.AddUint32(&dp.refCount, ^uint32(0)) }

func (dp *DetourPatch) freeTrampolineAndIslands() {
	if dp.trampoline == nil {
		return
	}
	freeIslands(dp.allocator, dp.islands)
	dp.allocator.Free(dp.trampoline.alloc)
	dp.trampoline = nil
	dp.islands = nil
}

// noThrowRemove is the destructor-time remove discipline spec.md §3/§7
// describe: any error is traced, never propagated, and the object forgets
// its references afterward so a second call is a no-op. After a successful
// remove the trampoline and islands kept alive by Remove are freed.
func (dp *DetourPatch) noThrowRemove() {
	removed := false
	func() {
		defer func() {
			if r := recover(); r != nil {
				traceLogger.Printf("panic during destructor-time remove: %v", r)
			}
		}()
		if err := dp.Remove(); err != nil {
			traceLogger.Printf("destructor-time remove failed, leaving target patched: %v", err)
			return
		}
		removed = true
	}()
	if removed {
		dp.mu.Lock()
		dp.freeTrampolineAndIslands()
		dp.mu.Unlock()
	}
	dp.Detach()
}
