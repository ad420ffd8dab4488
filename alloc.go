package detour

// Allocation is an owned page (or multiple pages) in a target process.
// It is freed by Free; callers must not use Base after that.
type Allocation struct {
	proc  *Process
	Base  uintptr
	Size  int
	freed bool
}

// Allocator allocates and frees page-sized regions in a target process. x64
// backends additionally support "near" placement: a preferred address plus
// a forward-then-backward scan within ±2 GiB (see SPEC_FULL.md / spec.md §4.2
// for the forward-first rationale).
type Allocator interface {
	Alloc(proc *Process, size int) (*Allocation, error)
	AllocNear(proc *Process, size int, preferred uintptr) (*Allocation, error)
	Free(alloc *Allocation) error
}

var defaultAllocator Allocator = newOSAllocator()

// twoGiB minus a safety margin, matching hadesmem's own reach budget for
// near-page search (spec.md §4.2 "±(2 GiB − ε)").
const nearSearchRange = uintptr(1)<<31 - 0x10000
