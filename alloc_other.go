//go:build !windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

type osAllocator struct{}

func newOSAllocator() Allocator { return osAllocator{} }

func (osAllocator) Alloc(proc *Process, size int) (*Allocation, error) {
	if !proc.IsSelf() {
		return nil, wrapErr(ErrRemoteUnsupported, 0, "remote allocation not supported on this platform")
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, wrapErr(ErrMemoryIO, 0, "mmap")
	}
	return &Allocation{proc: proc, Base: uintptr(unsafe.Pointer(&data[0])), Size: size}, nil
}

// AllocNear on non-windows self-process builds degrades to Alloc: mmap
// offers no "hint honored or fail" contract portable across the unix
// platforms this build supports, so the forward/backward scan spec.md §4.2
// describes cannot be implemented faithfully here. Direct near jumps still
// work whenever the OS happens to place the mapping within reach. writeJump
// and writeCall reject an island that lands out of rel32 reach; the
// trampoline's tail jump then falls back to push/ret, and any other jump or
// call fails with ErrUnreachableTarget.
func (osAllocator) AllocNear(proc *Process, size int, preferred uintptr) (*Allocation, error) {
	return osAllocator{}.Alloc(proc, size)
}

func (osAllocator) Free(alloc *Allocation) error {
	if alloc == nil || alloc.freed {
		return nil
	}
	alloc.freed = true
	data := addrSlice(alloc.Base, alloc.Size)
	if err := unix.Munmap(data); err != nil {
		return wrapErr(ErrMemoryIO, 0, "munmap")
	}
	return nil
}
