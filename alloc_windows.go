//go:build windows

package detour

import (
	"golang.org/x/sys/windows"
)

type osAllocator struct{}

func newOSAllocator() Allocator { return osAllocator{} }

func winPageSize() uintptr {
	var info windows.SystemInfo
	windows.GetSystemInfo(&info)
	if info.PageSize == 0 {
		return 0x1000
	}
	return uintptr(info.PageSize)
}

func (osAllocator) Alloc(proc *Process, size int) (*Allocation, error) {
	addr, err := windows.VirtualAllocEx(windows.Handle(proc.Handle), 0, uintptr(size),
		windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
	if err != nil {
		return nil, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "VirtualAllocEx")
	}
	return &Allocation{proc: proc, Base: addr, Size: size}, nil
}

// AllocNear implements spec.md §4.2's "forward first, then backward" scan
// for a page-aligned slot within ±(2 GiB − ε) of preferred. Only meaningful
// on x64 targets; on x86 there is no reach limit so it degrades to Alloc.
func (osAllocator) AllocNear(proc *Process, size int, preferred uintptr) (*Allocation, error) {
	if proc.Bitness != 64 {
		return osAllocator{}.Alloc(proc, size)
	}

	page := winPageSize()
	step := page
	if uintptr(size) > page {
		step = (uintptr(size) + page - 1) &^ (page - 1)
	}

	base := preferred &^ (page - 1)
	h := windows.Handle(proc.Handle)

	for off := uintptr(0); off < nearSearchRange; off += step {
		addr := base + off
		if addr < base { // overflow
			break
		}
		got, err := windows.VirtualAllocEx(h, addr, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
		if err == nil {
			return &Allocation{proc: proc, Base: got, Size: size}, nil
		}
	}

	for off := step; off < nearSearchRange; off += step {
		if off > base { // would underflow
			break
		}
		addr := base - off
		got, err := windows.VirtualAllocEx(h, addr, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_EXECUTE_READWRITE)
		if err == nil {
			return &Allocation{proc: proc, Base: got, Size: size}, nil
		}
	}

	return nil, wrapErr(ErrUnreachableTarget, 0, "no page-aligned slot found within reach of preferred address")
}

func (osAllocator) Free(alloc *Allocation) error {
	if alloc == nil || alloc.freed {
		return nil
	}
	err := windows.VirtualFreeEx(windows.Handle(alloc.proc.Handle), alloc.Base, 0, windows.MEM_RELEASE)
	alloc.freed = true
	if err != nil {
		return wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "VirtualFreeEx")
	}
	return nil
}
