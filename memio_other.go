//go:build !windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// osMemIO on non-windows platforms only ever targets the current process:
// reads/writes are plain pointer dereferences and mprotect is used to make
// the target range writable.
type osMemIO struct{}

func newOSMemIO() MemoryIO { return osMemIO{} }

func addrSlice(addr uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}

func (osMemIO) ReadBytes(proc *Process, addr uintptr, length int) ([]byte, error) {
	if !proc.IsSelf() {
		return nil, wrapErr(ErrRemoteUnsupported, 0, "remote process memory io not supported on this platform")
	}
	buf := make([]byte, length)
	copy(buf, addrSlice(addr, length))
	return buf, nil
}

func (osMemIO) WriteBytes(proc *Process, addr uintptr, data []byte) error {
	if !proc.IsSelf() {
		return wrapErr(ErrRemoteUnsupported, 0, "remote process memory io not supported on this platform")
	}
	old, err := mprotectPage(addr, len(data), unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC)
	if err != nil {
		return err
	}
	copy(addrSlice(addr, len(data)), data)
	_, err = mprotectPage(addr, len(data), old)
	return err
}

func (osMemIO) FlushICache(proc *Process, addr uintptr, length int) error {
	// Go binaries on unix targets run with an executable, coherent icache
	// by the time WriteBytes's mprotect round-trip completes; no separate
	// flush syscall is portable across the unix platforms this build
	// supports.
	return nil
}

var pageSize = unix.Getpagesize()

func pageStart(addr uintptr) uintptr {
	return addr &^ (uintptr(pageSize) - 1)
}

func mprotectPage(addr uintptr, length int, prot int) (int, error) {
	start := pageStart(addr)
	end := pageStart(addr+uintptr(length)+uintptr(pageSize)-1) + uintptr(pageSize)
	data := addrSlice(start, int(end-start))
	// there is no portable "get current protection" syscall; the engine
	// always restores RX after writing, so the "previous" value it hands
	// back is simply RX.
	if err := unix.Mprotect(data, prot); err != nil {
		return 0, wrapErr(ErrMemoryIO, 0, "mprotect")
	}
	return unix.PROT_READ | unix.PROT_EXEC, nil
}
