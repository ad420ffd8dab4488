//go:build windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

type osMemIO struct{}

func newOSMemIO() MemoryIO { return osMemIO{} }

func (osMemIO) ReadBytes(proc *Process, addr uintptr, length int) ([]byte, error) {
	buf := make([]byte, length)
	var n uintptr
	err := windows.ReadProcessMemory(windows.Handle(proc.Handle), addr, &buf[0], uintptr(length), &n)
	if err != nil {
		return nil, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "ReadProcessMemory")
	}
	return buf[:n], nil
}

func (osMemIO) WriteBytes(proc *Process, addr uintptr, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var n uintptr
	err := windows.WriteProcessMemory(windows.Handle(proc.Handle), addr, &data[0], uintptr(len(data)), &n)
	if err != nil {
		return wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "WriteProcessMemory")
	}
	if int(n) != len(data) {
		return wrapErr(ErrMemoryIO, 0, "short write")
	}
	return nil
}

func (osMemIO) FlushICache(proc *Process, addr uintptr, length int) error {
	err := windows.FlushInstructionCache(windows.Handle(proc.Handle), unsafe.Pointer(addr), uintptr(length))
	if err != nil {
		return wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "FlushInstructionCache")
	}
	return nil
}

// virtualProtect changes protection over [addr, addr+length) and returns the
// previous protection so the caller can restore it.
func virtualProtect(proc *Process, addr uintptr, length int, prot uint32) (uint32, error) {
	var old uint32
	err := windows.VirtualProtectEx(windows.Handle(proc.Handle), addr, uintptr(length), prot, &old)
	if err != nil {
		return 0, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "VirtualProtectEx")
	}
	return old, nil
}
