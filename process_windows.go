//go:build windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// CurrentProcess returns a Process handle identifying the calling process.
func CurrentProcess() (*Process, error) {
	return &Process{
		PID:         windows.GetCurrentProcessId(),
		Handle:      uintptr(windows.CurrentProcess()),
		Bitness:     hostBitness(),
		selfProcess: true,
	}, nil
}

// OpenProcess opens a foreign process by pid for the memory and thread
// access the engine needs (VM read/write/query, thread suspend/resume/context).
func OpenProcess(pid uint32) (*Process, error) {
	const access = windows.PROCESS_VM_READ | windows.PROCESS_VM_WRITE |
		windows.PROCESS_VM_OPERATION | windows.PROCESS_QUERY_INFORMATION |
		windows.PROCESS_SUSPEND_RESUME

	h, err := windows.OpenProcess(access, false, pid)
	if err != nil {
		return nil, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "OpenProcess")
	}
	bitness, err := processBitness(h)
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	self := pid == windows.GetCurrentProcessId()
	return &Process{PID: pid, Handle: uintptr(h), Bitness: bitness, selfProcess: self}, nil
}

func hostBitness() int {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		return 64
	}
	return 32
}

// processBitness determines whether pid is a 32- or 64-bit process by
// checking IsWow64Process against the host's own bitness.
func processBitness(h windows.Handle) (int, error) {
	if hostBitness() == 32 {
		// A 32-bit tool can only ever see 32-bit targets (or fail to open
		// 64-bit ones in the first place).
		return 32, nil
	}
	var wow64 bool
	if err := windows.IsWow64Process(h, &wow64); err != nil {
		return 0, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "IsWow64Process")
	}
	if wow64 {
		return 32, nil
	}
	return 64, nil
}

func errnoOf(err error) uintptr {
	if errno, ok := err.(windows.Errno); ok {
		return uintptr(errno)
	}
	return 0
}
