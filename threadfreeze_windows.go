//go:build windows

package detour

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

type osThreadFreezer struct{}

func newOSThreadFreezer() ThreadFreezer { return osThreadFreezer{} }

const threadAccess = windows.THREAD_SUSPEND_RESUME | windows.THREAD_GET_CONTEXT | windows.THREAD_SET_CONTEXT | windows.THREAD_QUERY_INFORMATION

func enumerateThreads(pid uint32) ([]uint32, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPTHREAD, pid)
	if err != nil {
		return nil, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "CreateToolhelp32Snapshot")
	}
	defer windows.CloseHandle(snap)

	var entry windows.ThreadEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	var ids []uint32
	if err := windows.Thread32First(snap, &entry); err != nil {
		return nil, wrapErr(ErrMemoryIO, uintptr(errnoOf(err)), "Thread32First")
	}
	for {
		if entry.OwnerProcessID == pid {
			ids = append(ids, entry.ThreadID)
		}
		entry.Size = uint32(unsafe.Sizeof(entry))
		if err := windows.Thread32Next(snap, &entry); err != nil {
			break
		}
	}
	return ids, nil
}

// SuspendAllExceptCurrent implements spec.md §2.3/§4.1: it freezes every
// thread of proc except the caller's, releasing on Release() and exposing
// AnyThreadIn for the §4.1/§4.2.2 busy-target check.
func (osThreadFreezer) SuspendAllExceptCurrent(proc *Process) (*FreezeGuard, error) {
	selfTID := windows.GetCurrentThreadId()

	ids, err := enumerateThreads(proc.PID)
	if err != nil {
		return nil, err
	}

	type frozen struct {
		handle windows.Handle
		tid    uint32
	}
	var suspended []frozen
	for _, tid := range ids {
		if tid == selfTID {
			continue
		}
		h, err := windows.OpenThread(threadAccess, false, tid)
		if err != nil {
			continue // thread exited between enumeration and open; not an error
		}
		if _, err := windows.SuspendThread(h); err != nil {
			windows.CloseHandle(h)
			continue
		}
		suspended = append(suspended, frozen{handle: h, tid: tid})
	}

	release := func() {
		for _, f := range suspended {
			windows.ResumeThread(f.handle)
			windows.CloseHandle(f.handle)
		}
	}

	pcInRange := func(lo, hi uintptr) (bool, error) {
		var ctx context64
		for _, f := range suspended {
			if err := getThreadContext(f.handle, &ctx); err != nil {
				continue
			}
			pc := uintptr(ctx.Rip)
			if pc >= lo && pc < hi {
				return true, nil
			}
		}
		return false, nil
	}

	return &FreezeGuard{proc: proc, release: release, pcInRange: pcInRange}, nil
}
