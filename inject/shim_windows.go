//go:build windows

package inject

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

// CreateProcessFunc matches windows.CreateProcess's signature: the shim
// wraps whichever function a caller has hooked CreateProcessInternalW (or
// CreateProcessW) down to, and must be able to call through to it
// unmodified on the recursive path.
type CreateProcessFunc func(appName, cmdLine *uint16, procAttr, threadAttr *windows.SecurityAttributes,
	inheritHandles bool, creationFlags uint32, env *uint16, curDir *uint16,
	si *windows.StartupInfo, pi *windows.ProcessInformation) error

// Shim reproduces the re-entrancy idiom spec.md §4.6 describes for
// CreateProcessInternalWDetour. One Shim instance guards one hooked
// function; it is safe for concurrent use by multiple threads creating
// processes simultaneously.
type Shim struct {
	opts Options

	mu        sync.Mutex
	recursing map[uint32]bool // OS thread id -> inside our own call
}

// New builds a Shim. Either of opts.Inject and opts.SpawnHelper may be nil;
// Guard then skips that step and only resumes the child.
func New(opts ...Option) *Shim {
	return &Shim{
		opts:      buildOptions(opts...),
		recursing: make(map[uint32]bool),
	}
}

// Guard wraps a single CreateProcess call with the idiom: a thread-local
// recursion flag (so SpawnHelper re-entering this same hook from its own
// process creation does not recurse forever), a forced CREATE_SUSPENDED
// when the caller didn't already ask for one, bitness-mismatch detection
// that routes to SpawnHelper instead of Inject, and a deterministic resume
// on every exit path, matching spec.md's "last-error transparency, forced-
// suspend discipline, and deterministic resume" requirements.
func (s *Shim) Guard(create CreateProcessFunc, appName, cmdLine *uint16,
	procAttr, threadAttr *windows.SecurityAttributes, inheritHandles bool,
	creationFlags uint32, env *uint16, curDir *uint16,
	si *windows.StartupInfo, pi *windows.ProcessInformation) error {

	tid := windows.GetCurrentThreadId()

	s.mu.Lock()
	if s.recursing[tid] {
		s.mu.Unlock()
		return create(appName, cmdLine, procAttr, threadAttr, inheritHandles,
			creationFlags, env, curDir, si, pi)
	}
	s.recursing[tid] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.recursing, tid)
		s.mu.Unlock()
	}()

	forcedSuspend := creationFlags&windows.CREATE_SUSPENDED == 0
	flags := creationFlags | windows.CREATE_SUSPENDED

	err := create(appName, cmdLine, procAttr, threadAttr, inheritHandles,
		flags, env, curDir, si, pi)
	if err != nil {
		// Last-error transparency: propagate exactly what the wrapped
		// call produced, no wrapping.
		return err
	}

	childIs64, bitErr := is64BitProcess(pi.Process)
	if bitErr == nil {
		if childIs64 != hostIs64Bit() {
			if s.opts.SpawnHelper != nil {
				err = s.opts.SpawnHelper(uintptr(pi.Process), childIs64)
			}
		} else if s.opts.Inject != nil {
			err = s.opts.Inject(uintptr(pi.Process))
		}
	}

	if forcedSuspend {
		if _, resumeErr := windows.ResumeThread(pi.Thread); resumeErr != nil && err == nil {
			err = resumeErr
		}
	}

	return err
}

func hostIs64Bit() bool {
	return unsafe.Sizeof(uintptr(0)) == 8
}

func is64BitProcess(h windows.Handle) (bool, error) {
	if !hostIs64Bit() {
		return false, nil
	}
	var wow64 bool
	if err := windows.IsWow64Process(h, &wow64); err != nil {
		return false, err
	}
	return !wow64, nil
}
