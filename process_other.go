//go:build !windows

package detour

import (
	"os"
	"unsafe"
)

// CurrentProcess returns a Process handle identifying the calling process.
// Non-windows builds only ever operate on the current process (see
// SPEC_FULL.md's platform decision).
func CurrentProcess() (*Process, error) {
	return &Process{
		PID:         uint32(os.Getpid()),
		Bitness:     hostBitness(),
		selfProcess: true,
	}, nil
}

// OpenProcess is not supported on non-windows builds: this engine only
// carries a self-process backend there.
func OpenProcess(pid uint32) (*Process, error) {
	return nil, wrapErr(ErrRemoteUnsupported, 0, "cross-process open not supported on this platform")
}

func hostBitness() int {
	if unsafe.Sizeof(uintptr(0)) == 8 {
		return 64
	}
	return 32
}
