//go:build !windows

package inject

import "errors"

// ErrUnsupported is returned by every Shim method on platforms with no
// CreateProcess/thread-suspend equivalent to hook.
var ErrUnsupported = errors.New("inject: cross-process spawn shim requires windows")

// Shim is a non-functional placeholder outside windows.
type Shim struct{}

// New returns an empty Shim. Outside windows Shim has no Guard method, so
// there is no CreateProcess call it can wrap.
func New(opts ...Option) *Shim {
	_ = buildOptions(opts...)
	return &Shim{}
}
