// Package inject illustrates the re-entrancy idiom spec.md §4.6 names for a
// CreateProcessInternalW-style detour: the hook that deploys the engine
// into a freshly spawned child process. It is adjacent to the core patch
// engine, not part of it, and is windows-only.
package inject

// Options configures a Shim. With the zero value, Guard still forces and
// undoes the suspend but injects nothing.
type Options struct {
	// Inject runs against a same-bitness child, in-process. When nil,
	// same-bitness children are resumed without injection.
	Inject func(childProcess uintptr) error
	// SpawnHelper runs when the child's bitness differs from the caller's;
	// it is expected to launch a same-bitness helper binary that performs
	// the injection out-of-process (spec.md §4.6 step (c)).
	SpawnHelper func(childProcess uintptr, childIs64Bit bool) error
}

// Option mutates an Options value, in the functional-options shape the
// rest of this module's constructors use for configuration.
type Option func(*Options)

// WithInjector sets the in-process injector.
func WithInjector(fn func(childProcess uintptr) error) Option {
	return func(o *Options) { o.Inject = fn }
}

// WithHelperSpawner sets the cross-bitness helper launcher.
func WithHelperSpawner(fn func(childProcess uintptr, childIs64Bit bool) error) Option {
	return func(o *Options) { o.SpawnHelper = fn }
}

func buildOptions(opts ...Option) Options {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
