// Package symbols resolves exported/static symbol names to the values
// recorded in an on-disk object file's symbol table (ELF, Mach-O or PE), the
// "module loader / symbol lookup" collaborator spec.md §6 assumes exists
// upstream of NewDetourPatch. The value is returned as stored: a link-time
// address for ELF and Mach-O, a section-relative value for PE. Turning it
// into a runtime address is left to the caller; this package only reads the
// object's own symbol table.
package symbols

import (
	"fmt"
	"io"
	"os"
)

// rawFile is the per-format symbol-table reader each opener implements.
type rawFile interface {
	Symbols() (map[string]uintptr, error)
}

var openers = []func(io.ReaderAt) (rawFile, error){
	openELF,
	openMachO,
	openPE,
}

// Table is a resolved symbol table keyed by name; values are the symbol
// table's own values (not runtime addresses).
type Table map[string]uintptr

// Lookup returns the symbol table value of name, and whether it was found.
func (t Table) Lookup(name string) (uintptr, bool) {
	off, ok := t[name]
	return off, ok
}

// Load opens path and tries each known object format in turn, returning the
// first one that parses successfully.
func Load(path string) (Table, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	for _, open := range openers {
		raw, err := open(r)
		if err != nil {
			continue
		}
		syms, err := raw.Symbols()
		if err != nil {
			return nil, err
		}
		return syms, nil
	}
	return nil, fmt.Errorf("symbols: %s: unrecognized object file format", path)
}

// Resolve is a convenience wrapper for the common case of wanting a single
// symbol's symbol table value out of path.
func Resolve(path, name string) (uintptr, error) {
	t, err := Load(path)
	if err != nil {
		return 0, err
	}
	off, ok := t.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("symbols: %s: symbol %q not found", path, name)
	}
	return off, nil
}
