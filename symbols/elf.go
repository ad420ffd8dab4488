package symbols

import (
	"debug/elf"
	"io"
)

type elfFile struct {
	f *elf.File
}

func openELF(r io.ReaderAt) (rawFile, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, err
	}
	return &elfFile{f}, nil
}

func (e *elfFile) Symbols() (map[string]uintptr, error) {
	syms, err := e.f.Symbols()
	if err != nil && len(syms) == 0 {
		// A stripped binary has no .symtab but may still have dynamic
		// symbols worth resolving against.
		syms, err = e.f.DynamicSymbols()
		if err != nil {
			return nil, err
		}
	}
	out := make(map[string]uintptr, len(syms))
	for _, s := range syms {
		if s.Name != "" {
			out[s.Name] = uintptr(s.Value)
		}
	}
	return out, nil
}
