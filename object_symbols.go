package detour

import "github.com/go-detour/detour/symbols"

// ResolveModuleSymbol returns name's value from the symbol table of the
// object at path (ELF/Mach-O/PE), the symbol-lookup collaborator spec.md §6
// assumes a caller has available before constructing a patch. The value is
// a link-time address for ELF and Mach-O and a section-relative value for
// PE; it is not relocated to where the module is loaded.
func ResolveModuleSymbol(path, name string) (uintptr, error) {
	return symbols.Resolve(path, name)
}
