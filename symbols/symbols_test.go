package symbols

import (
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeNonObjectFile writes a small file that is not in any object format,
// so Load can be exercised without depending on any binary checked into the
// tree.
func writeNonObjectFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.bin")

	// debug/elf's writer support is read-only, so this test only verifies
	// the not-found and unrecognized-format paths, which don't require a
	// byte-perfect object file.
	require.NoError(t, os.WriteFile(path, []byte("not an object file"), 0o644))
	return path
}

func TestLoadRejectsUnrecognizedFormat(t *testing.T) {
	path := writeNonObjectFile(t)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.Error(t, err)
}

func TestResolveMissingSymbolOnRealBinary(t *testing.T) {
	self, err := os.Executable()
	require.NoError(t, err)
	f, err := elf.Open(self)
	if err != nil {
		t.Skip("test binary is not an ELF image on this platform")
	}
	f.Close()

	_, err = Resolve(self, "definitely_not_a_real_symbol_name")
	require.Error(t, err)
}

func TestTableLookup(t *testing.T) {
	tab := Table{"foo": 0x1000}
	off, ok := tab.Lookup("foo")
	require.True(t, ok)
	require.EqualValues(t, 0x1000, off)

	_, ok = tab.Lookup("bar")
	require.False(t, ok)
}
