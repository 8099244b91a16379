package fork

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/forgehand/internal/diag"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

func fakeRuntimeHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "bin", "java"), []byte("#!/bin/sh\n"), 0o755))
	return home
}

func TestTranslateModernAddsBothExportArgs(t *testing.T) {
	tr := NewTranslator()
	home := fakeRuntimeHome(t)

	desc, err := tr.Translate(Options{WorkingDir: "/work", JVMArgs: []string{"-Xmx1g"}}, home, 17)
	require.NoError(t, err)

	exports := toolchain.RulesFor(17).ExportArgs
	require.Len(t, exports, 2)

	// Both export flags present, contiguous, and before user arguments.
	assert.Equal(t, append(append([]string{}, exports...), "-Xmx1g"), desc.Args)
	assert.Equal(t, "/work", desc.WorkingDir)
	assert.Equal(t, filepath.Join(home, "bin", "java"), desc.Executable)
}

func TestTranslateLegacyHasNoExportArgs(t *testing.T) {
	tr := NewTranslator()
	home := fakeRuntimeHome(t)

	desc, err := tr.Translate(Options{JVMArgs: []string{"-Xms256m"}}, home, 8)
	require.NoError(t, err)

	assert.Equal(t, []string{"-Xms256m"}, desc.Args)
	for _, arg := range desc.Args {
		assert.NotContains(t, arg, "--add-exports")
	}
}

func TestTranslateExecutableOverride(t *testing.T) {
	tr := NewTranslator()
	home := fakeRuntimeHome(t)
	override := filepath.Join(t.TempDir(), "java-wrapper")
	require.NoError(t, os.WriteFile(override, []byte("#!/bin/sh\n"), 0o755))

	desc, err := tr.Translate(Options{Executable: override}, home, 17)
	require.NoError(t, err)
	assert.Equal(t, override, desc.Executable)
}

func TestTranslateMissingExecutable(t *testing.T) {
	tr := NewTranslator()
	home := t.TempDir() // no bin/java

	_, err := tr.Translate(Options{}, home, 17)
	require.Error(t, err)

	d, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.IDExecutableNotFound, d.ID)
	assert.Equal(t, home, d.Context["runtime_home"])
}

func TestTranslateIsDeterministic(t *testing.T) {
	tr := NewTranslator()
	home := fakeRuntimeHome(t)
	opts := Options{WorkingDir: "/w", JVMArgs: []string{"-Da=b", "-Dc=d"}}

	first, err := tr.Translate(opts, home, 11)
	require.NoError(t, err)
	second, err := tr.Translate(opts, home, 11)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestTranslateDoesNotAliasUserArgs(t *testing.T) {
	tr := NewTranslator()
	home := fakeRuntimeHome(t)
	user := []string{"-Xmx1g"}

	desc, err := tr.Translate(Options{JVMArgs: user}, home, 8)
	require.NoError(t, err)

	user[0] = "-Xmx2g"
	assert.Equal(t, "-Xmx1g", desc.Args[0])
}
