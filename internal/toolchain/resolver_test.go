package toolchain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/forgehand/internal/config"
	"github.com/mattjoyce/forgehand/internal/diag"
)

func newTestResolver() *Resolver {
	return NewResolver(NewClasspathRegistry(map[string][]string{
		"compiler-runtime": {"/opt/forgehand/lib/compiler-api.jar", "/opt/forgehand/lib/compiler-impl.jar"},
	}))
}

// fakeRuntimeHome lays out a minimal runtime install under a temp dir.
func fakeRuntimeHome(t *testing.T, withLegacyArchive bool) string {
	t.Helper()
	home := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(home, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(home, "bin", "java"), []byte("#!/bin/sh\n"), 0o755))
	if withLegacyArchive {
		require.NoError(t, os.MkdirAll(filepath.Join(home, "lib"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(home, "lib", "tools.jar"), []byte("jar"), 0o644))
	}
	return home
}

func TestResolveModernReturnsBaseBundleUnchanged(t *testing.T) {
	r := newTestResolver()
	home := fakeRuntimeHome(t, false)

	for _, version := range []int{9, 11, 17, 21} {
		bundle, err := r.Resolve("compiler-runtime", version, home)
		require.NoError(t, err, "version %d", version)
		assert.Equal(t, []string{
			"/opt/forgehand/lib/compiler-api.jar",
			"/opt/forgehand/lib/compiler-impl.jar",
		}, bundle.Paths, "version %d", version)
	}
}

func TestResolveLegacyAppendsArchive(t *testing.T) {
	r := newTestResolver()
	home := fakeRuntimeHome(t, true)

	bundle, err := r.Resolve("compiler-runtime", 8, home)
	require.NoError(t, err)

	require.Len(t, bundle.Paths, 3)
	assert.Equal(t, filepath.Join(home, "lib", "tools.jar"), bundle.Paths[2])
}

func TestResolveLegacyMissingArchive(t *testing.T) {
	r := newTestResolver()
	home := fakeRuntimeHome(t, false)

	for _, version := range []int{6, 7, 8} {
		_, err := r.Resolve("compiler-runtime", version, home)
		require.Error(t, err, "version %d", version)

		d, ok := diag.As(err)
		require.True(t, ok)
		assert.Equal(t, diag.IDMissingLegacyArchive, d.ID)
		assert.Equal(t, diag.SeverityError, d.Severity)
		assert.Equal(t, home, d.Context["runtime_home"])
		assert.GreaterOrEqual(t, len(d.Suggestions), 2)
	}
}

func TestResolveUnknownBundle(t *testing.T) {
	r := newTestResolver()
	home := fakeRuntimeHome(t, true)

	_, err := r.Resolve("no-such-bundle", 17, home)
	require.Error(t, err)
	assert.True(t, diag.IsID(err, diag.IDUnknownBundle))
}

func TestBundlePlusDoesNotMutate(t *testing.T) {
	base := ClasspathBundle{Name: "compiler-runtime", Paths: []string{"/a.jar"}}
	extended := base.Plus("/b.jar")

	assert.Equal(t, []string{"/a.jar"}, base.Paths)
	assert.Equal(t, []string{"/a.jar", "/b.jar"}, extended.Paths)
}

func TestPolicyTable(t *testing.T) {
	assert.Equal(t, PolicyLegacy, PolicyFor(8))
	assert.Equal(t, PolicyModern, PolicyFor(9))
	assert.Equal(t, PolicyModern, PolicyFor(25))

	assert.Empty(t, RulesFor(8).ExportArgs)
	assert.NotEmpty(t, RulesFor(8).ArchiveRelPath)
	assert.Len(t, RulesFor(17).ExportArgs, 2)
	assert.Empty(t, RulesFor(17).ArchiveRelPath)
}

func TestProbe(t *testing.T) {
	home := fakeRuntimeHome(t, true)
	tc := Toolchain{Name: "jdk8", Home: home, Version: 8}

	got := tc.Probe()
	assert.True(t, got.HomeExists)
	assert.True(t, got.ExecutableExists)
	assert.True(t, got.LegacyArchiveExists)

	missing := Toolchain{Name: "gone", Home: filepath.Join(home, "nope"), Version: 17}
	got = missing.Probe()
	assert.False(t, got.HomeExists)
	assert.False(t, got.ExecutableExists)
}

func TestRegistryForVersion(t *testing.T) {
	reg := NewRegistry(map[string]config.ToolchainConf{
		"jdk17-b": {Home: "/opt/jdk17-b", Version: 17},
		"jdk17-a": {Home: "/opt/jdk17-a", Version: 17},
		"jdk8":    {Home: "/opt/jdk8", Version: 8},
	})

	tc, ok := reg.ForVersion(17)
	require.True(t, ok)
	assert.Equal(t, "jdk17-a", tc.Name, "lowest name wins for determinism")

	_, ok = reg.ForVersion(11)
	assert.False(t, ok)

	names := make([]string, 0, 3)
	for _, tc := range reg.List() {
		names = append(names, tc.Name)
	}
	assert.Equal(t, []string{"jdk17-a", "jdk17-b", "jdk8"}, names)
}
