// Package e2e exercises the full compile dispatch path: classpath
// resolution, fork translation, worker launch, and the invocation protocol
// against real subprocesses.
package e2e

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/forgehand/internal/compile"
	"github.com/mattjoyce/forgehand/internal/diag"
	"github.com/mattjoyce/forgehand/internal/fork"
	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/pool"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR")
	m.Run()
}

// workerResponse is what the fake launcher answers to every envelope.
const okResponse = `{"status":"ok","result":{"success":true,"diagnostics":[]},"logs":[]}`

const failedCompileResponse = `{"status":"ok","result":{"success":false,"diagnostics":[` +
	`{"severity":"error","file":"A.java","line":3,"message":"cannot find symbol"},` +
	`{"severity":"error","file":"B.java","line":9,"message":"missing return statement"},` +
	`{"severity":"warning","file":"A.java","line":1,"message":"deprecated API"}` +
	`]},"logs":[]}`

// fakeRuntimeHome installs a runtime layout whose launcher is a shell script
// speaking the worker protocol. The script records its launch arguments in
// the working directory so tests can assert on the assembled command line.
func fakeRuntimeHome(t *testing.T, response string, withArchive bool) string {
	t.Helper()

	home := filepath.Join(t.TempDir(), "runtime")
	require.NoError(t, os.MkdirAll(filepath.Join(home, "bin"), 0o755))

	script := fmt.Sprintf(`#!/usr/bin/env bash
printf '%%s\n' "$@" > launch_args.txt
while IFS= read -r line; do
  echo '%s'
done
`, response)
	require.NoError(t, os.WriteFile(filepath.Join(home, "bin", "java"), []byte(script), 0o755))

	if withArchive {
		require.NoError(t, os.MkdirAll(filepath.Join(home, "lib"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(home, "lib", "tools.jar"), []byte("jar"), 0o644))
	}
	return home
}

type harness struct {
	compiler *compile.DaemonCompiler
	pool     *pool.Pool
	workDir  string
	jar      string
}

func newHarness(t *testing.T, keepAlive launch.KeepAlive) *harness {
	t.Helper()

	jar := filepath.Join(t.TempDir(), "compiler.jar")
	require.NoError(t, os.WriteFile(jar, []byte("jar"), 0o644))

	resolver := toolchain.NewResolver(toolchain.NewClasspathRegistry(map[string][]string{
		compile.BundleName: {jar},
	}))

	p := pool.New(pool.Config{
		MaxWorkers:  2,
		IdleTimeout: time.Minute,
		GracePeriod: time.Second,
	})
	t.Cleanup(p.Close)

	workDir := t.TempDir()
	return &harness{
		compiler: compile.New(resolver, compile.PoolExecutor(p), workDir, keepAlive),
		pool:     p,
		workDir:  workDir,
		jar:      jar,
	}
}

func (h *harness) request(home string, version int) compile.Request {
	return compile.Request{
		RuntimeHome:   home,
		TargetVersion: version,
		Fork:          fork.Options{WorkingDir: h.workDir},
	}
}

func launchArgs(t *testing.T, workDir string) []string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(workDir, "launch_args.txt"))
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}

var testIdentity = compile.Identity{Class: "org.example.compile.ForkingCompiler"}

func TestModernToolchainExportsAndReuse(t *testing.T) {
	h := newHarness(t, launch.KeepAliveDaemon)
	home := fakeRuntimeHome(t, okResponse, false)
	ctx := context.Background()

	result, err := h.compiler.Execute(ctx, "inv-1", testIdentity, h.request(home, 17))
	require.NoError(t, err)
	assert.True(t, result.Success)

	args := launchArgs(t, h.workDir)
	exportAPI := "--add-exports=jdk.compiler/com.sun.tools.javac.api=ALL-UNNAMED"
	exportUtil := "--add-exports=jdk.compiler/com.sun.tools.javac.util=ALL-UNNAMED"
	require.GreaterOrEqual(t, len(args), 4)
	assert.Equal(t, exportAPI, args[0])
	assert.Equal(t, exportUtil, args[1])
	assert.Equal(t, "-cp", args[2])
	assert.Equal(t, h.jar, args[3])

	// A second invocation with different compiler options but identical fork
	// and isolation configuration must reuse the worker.
	second := h.request(home, 17)
	second.Options = []byte(`{"verbose":true}`)
	_, err = h.compiler.Execute(ctx, "inv-2", testIdentity, second)
	require.NoError(t, err)

	snapshot := h.pool.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, 2, snapshot[0].Invocations)
}

func TestLegacyToolchainArchiveOnClasspath(t *testing.T) {
	h := newHarness(t, launch.KeepAliveDaemon)
	home := fakeRuntimeHome(t, okResponse, true)
	ctx := context.Background()

	result, err := h.compiler.Execute(ctx, "inv-1", testIdentity, h.request(home, 8))
	require.NoError(t, err)
	assert.True(t, result.Success)

	args := launchArgs(t, h.workDir)
	for _, arg := range args {
		assert.NotContains(t, arg, "--add-exports")
	}

	require.GreaterOrEqual(t, len(args), 2)
	assert.Equal(t, "-cp", args[0])
	classpath := strings.Split(args[1], string(os.PathListSeparator))
	require.Len(t, classpath, 2)
	assert.Equal(t, h.jar, classpath[0])
	assert.Equal(t, filepath.Join(home, "lib", "tools.jar"), classpath[1])
}

func TestLegacyToolchainMissingArchive(t *testing.T) {
	h := newHarness(t, launch.KeepAliveDaemon)
	home := fakeRuntimeHome(t, okResponse, false)
	ctx := context.Background()

	_, err := h.compiler.Execute(ctx, "inv-1", testIdentity, h.request(home, 8))
	require.Error(t, err)
	assert.True(t, diag.IsID(err, diag.IDMissingLegacyArchive))

	d, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, home, d.Context["runtime_home"])
	assert.NotEmpty(t, d.Suggestions)

	// The environment failure must short-circuit before any worker starts.
	assert.Empty(t, h.pool.Snapshot())
}

func TestCompileErrorsDeliveredInResult(t *testing.T) {
	h := newHarness(t, launch.KeepAliveDaemon)
	home := fakeRuntimeHome(t, failedCompileResponse, false)
	ctx := context.Background()

	result, err := h.compiler.Execute(ctx, "inv-1", testIdentity, h.request(home, 17))
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 2, result.ErrorCount())
	require.Len(t, result.Diagnostics, 3)
	assert.Equal(t, "cannot find symbol", result.Diagnostics[0].Message)

	// The worker survives a failed compile and stays available for reuse.
	snapshot := h.pool.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "idle", snapshot[0].State)
}

func TestKeepAliveNoneRetiresWorkerPerInvocation(t *testing.T) {
	h := newHarness(t, launch.KeepAliveNone)
	home := fakeRuntimeHome(t, okResponse, false)
	ctx := context.Background()

	_, err := h.compiler.Execute(ctx, "inv-1", testIdentity, h.request(home, 17))
	require.NoError(t, err)

	assert.Empty(t, h.pool.Snapshot())
}
