package pool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/forgehand/internal/diag"
	"github.com/mattjoyce/forgehand/internal/fork"
	"github.com/mattjoyce/forgehand/internal/isolation"
	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/protocol"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

// writeWorkerScript drops an executable fake worker into a temp dir.
func writeWorkerScript(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// echoWorker answers every envelope with a successful empty compile result.
const echoWorker = `#!/bin/bash
while read -r line; do
  echo '{"status":"ok","result":{"success":true}}'
done
`

func specFor(executable string, keepAlive launch.KeepAlive, extraArgs ...string) launch.Spec {
	return launch.Assemble(
		fork.LaunchDescriptor{Executable: executable, Args: extraArgs},
		isolation.Spec{Name: "compiler"},
		keepAlive,
	)
}

func sampleEnvelope(id string) *protocol.Envelope {
	return &protocol.Envelope{
		Protocol:      protocol.Version,
		InvocationID:  id,
		CompilerClass: "org.example.compile.ForkingCompiler",
		Payload:       protocol.CompilePayload{RuntimeHome: "/jdk17", TargetVersion: 17},
	}
}

func newTestPool(t *testing.T, maxWorkers int) *Pool {
	t.Helper()
	p := New(Config{
		MaxWorkers:  maxWorkers,
		IdleTimeout: time.Minute,
		GracePeriod: 500 * time.Millisecond,
	})
	t.Cleanup(p.Close)
	return p
}

func TestSendAndReuse(t *testing.T) {
	p := newTestPool(t, 2)
	spec := specFor(writeWorkerScript(t, echoWorker), launch.KeepAliveDaemon)
	ctx := context.Background()

	w1, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)

	resp, err := p.Send(ctx, w1, sampleEnvelope("inv-1"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Result.Success)

	p.Release(w1)

	// Structurally equal spec reuses the same process.
	w2, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, w1.ID(), w2.ID())

	resp, err = p.Send(ctx, w2, sampleEnvelope("inv-2"))
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	p.Release(w2)
}

func TestDistinctSpecsGetDistinctWorkers(t *testing.T) {
	p := newTestPool(t, 2)
	script := writeWorkerScript(t, echoWorker)
	ctx := context.Background()

	w1, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)
	w2, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon, "-Xmx1g"))
	require.NoError(t, err)

	assert.NotEqual(t, w1.ID(), w2.ID())
	p.Release(w1)
	p.Release(w2)
}

func TestKeepAliveNoneRetiresOnRelease(t *testing.T) {
	p := newTestPool(t, 1)
	spec := specFor(writeWorkerScript(t, echoWorker), launch.KeepAliveNone)
	ctx := context.Background()

	w1, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)
	p.Release(w1)

	// Retired worker is never handed out again.
	w2, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)
	assert.NotEqual(t, w1.ID(), w2.ID())
	p.Release(w2)
}

func TestStartFailureRaisesDiagnostic(t *testing.T) {
	p := newTestPool(t, 1)
	spec := specFor(filepath.Join(t.TempDir(), "missing"), launch.KeepAliveDaemon)

	_, err := p.AcquireOrStart(context.Background(), spec)
	require.Error(t, err)

	d, ok := diag.As(err)
	require.True(t, ok)
	assert.Equal(t, diag.IDWorkerStartFailed, d.ID)
	assert.NotNil(t, d.Cause)

	// The failed start must not leak its slot.
	good := specFor(writeWorkerScript(t, echoWorker), launch.KeepAliveDaemon)
	w, err := p.AcquireOrStart(context.Background(), good)
	require.NoError(t, err)
	p.Release(w)
}

func TestProtocolFaultMarksWorkerBroken(t *testing.T) {
	p := newTestPool(t, 1)
	// Worker emits garbage and exits.
	script := writeWorkerScript(t, "#!/bin/bash\nread -r line\necho 'not json'\n")
	spec := specFor(script, launch.KeepAliveDaemon)
	ctx := context.Background()

	w1, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)

	_, err = p.Send(ctx, w1, sampleEnvelope("inv-1"))
	require.Error(t, err)
	assert.True(t, diag.IsID(err, diag.IDWorkerProtocolFault))
	p.Release(w1)

	// The broken worker is not reused.
	script2 := writeWorkerScript(t, echoWorker)
	w2, err := p.AcquireOrStart(ctx, specFor(script2, launch.KeepAliveDaemon))
	require.NoError(t, err)
	assert.NotEqual(t, w1.ID(), w2.ID())
	p.Release(w2)
}

func TestStderrIsCaptured(t *testing.T) {
	p := newTestPool(t, 1)
	script := writeWorkerScript(t, `#!/bin/bash
echo 'boom: compiler bootstrap failed' >&2
read -r line
echo 'garbage'
`)
	ctx := context.Background()

	w, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)

	_, err = p.Send(ctx, w, sampleEnvelope("inv-1"))
	require.Error(t, err)

	d, ok := diag.As(err)
	require.True(t, ok)
	assert.Contains(t, d.Context["stderr"], "compiler bootstrap failed")
	p.Release(w)
}

func TestAcquireBlocksAtCapacity(t *testing.T) {
	p := newTestPool(t, 1)
	script := writeWorkerScript(t, echoWorker)
	ctx := context.Background()

	w, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)

	// Second acquisition cannot proceed while the only slot is busy.
	shortCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	_, err = p.AcquireOrStart(shortCtx, specFor(script, launch.KeepAliveDaemon, "-Xmx1g"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(w)
}

func TestIdleWorkerEvictedForNewSpec(t *testing.T) {
	p := newTestPool(t, 1)
	script := writeWorkerScript(t, echoWorker)
	ctx := context.Background()

	w1, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)
	p.Release(w1)

	// Different spec: the idle worker must make way.
	w2, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon, "-Xmx1g"))
	require.NoError(t, err)
	assert.NotEqual(t, w1.ID(), w2.ID())
	p.Release(w2)
}

func TestEndSessionRetiresSessionWorkersOnly(t *testing.T) {
	p := newTestPool(t, 2)
	script := writeWorkerScript(t, echoWorker)
	ctx := context.Background()

	session, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveSession))
	require.NoError(t, err)
	daemon, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)
	p.Release(session)
	p.Release(daemon)

	p.EndSession()

	// Daemon worker survives and is reused.
	w, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)
	assert.Equal(t, daemon.ID(), w.ID())
	p.Release(w)

	// Session worker was retired.
	w2, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveSession))
	require.NoError(t, err)
	assert.NotEqual(t, session.ID(), w2.ID())
	p.Release(w2)
}

func TestCancelledSendPoisonsWorker(t *testing.T) {
	p := newTestPool(t, 1)
	// Worker that never answers.
	script := writeWorkerScript(t, "#!/bin/bash\nwhile read -r line; do sleep 60; done\n")
	spec := specFor(script, launch.KeepAliveDaemon)

	w, err := p.AcquireOrStart(context.Background(), spec)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = p.Send(ctx, w, sampleEnvelope("inv-1"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	p.Release(w)

	// Poisoned worker was retired; a fresh one serves the next invocation.
	w2, err := p.AcquireOrStart(context.Background(), spec)
	require.NoError(t, err)
	assert.NotEqual(t, w.ID(), w2.ID())
	p.Release(w2)
}

func TestSnapshot(t *testing.T) {
	p := newTestPool(t, 2)
	script := writeWorkerScript(t, echoWorker)
	ctx := context.Background()

	w, err := p.AcquireOrStart(ctx, specFor(script, launch.KeepAliveDaemon))
	require.NoError(t, err)

	infos := p.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, "busy", infos[0].State)
	assert.Equal(t, w.ID(), infos[0].ID)

	p.Release(w)
	infos = p.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, "idle", infos[0].State)
}

func TestSendReusesStructurallyEqualSpecs(t *testing.T) {
	// Two invocations differing only in compile payload share a worker.
	p := newTestPool(t, 2)
	spec := specFor(writeWorkerScript(t, echoWorker), launch.KeepAliveDaemon)
	ctx := context.Background()

	w1, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)
	env := sampleEnvelope("inv-1")
	env.Payload.Options = json.RawMessage(`{"sources":["A.java"]}`)
	_, err = p.Send(ctx, w1, env)
	require.NoError(t, err)
	p.Release(w1)

	w2, err := p.AcquireOrStart(ctx, spec)
	require.NoError(t, err)
	env2 := sampleEnvelope("inv-2")
	env2.Payload.Options = json.RawMessage(`{"sources":["B.java"]}`)
	_, err = p.Send(ctx, w2, env2)
	require.NoError(t, err)

	assert.Equal(t, w1.ID(), w2.ID())
	p.Release(w2)
}
