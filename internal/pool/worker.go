package pool

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/protocol"
)

// maxStderrBytes caps the amount of stderr captured from a worker process.
const maxStderrBytes = 64 * 1024

// cappedBuffer keeps at most maxStderrBytes of whatever the worker writes to
// stderr. Safe for the concurrent writes the child process produces.
type cappedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	remaining := maxStderrBytes - b.buf.Len()
	if remaining <= 0 {
		return len(p), nil
	}
	if len(p) > remaining {
		_, _ = b.buf.Write(p[:remaining])
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Worker is a running worker process exclusively owned by one invocation at
// a time. The pool hands it out via AcquireOrStart and takes it back via
// Release.
type Worker struct {
	id        string
	spec      launch.Spec
	specKey   string
	startedAt time.Time

	cmd       *exec.Cmd
	stdin     io.WriteCloser
	responses *protocol.ResponseReader
	stderr    *cappedBuffer

	waitOnce sync.Once
	waitErr  error
	done     chan struct{}

	invocations int
}

// ID identifies the worker process for logging and the API surface.
func (w *Worker) ID() string { return w.id }

// Spec returns the launch spec this worker was started from.
func (w *Worker) Spec() launch.Spec { return w.spec }

// SpecKey returns the pool lookup key of the worker's spec.
func (w *Worker) SpecKey() string { return w.specKey }

// Stderr returns the captured (capped) stderr of the worker so far.
func (w *Worker) Stderr() string { return w.stderr.String() }

// startWorker launches a process for spec. The classpath of the isolation
// boundary travels as launch arguments: policy and user arguments first, then
// the classpath flag, so the argument list is reproducible for a given spec.
func startWorker(spec launch.Spec) (*Worker, error) {
	args := append([]string(nil), spec.Descriptor.Args...)
	if len(spec.Isolation.Paths) > 0 {
		args = append(args, "-cp", strings.Join(spec.Isolation.Paths, string(os.PathListSeparator)))
	}

	cmd := exec.Command(spec.Descriptor.Executable, args...)
	cmd.Dir = spec.Descriptor.WorkingDir
	if spec.Descriptor.Env != nil {
		cmd.Env = spec.Descriptor.Env
	}

	stderr := &cappedBuffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start process: %w", err)
	}

	w := &Worker{
		id:        uuid.NewString(),
		spec:      spec,
		specKey:   spec.Key(),
		startedAt: time.Now().UTC(),
		cmd:       cmd,
		stdin:     stdin,
		responses: protocol.NewResponseReader(stdout),
		stderr:    stderr,
		done:      make(chan struct{}),
	}

	go func() {
		w.waitOnce.Do(func() {
			w.waitErr = cmd.Wait()
			close(w.done)
		})
	}()

	log.WithWorker(w.id).Debug("worker started",
		"executable", spec.Descriptor.Executable,
		"spec_key", w.specKey,
		"keep_alive", string(spec.KeepAlive))

	return w, nil
}

// exited reports whether the worker process has terminated.
func (w *Worker) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// stop terminates the worker: SIGTERM, then SIGKILL after the grace period.
func (w *Worker) stop(grace time.Duration) {
	logger := log.WithWorker(w.id)
	_ = w.stdin.Close()

	if w.exited() {
		return
	}

	if w.cmd.Process != nil {
		if err := w.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Debug("failed to send SIGTERM", "error", err)
		}
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-w.done:
	case <-timer.C:
		logger.Warn("worker did not exit after SIGTERM, sending SIGKILL")
		if w.cmd.Process != nil {
			if err := w.cmd.Process.Kill(); err != nil {
				logger.Debug("failed to send SIGKILL", "error", err)
			}
		}
		<-w.done
	}
}
