// Package pool manages compiler worker processes keyed by launch spec.
//
// Workers are expensive to start, so specs with keep-alive session or daemon
// are returned to an idle set after each invocation and reused by any later
// invocation with a structurally equal spec. Idle daemon workers are evicted
// after the configured idle timeout.
package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mattjoyce/forgehand/internal/diag"
	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/protocol"
)

// ErrClosed is returned by operations on a closed pool.
var ErrClosed = errors.New("worker pool is closed")

// Config controls pool capacity and worker lifecycle.
type Config struct {
	MaxWorkers  int
	IdleTimeout time.Duration
	GracePeriod time.Duration
}

// Executor is the worker pool contract consumed by the compiler invocation
// protocol. AcquireOrStart may block until a worker slot is free; it is the
// single blocking boundary in the dispatch subsystem.
type Executor interface {
	AcquireOrStart(ctx context.Context, spec launch.Spec) (*Worker, error)
	Send(ctx context.Context, w *Worker, env *protocol.Envelope) (*protocol.Response, error)
	Release(w *Worker)
}

// idleList is the mutable idle set for one spec key. It lives behind a
// pointer inside the LRU so pops never trigger eviction callbacks.
type idleList struct {
	workers []*Worker
}

// Pool starts, reuses, and retires worker processes.
type Pool struct {
	cfg      Config
	logger   *slog.Logger
	reporter *diag.Reporter

	// slots caps the number of running worker processes; every started
	// worker holds one token until it is retired.
	slots chan struct{}

	mu     sync.Mutex
	idle   *expirable.LRU[string, *idleList]
	busy   map[string]*Worker // by worker id
	broken map[string]bool    // workers that must not be reused
	closed bool

	wg sync.WaitGroup
}

var _ Executor = (*Pool)(nil)

// New creates a worker pool.
func New(cfg Config) *Pool {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 5 * time.Second
	}

	p := &Pool{
		cfg:      cfg,
		logger:   log.WithComponent("pool"),
		reporter: diag.NewReporter("pool"),
		slots:    make(chan struct{}, cfg.MaxWorkers),
		busy:     make(map[string]*Worker),
		broken:   make(map[string]bool),
	}

	// TTL eviction retires whatever is still idle for the key. The callback
	// runs under the LRU's own lock, so the actual stop happens elsewhere.
	p.idle = expirable.NewLRU(cfg.MaxWorkers, func(key string, list *idleList) {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.mu.Lock()
			workers := list.workers
			list.workers = nil
			p.mu.Unlock()
			for _, w := range workers {
				p.logger.Debug("evicting idle worker", "worker_id", w.ID(), "spec_key", key)
				p.retire(w)
			}
		}()
	}, cfg.IdleTimeout)

	return p
}

// AcquireOrStart returns a worker for spec, reusing an idle one with an equal
// spec when possible. Blocks while the pool is at capacity; cancellation of
// ctx is propagated as the error outcome.
func (p *Pool) AcquireOrStart(ctx context.Context, spec launch.Spec) (*Worker, error) {
	key := spec.Key()

	for {
		w, err := p.takeIdle(key)
		if err != nil {
			return nil, err
		}
		if w == nil {
			break
		}
		if w.exited() {
			// Reap and try again.
			p.retire(w)
			continue
		}
		p.mu.Lock()
		p.busy[w.ID()] = w
		p.mu.Unlock()
		p.logger.Debug("reusing worker", "worker_id", w.ID(), "spec_key", key)
		return w, nil
	}

	// No reusable worker. Make room if every slot is held by idle workers of
	// other specs.
	p.evictOneIdle()

	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	w, err := startWorker(spec)
	if err != nil {
		<-p.slots
		d := p.reporter.Report(
			diag.IDWorkerStartFailed,
			"Compiler worker failed to start",
			diag.CategoryWorker,
			fmt.Sprintf("Could not launch the compiler worker process %q.", spec.Descriptor.Executable),
			[]string{
				"Check that the executable exists and is runnable.",
				"Check the fork options of the compile request.",
			},
			diag.SeverityError,
			err,
		).WithContext("executable", spec.Descriptor.Executable)
		return nil, p.reporter.Raise(d)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.retire(w)
		return nil, ErrClosed
	}
	p.busy[w.ID()] = w
	p.mu.Unlock()
	return w, nil
}

// Send performs one strictly ordered request/response exchange with a worker
// the caller exclusively owns. A crashed worker or malformed response is a
// protocol fault: the worker is marked broken and the fault is surfaced as a
// Diagnostic the caller can use to decide whether a retry on a fresh worker
// is safe. This pool never retries on its own.
func (p *Pool) Send(ctx context.Context, w *Worker, env *protocol.Envelope) (*protocol.Response, error) {
	type outcome struct {
		resp *protocol.Response
		err  error
	}
	ch := make(chan outcome, 1)

	go func() {
		if err := protocol.EncodeEnvelope(w.stdin, env); err != nil {
			ch <- outcome{nil, fmt.Errorf("send envelope: %w", err)}
			return
		}
		resp, err := w.responses.Next()
		ch <- outcome{resp, err}
	}()

	select {
	case <-ctx.Done():
		// Interrupted mid-invocation. The worker's stream state is unknown.
		p.markBroken(w)
		return nil, ctx.Err()
	case out := <-ch:
		if out.err != nil {
			p.markBroken(w)
			d := p.reporter.Report(
				diag.IDWorkerProtocolFault,
				"Worker protocol fault",
				diag.CategoryProtocol,
				fmt.Sprintf("The compiler worker did not deliver a valid response: %v.", out.err),
				[]string{"Retry on a fresh worker; this worker will not be reused."},
				diag.SeverityError,
				out.err,
			).WithContext("worker_id", w.ID()).WithContext("stderr", w.Stderr())
			return nil, p.reporter.Raise(d)
		}
		p.mu.Lock()
		w.invocations++
		p.mu.Unlock()
		return out.resp, nil
	}
}

// Release returns a worker to the pool. Keep-alive none, broken, and exited
// workers are retired; the rest go back to the idle set for reuse.
func (p *Pool) Release(w *Worker) {
	p.mu.Lock()
	delete(p.busy, w.ID())
	broken := p.broken[w.ID()]
	delete(p.broken, w.ID())
	closed := p.closed
	p.mu.Unlock()

	if closed || broken || w.exited() || w.spec.KeepAlive == launch.KeepAliveNone {
		p.retire(w)
		return
	}

	p.mu.Lock()
	list, ok := p.idle.Get(w.specKey)
	if !ok {
		list = &idleList{}
	}
	list.workers = append(list.workers, w)
	// Add also resets the idle TTL for the key.
	p.idle.Add(w.specKey, list)
	p.mu.Unlock()
}

// EndSession retires idle workers with keep-alive session. Daemon workers
// stay for the next session.
func (p *Pool) EndSession() {
	var victims []*Worker
	p.mu.Lock()
	for _, key := range p.idle.Keys() {
		list, ok := p.idle.Get(key)
		if !ok {
			continue
		}
		kept := list.workers[:0]
		for _, w := range list.workers {
			if w.spec.KeepAlive == launch.KeepAliveSession {
				victims = append(victims, w)
			} else {
				kept = append(kept, w)
			}
		}
		list.workers = kept
	}
	p.mu.Unlock()

	for _, w := range victims {
		p.retire(w)
	}
}

// Close stops every worker and rejects further acquisitions.
func (p *Pool) Close() {
	var victims []*Worker
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	for _, w := range p.busy {
		victims = append(victims, w)
	}
	p.busy = map[string]*Worker{}
	for _, key := range p.idle.Keys() {
		if list, ok := p.idle.Get(key); ok {
			victims = append(victims, list.workers...)
			list.workers = nil
		}
	}
	p.mu.Unlock()

	for _, w := range victims {
		p.retire(w)
	}
	p.wg.Wait()
}

// WorkerInfo is a point-in-time view of one worker for the API surface.
type WorkerInfo struct {
	ID          string    `json:"id"`
	SpecKey     string    `json:"spec_key"`
	Executable  string    `json:"executable"`
	KeepAlive   string    `json:"keep_alive"`
	State       string    `json:"state"` // busy | idle
	StartedAt   time.Time `json:"started_at"`
	Invocations int       `json:"invocations"`
}

// Snapshot lists current workers, busy first.
func (p *Pool) Snapshot() []WorkerInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []WorkerInfo
	for _, w := range p.busy {
		out = append(out, p.infoLocked(w, "busy"))
	}
	for _, key := range p.idle.Keys() {
		if list, ok := p.idle.Get(key); ok {
			for _, w := range list.workers {
				out = append(out, p.infoLocked(w, "idle"))
			}
		}
	}
	return out
}

func (p *Pool) infoLocked(w *Worker, state string) WorkerInfo {
	return WorkerInfo{
		ID:          w.ID(),
		SpecKey:     w.specKey,
		Executable:  w.spec.Descriptor.Executable,
		KeepAlive:   string(w.spec.KeepAlive),
		State:       state,
		StartedAt:   w.startedAt,
		Invocations: w.invocations,
	}
}

// takeIdle pops one idle worker for key, or nil when none is available.
func (p *Pool) takeIdle(key string) (*Worker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	list, ok := p.idle.Get(key)
	if !ok || len(list.workers) == 0 {
		return nil, nil
	}
	w := list.workers[len(list.workers)-1]
	list.workers = list.workers[:len(list.workers)-1]
	return w, nil
}

// evictOneIdle retires one idle worker of any spec to make room for a new
// one. Oldest key first, matching LRU order.
func (p *Pool) evictOneIdle() {
	var victim *Worker
	p.mu.Lock()
	for _, key := range p.idle.Keys() {
		if list, ok := p.idle.Get(key); ok && len(list.workers) > 0 {
			victim = list.workers[len(list.workers)-1]
			list.workers = list.workers[:len(list.workers)-1]
			break
		}
	}
	p.mu.Unlock()

	if victim != nil {
		p.logger.Debug("evicting idle worker to free a slot", "worker_id", victim.ID())
		p.retire(victim)
	}
}

// retire stops a worker and frees its slot.
func (p *Pool) retire(w *Worker) {
	w.stop(p.cfg.GracePeriod)
	select {
	case <-p.slots:
	default:
		// Slot already freed; only possible for workers stopped twice.
	}
}

// markBroken flags a worker so Release retires it instead of reusing it.
func (p *Pool) markBroken(w *Worker) {
	p.mu.Lock()
	p.broken[w.ID()] = true
	p.mu.Unlock()
}
