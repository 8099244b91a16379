// Package dispatch drains the invocation queue and executes compile
// invocations against the worker pool.
//
// The loop polls SQLite on a ticker, claims one invocation at a time, and
// records the terminal outcome plus any structured diagnostic. Individual
// invocation failures never stop the loop.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/forgehand/internal/compile"
	"github.com/mattjoyce/forgehand/internal/diag"
	"github.com/mattjoyce/forgehand/internal/fork"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/protocol"
	"github.com/mattjoyce/forgehand/internal/queue"
	"github.com/mattjoyce/forgehand/internal/toolchain"
	"github.com/mattjoyce/forgehand/internal/workspace"
)

// Body is the request payload stored with a queued invocation. RuntimeHome
// and the default target version come from the named toolchain at dispatch
// time, not from the submitter.
type Body struct {
	// TargetVersion overrides the toolchain's language level when set.
	TargetVersion   int               `json:"target_version,omitempty"`
	Fork            fork.Options      `json:"fork,omitempty"`
	Options         json.RawMessage   `json:"options,omitempty"`
	ConstructorArgs []json.RawMessage `json:"constructor_args,omitempty"`
}

// Compiler runs one compile invocation end to end.
type Compiler interface {
	Execute(ctx context.Context, invocationID string, id compile.Identity, req compile.Request) (*protocol.CompileResult, error)
}

// Dispatcher dequeues invocations and executes them via the compiler.
type Dispatcher struct {
	queue        *queue.Queue
	registry     *toolchain.Registry
	compiler     Compiler
	workspaces   workspace.Manager
	tickInterval time.Duration
	reporter     *diag.Reporter
	logger       *slog.Logger
}

// New creates a Dispatcher. workspaces may be nil; invocations then run in
// the compiler's default working directory.
func New(q *queue.Queue, reg *toolchain.Registry, c Compiler, ws workspace.Manager, tick time.Duration) *Dispatcher {
	if tick <= 0 {
		tick = time.Second
	}
	return &Dispatcher{
		queue:        q,
		registry:     reg,
		compiler:     c,
		workspaces:   ws,
		tickInterval: tick,
		reporter:     diag.NewReporter("dispatch"),
		logger:       log.WithComponent("dispatch"),
	}
}

// Start runs the dispatch loop until ctx is cancelled. Invocations execute
// serially; worker-level concurrency lives in the pool.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatch loop started", "tick_interval", d.tickInterval)
	defer d.logger.Info("dispatch loop stopped")

	ticker := time.NewTicker(d.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.processNext(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return ctx.Err()
				}
				d.logger.Error("failed to process invocation", "error", err)
			}
		}
	}
}

// processNext claims and executes one invocation. Returns nil when the
// queue is empty.
func (d *Dispatcher) processNext(ctx context.Context) error {
	inv, err := d.queue.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	if inv == nil {
		return nil
	}

	d.execute(ctx, inv)
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, inv *queue.Invocation) {
	logger := log.WithInvocation(inv.ID).With("toolchain", inv.Toolchain, "compiler_class", inv.CompilerClass)
	logger.Info("executing invocation")

	tc, ok := d.registry.Get(inv.Toolchain)
	if !ok {
		d.fail(ctx, inv.ID, logger, d.reporter.Report(
			diag.IDUnknownToolchain,
			"Unknown toolchain",
			diag.CategoryConfig,
			fmt.Sprintf("toolchain %q is not configured", inv.Toolchain),
			[]string{"Add the toolchain under 'toolchains' in the configuration."},
			diag.SeverityError,
			nil,
		))
		return
	}

	var body Body
	if err := json.Unmarshal(inv.Request, &body); err != nil {
		d.fail(ctx, inv.ID, logger, fmt.Errorf("decode invocation request: %w", err))
		return
	}

	targetVersion := body.TargetVersion
	if targetVersion == 0 {
		targetVersion = tc.Version
	}

	forkOpts := body.Fork
	if d.workspaces != nil && forkOpts.WorkingDir == "" {
		ws, err := d.workspaces.Create(ctx, inv.ID)
		if err != nil {
			d.fail(ctx, inv.ID, logger, fmt.Errorf("create workspace: %w", err))
			return
		}
		forkOpts.WorkingDir = ws.Dir
	}

	req := compile.Request{
		RuntimeHome:   tc.Home,
		TargetVersion: targetVersion,
		Fork:          forkOpts,
		Options:       body.Options,
	}
	id := compile.Identity{
		Class:           inv.CompilerClass,
		ConstructorArgs: body.ConstructorArgs,
	}

	result, err := d.compiler.Execute(ctx, inv.ID, id, req)
	if err != nil {
		d.fail(ctx, inv.ID, logger, err)
		return
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		d.fail(ctx, inv.ID, logger, fmt.Errorf("encode compile result: %w", err))
		return
	}

	if !result.Success {
		msg := fmt.Sprintf("compilation failed with %d error(s)", result.ErrorCount())
		logger.Warn("invocation failed", "compiler_errors", result.ErrorCount())
		d.complete(ctx, inv.ID, logger, queue.Outcome{
			Status:    queue.StatusFailed,
			LastError: &msg,
			Result:    resultJSON,
		})
		return
	}

	logger.Info("invocation succeeded")
	d.complete(ctx, inv.ID, logger, queue.Outcome{
		Status: queue.StatusSucceeded,
		Result: resultJSON,
	})
}

// fail records err as the terminal outcome. Diagnostics are preserved in
// structured form alongside the message.
func (d *Dispatcher) fail(ctx context.Context, invocationID string, logger *slog.Logger, err error) {
	msg := err.Error()
	outcome := queue.Outcome{
		Status:    queue.StatusFailed,
		LastError: &msg,
	}

	if dg, ok := diag.As(err); ok {
		if encoded, merr := json.Marshal(dg); merr == nil {
			outcome.Diagnostic = encoded
		}
		logger.Error("invocation failed", "diagnostic_id", dg.ID, "error", msg)
	} else {
		logger.Error("invocation failed", "error", msg)
	}

	d.complete(ctx, invocationID, logger, outcome)
}

func (d *Dispatcher) complete(ctx context.Context, invocationID string, logger *slog.Logger, outcome queue.Outcome) {
	if err := d.queue.Complete(ctx, invocationID, outcome); err != nil {
		logger.Error("failed to record invocation outcome", "error", err)
	}
}
