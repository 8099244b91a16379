// Package compile dispatches compile requests to isolated out-of-process
// compiler workers.
package compile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/forgehand/internal/fork"
	"github.com/mattjoyce/forgehand/internal/isolation"
	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/protocol"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

// BundleName is the symbolic name of the base compiler classpath bundle.
const BundleName = "compiler-runtime"

// isolationName is the classloader role workers build for the compiler.
const isolationName = "compiler"

// ErrCompilerFailure marks a failure reported by the worker's compiler
// infrastructure. Distinct from environment diagnostics and from compile
// errors in user source, which travel inside the CompileResult.
var ErrCompilerFailure = errors.New("compiler failure")

// Request describes a single compile invocation. Each invocation gets its
// own instance; requests are never shared across concurrent invocations.
type Request struct {
	RuntimeHome   string          `json:"runtime_home"`
	TargetVersion int             `json:"target_version"`
	Fork          fork.Options    `json:"fork"`
	Options       json.RawMessage `json:"options,omitempty"`
}

// Identity names the compiler implementation the worker should instantiate:
// a fully-qualified class name plus ordered constructor arguments forwarded
// verbatim.
type Identity struct {
	Class           string            `json:"class"`
	ConstructorArgs []json.RawMessage `json:"constructor_args,omitempty"`
}

// DaemonCompiler turns compile requests into worker launch specs and runs
// the invocation protocol against the worker pool.
type DaemonCompiler struct {
	resolver   *toolchain.Resolver
	translator *fork.Translator
	executor   WorkerExecutor
	workingDir string
	keepAlive  launch.KeepAlive
	logger     *slog.Logger
}

// New creates a DaemonCompiler. workingDir is the daemon working directory
// applied when a request does not carry its own. keepAlive defaults to
// daemon: compiler workers are reused across many invocations within a
// build session.
func New(resolver *toolchain.Resolver, executor WorkerExecutor, workingDir string, keepAlive launch.KeepAlive) *DaemonCompiler {
	if keepAlive == "" {
		keepAlive = launch.KeepAliveDaemon
	}
	return &DaemonCompiler{
		resolver:   resolver,
		translator: fork.NewTranslator(),
		executor:   executor,
		workingDir: workingDir,
		keepAlive:  keepAlive,
		logger:     log.WithComponent("compile"),
	}
}

// LaunchSpec assembles the worker launch specification for a request:
// classpath resolution, fork translation, and the flat isolation boundary.
// Environment precondition failures surface as Diagnostics.
func (c *DaemonCompiler) LaunchSpec(req Request) (launch.Spec, error) {
	bundle, err := c.resolver.Resolve(BundleName, req.TargetVersion, req.RuntimeHome)
	if err != nil {
		return launch.Spec{}, err
	}

	opts := req.Fork
	if opts.WorkingDir == "" {
		opts.WorkingDir = c.workingDir
	}

	descriptor, err := c.translator.Translate(opts, req.RuntimeHome, req.TargetVersion)
	if err != nil {
		return launch.Spec{}, err
	}

	return launch.Assemble(descriptor, isolation.Flat(isolationName, bundle), c.keepAlive), nil
}

// Execute runs one compile invocation end to end. Outcomes:
//
//   - (*protocol.CompileResult, nil): the protocol exchange succeeded. The
//     result may still carry compile errors about user source; those never
//     fail the invocation.
//   - (nil, *diag.Diagnostic): an environment precondition or worker fault;
//     nothing was or will be retried here.
//   - (nil, error wrapping ErrCompilerFailure): the worker's compiler
//     infrastructure reported a failure.
//
// Execute may block while a worker slot is acquired. Cancellation of ctx is
// surfaced as a failed outcome, never swallowed.
func (c *DaemonCompiler) Execute(ctx context.Context, invocationID string, id Identity, req Request) (*protocol.CompileResult, error) {
	spec, err := c.LaunchSpec(req)
	if err != nil {
		return nil, err
	}

	handle, err := c.executor.AcquireOrStart(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer c.executor.Release(handle)

	logger := log.WithInvocation(invocationID).With("worker_id", handle.ID())
	logger.Debug("invoking compiler", "compiler_class", id.Class, "target_version", req.TargetVersion)

	env := &protocol.Envelope{
		Protocol:        protocol.Version,
		InvocationID:    invocationID,
		CompilerClass:   id.Class,
		ConstructorArgs: id.ConstructorArgs,
		Payload: protocol.CompilePayload{
			RuntimeHome:   req.RuntimeHome,
			TargetVersion: req.TargetVersion,
			Options:       req.Options,
		},
	}

	resp, err := c.executor.Send(ctx, handle, env)
	if err != nil {
		return nil, err
	}

	for _, entry := range resp.Logs {
		logger.Info("worker log", "level", entry.Level, "message", entry.Message)
	}

	if resp.Status == "error" {
		return nil, fmt.Errorf("%w: %s", ErrCompilerFailure, resp.Error)
	}

	logger.Debug("compile finished",
		"success", resp.Result.Success,
		"compiler_errors", resp.Result.ErrorCount())
	return resp.Result, nil
}
