package protocol

import "encoding/json"

// Version is the envelope protocol version. Both sides of the process
// boundary must agree on it before interpreting anything else.
const Version = 1

// Envelope is the invocation request sent to a compiler worker via stdin.
// The worker resolves the compiler class by name, instantiates it with the
// constructor arguments, and invokes it with the compile payload. Constructor
// arguments are opaque JSON values forwarded verbatim so the worker never has
// to load orchestrator-side classes beyond the compiler and its declared
// dependencies.
type Envelope struct {
	Protocol        int               `json:"protocol"`
	InvocationID    string            `json:"invocation_id"`
	CompilerClass   string            `json:"compiler_class"`
	ConstructorArgs []json.RawMessage `json:"constructor_args,omitempty"`
	Payload         CompilePayload    `json:"payload"`
}

// CompilePayload is the compile request as seen by the worker.
type CompilePayload struct {
	RuntimeHome   string `json:"runtime_home"`
	TargetVersion int    `json:"target_version"`

	// Options is the compiler-specific options blob. The dispatch subsystem
	// never interprets it.
	Options json.RawMessage `json:"options,omitempty"`
}

// Response is the worker's reply via stdout.
//
// Status "ok" means the protocol exchange succeeded; the compile itself may
// still have failed on user source errors, which travel inside Result.
// Status "error" means the worker could not carry the invocation out at all.
type Response struct {
	Status string         `json:"status"` // ok | error
	Error  string         `json:"error,omitempty"`
	Result *CompileResult `json:"result,omitempty"`
	Logs   []LogEntry     `json:"logs,omitempty"`
}

// CompileResult is the compiler's outcome. Source errors are normal, expected
// compiler output and never short-circuit the protocol.
type CompileResult struct {
	Success     bool                 `json:"success"`
	Diagnostics []CompilerDiagnostic `json:"diagnostics,omitempty"`
}

// CompilerDiagnostic is a single compiler message about user source code.
type CompilerDiagnostic struct {
	Severity string `json:"severity"` // error | warning | note
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

// LogEntry is a log message emitted by the worker.
type LogEntry struct {
	Level   string `json:"level"` // info | warn | error | debug
	Message string `json:"message"`
}

// ErrorCount returns the number of error-severity compiler diagnostics.
func (r *CompileResult) ErrorCount() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == "error" {
			n++
		}
	}
	return n
}
