package diag

import (
	"fmt"
	"strings"
)

// Severity classifies how serious a diagnostic is.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Categories group diagnostics for machine correlation across builds.
const (
	CategoryToolchain = "toolchain"
	CategoryWorker    = "worker"
	CategoryProtocol  = "protocol"
	CategoryConfig    = "config"
)

// Stable diagnostic identifiers. These are part of the external surface and
// must not change between releases.
const (
	IDMissingLegacyArchive = "missing-legacy-archive"
	IDExecutableNotFound   = "executable-not-found"
	IDWorkerStartFailed    = "worker-start-failed"
	IDWorkerProtocolFault  = "worker-protocol-fault"
	IDUnknownToolchain     = "unknown-toolchain"
	IDUnknownBundle        = "unknown-bundle"
)

// Diagnostic is a structured report of an environment or toolchain
// precondition failure. It is distinct from a compiler diagnostic about user
// source code: a Diagnostic always means the invocation itself could not be
// carried out as configured.
//
// Diagnostic implements error so resolution functions can return it through
// ordinary error plumbing; callers recover the structure with As.
type Diagnostic struct {
	ID          string            `json:"id"`
	Label       string            `json:"label"`
	Category    string            `json:"category"`
	Message     string            `json:"message"`
	Suggestions []string          `json:"suggestions,omitempty"`
	Severity    Severity          `json:"severity"`
	Context     map[string]string `json:"context,omitempty"`
	Cause       error             `json:"-"`
}

// Error renders the diagnostic as a single line.
func (d *Diagnostic) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", d.ID, d.Label, d.Message)
	if len(d.Suggestions) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(d.Suggestions, "; "))
	}
	return b.String()
}

// Unwrap exposes the underlying cause to errors.Is/As chains.
func (d *Diagnostic) Unwrap() error {
	return d.Cause
}

// WithContext returns the diagnostic with key=value added to its context map.
func (d *Diagnostic) WithContext(key, value string) *Diagnostic {
	if d.Context == nil {
		d.Context = make(map[string]string, 1)
	}
	d.Context[key] = value
	return d
}
