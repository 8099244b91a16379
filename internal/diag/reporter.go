package diag

import (
	"errors"
	"log/slog"

	"github.com/mattjoyce/forgehand/internal/log"
)

// Reporter constructs and emits diagnostics. Every environment-precondition
// failure in the dispatch subsystem goes through a Reporter so that all
// toolchain-policy failures are uniformly identifiable and carry remediation
// guidance.
type Reporter struct {
	logger *slog.Logger
}

// NewReporter creates a Reporter logging under the given component name.
func NewReporter(component string) *Reporter {
	return &Reporter{logger: log.WithComponent(component)}
}

// Report builds a Diagnostic without emitting it. Suggestions may be empty,
// cause may be nil.
func (r *Reporter) Report(id, label, category, message string, suggestions []string, severity Severity, cause error) *Diagnostic {
	return &Diagnostic{
		ID:          id,
		Label:       label,
		Category:    category,
		Message:     message,
		Suggestions: suggestions,
		Severity:    severity,
		Cause:       cause,
	}
}

// Raise logs the diagnostic at a level matching its severity and returns it
// as the error outcome of the current invocation attempt. Callers propagate
// the returned error; nothing is thrown.
func (r *Reporter) Raise(d *Diagnostic) error {
	attrs := []any{
		slog.String("diagnostic_id", d.ID),
		slog.String("category", d.Category),
	}
	if d.Cause != nil {
		attrs = append(attrs, slog.String("cause", d.Cause.Error()))
	}
	for k, v := range d.Context {
		attrs = append(attrs, slog.String(k, v))
	}

	switch d.Severity {
	case SeverityInfo:
		r.logger.Info(d.Message, attrs...)
	case SeverityWarning:
		r.logger.Warn(d.Message, attrs...)
	default:
		r.logger.Error(d.Message, attrs...)
	}
	return d
}

// As extracts a Diagnostic from an error chain.
func As(err error) (*Diagnostic, bool) {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// IsID reports whether err carries a Diagnostic with the given id.
func IsID(err error, id string) bool {
	d, ok := As(err)
	return ok && d.ID == id
}
