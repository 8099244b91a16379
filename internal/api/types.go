package api

import (
	"encoding/json"
	"time"
)

// SubmitRequest is the JSON body for POST /v1/invocations.
type SubmitRequest struct {
	Toolchain     string          `json:"toolchain"`
	CompilerClass string          `json:"compiler_class"`
	Request       json.RawMessage `json:"request,omitempty"`
}

// SubmitResponse is returned on successful enqueue.
type SubmitResponse struct {
	InvocationID string `json:"invocation_id"`
	Status       string `json:"status"`
	Toolchain    string `json:"toolchain"`
}

// InvocationResponse is returned by GET /v1/invocations/{invocation_id}.
type InvocationResponse struct {
	InvocationID  string          `json:"invocation_id"`
	Toolchain     string          `json:"toolchain"`
	CompilerClass string          `json:"compiler_class"`
	Status        string          `json:"status"`
	SubmittedBy   string          `json:"submitted_by"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	LastError     *string         `json:"last_error,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	Diagnostic    json.RawMessage `json:"diagnostic,omitempty"`
}

// ToolchainInfo is one entry in GET /v1/toolchains.
type ToolchainInfo struct {
	Name    string `json:"name"`
	Home    string `json:"home"`
	Version int    `json:"version"`
	Policy  string `json:"policy"`

	HomeExists          bool `json:"home_exists"`
	ExecutableExists    bool `json:"executable_exists"`
	LegacyArchiveExists bool `json:"legacy_archive_exists"`
}

// ErrorResponse is returned on errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EndSessionResponse is returned by POST /v1/sessions/end. Workers counts
// the workers remaining in the pool after session-scoped ones were retired.
type EndSessionResponse struct {
	Status  string `json:"status"`
	Workers int    `json:"workers"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Workers       int    `json:"workers"`
	Toolchains    int    `json:"toolchains"`
}
