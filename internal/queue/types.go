package queue

import (
	"encoding/json"
	"errors"
	"time"
)

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

var ErrInvocationNotFound = errors.New("invocation not found")

// Invocation is one submitted compile invocation and its lifecycle state.
// Request holds the serialized compile request exactly as submitted; the
// queue never interprets it.
type Invocation struct {
	ID            string
	Toolchain     string
	CompilerClass string
	Request       json.RawMessage
	Status        Status
	SubmittedBy   string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	LastError     *string
	Result        json.RawMessage
	Diagnostic    json.RawMessage
}

// EnqueueRequest is the payload for submitting an invocation.
type EnqueueRequest struct {
	Toolchain     string
	CompilerClass string
	Request       json.RawMessage
	SubmittedBy   string
}

// Outcome captures the terminal state of an invocation.
type Outcome struct {
	Status     Status
	LastError  *string
	Result     json.RawMessage
	Diagnostic json.RawMessage
}
