// Package launch assembles immutable worker launch specifications. A launch
// spec is the unit the worker pool caches and reuses: two structurally equal
// specs may share a running worker process.
package launch

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/forgehand/internal/fork"
	"github.com/mattjoyce/forgehand/internal/isolation"
)

// KeepAlive is the worker reuse policy.
type KeepAlive string

const (
	// KeepAliveNone tears the worker down after one invocation.
	KeepAliveNone KeepAlive = "none"

	// KeepAliveSession keeps the worker for the current build session.
	KeepAliveSession KeepAlive = "session"

	// KeepAliveDaemon keeps the worker across sessions until idle eviction.
	// Compiler workers are expensive to start, so this is the default.
	KeepAliveDaemon KeepAlive = "daemon"
)

// ParseKeepAlive validates a configured keep-alive mode.
func ParseKeepAlive(s string) (KeepAlive, error) {
	switch KeepAlive(s) {
	case KeepAliveNone, KeepAliveSession, KeepAliveDaemon:
		return KeepAlive(s), nil
	}
	return "", fmt.Errorf("invalid keep-alive mode %q (must be none|session|daemon)", s)
}

// Spec is the immutable composite of launch descriptor, isolation boundary,
// and keep-alive policy. It is safe to share across concurrent invocations.
type Spec struct {
	Descriptor fork.LaunchDescriptor `json:"descriptor"`
	Isolation  isolation.Spec        `json:"isolation"`
	KeepAlive  KeepAlive             `json:"keep_alive"`
}

// Assemble composes a launch spec. Pure: identical inputs always produce
// specs that compare equal.
func Assemble(descriptor fork.LaunchDescriptor, iso isolation.Spec, keepAlive KeepAlive) Spec {
	return Spec{
		Descriptor: descriptor,
		Isolation:  iso,
		KeepAlive:  keepAlive,
	}
}

// Key returns a stable digest of the spec used as the worker-pool lookup key.
// The encoding is byte-for-byte reproducible for a given spec: struct field
// order is fixed, and ordering of arguments and classpath entries is
// significant by design.
func (s Spec) Key() string {
	data, err := json.Marshal(s)
	if err != nil {
		// Spec contains only strings and slices of strings.
		panic(fmt.Sprintf("launch spec not encodable: %v", err))
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
