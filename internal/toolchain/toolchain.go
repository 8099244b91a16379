// Package toolchain models the JVM toolchains a compile request can target
// and resolves the compiler classpath for a given target version.
package toolchain

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattjoyce/forgehand/internal/config"
)

// Toolchain is a named JVM installation available for compile dispatch.
type Toolchain struct {
	Name    string
	Home    string
	Version int
}

// Executable returns the runtime's own launcher binary. Compiles always run
// under the requested toolchain's runtime, never the orchestrator's.
func (t Toolchain) Executable() string {
	return filepath.Join(t.Home, "bin", "java")
}

// ProbeResult reports what a filesystem inspection of a toolchain found.
type ProbeResult struct {
	HomeExists       bool `json:"home_exists"`
	ExecutableExists bool `json:"executable_exists"`
	// LegacyArchiveExists is only meaningful for pre-modularized toolchains;
	// modern toolchains never need the archive.
	LegacyArchiveExists bool `json:"legacy_archive_exists"`
}

// Probe inspects the toolchain installation on disk.
func (t Toolchain) Probe() ProbeResult {
	var r ProbeResult
	if info, err := os.Stat(t.Home); err == nil && info.IsDir() {
		r.HomeExists = true
	}
	if _, err := os.Stat(t.Executable()); err == nil {
		r.ExecutableExists = true
	}
	if rel := RulesFor(t.Version).ArchiveRelPath; rel != "" {
		if _, err := os.Stat(filepath.Join(t.Home, filepath.FromSlash(rel))); err == nil {
			r.LegacyArchiveExists = true
		}
	}
	return r
}

// Registry holds the toolchains declared in configuration.
type Registry struct {
	toolchains map[string]Toolchain
}

// NewRegistry builds a Registry from configuration.
func NewRegistry(confs map[string]config.ToolchainConf) *Registry {
	m := make(map[string]Toolchain, len(confs))
	for name, tc := range confs {
		m[name] = Toolchain{Name: name, Home: tc.Home, Version: tc.Version}
	}
	return &Registry{toolchains: m}
}

// Get returns the named toolchain.
func (r *Registry) Get(name string) (Toolchain, bool) {
	t, ok := r.toolchains[name]
	return t, ok
}

// ForVersion returns a toolchain matching the exact language version.
// When several match, the lowest name wins for determinism.
func (r *Registry) ForVersion(version int) (Toolchain, bool) {
	var names []string
	for name, t := range r.toolchains {
		if t.Version == version {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return Toolchain{}, false
	}
	sort.Strings(names)
	return r.toolchains[names[0]], true
}

// List returns all registered toolchains sorted by name.
func (r *Registry) List() []Toolchain {
	out := make([]Toolchain, 0, len(r.toolchains))
	for _, t := range r.toolchains {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Validate checks that every registered toolchain has a usable home.
func (r *Registry) Validate() error {
	for _, t := range r.List() {
		if t.Home == "" {
			return fmt.Errorf("toolchain %q has no home", t.Name)
		}
		if t.Version <= 0 {
			return fmt.Errorf("toolchain %q has invalid version %d", t.Name, t.Version)
		}
	}
	return nil
}
