// Package isolation describes the classloader boundary a worker process uses
// to load the compiler without interference from the host's own classes.
package isolation

import "github.com/mattjoyce/forgehand/internal/toolchain"

// Spec is a named, flat classloader boundary backed by exactly the paths of
// one classpath bundle. Flat means a single level with no delegation beyond
// the fixed base loader, so the worker sees the compiler's own dependency set
// and nothing from the orchestrator's runtime classpath.
//
// Spec is plain immutable data; the worker process constructs the actual
// loader from it. Structural equality over identical bundles is what lets
// launch-spec equality drive daemon reuse.
type Spec struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

// Flat builds the isolation spec for a compiler role over the given bundle.
func Flat(name string, bundle toolchain.ClasspathBundle) Spec {
	return Spec{
		Name:  name,
		Paths: append([]string(nil), bundle.Paths...),
	}
}
