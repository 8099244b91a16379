package toolchain

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattjoyce/forgehand/internal/diag"
)

// Resolver produces the compiler classpath for a target version and runtime
// home. It is pure over its inputs apart from a filesystem existence check
// for the legacy archive.
type Resolver struct {
	registry *ClasspathRegistry
	reporter *diag.Reporter
}

// NewResolver creates a Resolver over the given bundle registry.
func NewResolver(registry *ClasspathRegistry) *Resolver {
	return &Resolver{
		registry: registry,
		reporter: diag.NewReporter("toolchain"),
	}
}

// Resolve returns the compiler classpath for the request. On modern runtimes
// the base bundle is returned unchanged; access to compiler internals is
// granted via export arguments at launch time instead. On legacy runtimes the
// archive holding the compiler internals is appended to the bundle. A missing
// legacy archive is a deterministic environment precondition failure and is
// never retried.
func (r *Resolver) Resolve(baseBundle string, targetVersion int, runtimeHome string) (ClasspathBundle, error) {
	bundle, ok := r.registry.Bundle(baseBundle)
	if !ok {
		d := r.reporter.Report(
			diag.IDUnknownBundle,
			"Unknown classpath bundle",
			diag.CategoryConfig,
			fmt.Sprintf("No classpath bundle named %q is configured.", baseBundle),
			[]string{"Declare the bundle under 'bundles' in the configuration."},
			diag.SeverityError,
			nil,
		)
		return ClasspathBundle{}, r.reporter.Raise(d)
	}

	rules := RulesFor(targetVersion)
	if rules.ArchiveRelPath == "" {
		return bundle, nil
	}

	archive := filepath.Join(runtimeHome, filepath.FromSlash(rules.ArchiveRelPath))
	if _, err := os.Stat(archive); err != nil {
		archiveName := filepath.Base(archive)
		d := r.reporter.Report(
			diag.IDMissingLegacyArchive,
			"Missing legacy compiler archive",
			diag.CategoryToolchain,
			fmt.Sprintf("The %q archive cannot be found in the runtime located at %q.", archiveName, runtimeHome),
			[]string{
				"Check that the installation is a full development kit and not a runtime-only install.",
				fmt.Sprintf("Check that the installation is not corrupted or incomplete. The 'lib' directory should contain a %q.", archiveName),
			},
			diag.SeverityError,
			err,
		).WithContext("runtime_home", runtimeHome)
		return ClasspathBundle{}, r.reporter.Raise(d)
	}

	return bundle.Plus(archive), nil
}
