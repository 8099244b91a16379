// Package fork translates generic fork options into a concrete process
// launch descriptor for a target toolchain.
package fork

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattjoyce/forgehand/internal/diag"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

// Options is the generic fork configuration carried by a compile request.
type Options struct {
	// WorkingDir is copied verbatim into the launch descriptor.
	WorkingDir string `json:"working_dir,omitempty"`

	// JVMArgs are user-specified extra launch arguments. They are appended
	// after any version-policy arguments so that a user override of the same
	// flag wins under last-value-wins argument parsing.
	JVMArgs []string `json:"jvm_args,omitempty"`

	// Executable overrides the toolchain's own launcher. Leave empty to run
	// under the target runtime's bin/java.
	Executable string `json:"executable,omitempty"`
}

// LaunchDescriptor fully specifies how to start a worker process. Environment
// is inherited from the caller unless Env is set. Argument order matters:
// version-export flags appear before user arguments.
type LaunchDescriptor struct {
	WorkingDir string   `json:"working_dir"`
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	Env        []string `json:"env,omitempty"`
}

// Translator converts fork options plus version policy into launch
// descriptors. Deterministic given its inputs; the only I/O is the existence
// check on the executable path.
type Translator struct {
	reporter *diag.Reporter
}

// NewTranslator creates a Translator.
func NewTranslator() *Translator {
	return &Translator{reporter: diag.NewReporter("fork")}
}

// Translate builds the launch descriptor for targetVersion under runtimeHome.
func (t *Translator) Translate(opts Options, runtimeHome string, targetVersion int) (LaunchDescriptor, error) {
	executable := opts.Executable
	if executable == "" {
		executable = filepath.Join(runtimeHome, "bin", "java")
	}

	if _, err := os.Stat(executable); err != nil {
		d := t.reporter.Report(
			diag.IDExecutableNotFound,
			"Runtime executable not found",
			diag.CategoryToolchain,
			fmt.Sprintf("The runtime executable %q does not exist.", executable),
			[]string{
				"Check that the toolchain home points at a complete runtime installation.",
				"Check the 'executable' override in the fork options.",
			},
			diag.SeverityError,
			err,
		).WithContext("runtime_home", runtimeHome)
		return LaunchDescriptor{}, t.reporter.Raise(d)
	}

	rules := toolchain.RulesFor(targetVersion)

	// Policy flags first, user args after.
	args := make([]string, 0, len(rules.ExportArgs)+len(opts.JVMArgs))
	args = append(args, rules.ExportArgs...)
	args = append(args, opts.JVMArgs...)

	return LaunchDescriptor{
		WorkingDir: opts.WorkingDir,
		Executable: executable,
		Args:       args,
	}, nil
}
