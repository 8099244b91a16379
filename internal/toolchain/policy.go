package toolchain

// modularizedVersion is the first language version whose runtime ships the
// compiler internals as modules. From this version on, access is granted via
// export arguments at launch time instead of an extra archive on the
// classpath.
const modularizedVersion = 9

// Policy names a version-conditional toolchain tier.
type Policy string

const (
	// PolicyLegacy covers pre-modularized runtimes: compiler internals live
	// in a separate archive inside the runtime home.
	PolicyLegacy Policy = "legacy"

	// PolicyModern covers modularized runtimes: compiler internals are part
	// of the runtime and must be exported explicitly.
	PolicyModern Policy = "modern"
)

// Rules captures what a policy tier demands from launch assembly. Adding a
// future tier means adding a table entry, not a new conditional.
type Rules struct {
	// ArchiveRelPath is the archive holding compiler internals, relative to
	// the runtime home. Empty when no extra archive is required.
	ArchiveRelPath string

	// ExportArgs are launch arguments that expose compiler-internal packages.
	// All entries are required together; a partial set leaves the compiler
	// unable to reach its own internals.
	ExportArgs []string
}

var policyTable = map[Policy]Rules{
	PolicyLegacy: {
		ArchiveRelPath: "lib/tools.jar",
	},
	PolicyModern: {
		ExportArgs: []string{
			"--add-exports=jdk.compiler/com.sun.tools.javac.api=ALL-UNNAMED",
			"--add-exports=jdk.compiler/com.sun.tools.javac.util=ALL-UNNAMED",
		},
	},
}

// PolicyFor returns the policy tier for a target language version ordinal.
func PolicyFor(version int) Policy {
	if version >= modularizedVersion {
		return PolicyModern
	}
	return PolicyLegacy
}

// RulesFor returns the launch rules for a target language version ordinal.
func RulesFor(version int) Rules {
	return policyTable[PolicyFor(version)]
}
