// Package doctor validates forgehand configuration and toolchain setup.
package doctor

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mattjoyce/forgehand/internal/compile"
	"github.com/mattjoyce/forgehand/internal/config"
	"github.com/mattjoyce/forgehand/internal/toolchain"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates configuration against the toolchains on disk.
type Doctor struct {
	cfg      *config.Config
	registry *toolchain.Registry
}

// New creates a Doctor from a loaded config and toolchain registry.
func New(cfg *config.Config, registry *toolchain.Registry) *Doctor {
	return &Doctor{cfg: cfg, registry: registry}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateServiceConfig(r)
	d.validateDaemonConfig(r)
	d.validateAPIConfig(r)
	d.validateToolchains(r)
	d.validateBundles(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) validateServiceConfig(r *Result) {
	if d.cfg.State.Path == "" {
		d.addError(r, "service", "state.path", "state.path is required")
	}
	if d.cfg.Service.TickInterval <= 0 {
		d.addError(r, "service", "service.tick_interval", "tick_interval must be positive")
	}
}

func (d *Doctor) validateDaemonConfig(r *Result) {
	switch d.cfg.Daemon.KeepAlive {
	case "none", "session", "daemon":
	default:
		d.addError(r, "daemon", "daemon.keep_alive",
			fmt.Sprintf("invalid keep_alive %q (expected none, session, or daemon)", d.cfg.Daemon.KeepAlive))
	}
	if d.cfg.Daemon.MaxWorkers <= 0 {
		d.addError(r, "daemon", "daemon.max_workers", "max_workers must be positive")
	}
	if d.cfg.Daemon.GracePeriod <= 0 {
		d.addWarning(r, "daemon", "daemon.grace_period",
			"grace_period not set; workers will be killed immediately on shutdown")
	}
	if d.cfg.Daemon.KeepAlive == "daemon" && d.cfg.Daemon.IdleTimeout <= 0 {
		d.addWarning(r, "daemon", "daemon.idle_timeout",
			"keep_alive is daemon but idle_timeout is not set; idle workers will never be evicted")
	}
}

func (d *Doctor) validateAPIConfig(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}
	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" {
		d.addWarning(r, "api", "api.auth", "API enabled but no authentication configured")
	}
}

// validateToolchains probes each configured toolchain installation and
// flags missing homes, launchers, and legacy compiler archives.
func (d *Doctor) validateToolchains(r *Result) {
	if len(d.cfg.Toolchains) == 0 {
		d.addWarning(r, "toolchains", "toolchains", "no toolchains configured; every invocation will fail")
		return
	}

	for _, tc := range d.registry.List() {
		field := fmt.Sprintf("toolchains.%s", tc.Name)

		if tc.Home == "" {
			d.addError(r, "toolchains", field+".home", "home is required")
			continue
		}
		if tc.Version <= 0 {
			d.addError(r, "toolchains", field+".version",
				fmt.Sprintf("invalid version %d", tc.Version))
			continue
		}

		probe := tc.Probe()
		if !probe.HomeExists {
			d.addError(r, "toolchains", field+".home",
				fmt.Sprintf("home %q does not exist", tc.Home))
			continue
		}
		if !probe.ExecutableExists {
			d.addError(r, "toolchains", field,
				fmt.Sprintf("launcher %q not found", tc.Executable()))
		}
		if toolchain.PolicyFor(tc.Version) == toolchain.PolicyLegacy && !probe.LegacyArchiveExists {
			d.addError(r, "toolchains", field,
				fmt.Sprintf("toolchain version %d requires %s under %q",
					tc.Version, toolchain.RulesFor(tc.Version).ArchiveRelPath, tc.Home))
		}
	}
}

// validateBundles checks classpath bundle declarations. A missing entry on
// disk is a warning, not an error: bundles are often built moments before
// the first invocation that needs them.
func (d *Doctor) validateBundles(r *Result) {
	if _, ok := d.cfg.Bundles[compile.BundleName]; !ok {
		d.addError(r, "bundles", "bundles."+compile.BundleName,
			fmt.Sprintf("bundle %q is required for compile dispatch", compile.BundleName))
	}

	for name, paths := range d.cfg.Bundles {
		field := fmt.Sprintf("bundles.%s", name)
		if len(paths) == 0 {
			d.addError(r, "bundles", field, "bundle is empty")
			continue
		}
		for i, p := range paths {
			if _, err := os.Stat(p); err != nil {
				d.addWarning(r, "bundles", fmt.Sprintf("%s[%d]", field, i),
					fmt.Sprintf("classpath entry %q does not exist", p))
			}
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		fmt.Fprintf(&b, "Configuration valid (%d warning(s))\n", len(r.Warnings))
	}
	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
