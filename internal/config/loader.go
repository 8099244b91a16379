package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads and parses configuration from a YAML file. Environment variable
// references of the form ${NAME} are expanded before parsing. Unset variables
// expand to the empty string.
func Load(configPath string) (*Config, error) {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", absPath)
	}

	expanded := expandEnvVars(string(data))

	cfg := Defaults()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := verifyChecksums(absPath); err != nil {
		return nil, err
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${NAME} references with environment values.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

// applyDefaults fills zero values left by partial YAML documents.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.TickInterval <= 0 {
		cfg.Service.TickInterval = def.Service.TickInterval
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.State.Path == "" {
		cfg.State.Path = def.State.Path
	}
	if cfg.API.Listen == "" {
		cfg.API.Listen = def.API.Listen
	}
	if cfg.Toolchains == nil {
		cfg.Toolchains = map[string]ToolchainConf{}
	}
	if cfg.Bundles == nil {
		cfg.Bundles = map[string][]string{}
	}
	if cfg.Daemon.KeepAlive == "" {
		cfg.Daemon.KeepAlive = def.Daemon.KeepAlive
	}
	if cfg.Daemon.MaxWorkers <= 0 {
		cfg.Daemon.MaxWorkers = def.Daemon.MaxWorkers
	}
	if cfg.Daemon.IdleTimeout <= 0 {
		cfg.Daemon.IdleTimeout = def.Daemon.IdleTimeout
	}
	if cfg.Daemon.GracePeriod <= 0 {
		cfg.Daemon.GracePeriod = def.Daemon.GracePeriod
	}
	if cfg.Retention.LogAge <= 0 {
		cfg.Retention.LogAge = def.Retention.LogAge
	}
	if cfg.Retention.WorkspaceAge <= 0 {
		cfg.Retention.WorkspaceAge = def.Retention.WorkspaceAge
	}
	if cfg.Retention.Interval <= 0 {
		cfg.Retention.Interval = def.Retention.Interval
	}
}

// validate checks structural invariants the rest of the system relies on.
func validate(cfg *Config) error {
	switch cfg.Daemon.KeepAlive {
	case "none", "session", "daemon":
	default:
		return fmt.Errorf("daemon.keep_alive must be one of none|session|daemon, got %q", cfg.Daemon.KeepAlive)
	}

	for name, tc := range cfg.Toolchains {
		if strings.TrimSpace(tc.Home) == "" {
			return fmt.Errorf("toolchains.%s.home is required", name)
		}
		if tc.Version <= 0 {
			return fmt.Errorf("toolchains.%s.version must be a positive language version ordinal", name)
		}
	}

	for name, paths := range cfg.Bundles {
		if len(paths) == 0 {
			return fmt.Errorf("bundles.%s must list at least one classpath entry", name)
		}
		for i, p := range paths {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("bundles.%s[%d] is empty", name, i)
			}
		}
	}

	return nil
}
