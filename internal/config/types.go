package config

import "time"

// Config represents the complete forgehand configuration.
type Config struct {
	Service      ServiceConfig              `yaml:"service"`
	State        StateConfig                `yaml:"state"`
	API          APIConfig                  `yaml:"api,omitempty"`
	WorkspaceDir string                     `yaml:"workspace_dir"`
	Toolchains   map[string]ToolchainConf   `yaml:"toolchains"`
	Bundles      map[string][]string        `yaml:"bundles"`
	Daemon       DaemonConfig               `yaml:"daemon"`
	Retention    RetentionConfig            `yaml:"retention,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name         string        `yaml:"name"`
	TickInterval time.Duration `yaml:"tick_interval"`
	LogLevel     string        `yaml:"log_level"`
}

// StateConfig defines where the invocation ledger database lives.
type StateConfig struct {
	Path string `yaml:"path"`
}

// APIConfig defines HTTP API server settings.
type APIConfig struct {
	Enabled bool          `yaml:"enabled"`
	Listen  string        `yaml:"listen"`
	Auth    APIAuthConfig `yaml:"auth"`
}

// APIAuthConfig defines API authentication settings.
type APIAuthConfig struct {
	APIKey string `yaml:"api_key"`
}

// ToolchainConf declares a JVM toolchain available for compile dispatch.
type ToolchainConf struct {
	Home    string `yaml:"home"`
	Version int    `yaml:"version"`
}

// DaemonConfig controls worker process lifecycle.
type DaemonConfig struct {
	// KeepAlive is the default keep-alive mode for compiler workers:
	// none | session | daemon.
	KeepAlive string `yaml:"keep_alive"`

	// MaxWorkers caps concurrently running worker processes.
	MaxWorkers int `yaml:"max_workers"`

	// IdleTimeout evicts daemon workers that have not served an invocation.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// GracePeriod is how long a worker gets between SIGTERM and SIGKILL.
	GracePeriod time.Duration `yaml:"grace_period"`
}

// RetentionConfig controls pruning of finished invocation records and stale
// workspace directories. Interval drives the periodic pass inside the daemon;
// `forgehand system prune` runs the same pass once.
type RetentionConfig struct {
	// LogAge prunes invocation log rows completed longer ago than this.
	LogAge time.Duration `yaml:"log_age"`

	// WorkspaceAge removes workspace directories untouched for this long.
	WorkspaceAge time.Duration `yaml:"workspace_age"`

	// Interval between periodic retention passes inside the daemon.
	Interval time.Duration `yaml:"interval"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:         "forgehand",
			TickInterval: 1 * time.Second,
			LogLevel:     "info",
		},
		State: StateConfig{
			Path: "forgehand.db",
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:7643",
		},
		Toolchains: map[string]ToolchainConf{},
		Bundles:    map[string][]string{},
		Daemon: DaemonConfig{
			KeepAlive:   "daemon",
			MaxWorkers:  4,
			IdleTimeout: 10 * time.Minute,
			GracePeriod: 5 * time.Second,
		},
		Retention: RetentionConfig{
			LogAge:       7 * 24 * time.Hour,
			WorkspaceAge: 24 * time.Hour,
			Interval:     1 * time.Hour,
		},
	}
}
