package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
service:
  name: forgehand
  log_level: debug
  tick_interval: 2s
state:
  path: /tmp/forgehand.db
workspace_dir: /tmp/forgehand-work
toolchains:
  jdk8:
    home: /usr/lib/jvm/jdk8
    version: 8
  jdk17:
    home: /usr/lib/jvm/jdk17
    version: 17
bundles:
  compiler-runtime:
    - /opt/forgehand/lib/compiler-api.jar
    - /opt/forgehand/lib/compiler-impl.jar
daemon:
  keep_alive: daemon
  max_workers: 8
  idle_timeout: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, 2*time.Second, cfg.Service.TickInterval)
	assert.Equal(t, 8, cfg.Toolchains["jdk8"].Version)
	assert.Equal(t, "/usr/lib/jvm/jdk17", cfg.Toolchains["jdk17"].Home)
	assert.Len(t, cfg.Bundles["compiler-runtime"], 2)
	assert.Equal(t, 8, cfg.Daemon.MaxWorkers)
	assert.Equal(t, 5*time.Minute, cfg.Daemon.IdleTimeout)
	// Defaults fill what the file omits.
	assert.Equal(t, 5*time.Second, cfg.Daemon.GracePeriod)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "service:\n  name: forgehand\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Service.LogLevel)
	assert.Equal(t, "daemon", cfg.Daemon.KeepAlive)
	assert.Equal(t, 4, cfg.Daemon.MaxWorkers)
	assert.NotNil(t, cfg.Toolchains)
	assert.NotNil(t, cfg.Bundles)
	assert.Equal(t, 7*24*time.Hour, cfg.Retention.LogAge)
	assert.Equal(t, 24*time.Hour, cfg.Retention.WorkspaceAge)
	assert.Equal(t, time.Hour, cfg.Retention.Interval)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("FORGEHAND_TEST_HOME", "/opt/jdk21")
	path := writeConfig(t, `
toolchains:
  jdk21:
    home: ${FORGEHAND_TEST_HOME}
    version: 21
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/opt/jdk21", cfg.Toolchains["jdk21"].Home)
}

func TestLoadRejectsBadKeepAlive(t *testing.T) {
	path := writeConfig(t, "daemon:\n  keep_alive: forever\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "keep_alive")
}

func TestLoadRejectsToolchainWithoutVersion(t *testing.T) {
	path := writeConfig(t, `
toolchains:
  broken:
    home: /opt/jdk
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestLoadRejectsEmptyBundle(t *testing.T) {
	path := writeConfig(t, "bundles:\n  empty: []\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundles.empty")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestChecksumLockAndVerify(t *testing.T) {
	path := writeConfig(t, "service:\n  name: forgehand\n")

	require.NoError(t, Lock(path))

	// Untouched config still loads.
	_, err := Load(path)
	require.NoError(t, err)

	// Tampered config is rejected.
	require.NoError(t, os.WriteFile(path, []byte("service:\n  name: tampered\n"), 0o644))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}
