package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/mattjoyce/forgehand/internal/api"
	"github.com/mattjoyce/forgehand/internal/compile"
	"github.com/mattjoyce/forgehand/internal/config"
	"github.com/mattjoyce/forgehand/internal/dispatch"
	"github.com/mattjoyce/forgehand/internal/doctor"
	"github.com/mattjoyce/forgehand/internal/launch"
	"github.com/mattjoyce/forgehand/internal/lock"
	"github.com/mattjoyce/forgehand/internal/log"
	"github.com/mattjoyce/forgehand/internal/pool"
	"github.com/mattjoyce/forgehand/internal/queue"
	"github.com/mattjoyce/forgehand/internal/storage"
	"github.com/mattjoyce/forgehand/internal/toolchain"
	"github.com/mattjoyce/forgehand/internal/tui/watch"
	"github.com/mattjoyce/forgehand/internal/workspace"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "system":
		return runSystemNoun(args)
	case "config":
		return runConfigNoun(args)
	case "toolchain":
		return runToolchainNoun(args)
	case "invocation":
		return runInvocationNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: forgehand system <start|watch|prune>")
		return 1
	}
	switch args[0] {
	case "start":
		return runStart(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "prune":
		return runPrune(args[1:])
	case "help":
		fmt.Println("Usage: forgehand system <start|watch|prune>")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: forgehand config <check|lock>")
		return 1
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "lock":
		return runConfigLock(args[1:])
	case "help":
		fmt.Println("Usage: forgehand config <check|lock>")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", args[0])
		return 1
	}
}

func runToolchainNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: forgehand toolchain <list>")
		return 1
	}
	switch args[0] {
	case "list":
		return runToolchainList(args[1:])
	case "help":
		fmt.Println("Usage: forgehand toolchain <list>")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown toolchain action: %s\n", args[0])
		return 1
	}
}

func runInvocationNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: forgehand invocation <inspect>")
		return 1
	}
	switch args[0] {
	case "inspect":
		return runInvocationInspect(args[1:])
	case "help":
		fmt.Println("Usage: forgehand invocation inspect <id>")
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown invocation action: %s\n", args[0])
		return 1
	}
}

// runStart starts the daemon in the foreground: queue, worker pool,
// dispatch loop, and optionally the HTTP API.
func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "forgehand.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("forgehand starting", "version", version, "config", *configPath)

	pidLockPath := filepath.Join(filepath.Dir(cfg.State.Path), "forgehand.lock")
	pidLock, err := lock.Acquire(pidLockPath)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidLockPath, "error", err)
		return 1
	}
	defer pidLock.Release()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.State.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.State.Path)

	registry := toolchain.NewRegistry(cfg.Toolchains)
	if err := registry.Validate(); err != nil {
		logger.Error("toolchain registry invalid", "error", err)
		return 1
	}
	logger.Info("toolchains registered", "count", len(registry.List()))

	resolver := toolchain.NewResolver(toolchain.NewClasspathRegistry(cfg.Bundles))

	workerPool := pool.New(pool.Config{
		MaxWorkers:  cfg.Daemon.MaxWorkers,
		IdleTimeout: cfg.Daemon.IdleTimeout,
		GracePeriod: cfg.Daemon.GracePeriod,
	})
	defer workerPool.Close()

	keepAlive, err := launch.ParseKeepAlive(cfg.Daemon.KeepAlive)
	if err != nil {
		logger.Error("invalid daemon.keep_alive", "error", err)
		return 1
	}

	wsBaseDir := cfg.WorkspaceDir
	if wsBaseDir == "" {
		wsBaseDir = filepath.Join(filepath.Dir(cfg.State.Path), "workspaces")
	}
	wsManager, err := workspace.NewFSManager(wsBaseDir)
	if err != nil {
		logger.Error("failed to initialize workspace manager", "base_dir", wsBaseDir, "error", err)
		return 1
	}

	q := queue.New(db)
	compiler := compile.New(resolver, compile.PoolExecutor(workerPool), wsBaseDir, keepAlive)
	disp := dispatch.New(q, registry, compiler, wsManager, cfg.Service.TickInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	go func() {
		if err := disp.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("dispatcher: %w", err)
		}
	}()

	go runRetentionLoop(ctx, cfg.Retention, q, wsManager, logger)

	if cfg.API.Enabled {
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
		}, q, workerPool, registry, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("forgehand running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("forgehand stopped")
	return 0
}

// runRetentionLoop prunes old invocation log rows and stale workspace
// directories on the configured interval until ctx is cancelled.
func runRetentionLoop(ctx context.Context, retention config.RetentionConfig, q *queue.Queue, ws workspace.Manager, logger *slog.Logger) {
	ticker := time.NewTicker(retention.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := q.PruneLogs(ctx, retention.LogAge); err != nil {
				logger.Warn("invocation log prune failed", "error", err)
			}
			report, err := ws.Cleanup(ctx, retention.WorkspaceAge)
			if err != nil {
				logger.Warn("workspace cleanup failed", "error", err)
				continue
			}
			if report.DeletedDirs > 0 {
				logger.Info("retention pass complete", "deleted_workspaces", report.DeletedDirs)
			}
		}
	}
}

func runPrune(args []string) int {
	fs := flag.NewFlagSet("prune", flag.ExitOnError)
	configPath := fs.String("config", "forgehand.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	q := queue.New(db)
	if err := q.PruneLogs(ctx, cfg.Retention.LogAge); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to prune invocation logs: %v\n", err)
		return 1
	}

	wsBaseDir := cfg.WorkspaceDir
	if wsBaseDir == "" {
		wsBaseDir = filepath.Join(filepath.Dir(cfg.State.Path), "workspaces")
	}
	wsManager, err := workspace.NewFSManager(wsBaseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open workspace dir: %v\n", err)
		return 1
	}
	report, err := wsManager.Cleanup(ctx, cfg.Retention.WorkspaceAge)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clean workspaces: %v\n", err)
		return 1
	}

	fmt.Printf("Pruned invocation logs older than %s\n", cfg.Retention.LogAge)
	fmt.Printf("Removed %d stale workspace directories (older than %s)\n",
		report.DeletedDirs, cfg.Retention.WorkspaceAge)
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:7643", "Daemon API URL")
	apiKey := fs.String("api-key", os.Getenv("FORGEHAND_API_KEY"), "API Bearer Token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: API key required. Use --api-key or FORGEHAND_API_KEY env var.")
		return 1
	}

	if err := watch.Run(*apiURL, *apiKey); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "forgehand.yaml", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	result := doctor.New(cfg, toolchain.NewRegistry(cfg.Toolchains)).Validate()

	if *jsonOut {
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runConfigLock(args []string) int {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	configPath := fs.String("config", "forgehand.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	if err := config.Lock(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Lock failed: %v\n", err)
		return 1
	}
	fmt.Printf("Updated integrity hashes for %s\n", *configPath)
	return 0
}

func runToolchainList(args []string) int {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	configPath := fs.String("config", "forgehand.yaml", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	type entry struct {
		Name   string                `json:"name"`
		Home   string                `json:"home"`
		Version int                   `json:"version"`
		Policy string                `json:"policy"`
		Probe  toolchain.ProbeResult `json:"probe"`
	}

	registry := toolchain.NewRegistry(cfg.Toolchains)
	entries := make([]entry, 0, len(registry.List()))
	for _, tc := range registry.List() {
		entries = append(entries, entry{
			Name:   tc.Name,
			Home:   tc.Home,
			Version: tc.Version,
			Policy: string(toolchain.PolicyFor(tc.Version)),
			Probe:  tc.Probe(),
		})
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	if len(entries) == 0 {
		fmt.Println("No toolchains configured.")
		return 0
	}
	fmt.Printf("%-12s %-8s %-8s %-10s %s\n", "NAME", "VERSION", "POLICY", "READY", "HOME")
	for _, e := range entries {
		ready := "yes"
		if !e.Probe.HomeExists || !e.Probe.ExecutableExists {
			ready = "no"
		} else if e.Policy == "legacy" && !e.Probe.LegacyArchiveExists {
			ready = "no"
		}
		fmt.Printf("%-12s %-8d %-8s %-10s %s\n", e.Name, e.Version, e.Policy, ready, e.Home)
	}
	return 0
}

func runInvocationInspect(args []string) int {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", "forgehand.yaml", "Path to configuration file")
	jsonOut := fs.Bool("json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: forgehand invocation inspect <id> [--json]")
		return 1
	}
	id := fs.Arg(0)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	inv, err := queue.New(db).Get(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(inv, "", "  ")
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("Invocation:     %s\n", inv.ID)
	fmt.Printf("Toolchain:      %s\n", inv.Toolchain)
	fmt.Printf("Compiler class: %s\n", inv.CompilerClass)
	fmt.Printf("Status:         %s\n", inv.Status)
	fmt.Printf("Submitted by:   %s\n", inv.SubmittedBy)
	fmt.Printf("Created:        %s\n", inv.CreatedAt.Format(time.RFC3339))
	if inv.StartedAt != nil {
		fmt.Printf("Started:        %s\n", inv.StartedAt.Format(time.RFC3339))
	}
	if inv.CompletedAt != nil {
		fmt.Printf("Completed:      %s\n", inv.CompletedAt.Format(time.RFC3339))
	}
	if inv.LastError != nil {
		fmt.Printf("Last error:     %s\n", *inv.LastError)
	}
	if len(inv.Diagnostic) > 0 {
		fmt.Printf("Diagnostic:     %s\n", string(inv.Diagnostic))
	}
	if len(inv.Result) > 0 {
		fmt.Printf("Result:         %s\n", string(inv.Result))
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()

	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("forgehand %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	resolvedCommit := strings.TrimSpace(gitCommit)
	if resolvedCommit == "" || resolvedCommit == "unknown" {
		resolvedCommit = strings.TrimSpace(readBuildSetting("vcs.revision"))
	}
	if resolvedCommit != "" {
		if len(resolvedCommit) > 12 {
			resolvedCommit = resolvedCommit[:12]
		}
		info.Commit = resolvedCommit
	}

	resolvedBuildTime := strings.TrimSpace(buildDate)
	if resolvedBuildTime == "" || resolvedBuildTime == "unknown" {
		resolvedBuildTime = strings.TrimSpace(readBuildSetting("vcs.time"))
	}
	if t, err := time.Parse(time.RFC3339Nano, resolvedBuildTime); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}

	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

func printUsage() {
	fmt.Print(`forgehand - Out-of-process compiler build daemon

Usage:
  forgehand <noun> <action> [flags]

System Commands:
  system start        Start the daemon in foreground
  system watch        Real-time monitoring TUI
  system prune        Prune old invocation logs and stale workspaces

Config Commands:
  config check        Validate configuration and toolchain setup
  config lock         Authorize current state (update integrity hashes)

Toolchain Commands:
  toolchain list      Show configured toolchains and probe results

Invocation Commands:
  invocation inspect <id>  Show one invocation's outcome

General:
  version             Show version information
  help                Show this help message
`)
}
