// Package workspace manages per-invocation working directories on local
// disk. Forked compiler workers run with their working directory inside the
// workspace so relative source and output paths never escape it.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Workspace is an invocation-scoped directory. Absolute paths stay here so
// the workspace root can move without touching queue rows.
type Workspace struct {
	InvocationID string
	Dir          string
}

// CleanupReport summarizes a cleanup run.
type CleanupReport struct {
	DeletedDirs int
}

// Manager governs invocation workspace lifecycle.
type Manager interface {
	// Create initializes a new workspace for invocationID.
	Create(ctx context.Context, invocationID string) (Workspace, error)

	// Open resolves an existing workspace for invocationID.
	Open(ctx context.Context, invocationID string) (Workspace, error)

	// Cleanup removes workspaces older than olderThan.
	Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error)
}

// fsManager is the filesystem-backed Manager.
type fsManager struct {
	baseDir string
	now     func() time.Time
}

var _ Manager = (*fsManager)(nil)

// NewFSManager creates a filesystem-backed workspace manager rooted at baseDir.
func NewFSManager(baseDir string) (*fsManager, error) {
	trimmed := strings.TrimSpace(baseDir)
	if trimmed == "" {
		return nil, fmt.Errorf("workspace base directory is empty")
	}

	return &fsManager{
		baseDir: filepath.Clean(trimmed),
		now:     time.Now,
	}, nil
}

func (m *fsManager) Create(ctx context.Context, invocationID string) (Workspace, error) {
	if err := ctx.Err(); err != nil {
		return Workspace{}, err
	}

	path, err := m.workspacePath(invocationID)
	if err != nil {
		return Workspace{}, err
	}

	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create workspace base directory: %w", err)
	}

	if err := os.Mkdir(path, 0o755); err != nil {
		return Workspace{}, fmt.Errorf("create workspace for invocation %q: %w", invocationID, err)
	}

	return Workspace{InvocationID: invocationID, Dir: path}, nil
}

func (m *fsManager) Open(ctx context.Context, invocationID string) (Workspace, error) {
	if err := ctx.Err(); err != nil {
		return Workspace{}, err
	}

	path, err := m.workspacePath(invocationID)
	if err != nil {
		return Workspace{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return Workspace{}, fmt.Errorf("open workspace for invocation %q: %w", invocationID, err)
	}
	if !info.IsDir() {
		return Workspace{}, fmt.Errorf("workspace path for invocation %q is not a directory", invocationID)
	}

	return Workspace{InvocationID: invocationID, Dir: path}, nil
}

// Cleanup removes workspace directories older than olderThan based on
// directory modification time.
func (m *fsManager) Cleanup(ctx context.Context, olderThan time.Duration) (CleanupReport, error) {
	if err := ctx.Err(); err != nil {
		return CleanupReport{}, err
	}
	if olderThan <= 0 {
		return CleanupReport{}, fmt.Errorf("olderThan must be positive")
	}

	entries, err := os.ReadDir(m.baseDir)
	if os.IsNotExist(err) {
		return CleanupReport{}, nil
	}
	if err != nil {
		return CleanupReport{}, fmt.Errorf("read workspace base directory: %w", err)
	}

	cutoff := m.now().Add(-olderThan)
	report := CleanupReport{}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			return report, fmt.Errorf("read workspace entry info %q: %w", entry.Name(), err)
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.baseDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return report, fmt.Errorf("remove workspace %q: %w", entry.Name(), err)
		}
		report.DeletedDirs++
	}

	return report, nil
}

func (m *fsManager) workspacePath(invocationID string) (string, error) {
	if err := validateInvocationID(invocationID); err != nil {
		return "", err
	}
	return filepath.Join(m.baseDir, invocationID), nil
}

func validateInvocationID(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return fmt.Errorf("invocation id is empty")
	}
	if trimmed == "." || trimmed == ".." {
		return fmt.Errorf("invocation id %q is invalid", id)
	}
	if strings.Contains(trimmed, "/") || strings.Contains(trimmed, `\`) {
		return fmt.Errorf("invocation id %q must not contain path separators", id)
	}
	if filepath.Clean(trimmed) != trimmed {
		return fmt.Errorf("invocation id %q is invalid", id)
	}
	return nil
}
