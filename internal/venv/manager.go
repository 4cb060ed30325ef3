// Package venv provisions the Python virtual environment that hosts the
// Sphinx toolchain. The environment directory persists across builds; pinned
// requirements are only reinstalled when the requirements file changes.
package venv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"git.home.luguber.info/inful/sphinxmk/internal/config"
	"git.home.luguber.info/inful/sphinxmk/internal/sphinx"
)

// Manager handles virtual environment provisioning and binary resolution.
type Manager struct {
	dir          string
	python       string
	requirements string
	runner       sphinx.Runner
}

// NewManager creates a manager for the configured environment.
func NewManager(cfg config.VenvConfig, runner sphinx.Runner) *Manager {
	if runner == nil {
		runner = &sphinx.BinaryRunner{}
	}
	return &Manager{
		dir:          cfg.Dir,
		python:       cfg.Python,
		requirements: cfg.Requirements,
		runner:       runner,
	}
}

// Dir returns the environment directory path.
func (m *Manager) Dir() string { return m.dir }

// Ensure creates the environment if missing and installs requirements when
// the pinned requirements file changed since the last install.
func (m *Manager) Ensure(ctx context.Context) error {
	if !m.exists() {
		slog.Info("Creating virtual environment", "dir", m.dir, "python", m.python)
		inv := sphinx.Invocation{Binary: m.python, Args: []string{"-m", "venv", m.dir}}
		if err := m.runner.Run(ctx, inv); err != nil {
			return fmt.Errorf("create virtualenv: %w", err)
		}
	}

	stale, fp, err := m.requirementsStale()
	if err != nil {
		return fmt.Errorf("check requirements fingerprint: %w", err)
	}
	if !stale {
		slog.Debug("Requirements unchanged, skipping install", "requirements", m.requirements)
		return nil
	}

	slog.Info("Installing documentation requirements", "requirements", m.requirements)
	inv := sphinx.Invocation{
		Binary: m.Binary("pip"),
		Args:   []string{"install", "-r", m.requirements},
	}
	if err := m.runner.Run(ctx, inv); err != nil {
		return fmt.Errorf("install requirements: %w", err)
	}

	if err := m.writeFingerprint(fp); err != nil {
		slog.Warn("Failed to record requirements fingerprint", "error", err)
	}
	return nil
}

// Binary resolves a tool name to the environment's bin directory when the
// tool exists there, falling back to PATH lookup otherwise. Absolute paths
// pass through untouched so SPHINXBUILD overrides keep working.
func (m *Manager) Binary(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	candidate := filepath.Join(m.dir, "bin", name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	if _, err := exec.LookPath(name); err == nil {
		return name
	}
	// Not installed yet; report the venv path so errors point inside the env.
	return candidate
}

func (m *Manager) exists() bool {
	info, err := os.Stat(filepath.Join(m.dir, "bin", "python"))
	return err == nil && !info.IsDir()
}
