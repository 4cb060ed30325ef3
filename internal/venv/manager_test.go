package venv

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"git.home.luguber.info/inful/sphinxmk/internal/config"
	"git.home.luguber.info/inful/sphinxmk/internal/sphinx"
)

// recordingRunner captures invocations without executing anything.
type recordingRunner struct {
	invocations []sphinx.Invocation
}

func (r *recordingRunner) Run(_ context.Context, inv sphinx.Invocation) error {
	r.invocations = append(r.invocations, inv)
	return nil
}

func testEnv(t *testing.T, withRequirements bool) (config.VenvConfig, *recordingRunner) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.VenvConfig{
		Dir:          filepath.Join(dir, "venv"),
		Python:       "python3",
		Requirements: filepath.Join(dir, "requirements.txt"),
	}
	if withRequirements {
		if err := os.WriteFile(cfg.Requirements, []byte("sphinx==7.2.6\nmyst-parser==2.0.0\n"), 0o600); err != nil {
			t.Fatalf("write requirements: %v", err)
		}
	}
	return cfg, &recordingRunner{}
}

// fakeVenv creates a directory layout that makes the environment look provisioned.
func fakeVenv(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "bin"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bin", "python"), []byte("#!/fake\n"), 0o700); err != nil {
		t.Fatalf("write fake python: %v", err)
	}
}

func TestEnsureCreatesEnvironment(t *testing.T) {
	cfg, runner := testEnv(t, false)
	m := NewManager(cfg, runner)

	if err := m.Ensure(t.Context()); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	if len(runner.invocations) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(runner.invocations))
	}
	inv := runner.invocations[0]
	if inv.Binary != "python3" {
		t.Errorf("expected python3, got %s", inv.Binary)
	}
	want := []string{"-m", "venv", cfg.Dir}
	if len(inv.Args) != 3 || inv.Args[0] != want[0] || inv.Args[1] != want[1] || inv.Args[2] != want[2] {
		t.Errorf("expected args %v, got %v", want, inv.Args)
	}
}

func TestEnsureInstallsRequirementsOnce(t *testing.T) {
	cfg, runner := testEnv(t, true)
	fakeVenv(t, cfg.Dir)
	m := NewManager(cfg, runner)

	if err := m.Ensure(t.Context()); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if len(runner.invocations) != 1 {
		t.Fatalf("expected pip install invocation, got %d invocations", len(runner.invocations))
	}
	inv := runner.invocations[0]
	if inv.Args[0] != "install" || inv.Args[1] != "-r" || inv.Args[2] != cfg.Requirements {
		t.Errorf("unexpected pip args: %v", inv.Args)
	}

	// Unchanged requirements: second Ensure is a no-op.
	if err := m.Ensure(t.Context()); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(runner.invocations) != 1 {
		t.Errorf("expected install to be skipped, got %d invocations", len(runner.invocations))
	}
}

func TestEnsureReinstallsWhenRequirementsChange(t *testing.T) {
	cfg, runner := testEnv(t, true)
	fakeVenv(t, cfg.Dir)
	m := NewManager(cfg, runner)

	if err := m.Ensure(t.Context()); err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	if err := os.WriteFile(cfg.Requirements, []byte("sphinx==8.0.0\n"), 0o600); err != nil {
		t.Fatalf("update requirements: %v", err)
	}
	if err := m.Ensure(t.Context()); err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if len(runner.invocations) != 2 {
		t.Errorf("expected reinstall after requirements change, got %d invocations", len(runner.invocations))
	}
}

func TestBinaryResolution(t *testing.T) {
	cfg, runner := testEnv(t, false)
	fakeVenv(t, cfg.Dir)
	m := NewManager(cfg, runner)

	// Absolute paths pass through untouched.
	if got := m.Binary("/usr/local/bin/sphinx-build"); got != "/usr/local/bin/sphinx-build" {
		t.Errorf("absolute path must pass through, got %s", got)
	}

	// Tools present in the venv resolve there.
	toolPath := filepath.Join(cfg.Dir, "bin", "sphinx-build")
	if err := os.WriteFile(toolPath, []byte("#!/fake\n"), 0o700); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	if got := m.Binary("sphinx-build"); got != toolPath {
		t.Errorf("expected venv-local tool %s, got %s", toolPath, got)
	}

	// Tools available on PATH fall back to the bare name.
	if got := m.Binary("sh"); got != "sh" {
		t.Errorf("expected PATH fallback for sh, got %s", got)
	}
}
