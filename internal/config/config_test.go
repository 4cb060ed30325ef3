package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sphinxmk.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "project: Demo\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Project != "Demo" {
		t.Errorf("expected project Demo, got %s", cfg.Project)
	}
	if cfg.SourceDir != "source" {
		t.Errorf("expected default source dir, got %s", cfg.SourceDir)
	}
	if cfg.BuildDir != "build" {
		t.Errorf("expected default build dir, got %s", cfg.BuildDir)
	}
	if cfg.SphinxBuild != "sphinx-build" {
		t.Errorf("expected default sphinx_build, got %s", cfg.SphinxBuild)
	}
	if cfg.Venv.Dir != "venv" || cfg.Venv.Python != "python3" || cfg.Venv.Requirements != "requirements.txt" {
		t.Errorf("unexpected venv defaults: %+v", cfg.Venv)
	}
	if cfg.Apidoc.OutputDir != filepath.Join("source", "api") {
		t.Errorf("expected apidoc output under source dir, got %s", cfg.Apidoc.OutputDir)
	}
	if cfg.Daemon.Interval != time.Hour {
		t.Errorf("expected default daemon interval, got %v", cfg.Daemon.Interval)
	}
	if cfg.Daemon.NATS.Subject != "sphinxmk.builds.demo" {
		t.Errorf("expected derived NATS subject, got %s", cfg.Daemon.NATS.Subject)
	}
}

func TestNATSSubjectForUnsluggableProject(t *testing.T) {
	// A project name with no ASCII letters or digits must still produce a
	// publishable subject (no empty terminal token).
	path := writeConfig(t, "project: \"ドキュメント\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Daemon.NATS.Subject != "sphinxmk.builds.docs" {
		t.Errorf("expected fallback subject, got %s", cfg.Daemon.NATS.Subject)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("DOCS_PROJECT_NAME", "Expanded")
	path := writeConfig(t, "project: ${DOCS_PROJECT_NAME}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Project != "Expanded" {
		t.Errorf("expected env-expanded project, got %s", cfg.Project)
	}
}

func TestMakefileVariableOverrides(t *testing.T) {
	t.Setenv("SPHINXPROJ", "FromEnv")
	t.Setenv("SOURCEDIR", "docs")
	t.Setenv("BUILDDIR", "_build")
	t.Setenv("SPHINXBUILD", "/opt/sphinx/bin/sphinx-build")
	t.Setenv("SPHINXOPTS", "-W -n")
	t.Setenv("O", "--keep-going")

	path := writeConfig(t, "project: FromFile\nsource_dir: source\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Project != "FromEnv" {
		t.Errorf("SPHINXPROJ must win over the file, got %s", cfg.Project)
	}
	if cfg.SourceDir != "docs" || cfg.BuildDir != "_build" {
		t.Errorf("expected dir overrides, got %s / %s", cfg.SourceDir, cfg.BuildDir)
	}
	if cfg.SphinxBuild != "/opt/sphinx/bin/sphinx-build" {
		t.Errorf("expected SPHINXBUILD override, got %s", cfg.SphinxBuild)
	}
	want := []string{"-W", "-n", "--keep-going"}
	if len(cfg.SphinxOpts) != len(want) {
		t.Fatalf("expected opts %v, got %v", want, cfg.SphinxOpts)
	}
	for i := range want {
		if cfg.SphinxOpts[i] != want[i] {
			t.Errorf("opt %d: expected %s, got %s", i, want[i], cfg.SphinxOpts[i])
		}
	}
}

func TestValidateRejectsSameDirs(t *testing.T) {
	cfg := &Config{SourceDir: "docs", BuildDir: "docs"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error when source_dir == build_dir")
	}
}

func TestInitAndForce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sphinxmk.yaml")

	if err := Init(path, false); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := Init(path, false); err == nil {
		t.Fatal("expected error when file exists and force is false")
	}
	if err := Init(path, true); err != nil {
		t.Fatalf("init --force: %v", err)
	}

	// The generated example must itself be loadable.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load generated config: %v", err)
	}
	if cfg.Project == "" {
		t.Error("generated config must set a project name")
	}
}
