package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Project     string       `yaml:"project"`
	SourceDir   string       `yaml:"source_dir"`
	BuildDir    string       `yaml:"build_dir"`
	SphinxBuild string       `yaml:"sphinx_build"`
	SphinxOpts  []string     `yaml:"sphinx_opts,omitempty"`
	Venv        VenvConfig   `yaml:"venv"`
	Apidoc      ApidocConfig `yaml:"apidoc"`
	Build       BuildConfig  `yaml:"build"`
	Daemon      DaemonConfig `yaml:"daemon"`
}

// VenvConfig describes the Python virtual environment that hosts Sphinx.
type VenvConfig struct {
	Dir          string `yaml:"dir"`
	Python       string `yaml:"python"`
	Requirements string `yaml:"requirements"`
}

// ApidocConfig controls sphinx-apidoc stub regeneration.
type ApidocConfig struct {
	ModuleDir string   `yaml:"module_dir"`
	OutputDir string   `yaml:"output_dir"`
	Force     bool     `yaml:"force"`
	Excludes  []string `yaml:"excludes,omitempty"`
}

// BuildConfig holds build pipeline tuning options.
type BuildConfig struct {
	RetryBackoff string        `yaml:"retry_backoff,omitempty"` // fixed|linear|exponential
	RetryInitial time.Duration `yaml:"retry_initial,omitempty"`
	RetryMax     time.Duration `yaml:"retry_max,omitempty"`
	MaxRetries   int           `yaml:"max_retries"`
	Linkcheck    bool          `yaml:"linkcheck"`
}

// DaemonConfig configures the long-running build daemon.
type DaemonConfig struct {
	Listen         string        `yaml:"listen"`
	Interval       time.Duration `yaml:"interval"`
	HistoryDB      string        `yaml:"history_db"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	WatchDebounce  time.Duration `yaml:"watch_debounce,omitempty"`
	NATS           NATSConfig    `yaml:"nats"`
}

// NATSConfig configures optional build event publishing.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists; absence is not an error
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Note: .env file couldn't be loaded: %v\n", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	return &config, nil
}

// applyEnvOverrides honors the classic Sphinx Makefile variables so the tool
// is a drop-in replacement for `make` in existing documentation trees.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPHINXPROJ"); v != "" {
		c.Project = v
	}
	if v := os.Getenv("SOURCEDIR"); v != "" {
		c.SourceDir = v
	}
	if v := os.Getenv("BUILDDIR"); v != "" {
		c.BuildDir = v
	}
	if v := os.Getenv("SPHINXBUILD"); v != "" {
		c.SphinxBuild = v
	}
	if v := os.Getenv("SPHINXOPTS"); v != "" {
		c.SphinxOpts = strings.Fields(v)
	}
	// O is the conventional shorthand for extra sphinx-build options.
	if v := os.Getenv("O"); v != "" {
		c.SphinxOpts = append(c.SphinxOpts, strings.Fields(v)...)
	}
}

func (c *Config) applyDefaults() {
	if c.Project == "" {
		c.Project = "Documentation"
	}
	if c.SourceDir == "" {
		c.SourceDir = "source"
	}
	if c.BuildDir == "" {
		c.BuildDir = "build"
	}
	if c.SphinxBuild == "" {
		c.SphinxBuild = "sphinx-build"
	}
	if c.Venv.Dir == "" {
		c.Venv.Dir = "venv"
	}
	if c.Venv.Python == "" {
		c.Venv.Python = "python3"
	}
	if c.Venv.Requirements == "" {
		c.Venv.Requirements = "requirements.txt"
	}
	if c.Apidoc.OutputDir == "" {
		c.Apidoc.OutputDir = filepath.Join(c.SourceDir, "api")
	}
	if c.Build.RetryInitial <= 0 {
		c.Build.RetryInitial = time.Second
	}
	if c.Build.RetryMax <= 0 {
		c.Build.RetryMax = 30 * time.Second
	}
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = ":8787"
	}
	if c.Daemon.Interval <= 0 {
		c.Daemon.Interval = time.Hour
	}
	if c.Daemon.HistoryDB == "" {
		c.Daemon.HistoryDB = "sphinxmk-history.db"
	}
	if c.Daemon.WatchDebounce <= 0 {
		c.Daemon.WatchDebounce = 2 * time.Second
	}
	if c.Daemon.NATS.Subject == "" {
		slug := Slug(c.Project)
		if slug == "" {
			// Names with no ASCII letters or digits (e.g. fully CJK titles)
			// slug to nothing; an empty terminal token is not a valid subject.
			slug = "docs"
		}
		c.Daemon.NATS.Subject = "sphinxmk.builds." + slug
	}
}

// Validate checks invariants a build cannot proceed without.
func (c *Config) Validate() error {
	if c.SourceDir == c.BuildDir {
		return fmt.Errorf("source_dir and build_dir must differ: %s", c.SourceDir)
	}
	if c.Apidoc.ModuleDir != "" && c.Apidoc.OutputDir == "" {
		return fmt.Errorf("apidoc.output_dir is required when apidoc.module_dir is set")
	}
	return nil
}

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := `# sphinxmk configuration
project: "My Project"
source_dir: source
build_dir: build
sphinx_build: sphinx-build
# sphinx_opts: ["-W", "--keep-going"]

venv:
  dir: venv
  python: python3
  requirements: requirements.txt

apidoc:
  module_dir: ../src/myproject
  output_dir: source/api
  force: true
  # excludes:
  #   - "../src/myproject/vendor"

build:
  max_retries: 2
  linkcheck: false

daemon:
  listen: ":8787"
  interval: 1h
  history_db: sphinxmk-history.db
  metrics_enabled: true
  nats:
    enabled: false
    # url: nats://localhost:4222
`

	if err := os.WriteFile(configPath, []byte(example), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
