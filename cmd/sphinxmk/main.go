package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sphinxmk/internal/build"
	"git.home.luguber.info/inful/sphinxmk/internal/config"
	"git.home.luguber.info/inful/sphinxmk/internal/daemon"
	"git.home.luguber.info/inful/sphinxmk/internal/sphinx"
	"git.home.luguber.info/inful/sphinxmk/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"sphinxmk.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Version struct{} `cmd:"" help:"Print version information"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Venv struct{} `cmd:"" help:"Create the virtual environment and install documentation requirements"`

	Apidoc struct{} `cmd:"" help:"Regenerate API reference stubs with sphinx-apidoc"`

	Make struct {
		Target string `arg:"" help:"Build target forwarded to sphinx-build make mode (html, latex, clean, ...)"`
	} `cmd:"" help:"Forward a target to sphinx-build"`

	Build struct {
		Apidoc    bool `help:"Regenerate API stubs before building"`
		Linkcheck bool `help:"Verify internal links in the generated HTML"`
	} `cmd:"" help:"Build the HTML documentation with the full pipeline"`

	Watch struct{} `cmd:"" help:"Rebuild HTML documentation whenever the source tree changes"`

	Daemon struct {
		DataDir string `short:"d" help:"Data directory for daemon state" default:"./daemon-data"`
	} `cmd:"" help:"Run continuously: scheduled rebuilds, source watching, status endpoint"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "version":
		fmt.Printf("sphinxmk %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)

	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)

	case "venv":
		cfg := loadConfig()
		if err := build.NewService(cfg).EnsureVenv(context.Background()); err != nil {
			slog.Error("Venv provisioning failed", "error", err)
			os.Exit(exitCode(err))
		}

	case "apidoc":
		cfg := loadConfig()
		if err := build.NewService(cfg).RunApidoc(context.Background()); err != nil {
			slog.Error("Apidoc failed", "error", err)
			os.Exit(exitCode(err))
		}

	case "make <target>":
		cfg := loadConfig()
		req := build.Request{Target: CLI.Make.Target}
		if _, err := build.NewService(cfg).Run(context.Background(), req); err != nil {
			slog.Error("Build failed", "target", CLI.Make.Target, "error", err)
			os.Exit(exitCode(err))
		}

	case "build":
		cfg := loadConfig()
		req := build.Request{
			Target:    "html",
			Apidoc:    CLI.Build.Apidoc || cfg.Apidoc.ModuleDir != "",
			Linkcheck: CLI.Build.Linkcheck || cfg.Build.Linkcheck,
		}
		result, err := build.NewService(cfg).Run(context.Background(), req)
		if err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(exitCode(err))
		}
		if len(result.BrokenLinks) > 0 {
			for _, bl := range result.BrokenLinks {
				slog.Warn("Broken link", "file", bl.SourceFile, "url", bl.URL)
			}
			os.Exit(1)
		}

	case "watch":
		cfg := loadConfig()
		if err := runWatch(cfg); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}

	case "daemon":
		cfg := loadConfig()
		if err := runDaemon(cfg, CLI.Daemon.DataDir); err != nil {
			slog.Error("Daemon failed", "error", err)
			os.Exit(1)
		}
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	return cfg
}

// exitCode propagates the invoked subprocess's exit status where one exists.
func exitCode(err error) int {
	if code := sphinx.ExitCode(err); code > 0 {
		return code
	}
	return 1
}

func runWatch(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := build.NewService(cfg)
	rebuild := func() {
		req := build.Request{Target: "html", Trigger: "watch", Linkcheck: cfg.Build.Linkcheck}
		if _, err := svc.Run(ctx, req); err != nil && ctx.Err() == nil {
			slog.Error("Rebuild failed", "error", err)
		}
	}

	watcher, err := daemon.NewWatcher("source", cfg.Daemon.WatchDebounce, nil, rebuild)
	if err != nil {
		return err
	}
	if err := watcher.AddTree(cfg.SourceDir); err != nil {
		return fmt.Errorf("watch source tree %s: %w", cfg.SourceDir, err)
	}

	// Initial build so the output exists before the first change arrives.
	rebuild()

	watcher.Start(ctx)
	defer watcher.Stop()

	slog.Info("Watching for changes", "source_dir", cfg.SourceDir)
	<-ctx.Done()
	return nil
}

func runDaemon(cfg *config.Config, dataDir string) error {
	slog.Info("Starting daemon mode", "data_dir", dataDir)

	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(cfg, CLI.Config, dataDir)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	slog.Info("Daemon stopped successfully")
	return nil
}
