// Package build orchestrates the documentation build pipeline: environment
// provisioning, API stub regeneration, the sphinx-build make-mode invocation
// and optional post-build link verification.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sphinxmk/internal/config"
	"git.home.luguber.info/inful/sphinxmk/internal/gitinfo"
	"git.home.luguber.info/inful/sphinxmk/internal/linkcheck"
	"git.home.luguber.info/inful/sphinxmk/internal/metrics"
	"git.home.luguber.info/inful/sphinxmk/internal/retry"
	"git.home.luguber.info/inful/sphinxmk/internal/sphinx"
	"git.home.luguber.info/inful/sphinxmk/internal/venv"
)

// Stage names used for metrics and error reporting.
const (
	StageVenv      = "venv"
	StageApidoc    = "apidoc"
	StageSphinx    = "sphinx"
	StageLinkcheck = "linkcheck"
)

// Build statuses recorded in results and history.
const (
	StatusSuccess  = "success"
	StatusFailed   = "failed"
	StatusCanceled = "canceled"
)

// Request describes one build to execute.
type Request struct {
	Target    string // sphinx make-mode target (html, latex, clean, ...)
	Apidoc    bool   // regenerate API stubs before building
	Linkcheck bool   // verify internal links after an html build
	Trigger   string // manual|scheduled|watch
}

// Result is the outcome of a completed pipeline run.
type Result struct {
	ID          string
	Target      string
	Status      string
	Commit      string
	OutputPath  string
	Duration    time.Duration
	StartedAt   time.Time
	BrokenLinks []linkcheck.BrokenLink
	Err         error
}

// Service runs build pipelines against a fixed configuration.
type Service struct {
	cfg      *config.Config
	runner   sphinx.Runner
	env      *venv.Manager
	recorder metrics.Recorder
	policy   retry.Policy
}

// NewService wires a build service from configuration.
func NewService(cfg *config.Config) *Service {
	runner := &sphinx.BinaryRunner{}
	return &Service{
		cfg:      cfg,
		runner:   runner,
		env:      venv.NewManager(cfg.Venv, runner),
		recorder: metrics.NoopRecorder{},
		policy: retry.NewPolicy(retry.BackoffMode(cfg.Build.RetryBackoff),
			cfg.Build.RetryInitial, cfg.Build.RetryMax, cfg.Build.MaxRetries),
	}
}

// WithRunner injects a custom command runner (for testing).
func (s *Service) WithRunner(r sphinx.Runner) *Service {
	if r != nil {
		s.runner = r
		s.env = venv.NewManager(s.cfg.Venv, r)
	}
	return s
}

// WithRecorder injects a metrics recorder.
func (s *Service) WithRecorder(rec metrics.Recorder) *Service {
	if rec != nil {
		s.recorder = rec
	}
	return s
}

// EnsureVenv provisions the virtual environment without building anything.
func (s *Service) EnsureVenv(ctx context.Context) error {
	return s.runStage(ctx, StageVenv, func(ctx context.Context) error {
		return s.env.Ensure(ctx)
	})
}

// RunApidoc ensures the environment and regenerates API stubs.
func (s *Service) RunApidoc(ctx context.Context) error {
	if err := s.EnsureVenv(ctx); err != nil {
		return err
	}
	return s.runApidocStage(ctx)
}

func (s *Service) runApidocStage(ctx context.Context) error {
	if s.cfg.Apidoc.ModuleDir == "" {
		return fmt.Errorf("apidoc.module_dir is not configured")
	}
	return s.runStage(ctx, StageApidoc, func(ctx context.Context) error {
		inv := sphinx.ApidocCommand(s.cfg, s.env.Binary("sphinx-apidoc"))
		return s.runner.Run(ctx, inv)
	})
}

// Run executes the full pipeline for a request. Build failures are reported
// in the Result (with Err set) as well as returned, so callers can choose
// between fatal CLI handling and daemon-style recording.
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	result := &Result{
		ID:        uuid.NewString(),
		Target:    req.Target,
		StartedAt: time.Now(),
	}
	if req.Trigger == "" {
		req.Trigger = "manual"
	}

	if info, err := gitinfo.Resolve("."); err == nil {
		result.Commit = info.Commit
	} else if !errors.Is(err, gitinfo.ErrNotRepository) {
		slog.Debug("Could not resolve repository head", "error", err)
	}

	slog.Info("Starting documentation build",
		"build_id", result.ID,
		"target", req.Target,
		"trigger", req.Trigger)

	err := s.runPipeline(ctx, req, result)
	result.Duration = time.Since(result.StartedAt)

	switch {
	case err == nil:
		result.Status = StatusSuccess
	case errors.Is(err, context.Canceled):
		result.Status = StatusCanceled
	default:
		result.Status = StatusFailed
	}
	result.Err = err
	s.recorder.ObserveBuildDuration(req.Target, result.Duration)
	s.recorder.IncBuildOutcome(req.Target, result.Status)

	if err != nil {
		slog.Error("Build finished with error",
			"build_id", result.ID,
			"target", req.Target,
			"status", result.Status,
			"duration", result.Duration,
			"error", err)
		return result, err
	}

	slog.Info("Build finished",
		"build_id", result.ID,
		"target", req.Target,
		"duration", result.Duration,
		"output", result.OutputPath)
	return result, nil
}

func (s *Service) runPipeline(ctx context.Context, req Request, result *Result) error {
	if err := s.EnsureVenv(ctx); err != nil {
		return err
	}

	if req.Apidoc {
		if err := s.runApidocStage(ctx); err != nil {
			return err
		}
	}

	if err := s.runSphinxTarget(ctx, req.Target); err != nil {
		return err
	}
	result.OutputPath = filepath.Join(s.cfg.BuildDir, req.Target)

	if req.Linkcheck && req.Target == "html" {
		err := s.runStage(ctx, StageLinkcheck, func(_ context.Context) error {
			report, err := linkcheck.VerifySite(result.OutputPath)
			if err != nil {
				return err
			}
			result.BrokenLinks = report.Broken
			if len(report.Broken) > 0 {
				slog.Warn("Broken internal links found",
					"count", len(report.Broken),
					"files_scanned", report.FilesScanned)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// runSphinxTarget forwards the target to sphinx-build in make mode, retrying
// transient execution failures per the configured policy.
func (s *Service) runSphinxTarget(ctx context.Context, target string) error {
	return s.runStage(ctx, StageSphinx, func(ctx context.Context) error {
		inv := sphinx.MakeCommand(s.cfg, s.env.Binary(s.cfg.SphinxBuild), target)

		var lastErr error
		for attempt := 0; attempt <= s.policy.MaxRetries; attempt++ {
			if attempt > 0 {
				delay := s.policy.Delay(attempt)
				slog.Warn("Retrying sphinx-build after failure",
					"target", target, "attempt", attempt, "delay", delay)
				s.recorder.IncBuildRetry(StageSphinx)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}

			lastErr = s.runner.Run(ctx, inv)
			if lastErr == nil {
				return nil
			}
			// A missing binary will not appear on retry; fail fast.
			if errors.Is(lastErr, sphinx.ErrBinaryNotFound) || ctx.Err() != nil {
				return lastErr
			}
		}
		return lastErr
	})
}

func (s *Service) runStage(ctx context.Context, stage string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	s.recorder.ObserveStageDuration(stage, time.Since(start))

	switch {
	case err == nil:
		s.recorder.IncStageResult(stage, metrics.ResultSuccess)
	case errors.Is(err, context.Canceled):
		s.recorder.IncStageResult(stage, metrics.ResultCanceled)
	default:
		s.recorder.IncStageResult(stage, metrics.ResultFatal)
	}
	if err != nil {
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	return nil
}
