// Package metrics provides observability hooks for build and stage metrics.
// All components default to NoopRecorder so metrics stay optional; the daemon
// swaps in the Prometheus implementation when metrics are enabled.
package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for build and stage metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	ObserveBuildDuration(target string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	IncBuildOutcome(target, outcome string) // outcome: success|failed|canceled
	IncBuildRetry(stage string)
	SetQueueDepth(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) IncBuildOutcome(string, string)             {}
func (NoopRecorder) IncBuildRetry(string)                       {}
func (NoopRecorder) SetQueueDepth(int)                          {}
