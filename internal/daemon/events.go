package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sphinxmk/internal/build"
	"git.home.luguber.info/inful/sphinxmk/internal/config"
)

// BuildEvent is the payload published for each finished build.
type BuildEvent struct {
	BuildID    string    `json:"build_id"`
	Target     string    `json:"target"`
	Status     string    `json:"status"`
	Trigger    string    `json:"trigger"`
	Commit     string    `json:"commit,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// EventPublisher publishes build lifecycle events to interested consumers.
type EventPublisher interface {
	PublishBuildFinished(ctx context.Context, result *build.Result, trigger JobType) error
	Close()
}

// NoopPublisher is used when event publishing is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishBuildFinished(context.Context, *build.Result, JobType) error { return nil }
func (NoopPublisher) Close()                                                             {}

// NATSPublisher publishes build events to a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

// NewNATSPublisher connects to NATS per config.
func NewNATSPublisher(cfg config.NATSConfig) (*NATSPublisher, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("event publishing is disabled")
	}
	conn, err := nats.Connect(cfg.URL,
		nats.Name("sphinxmk"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn, subject: cfg.Subject}, nil
}

// PublishBuildFinished publishes a BuildEvent for the result.
func (p *NATSPublisher) PublishBuildFinished(_ context.Context, result *build.Result, trigger JobType) error {
	event := BuildEvent{
		BuildID:    result.ID,
		Target:     result.Target,
		Status:     result.Status,
		Trigger:    string(trigger),
		Commit:     result.Commit,
		DurationMS: result.Duration.Milliseconds(),
		FinishedAt: result.StartedAt.Add(result.Duration),
	}
	if result.Err != nil {
		event.Error = result.Err.Error()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal build event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish build event: %w", err)
	}
	slog.Debug("Published build event", "subject", p.subject, "build_id", result.ID, "status", result.Status)
	return nil
}

// Close drains the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			slog.Warn("Error draining NATS connection", "error", err)
		}
	}
}
