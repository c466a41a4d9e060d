package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"complyhq/sentinel/pkg/workflow"
)

// NATSConfig configures NATSPublisher.
type NATSConfig struct {
	// URL of the NATS server. Default: nats://127.0.0.1:4222
	URL string

	// Stream is the JetStream stream that captures published events.
	// Default: SENTINEL_WORKFLOW
	Stream string

	// SubjectPrefix is prepended to every subject. Default: sentinel
	SubjectPrefix string

	// MaxAge bounds how long the stream retains events. Zero keeps them forever.
	MaxAge time.Duration

	// ConnectTimeout bounds the initial connection. Default: 5 seconds
	ConnectTimeout time.Duration

	Logger *slog.Logger
}

// DefaultNATSConfig returns the default NATS configuration.
func DefaultNATSConfig() *NATSConfig {
	return &NATSConfig{
		URL:            nats.DefaultURL,
		Stream:         "SENTINEL_WORKFLOW",
		SubjectPrefix:  "sentinel",
		MaxAge:         7 * 24 * time.Hour,
		ConnectTimeout: 5 * time.Second,
	}
}

// streamPublisher is the part of jetstream.JetStream used for publishing.
type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSPublisher publishes events as JSON to a JetStream stream. The event ID is
// used as the message ID so redeliveries are deduplicated by the server.
type NATSPublisher struct {
	js     streamPublisher
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher connects to NATS and creates or updates the event stream.
func NewNATSPublisher(ctx context.Context, cfg *NATSConfig) (*NATSPublisher, error) {
	if cfg == nil {
		cfg = DefaultNATSConfig()
	}
	defaults := DefaultNATSConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.Stream == "" {
		cfg.Stream = defaults.Stream
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = defaults.SubjectPrefix
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaults.ConnectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notify.nats")

	nc, err := nats.Connect(cfg.URL,
		nats.Name("sentinel"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", cfg.URL, err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "workflow lifecycle and notification events",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		Storage:     jetstream.FileStorage,
		MaxAge:      cfg.MaxAge,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
	}

	logger.Info("nats publisher ready",
		"url", cfg.URL,
		"stream", cfg.Stream,
		"prefix", cfg.SubjectPrefix,
	)

	p := newNATSPublisher(js, cfg.SubjectPrefix, logger)
	p.conn = nc
	return p, nil
}

func newNATSPublisher(js streamPublisher, prefix string, logger *slog.Logger) *NATSPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSPublisher{js: js, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on, for example
// "sentinel.workflow.created" for workflow:created.
func (p *NATSPublisher) Subject(t workflow.EventType) string {
	return p.prefix + "." + strings.ReplaceAll(string(t), ":", ".")
}

// Publish implements workflow.Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return &PublishError{EventID: ev.ID, EventType: string(ev.Type), Backend: "nats", Cause: err}
	}

	subject := p.Subject(ev.Type)
	ack, err := p.js.Publish(ctx, subject, data, jetstream.WithMsgID(ev.ID))
	if err != nil {
		return &PublishError{EventID: ev.ID, EventType: string(ev.Type), Backend: "nats", Cause: err}
	}

	p.logger.Debug("event published",
		"event_id", ev.ID,
		"subject", subject,
		"stream", ack.Stream,
		"sequence", ack.Sequence,
		"duplicate", ack.Duplicate,
	)
	return nil
}

// Ping reports whether the NATS connection is usable.
func (p *NATSPublisher) Ping(ctx context.Context) error {
	if p.conn == nil {
		return nil
	}
	if !p.conn.IsConnected() {
		return fmt.Errorf("nats connection %s", p.conn.Status())
	}
	return p.conn.FlushWithContext(ctx)
}

// Close drains the connection, flushing buffered messages.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
