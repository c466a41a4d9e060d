package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"complyhq/sentinel/pkg/workflow"
)

// AsyncConfig contains configuration for AsyncPublisher.
type AsyncConfig struct {
	// Buffer is the size of the event queue.
	// Default: 1000
	Buffer int

	// EnqueueTimeout bounds how long Publish waits for queue space.
	// Default: 1 second
	EnqueueTimeout time.Duration

	// PublishTimeout bounds each delivery attempt.
	// Default: 5 seconds
	PublishTimeout time.Duration

	// MaxAttempts is the number of delivery attempts per event.
	// Default: 3
	MaxAttempts int

	// RetryBackoff is the delay before the second attempt; it doubles after each
	// failure. Default: 200 milliseconds
	RetryBackoff time.Duration

	// Metrics receives delivery outcomes. Optional.
	Metrics DeliveryMetrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultAsyncConfig returns the default AsyncPublisher configuration.
func DefaultAsyncConfig() *AsyncConfig {
	return &AsyncConfig{
		Buffer:         1000,
		EnqueueTimeout: time.Second,
		PublishTimeout: 5 * time.Second,
		MaxAttempts:    3,
		RetryBackoff:   200 * time.Millisecond,
	}
}

// DeliveryMetrics observes asynchronous deliveries. The telemetry metrics
// collector implements it.
type DeliveryMetrics interface {
	RecordDelivery(eventType string, delivered bool, attempts int, duration time.Duration)
	RecordQueueDepth(depth int)
}

// AsyncPublisher queues events and delivers them to the wrapped publisher from a
// background worker, retrying failures with exponential backoff. Close drains the
// queue before returning.
type AsyncPublisher struct {
	next   workflow.Publisher
	config *AsyncConfig
	queue  chan workflow.Event
	wg     sync.WaitGroup
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// NewAsyncPublisher starts the delivery worker. A nil config uses DefaultAsyncConfig.
func NewAsyncPublisher(next workflow.Publisher, config *AsyncConfig) *AsyncPublisher {
	if config == nil {
		config = DefaultAsyncConfig()
	}
	defaults := DefaultAsyncConfig()
	if config.Buffer <= 0 {
		config.Buffer = defaults.Buffer
	}
	if config.EnqueueTimeout <= 0 {
		config.EnqueueTimeout = defaults.EnqueueTimeout
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = defaults.PublishTimeout
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryBackoff < 0 {
		config.RetryBackoff = 0
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := &AsyncPublisher{
		next:   next,
		config: config,
		queue:  make(chan workflow.Event, config.Buffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "notify.async"),
	}

	p.wg.Add(1)
	go p.worker()

	p.logger.Info("async publisher started",
		"buffer", config.Buffer,
		"max_attempts", config.MaxAttempts,
	)
	return p
}

// Publish enqueues ev and returns without waiting for delivery.
func (p *AsyncPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	timer := time.NewTimer(p.config.EnqueueTimeout)
	defer timer.Stop()

	select {
	case p.queue <- ev:
		if p.config.Metrics != nil {
			p.config.Metrics.RecordQueueDepth(len(p.queue))
		}
		return nil
	case <-timer.C:
		p.logger.Error("event queue full, dropping event",
			"event_id", ev.ID,
			"event", ev.Type,
			"capacity", p.config.Buffer,
		)
		return &PublishError{EventID: ev.ID, EventType: string(ev.Type), Backend: "async", Cause: ErrQueueFull}
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued events.
func (p *AsyncPublisher) Pending() int {
	return len(p.queue)
}

// Close stops accepting events, delivers everything already queued and waits for
// the worker to exit.
func (p *AsyncPublisher) Close() error {
	p.once.Do(func() {
		p.logger.Info("shutting down async publisher", "pending", len(p.queue))
		close(p.done)
		p.wg.Wait()
		p.logger.Info("async publisher shut down complete")
	})
	return nil
}

func (p *AsyncPublisher) worker() {
	defer p.wg.Done()

	for {
		select {
		case ev := <-p.queue:
			p.deliver(ev)

		case <-p.done:
			for {
				select {
				case ev := <-p.queue:
					p.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *AsyncPublisher) deliver(ev workflow.Event) {
	start := time.Now()
	backoff := p.config.RetryBackoff

	var err error
	attempt := 1
	for ; attempt <= p.config.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
		err = p.next.Publish(ctx, ev)
		cancel()
		if err == nil {
			break
		}

		p.logger.Warn("event delivery failed",
			"event_id", ev.ID,
			"event", ev.Type,
			"attempt", attempt,
			"error", err,
		)
		if attempt < p.config.MaxAttempts && backoff > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
	}

	delivered := err == nil
	if !delivered {
		attempt = p.config.MaxAttempts
		p.logger.Error("event dropped after retries",
			"event_id", ev.ID,
			"event", ev.Type,
			"workflow_id", ev.WorkflowID,
			"error", err,
		)
	}
	if p.config.Metrics != nil {
		p.config.Metrics.RecordDelivery(string(ev.Type), delivered, attempt, time.Since(start))
	}
}
