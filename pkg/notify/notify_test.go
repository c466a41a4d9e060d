package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"complyhq/sentinel/pkg/workflow"
)

func testEvent(id string, typ workflow.EventType) workflow.Event {
	return workflow.Event{
		ID:         id,
		Type:       typ,
		Timestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		WorkflowID: "wf-1",
		TenantID:   "tenant-a",
	}
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := NewLogPublisher(logger, slog.LevelInfo)

	ev := testEvent("evt-1", workflow.EventNotification)
	ev.Notification = &workflow.Notification{
		TriggerID:  "critical-escalation",
		Event:      workflow.NotifyEscalated,
		Recipients: []string{"director"},
		Channels:   []string{"email"},
		Template:   "workflow_escalated",
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["msg"] != "notification:send" {
		t.Errorf("msg = %v, want notification:send", line["msg"])
	}
	if line["component"] != "notify.log" {
		t.Errorf("component = %v", line["component"])
	}
	if line["template"] != "workflow_escalated" {
		t.Errorf("template = %v", line["template"])
	}
}

func TestChannelPublisher(t *testing.T) {
	p := NewChannelPublisher()

	a, unsubA := p.Subscribe(4)
	b, unsubB := p.Subscribe(1)
	defer unsubA()

	ctx := context.Background()
	for _, id := range []string{"e1", "e2"} {
		if err := p.Publish(ctx, testEvent(id, workflow.EventCreated)); err != nil {
			t.Fatalf("Publish(%s) error = %v", id, err)
		}
	}

	if got := (<-a).ID; got != "e1" {
		t.Errorf("subscriber a first event = %s, want e1", got)
	}
	if got := (<-a).ID; got != "e2" {
		t.Errorf("subscriber a second event = %s, want e2", got)
	}
	if got := (<-b).ID; got != "e1" {
		t.Errorf("subscriber b first event = %s, want e1", got)
	}
	if p.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", p.Dropped())
	}

	unsubB()
	unsubB()
	if _, ok := <-b; ok {
		t.Error("unsubscribed channel should be closed")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-a; ok {
		t.Error("Close() should close subscriber channels")
	}
	if err := p.Publish(ctx, testEvent("e3", workflow.EventCreated)); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []workflow.Event
	failures atomic.Int32
}

func (r *recordingPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	if r.failures.Load() > 0 {
		r.failures.Add(-1)
		return errors.New("downstream unavailable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.ID
	}
	return out
}

type deliveryRecorder struct {
	mu        sync.Mutex
	delivered int
	failed    int
	attempts  []int
}

func (d *deliveryRecorder) RecordDelivery(_ string, delivered bool, attempts int, _ time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if delivered {
		d.delivered++
	} else {
		d.failed++
	}
	d.attempts = append(d.attempts, attempts)
}

func (d *deliveryRecorder) RecordQueueDepth(int) {}

func TestAsyncPublisher_DeliversInOrderAndDrains(t *testing.T) {
	next := &recordingPublisher{}
	p := NewAsyncPublisher(next, &AsyncConfig{Buffer: 16})

	ctx := context.Background()
	for _, id := range []string{"e1", "e2", "e3"} {
		if err := p.Publish(ctx, testEvent(id, workflow.EventTransitioned)); err != nil {
			t.Fatalf("Publish(%s) error = %v", id, err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if got := strings.Join(next.ids(), ","); got != "e1,e2,e3" {
		t.Errorf("delivered = %s, want e1,e2,e3", got)
	}
	if err := p.Publish(ctx, testEvent("e4", workflow.EventTransitioned)); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrClosed", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestAsyncPublisher_Retries(t *testing.T) {
	tests := []struct {
		name          string
		failures      int32
		wantDelivered bool
		wantAttempts  int
	}{
		{"succeeds first time", 0, true, 1},
		{"succeeds after retry", 2, true, 3},
		{"gives up", 5, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingPublisher{}
			next.failures.Store(tt.failures)
			metrics := &deliveryRecorder{}
			p := NewAsyncPublisher(next, &AsyncConfig{
				Buffer:       4,
				MaxAttempts:  3,
				RetryBackoff: time.Millisecond,
				Metrics:      metrics,
			})

			if err := p.Publish(context.Background(), testEvent("e1", workflow.EventCreated)); err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			p.Close()

			metrics.mu.Lock()
			defer metrics.mu.Unlock()
			if len(metrics.attempts) != 1 {
				t.Fatalf("recorded %d deliveries, want 1", len(metrics.attempts))
			}
			if metrics.attempts[0] != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", metrics.attempts[0], tt.wantAttempts)
			}
			if (metrics.delivered == 1) != tt.wantDelivered {
				t.Errorf("delivered = %v, want %v", metrics.delivered == 1, tt.wantDelivered)
			}
			if got := len(next.ids()); (got == 1) != tt.wantDelivered {
				t.Errorf("downstream received %d events", got)
			}
		})
	}
}

type blockingPublisher struct {
	release chan struct{}
}

func (b *blockingPublisher) Publish(ctx context.Context, ev workflow.Event) error {
	<-b.release
	return nil
}

func TestAsyncPublisher_QueueFull(t *testing.T) {
	next := &blockingPublisher{release: make(chan struct{})}
	p := NewAsyncPublisher(next, &AsyncConfig{Buffer: 1, EnqueueTimeout: 10 * time.Millisecond})

	ctx := context.Background()
	// The first event is picked up by the worker and blocks it; the second fills
	// the buffer. Publishing further events must eventually time out.
	var err error
	for i := 0; i < 5 && err == nil; i++ {
		err = p.Publish(ctx, testEvent("e", workflow.EventCreated))
	}
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Publish() error = %v, want ErrQueueFull", err)
	}
	var pubErr *PublishError
	if !errors.As(err, &pubErr) || pubErr.Backend != "async" {
		t.Errorf("error should be a PublishError from the async backend, got %v", err)
	}

	close(next.release)
	p.Close()
}

type fakeStream struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeStream) Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return &jetstream.PubAck{Stream: "SENTINEL_WORKFLOW", Sequence: uint64(len(f.subjects))}, nil
}

func TestNATSPublisher_Subjects(t *testing.T) {
	p := newNATSPublisher(&fakeStream{}, "sentinel", nil)

	tests := []struct {
		typ  workflow.EventType
		want string
	}{
		{workflow.EventCreated, "sentinel.workflow.created"},
		{workflow.EventTransitioned, "sentinel.workflow.transitioned"},
		{workflow.EventAssigned, "sentinel.workflow.assigned"},
		{workflow.EventCommented, "sentinel.workflow.commented"},
		{workflow.EventNotification, "sentinel.notification.send"},
	}
	for _, tt := range tests {
		if got := p.Subject(tt.typ); got != tt.want {
			t.Errorf("Subject(%s) = %s, want %s", tt.typ, got, tt.want)
		}
	}
}

func TestNATSPublisher_Publish(t *testing.T) {
	stream := &fakeStream{}
	p := newNATSPublisher(stream, "sentinel", nil)

	ev := testEvent("evt-9", workflow.EventTransitioned)
	ev.Transition = &workflow.Transition{
		ID:         "tr-1",
		WorkflowID: "wf-1",
		FromStatus: workflow.StatusInReview,
		ToStatus:   workflow.StatusApproved,
		Action:     workflow.ActionApprove,
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if len(stream.subjects) != 1 || stream.subjects[0] != "sentinel.workflow.transitioned" {
		t.Fatalf("subjects = %v", stream.subjects)
	}
	var decoded workflow.Event
	if err := json.Unmarshal(stream.payloads[0], &decoded); err != nil {
		t.Fatalf("payload is not a JSON event: %v", err)
	}
	if decoded.ID != "evt-9" || decoded.Transition == nil || decoded.Transition.ToStatus != workflow.StatusApproved {
		t.Errorf("decoded event = %+v", decoded)
	}

	stream.err = errors.New("no responders")
	err := p.Publish(context.Background(), ev)
	var pubErr *PublishError
	if !errors.As(err, &pubErr) || pubErr.Backend != "nats" {
		t.Errorf("Publish() error = %v, want nats PublishError", err)
	}
}

func TestMulti(t *testing.T) {
	ok := &recordingPublisher{}
	failing := workflow.PublisherFunc(func(context.Context, workflow.Event) error {
		return errors.New("boom")
	})
	after := &recordingPublisher{}

	err := Multi{ok, failing, after}.Publish(context.Background(), testEvent("e1", workflow.EventCreated))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("Publish() error = %v, want boom", err)
	}
	if len(ok.ids()) != 1 || len(after.ids()) != 1 {
		t.Error("every publisher should receive the event")
	}
}
