package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"complyhq/sentinel/pkg/config"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("log output is not a JSON line: %v\n%s", err, buf.String())
	}
	return line
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"json", Config{Level: "info", Format: "json"}, false},
		{"text", Config{Level: "debug", Format: "text"}, false},
		{"defaults", Config{}, false},
		{"bad level", Config{Level: "loud"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Writer = &bytes.Buffer{}
			logger, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && logger == nil {
				t.Error("New() returned nil logger")
			}
		})
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info message should be filtered at warn level: %s", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("warn message missing: %s", buf.String())
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		Level:          "info",
		Redact:         true,
		Writer:         &buf,
		RedactPatterns: []config.RedactPattern{
			{Name: "employee_id", Pattern: `EMP-\d{6}`, Replacement: "EMP-******"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("store_dsn", "postgres://svc:hunter22@db/sentinel").Info("workflow approved",
		"approver", "alice@example.com",
		"note", "reviewed EMP-123456 access",
		"api_token", "abcdef123456",
		"error", errors.New("login failed for bob@example.com"),
		"recipients", []string{"carol@example.com"},
		"count", 3,
	)

	line := decodeLine(t, &buf)
	want := map[string]any{
		"approver":  "a***@example.com",
		"note":      "reviewed EMP-****** access",
		"api_token": "abcd***",
		"error":     "login failed for b***@example.com",
		"store_dsn": "post***",
		"count":     float64(3),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	if rs, ok := line["recipients"].([]any); !ok || len(rs) != 1 || rs[0] != "c***@example.com" {
		t.Errorf("recipients = %v", line["recipients"])
	}
}

func TestLogger_NoRedaction(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(config.LoggingConfig{Level: "info", Format: "json", DisableRedaction: true})
	cfg.Writer = &buf
	logger, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("created", "creator", "alice@example.com")
	if line := decodeLine(t, &buf); line["creator"] != "alice@example.com" {
		t.Errorf("creator = %v, want unredacted", line["creator"])
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = WithTenant(ctx, "tenant-a")
	ctx = WithWorkflowID(ctx, "wf-1")
	ctx = WithActor(ctx, "alice")

	logger.InfoContext(ctx, "transition applied")

	line := decodeLine(t, &buf)
	want := map[string]string{
		"tenant_id":   "tenant-a",
		"workflow_id": "wf-1",
		"actor":       "alice",
		"trace_id":    "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":     "00f067aa0ba902b7",
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %s", k, line[k], v)
		}
	}
	if _, ok := line["rule_id"]; ok {
		t.Error("unset context fields should be omitted")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}
