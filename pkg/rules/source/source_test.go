package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"complyhq/sentinel/pkg/rules"
)

const validYAML = `
rules:
  - id: sod-ap-vendor
    name: AP clerk maintains vendors
    pattern:
      type: SOD
      conflictingRoles: [AP_CLERK, VENDOR_MASTER]
    risk:
      level: CRITICAL
      score: 95
  - id: large-payments
    name: Large payment total
    pattern:
      type: THRESHOLD
      field: payment.amount
      operator: GT
      value: 100000
      aggregation: SUM
    risk:
      level: HIGH
      score: 70
`

const validJSON = `[
  {
    "id": "self-approval",
    "name": "Self approval",
    "pattern": {
      "type": "GENERIC",
      "field": "amount",
      "condition": "record.approver == record.requester",
      "requiresAll": false
    },
    "risk": {"level": "MEDIUM", "score": 50}
  }
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSource_LoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", validYAML)

	loaded, err := NewFileSource(path, nil).LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("got %d rules, want 2", len(loaded))
	}

	sod := loaded[0]
	if sod.Pattern.Type != rules.PatternSOD || len(sod.Pattern.ConflictingRoles) != 2 {
		t.Errorf("unexpected SOD rule: %+v", sod)
	}
	threshold := loaded[1]
	if threshold.Pattern.Value != 100000 || threshold.Pattern.Aggregation != rules.AggSum {
		t.Errorf("unexpected threshold rule: %+v", threshold.Pattern)
	}
	if threshold.Risk.Level != rules.RiskHigh || threshold.Risk.Score != 70 {
		t.Errorf("unexpected risk: %+v", threshold.Risk)
	}
}

func TestFileSource_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", validYAML)
	writeFile(t, dir, "nested/b.json", validJSON)
	writeFile(t, dir, "broken.yml", "rules:\n  - id: bad\n    pattern: {type: SOD}\n    risk: {level: LOW}\n")
	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, ".hidden/c.yaml", validYAML)

	loaded, err := NewFileSource(dir, nil).LoadRules(context.Background())
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("got %d rules, want 3 (broken and hidden files skipped)", len(loaded))
	}

	_, err = NewFileSource(dir, nil).WithStrict(true).LoadRules(context.Background())
	if err == nil {
		t.Error("strict load should fail on the broken file")
	}
}

func TestFileSource_DuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.yaml", validYAML)
	writeFile(t, dir, "two.yaml", validYAML)

	_, err := NewFileSource(dir, nil).LoadRules(context.Background())
	if err == nil || !strings.Contains(err.Error(), "duplicate rule id") {
		t.Errorf("expected duplicate id error, got %v", err)
	}
}

func TestFileSource_MissingPath(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.yaml"), nil).LoadRules(context.Background())
	if err == nil {
		t.Error("expected error for missing path")
	}
}

func TestParse_InvalidRule(t *testing.T) {
	_, err := Parse([]byte(`rules: [{id: g, pattern: {type: GENERIC, condition: "a >"}, risk: {level: LOW}}]`))
	if err == nil {
		t.Error("expected validation error for unparseable condition")
	}
}

func TestMemorySource(t *testing.T) {
	r := &rules.Rule{ID: "m"}
	src := NewMemorySource(r)

	got, _ := src.LoadRules(context.Background())
	got[0] = nil
	again, _ := src.LoadRules(context.Background())
	if again[0] != r {
		t.Error("LoadRules should return a copy of the slice")
	}

	src.SetRules(nil)
	if got, _ := src.LoadRules(context.Background()); len(got) != 0 {
		t.Errorf("got %d rules after SetRules(nil)", len(got))
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.yaml", validYAML)

	w := NewWatcher(NewFileSource(path, nil), 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var reloads [][]*rules.Rule
	done := make(chan error, 1)
	go func() {
		done <- w.Watch(ctx, func(rs []*rules.Rule) {
			mu.Lock()
			reloads = append(reloads, rs)
			mu.Unlock()
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "rules.yaml", validJSON)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(reloads)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	mu.Lock()
	if len(reloads) == 0 {
		mu.Unlock()
		t.Fatal("watcher did not reload after file change")
	}
	last := reloads[len(reloads)-1]
	mu.Unlock()
	if len(last) != 1 || last[0].ID != "self-approval" {
		t.Errorf("unexpected reloaded rules: %+v", last)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() returned error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Watch() did not return after cancel")
	}
}
