package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitialize(t *testing.T) {
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })

	path := writeConfig(t, `
violations:
  backend: "memory"
`)
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Violations.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Violations.Backend)
	}

	// Later calls keep the first configuration.
	if err := Initialize(filepath.Join(t.TempDir(), "missing.yaml")); err != nil {
		t.Errorf("second Initialize() should be a no-op, got %v", err)
	}
	if GetConfig() != cfg {
		t.Error("second Initialize() replaced the configuration")
	}
}

func TestInitialize_Error(t *testing.T) {
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })

	if err := Initialize("/nonexistent/sentinel.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	if GetConfig() != nil {
		t.Error("failed Initialize() must not install a configuration")
	}
}

func TestReloadConfig(t *testing.T) {
	SetConfig(nil)
	t.Cleanup(func() { SetConfig(nil) })

	path := writeConfig(t, "telemetry:\n  logging:\n    level: info\n")
	if err := Initialize(path); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: debug\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ReloadConfig(path); err != nil {
		t.Fatalf("ReloadConfig() error = %v", err)
	}
	if got := GetConfig().Telemetry.Logging.Level; got != "debug" {
		t.Errorf("expected reloaded level debug, got %q", got)
	}

	if err := os.WriteFile(path, []byte("telemetry:\n  logging:\n    level: loud\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := ReloadConfig(path); err == nil {
		t.Error("expected reload of invalid config to fail")
	}
	if got := GetConfig().Telemetry.Logging.Level; got != "debug" {
		t.Errorf("failed reload should keep previous config, got %q", got)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	SetConfig(nil)
	defer func() {
		if recover() == nil {
			t.Error("expected panic when configuration is not initialized")
		}
	}()
	MustGetConfig()
}
