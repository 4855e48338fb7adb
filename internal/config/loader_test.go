package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.InferenceURL != "http://localhost:1234/v1" || cfg.GeminiModel != "gemini-2.5-pro" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.LoadTimeoutSec != 180 || cfg.AskTimeoutSec != 300 {
		t.Fatalf("unexpected timeout defaults: %+v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "results_dir: /tmp/r\ninference_url: http://127.0.0.1:9999/v1\nload_timeout_sec: 60\n")
	cfg, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ResultsDir != "/tmp/r" || cfg.InferenceURL != "http://127.0.0.1:9999/v1" || cfg.LoadTimeoutSec != 60 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	// Untouched fields keep their defaults.
	if cfg.GeminiModel != "gemini-2.5-pro" {
		t.Fatalf("default lost: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "eval_output_dir=\"/e\"\ngemini_model=\"gemini-2.5-flash\"\nask_timeout_sec=120\n")
	cfg, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.EvalOutputDir != "/e" || cfg.GeminiModel != "gemini-2.5-flash" || cfg.AskTimeoutSec != 120 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"lms_path":"/usr/local/bin/lms","verify_backoff_sec":3}`)
	cfg, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LMSPath != "/usr/local/bin/lms" || cfg.VerifyBackoffSec != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "gemini_model: from-file\n")
	t.Setenv("GEMINI_MODEL", "from-env")
	t.Setenv("GEMINI_API_KEY", "sk-test")
	t.Setenv("CRISISBENCH_LOAD_TIMEOUT_SEC", "42")
	cfg, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.GeminiModel != "from-env" {
		t.Fatalf("env should win over file: %+v", cfg)
	}
	if cfg.GeminiAPIKey != "sk-test" {
		t.Fatalf("api key not picked up from env")
	}
	// Fields with non-zero defaults must be overridable from the environment
	// as well.
	if cfg.LoadTimeoutSec != 42 {
		t.Fatalf("env should win over default: %+v", cfg)
	}
}

func TestLoadExpandsHomePaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "results_dir: ~/bench/results\n")
	cfg, err := Load(context.Background(), p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ResultsDir != filepath.Join(home, "bench", "results") {
		t.Fatalf("tilde not expanded: %q", cfg.ResultsDir)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(context.Background(), "does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error on missing file")
	}
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(context.Background(), p); err == nil {
		t.Fatalf("expected unsupported extension error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	bad := Default()
	bad.InferenceURL = " "
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for blank inference url")
	}
	bad = Default()
	bad.AskTimeoutSec = 0
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for zero timeout")
	}
}
