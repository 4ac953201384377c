package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_EnvDefaults(t *testing.T) {
	t.Setenv("ENDPOINT", "https://api.example.com/v1/chat/completions")
	t.Setenv("API_KEY", "sk-test")
	for _, key := range []string{"MODEL", "REQUESTS_PER_MINUTE", "REQUESTS_PER_DAY", "MAX_CHUNK_RUNES", "LISTEN_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "gpt-4o-mini" {
		t.Fatalf("model = %q, want default", cfg.Model)
	}
	if cfg.RequestsPerMinute != 10 || cfg.RequestsPerDay != 500 {
		t.Fatalf("unexpected rate limits: %d/%d", cfg.RequestsPerMinute, cfg.RequestsPerDay)
	}
	if cfg.MaxChunkRunes != 1500 {
		t.Fatalf("max_chunk_runes = %d, want 1500", cfg.MaxChunkRunes)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen_addr = %q", cfg.ListenAddr)
	}
}

func TestLoad_MissingEndpoint(t *testing.T) {
	t.Setenv("ENDPOINT", "")
	t.Setenv("API_KEY", "sk-test")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	t.Setenv("ENDPOINT", "https://env.example.com")
	t.Setenv("API_KEY", "sk-env")
	t.Setenv("MODEL", "env-model")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
model: file-model
requests_per_minute: 3
presets:
  - name: pirate
    system: Translate everything into pirate speak.
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "file-model" {
		t.Fatalf("model = %q, want file value", cfg.Model)
	}
	if cfg.RequestsPerMinute != 3 {
		t.Fatalf("requests_per_minute = %d, want 3", cfg.RequestsPerMinute)
	}
	if cfg.Endpoint != "https://env.example.com" {
		t.Fatalf("endpoint = %q, env value should survive overlay", cfg.Endpoint)
	}
	if len(cfg.Presets) != 1 || cfg.Presets[0].Name != "pirate" {
		t.Fatalf("presets = %+v", cfg.Presets)
	}
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("ENDPOINT", "https://env.example.com")
	t.Setenv("API_KEY", "sk-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\tnot yaml"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}
