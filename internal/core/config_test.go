package core

import (
	"os"
	"path/filepath"
	"testing"
)

func isolateConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("DEEPSEEK_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("TAVILY_API_KEY", "")
	t.Setenv("DEEPCISION_API_TOKEN", "")
	return dir
}

func TestLoadConfigDefaults(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  default: deepseek\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Defaults.Temperature != 0.7 {
		t.Errorf("temperature %g, want 0.7", cfg.Defaults.Temperature)
	}
	if cfg.Defaults.MaxTokens != 2000 {
		t.Errorf("max tokens %d, want 2000", cfg.Defaults.MaxTokens)
	}
	if cfg.Defaults.Concurrency != 4 {
		t.Errorf("concurrency %d, want 4", cfg.Defaults.Concurrency)
	}
	if cfg.Cache.TTLSeconds != 86400 {
		t.Errorf("cache ttl %d, want 86400", cfg.Cache.TTLSeconds)
	}
	if cfg.Server.Addr != ":8090" {
		t.Errorf("server addr %q, want :8090", cfg.Server.Addr)
	}
	if cfg.Telemetry.MonitoringPort != 9090 {
		t.Errorf("monitoring port %d, want 9090", cfg.Telemetry.MonitoringPort)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	isolateConfig(t)
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestSecretsMerge(t *testing.T) {
	dir := isolateConfig(t)
	cfgDir := filepath.Join(dir, "deepcision")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	secrets := "# comment\nDEEPSEEK_API_KEY=file-key\nTAVILY_API_KEY = padded-key \n"
	if err := os.WriteFile(filepath.Join(cfgDir, "secrets.env"), []byte(secrets), 0o600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  default: deepseek\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Providers.DeepSeek.APIKey != "file-key" {
		t.Errorf("deepseek key %q, want file-key", cfg.Providers.DeepSeek.APIKey)
	}
	if cfg.Providers.Tavily.APIKey != "padded-key" {
		t.Errorf("tavily key %q, want padded-key (trimmed)", cfg.Providers.Tavily.APIKey)
	}

	// Process environment wins over the secrets file.
	t.Setenv("DEEPSEEK_API_KEY", "env-key")
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Providers.DeepSeek.APIKey != "env-key" {
		t.Errorf("deepseek key %q, want env-key", cfg.Providers.DeepSeek.APIKey)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()

	path, err := WriteDefaultConfig(dir)
	if err != nil {
		t.Fatalf("WriteDefaultConfig failed: %v", err)
	}
	if path != filepath.Join(dir, "config.yaml") {
		t.Errorf("config path %q", path)
	}

	for _, name := range []string{"config.yaml", "roles.yaml", "secrets.env"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("generated config does not load: %v", err)
	}
	if cfg.Providers.Default != "deepseek" {
		t.Errorf("default provider %q", cfg.Providers.Default)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should default to enabled")
	}

	// A second run must not clobber edited files.
	if err := os.WriteFile(path, []byte("providers:\n  default: openrouter\n"), 0o644); err != nil {
		t.Fatalf("edit config: %v", err)
	}
	if _, err := WriteDefaultConfig(dir); err != nil {
		t.Fatalf("second WriteDefaultConfig failed: %v", err)
	}
	cfg, _ = LoadConfig(path)
	if cfg.Providers.Default != "openrouter" {
		t.Error("existing config was overwritten")
	}
}

func TestLoadSecretsEnvMissingFile(t *testing.T) {
	out, err := LoadSecretsEnv(filepath.Join(t.TempDir(), "nope.env"))
	if err != nil {
		t.Fatalf("missing secrets file should not error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty map, got %v", out)
	}
}
