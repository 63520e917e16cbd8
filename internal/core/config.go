package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	prov "github.com/deepcision/deepcision/internal/providers"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads YAML configuration from a path. If path is empty, it resolves
// $XDG_CONFIG_HOME/deepcision/config.yaml or ~/.config/deepcision/config.yaml.
func LoadConfig(path string) (prov.Config, error) {
	var cfg prov.Config
	if path == "" {
		path = filepath.Join(configDir(), "config.yaml")
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	// Merge secrets from secrets.env if present to avoid storing keys in YAML.
	// The process environment wins over the secrets file.
	secrets, _ := LoadSecretsEnv("")
	for _, key := range []string{"DEEPSEEK_API_KEY", "OPENROUTER_API_KEY", "TAVILY_API_KEY", "DEEPCISION_API_TOKEN"} {
		if v := os.Getenv(key); v != "" {
			secrets[key] = v
		}
	}
	if k, ok := secrets["DEEPSEEK_API_KEY"]; ok && k != "" {
		cfg.Providers.DeepSeek.APIKey = k
	}
	if k, ok := secrets["OPENROUTER_API_KEY"]; ok && k != "" {
		cfg.Providers.OpenRouter.APIKey = k
	}
	if k, ok := secrets["TAVILY_API_KEY"]; ok && k != "" {
		cfg.Providers.Tavily.APIKey = k
	}
	if t, ok := secrets["DEEPCISION_API_TOKEN"]; ok && t != "" {
		cfg.Server.AuthToken = t
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "deepcision")
}

func applyDefaults(cfg *prov.Config) {
	if cfg.Providers.Default == "" {
		cfg.Providers.Default = "deepseek"
	}
	if cfg.Defaults.Temperature == 0 {
		cfg.Defaults.Temperature = 0.7
	}
	if cfg.Defaults.MaxTokens == 0 {
		cfg.Defaults.MaxTokens = 2000
	}
	if cfg.Defaults.Retries == 0 {
		cfg.Defaults.Retries = 3
	}
	if cfg.Defaults.TimeoutSeconds == 0 {
		cfg.Defaults.TimeoutSeconds = 30
	}
	if cfg.Defaults.Concurrency == 0 {
		cfg.Defaults.Concurrency = 4
	}
	if cfg.Cache.Path == "" {
		cfg.Cache.Path = filepath.Join(configDir(), "cache.db")
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1024
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 24 * 60 * 60
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8090"
	}
	if cfg.Telemetry.MonitoringPort == 0 {
		cfg.Telemetry.MonitoringPort = 9090
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 30
	}
}

// DefaultConfigYAML is the config file written by `deepcision init`.
const DefaultConfigYAML = `providers:
  default: deepseek
  deepseek:
    model: deepseek-chat
    timeout_seconds: 30
  openrouter:
    model: openai/gpt-4
    site_name: deepcision
    timeout_seconds: 30
  tavily:
    timeout_seconds: 30
roles:
  template_path: ""
defaults:
  temperature: 0.7
  max_tokens: 2000
  retries: 3
  timeout_seconds: 30
  concurrency: 4
cache:
  enabled: true
  max_entries: 1024
  ttl_seconds: 86400
server:
  addr: ":8090"
telemetry:
  enabled: false
  monitoring_port: 9090
  metrics_interval: 30
`

// DefaultRolesYAML is the role template file written by `deepcision init`.
const DefaultRolesYAML = `roles:
  - name: analyst
    description: a rigorous analyst who reasons from first principles
    provider: deepseek
    model: deepseek-reasoner
    prompt_template: "Analyze the following question step by step and give a recommendation: {question}"
    concurrent: true
    temperature: 0.3
    max_tokens: 1500
  - name: skeptic
    description: a critical reviewer who looks for risks and counterarguments
    provider: deepseek
    prompt_template: "List the strongest objections and risks for: {question}"
    concurrent: true
    temperature: 0.7
  - name: economist
    description: an economist focused on costs, incentives and trade-offs
    provider: openrouter
    prompt_template: "Evaluate the economic trade-offs of: {question}"
    concurrent: true
`

// WriteDefaultConfig writes the default config, roles and secrets skeleton
// under dir (the config directory when dir is empty), without overwriting
// existing files. It returns the config path.
func WriteDefaultConfig(dir string) (string, error) {
	if dir == "" {
		dir = configDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	files := map[string]string{
		"config.yaml": DefaultConfigYAML,
		"roles.yaml":  DefaultRolesYAML,
		"secrets.env": "# DEEPSEEK_API_KEY=\n# OPENROUTER_API_KEY=\n# TAVILY_API_KEY=\n# DEEPCISION_API_TOKEN=\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue // keep existing files
		}
		mode := os.FileMode(0o644)
		if name == "secrets.env" {
			mode = 0o600
		}
		if err := os.WriteFile(path, []byte(content), mode); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return filepath.Join(dir, "config.yaml"), nil
}
