package providers

type Config struct {
	Providers struct {
		Default  string `yaml:"default"`
		DeepSeek struct {
			APIKey         string `yaml:"api_key"`
			BaseURL        string `yaml:"base_url"`
			Model          string `yaml:"model"`
			TimeoutSeconds int    `yaml:"timeout_seconds"`
		} `yaml:"deepseek"`
		OpenRouter struct {
			APIKey         string   `yaml:"api_key"`
			BaseURL        string   `yaml:"base_url"`
			Model          string   `yaml:"model"`
			Fallbacks      []string `yaml:"fallbacks"`
			SiteURL        string   `yaml:"site_url"`
			SiteName       string   `yaml:"site_name"`
			TimeoutSeconds int      `yaml:"timeout_seconds"`
		} `yaml:"openrouter"`
		Tavily struct {
			APIKey         string `yaml:"api_key"`
			BaseURL        string `yaml:"base_url"`
			TimeoutSeconds int    `yaml:"timeout_seconds"`
		} `yaml:"tavily"`
	} `yaml:"providers"`
	Roles struct {
		TemplatePath string `yaml:"template_path"`
	} `yaml:"roles"`
	Defaults struct {
		Temperature    float64 `yaml:"temperature"`
		MaxTokens      int     `yaml:"max_tokens"`
		Retries        int     `yaml:"retries"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		Concurrency    int     `yaml:"concurrency"`
	} `yaml:"defaults"`
	Cache struct {
		Enabled    bool   `yaml:"enabled"`
		Path       string `yaml:"path"`
		MaxEntries int    `yaml:"max_entries"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`
	Server struct {
		Addr      string `yaml:"addr"`
		AuthToken string `yaml:"auth_token"`
	} `yaml:"server"`
	Telemetry struct {
		Enabled         bool   `yaml:"enabled"`
		OTLPEndpoint    string `yaml:"otlp_endpoint"`
		MonitoringPort  int    `yaml:"monitoring_port"`
		MetricsInterval int    `yaml:"metrics_interval"`
	} `yaml:"telemetry"`
}
