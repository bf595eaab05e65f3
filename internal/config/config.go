package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AlphaVantageAPIKey         string `yaml:"alpha_vantage_api_key"`
	AlphaVantageBaseURL        string `yaml:"alpha_vantage_base_url"`
	AlphaVantageRequestsPerMin int    `yaml:"alpha_vantage_requests_per_min"`
	AlphaVantageEntitlement    string `yaml:"alpha_vantage_entitlement"`

	HTTPPort        int    `yaml:"http_port"`
	APIKey          string `yaml:"api_key"`
	RedisURL        string `yaml:"redis_url"`
	RSICacheTTLSecs int    `yaml:"rsi_cache_ttl_secs"`
	DatabaseURL     string `yaml:"database_url"`

	TelegramBotToken string   `yaml:"telegram_bot_token"`
	WatchlistSymbols []string `yaml:"watchlist_symbols"`
	WatchlistCron    string   `yaml:"watchlist_cron"`

	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`

	SSHPort           int    `yaml:"ssh_port"`
	SSHHostKeyPath    string `yaml:"ssh_host_key_path"`
	SSHAuthorizedKeys string `yaml:"ssh_authorized_keys"`
	GatewayURL        string `yaml:"gateway_url"`
	ExportDir         string `yaml:"export_dir"`
	DisplayCount      int    `yaml:"display_count"`

	MCPTransport string `yaml:"mcp_transport"`
	MCPHTTPBind  string `yaml:"mcp_http_bind"`
	MCPHTTPPort  int    `yaml:"mcp_http_port"`
}

// Load builds the configuration from an optional YAML file named by
// CONFIG_FILE, overridden by environment variables, then fills defaults.
func Load() *Config {
	cfg := &Config{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loadFile(path, cfg)
	}

	cfg.AlphaVantageAPIKey = envString("ALPHA_VANTAGE_API_KEY", cfg.AlphaVantageAPIKey)
	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHA_VANTAGE_API_KEY not set, RSI lookups will fail")
	}
	cfg.AlphaVantageBaseURL = envString("ALPHA_VANTAGE_BASE_URL", cfg.AlphaVantageBaseURL)
	if cfg.AlphaVantageBaseURL == "" {
		cfg.AlphaVantageBaseURL = "https://www.alphavantage.co/query"
	}
	cfg.AlphaVantageRequestsPerMin = envInt("ALPHA_VANTAGE_REQUESTS_PER_MIN", cfg.AlphaVantageRequestsPerMin, 5)
	cfg.AlphaVantageEntitlement = envString("ALPHA_VANTAGE_ENTITLEMENT", cfg.AlphaVantageEntitlement)

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort, 8080)
	cfg.APIKey = envString("API_KEY", cfg.APIKey)

	cfg.RedisURL = envString("REDIS_URL", cfg.RedisURL)
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, RSI cache disabled")
	}
	cfg.RSICacheTTLSecs = envInt("RSI_CACHE_TTL_SECS", cfg.RSICacheTTLSecs, 300)

	cfg.DatabaseURL = envString("DATABASE_URL", cfg.DatabaseURL)
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, lookup history disabled")
	}

	cfg.TelegramBotToken = envString("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if v := strings.TrimSpace(os.Getenv("WATCHLIST_SYMBOLS")); v != "" {
		cfg.WatchlistSymbols = splitSymbols(v)
	} else {
		cfg.WatchlistSymbols = splitSymbols(strings.Join(cfg.WatchlistSymbols, ","))
	}
	cfg.WatchlistCron = envString("WATCHLIST_CRON", cfg.WatchlistCron)
	if cfg.WatchlistCron == "" {
		cfg.WatchlistCron = "0 */30 * * * *"
	}

	cfg.OpenAIAPIKey = envString("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor will be disabled")
	}
	cfg.OpenAIModel = envString("OPENAI_MODEL", cfg.OpenAIModel)
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.SSHPort = envInt("SSH_PORT", cfg.SSHPort, 2222)
	cfg.SSHHostKeyPath = envString("SSH_HOST_KEY_PATH", cfg.SSHHostKeyPath)
	if cfg.SSHHostKeyPath == "" {
		cfg.SSHHostKeyPath = ".ssh/rsi_host_ed25519"
	}
	cfg.SSHAuthorizedKeys = envString("SSH_AUTHORIZED_KEYS", cfg.SSHAuthorizedKeys)
	cfg.GatewayURL = envString("GATEWAY_URL", cfg.GatewayURL)
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = "http://localhost:8080"
	}
	cfg.GatewayURL = strings.TrimRight(cfg.GatewayURL, "/")
	cfg.ExportDir = envString("EXPORT_DIR", cfg.ExportDir)
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	cfg.DisplayCount = envInt("DISPLAY_COUNT", cfg.DisplayCount, 10)

	cfg.MCPTransport = strings.ToLower(envString("MCP_TRANSPORT", cfg.MCPTransport))
	if cfg.MCPTransport == "" {
		cfg.MCPTransport = "stdio"
	}
	if cfg.MCPTransport != "stdio" && cfg.MCPTransport != "http" {
		log.Printf("Warning: unsupported MCP_TRANSPORT=%q, defaulting to stdio", cfg.MCPTransport)
		cfg.MCPTransport = "stdio"
	}
	cfg.MCPHTTPBind = envString("MCP_HTTP_BIND", cfg.MCPHTTPBind)
	if cfg.MCPHTTPBind == "" {
		cfg.MCPHTTPBind = "127.0.0.1"
	}
	cfg.MCPHTTPPort = envInt("MCP_HTTP_PORT", cfg.MCPHTTPPort, 8090)

	return cfg
}

func loadFile(path string, cfg *Config) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: could not read CONFIG_FILE %s: %v", path, err)
		return
	}
	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		log.Printf("Warning: could not parse CONFIG_FILE %s: %v", path, err)
		return
	}
	*cfg = fileCfg
}

// envString returns the trimmed value of key, or current when unset.
func envString(key, current string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return strings.TrimSpace(current)
}

// envInt prefers a positive env value, then a positive file value, then def.
func envInt(key string, current, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using default", key, v)
	}
	if current > 0 {
		return current
	}
	return def
}

func splitSymbols(v string) []string {
	var symbols []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(v, ",") {
		s := strings.ToUpper(strings.TrimSpace(part))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	return symbols
}
