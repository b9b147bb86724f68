package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	Environment     string // "development" or "production"
	RankingsBaseURL string
	HistoryBaseURL  string
	SumobarBaseURL  string
	SumobarAPIToken string
	RedisURL        string // optional edge cache
	AllowedOrigin   string
	TrustedProxies  string
}

func Load() (*Config, error) {
	// Load .env file (OK if it fails in production)
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		RankingsBaseURL: getEnv("RANKINGS_BASE_URL", "https://corsapi.armanelgtron.tk/rankings"),
		HistoryBaseURL:  getEnv("HISTORY_BASE_URL", "https://retrocyclesleague.com/api/history"),
		SumobarBaseURL:  getEnv("SUMOBAR_BASE_URL", "https://retrocyclesleague.com/api/v1/sumobar"),
		SumobarAPIToken: os.Getenv("SUMOBAR_API_TOKEN"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "*"),
		TrustedProxies:  os.Getenv("TRUSTED_PROXIES"),
	}

	if cfg.RankingsBaseURL == "" {
		return nil, fmt.Errorf("RANKINGS_BASE_URL environment variable is required")
	}
	if cfg.HistoryBaseURL == "" {
		return nil, fmt.Errorf("HISTORY_BASE_URL environment variable is required")
	}

	return cfg, nil
}

// TrustedProxyList splits the comma-separated TRUSTED_PROXIES value into
// the slice Gin expects. Returns nil when no proxies are configured.
func (c *Config) TrustedProxyList() []string {
	if c.TrustedProxies == "" {
		return nil
	}
	var proxies []string
	for _, p := range strings.Split(c.TrustedProxies, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	return proxies
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
