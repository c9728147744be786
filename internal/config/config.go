package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var defaultSuggestions = []string{"AAPL", "GOOGL", "NVDA", "TSLA", "MSFT", "BTC-USD"}

type Config struct {
	Port                string
	LogLevel            string
	LogDevelopment      bool
	GeminiAPIKey        string
	GeminiModel         string
	GoogleSearch        bool
	RedisURL            string
	CacheTTLInsight     time.Duration
	CacheTTLInsightHard time.Duration
	RequestTimeout      time.Duration
	ModelTimeout        time.Duration
	ModelRetries        int
	RateLimitPerMin     int
	CircuitFailLimit    int
	CircuitCooldown     time.Duration
	SessionIdleTTL      time.Duration
	ChangeWindow        string
	ChartPoints         int
	Suggestions         []string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Anything
// set in the environment wins over the file.
type fileConfig struct {
	Gemini struct {
		Model        string `yaml:"model"`
		GoogleSearch *bool  `yaml:"google_search"`
	} `yaml:"gemini"`
	Insight struct {
		ChangeWindow string   `yaml:"change_window"`
		ChartPoints  int      `yaml:"chart_points"`
		Suggestions  []string `yaml:"suggestions"`
	} `yaml:"insight"`
	Cache struct {
		RedisURL string `yaml:"redis_url"`
	} `yaml:"cache"`
}

// Load reads the YAML overlay named by CONFIG_FILE, then applies
// environment variable overrides.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile applies the YAML overlay at path (if any) and then environment
// variables. A missing file is not an error.
func LoadFile(path string) (Config, error) {
	var fc fileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	googleSearch := true
	if fc.Gemini.GoogleSearch != nil {
		googleSearch = *fc.Gemini.GoogleSearch
	}
	suggestions := defaultSuggestions
	if len(fc.Insight.Suggestions) > 0 {
		suggestions = fc.Insight.Suggestions
	}

	return Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogDevelopment:      getEnvBool("LOG_DEVELOPMENT", false),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		GeminiModel:         getEnv("GEMINI_MODEL", orDefault(fc.Gemini.Model, "gemini-2.5-flash")),
		GoogleSearch:        getEnvBool("GEMINI_GOOGLE_SEARCH", googleSearch),
		RedisURL:            getEnv("REDIS_URL", orDefault(fc.Cache.RedisURL, "redis://localhost:6379")),
		CacheTTLInsight:     getEnvDuration("CACHE_TTL_INSIGHT", 60*time.Second),
		CacheTTLInsightHard: getEnvDuration("CACHE_TTL_INSIGHT_HARD", 600*time.Second),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 45*time.Second),
		ModelTimeout:        getEnvDuration("MODEL_TIMEOUT", 40*time.Second),
		ModelRetries:        getEnvInt("MODEL_RETRIES", 2),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MIN", 60),
		CircuitFailLimit:    getEnvInt("CIRCUIT_FAIL_LIMIT", 3),
		CircuitCooldown:     getEnvDuration("CIRCUIT_COOLDOWN", 20*time.Second),
		SessionIdleTTL:      getEnvDuration("SESSION_IDLE_TTL", 1800*time.Second),
		ChangeWindow:        getEnv("CHANGE_WINDOW", orDefault(fc.Insight.ChangeWindow, "24h")),
		ChartPoints:         getEnvInt("CHART_POINTS", orDefaultInt(fc.Insight.ChartPoints, 12)),
		Suggestions:         getEnvList("SUGGESTIONS", suggestions),
	}, nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return time.Duration(i) * time.Second
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), def...)
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
