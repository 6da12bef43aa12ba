// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
)

// Config is the process-wide configuration
type Config struct {
	Port     string
	GinMode  string
	LogLevel string

	GeminiAPIKey  string
	GeminiModel   string
	OracleEnabled bool
	OracleTimeout time.Duration

	// OracleCacheTTL of zero disables the oracle signal cache
	OracleCacheTTL  time.Duration
	OracleCacheSize int

	AnalysisConcurrency int
	AdaptationThreshold float64
	ReferenceDataPath   string
	PatternLibraryPath  string
	LexiconPath         string

	RateLimitPerMin int
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	EnableHSTS         bool
	EnableCompression  bool
}

// Default returns the configuration used when no variables are set
func Default() Config {
	return Config{
		Port:                "8080",
		GinMode:             "release",
		LogLevel:            "info",
		GeminiModel:         "gemini-2.5-flash",
		OracleEnabled:       true,
		OracleTimeout:       8 * time.Second,
		OracleCacheTTL:      time.Hour,
		OracleCacheSize:     1000,
		AnalysisConcurrency: 8,
		AdaptationThreshold: 0.70,
		RateLimitPerMin:     60,
		CORSAllowedOrigins:  []string{"*"},
		RequestTimeout:      30 * time.Second,
		EnableCompression:   true,
	}
}

// Load reads the environment
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads configuration through lookup, which has the signature of
// os.LookupEnv
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	l := loader{lookup: lookup}

	cfg.Port = l.str("PORT", cfg.Port)
	cfg.GinMode = l.str("GIN_MODE", cfg.GinMode)
	cfg.LogLevel = l.str("LOG_LEVEL", cfg.LogLevel)

	cfg.GeminiAPIKey = l.str("GEMINI_API_KEY", cfg.GeminiAPIKey)
	cfg.GeminiModel = l.str("GEMINI_MODEL", cfg.GeminiModel)
	cfg.OracleEnabled = l.boolean("ORACLE_ENABLED", cfg.OracleEnabled)
	cfg.OracleTimeout = l.duration("ORACLE_TIMEOUT", cfg.OracleTimeout)
	cfg.OracleCacheTTL = l.duration("ORACLE_CACHE_TTL", cfg.OracleCacheTTL)
	cfg.OracleCacheSize = l.integer("ORACLE_CACHE_SIZE", cfg.OracleCacheSize)

	cfg.AnalysisConcurrency = l.integer("ANALYSIS_CONCURRENCY", cfg.AnalysisConcurrency)
	cfg.AdaptationThreshold = l.float("ADAPTATION_THRESHOLD", cfg.AdaptationThreshold)
	cfg.ReferenceDataPath = l.str("REFERENCE_DATA_PATH", cfg.ReferenceDataPath)
	cfg.PatternLibraryPath = l.str("PATTERN_LIBRARY_PATH", cfg.PatternLibraryPath)
	cfg.LexiconPath = l.str("LEXICON_PATH", cfg.LexiconPath)

	cfg.RateLimitPerMin = l.integer("RATE_LIMIT_PER_MIN", cfg.RateLimitPerMin)
	cfg.RedisAddr = l.str("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = l.str("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = l.integer("REDIS_DB", cfg.RedisDB)

	if v, ok := l.lookup("CORS_ALLOWED_ORIGINS"); ok && strings.TrimSpace(v) != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}
	cfg.RequestTimeout = l.duration("REQUEST_TIMEOUT", cfg.RequestTimeout)
	cfg.EnableHSTS = l.boolean("ENABLE_HSTS", cfg.EnableHSTS)
	cfg.EnableCompression = l.boolean("ENABLE_COMPRESSION", cfg.EnableCompression)

	if len(l.problems) > 0 {
		return Config{}, errors.NewConfigurationError(strings.Join(l.problems, "; "), nil)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	var problems []string

	if c.Port == "" {
		problems = append(problems, "PORT must not be empty")
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		problems = append(problems, fmt.Sprintf("GIN_MODE %q must be debug, release or test", c.GinMode))
	}
	if c.OracleTimeout <= 0 {
		problems = append(problems, "ORACLE_TIMEOUT must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if c.OracleTimeout > c.RequestTimeout {
		problems = append(problems, "ORACLE_TIMEOUT must not exceed REQUEST_TIMEOUT")
	}
	if c.OracleCacheTTL < 0 {
		problems = append(problems, "ORACLE_CACHE_TTL must not be negative")
	}
	if c.OracleCacheSize < 0 {
		problems = append(problems, "ORACLE_CACHE_SIZE must not be negative")
	}
	if c.AnalysisConcurrency < 1 {
		problems = append(problems, "ANALYSIS_CONCURRENCY must be at least 1")
	}
	if c.AdaptationThreshold <= 0 || c.AdaptationThreshold > 1 {
		problems = append(problems, "ADAPTATION_THRESHOLD must be in (0,1]")
	}
	if c.RateLimitPerMin < 1 {
		problems = append(problems, "RATE_LIMIT_PER_MIN must be at least 1")
	}
	if c.RedisDB < 0 {
		problems = append(problems, "REDIS_DB must not be negative")
	}

	if len(problems) > 0 {
		return errors.NewConfigurationError(strings.Join(problems, "; "), nil)
	}
	return nil
}

// OracleConfigured reports whether the generative-AI oracle should be wired
func (c Config) OracleConfigured() bool {
	return c.OracleEnabled && c.GeminiAPIKey != ""
}

type loader struct {
	lookup   func(string) (string, bool)
	problems []string
}

func (l *loader) raw(key string) (string, bool) {
	v, ok := l.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (l *loader) str(key, def string) string {
	if v, ok := l.raw(key); ok {
		return v
	}
	return def
}

func (l *loader) boolean(key string, def bool) bool {
	v, ok := l.raw(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		l.problems = append(l.problems, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return b
}

func (l *loader) integer(key string, def int) int {
	v, ok := l.raw(key)
	if !ok {
		return def
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		l.problems = append(l.problems, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v, ok := l.raw(key)
	if !ok {
		return def
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		l.problems = append(l.problems, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

// duration accepts Go durations ("8s") or a bare number of seconds
func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := l.raw(key)
	if !ok {
		return def
	}
	if secs, err := cast.ToFloat64E(v); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		l.problems = append(l.problems, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
