package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/cultural-bias-shield/internal/errors"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(env(nil))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.OracleConfigured())
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"PORT":                 "9090",
		"GIN_MODE":             "debug",
		"LOG_LEVEL":            "debug",
		"GEMINI_API_KEY":       "key",
		"GEMINI_MODEL":         "gemini-2.0-flash",
		"ORACLE_ENABLED":       "true",
		"ORACLE_TIMEOUT":       "5s",
		"ANALYSIS_CONCURRENCY": "4",
		"ADAPTATION_THRESHOLD": "0.65",
		"REFERENCE_DATA_PATH":  "/data/countries.yaml",
		"PATTERN_LIBRARY_PATH": "/data/patterns.yaml",
		"RATE_LIMIT_PER_MIN":   "120",
		"REDIS_ADDR":           "localhost:6379",
		"REDIS_DB":             "2",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example,",
		"REQUEST_TIMEOUT":      "45",
		"ENABLE_HSTS":          "1",
		"ENABLE_COMPRESSION":   "false",
		"ORACLE_CACHE_TTL":     "0",
		"ORACLE_CACHE_SIZE":    "50",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "debug", cfg.GinMode)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.True(t, cfg.OracleConfigured())
	assert.Equal(t, 5*time.Second, cfg.OracleTimeout)
	assert.Equal(t, 4, cfg.AnalysisConcurrency)
	assert.Equal(t, 0.65, cfg.AdaptationThreshold)
	assert.Equal(t, "/data/countries.yaml", cfg.ReferenceDataPath)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.EnableHSTS)
	assert.False(t, cfg.EnableCompression)
	assert.Zero(t, cfg.OracleCacheTTL)
	assert.Equal(t, 50, cfg.OracleCacheSize)
}

func TestLoadOracleDisabled(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"GEMINI_API_KEY": "key",
		"ORACLE_ENABLED": "false",
	}))
	require.NoError(t, err)
	assert.False(t, cfg.OracleConfigured())
}

func TestLoadBlankValuesKeepDefaults(t *testing.T) {
	cfg, err := LoadFrom(env(map[string]string{
		"PORT":                 "  ",
		"CORS_ALLOWED_ORIGINS": "",
	}))
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"bad bool", map[string]string{"ORACLE_ENABLED": "maybe"}},
		{"bad int", map[string]string{"RATE_LIMIT_PER_MIN": "lots"}},
		{"bad float", map[string]string{"ADAPTATION_THRESHOLD": "high"}},
		{"bad duration", map[string]string{"ORACLE_TIMEOUT": "soon"}},
		{"threshold too high", map[string]string{"ADAPTATION_THRESHOLD": "1.5"}},
		{"zero concurrency", map[string]string{"ANALYSIS_CONCURRENCY": "0"}},
		{"zero rate limit", map[string]string{"RATE_LIMIT_PER_MIN": "0"}},
		{"negative redis db", map[string]string{"REDIS_DB": "-1"}},
		{"negative cache ttl", map[string]string{"ORACLE_CACHE_TTL": "-1m"}},
		{"negative cache size", map[string]string{"ORACLE_CACHE_SIZE": "-5"}},
		{"bad gin mode", map[string]string{"GIN_MODE": "production"}},
		{"oracle slower than request", map[string]string{"ORACLE_TIMEOUT": "40s", "REQUEST_TIMEOUT": "30s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(env(tt.vars))
			require.Error(t, err)
			assert.Equal(t, errors.CategoryConfiguration, errors.ToAppError(err).Category)
		})
	}
}

func TestLoadUsesEnvironment(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("GIN_MODE", "test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "test", cfg.GinMode)
}
